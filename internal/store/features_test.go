package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/roach88/stratum/internal/feature"
)

const testStamp = "2024-01-15 10:30:00"

// openTest returns a fresh in-memory store.
func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// mustTx runs fn in a transaction and fails the test on error.
func mustTx(t *testing.T, s *Store, fn func(tx *sql.Tx) error) {
	t.Helper()
	if err := s.WithTx(context.Background(), fn); err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}
}

func strPtr(s string) *string { return &s }
func intPtr(n int64) *int64 { return &n }
func floatPtr(f float64) *float64 { return &f }

func glossKey() feature.Key {
	return feature.Key{Tier: "gloss", Feature: "primary"}
}

func TestAppendAndScanActive(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	mustTx(t, s, func(tx *sql.Tx) error {
		return s.AppendFeature(ctx, tx, FeatureRow{
			UnitID:     1,
			Key:        glossKey(),
			Value:      feature.Str("run"),
			User:       strPtr("alice"),
			Confidence: intPtr(5),
			Date:       testStamp,
		})
	})

	rows, err := s.ScanActive(ctx, 1, nil)
	if err != nil {
		t.Fatalf("ScanActive failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}

	row := rows[0]
	if row.Value != feature.Str("run") {
		t.Errorf("value = %v, want run", row.Value)
	}
	if row.User == nil || *row.User != "alice" {
		t.Errorf("user = %v, want alice", row.User)
	}
	if !row.Confirmed() {
		t.Error("attributed row should be confirmed")
	}
	if row.Date != testStamp {
		t.Errorf("date = %q, want %q", row.Date, testStamp)
	}
}

func TestScanActive_KeyFilter(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	other := feature.Key{Tier: "transcription", Feature: "form"}
	mustTx(t, s, func(tx *sql.Tx) error {
		if err := s.AppendFeature(ctx, tx, FeatureRow{
			UnitID: 1, Key: glossKey(), Value: feature.Str("run"),
			User: strPtr("alice"), Date: testStamp,
		}); err != nil {
			return err
		}
		return s.AppendFeature(ctx, tx, FeatureRow{
			UnitID: 1, Key: other, Value: feature.Str("ran"),
			User: strPtr("alice"), Date: testStamp,
		})
	})

	rows, err := s.ScanActive(ctx, 1, []feature.Key{glossKey()})
	if err != nil {
		t.Fatalf("ScanActive failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Key != glossKey() {
		t.Fatalf("filter returned %v, want only %v", rows, glossKey())
	}
}

func TestScanActive_UnionsAllLedgers(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	mustTx(t, s, func(tx *sql.Tx) error {
		values := []feature.Value{
			feature.Int(3),
			feature.Bool(true),
			feature.Str("text"),
			feature.Ref(9),
		}
		for i, v := range values {
			key := feature.Key{Tier: "t", Feature: string(rune('a' + i))}
			if err := s.AppendFeature(ctx, tx, FeatureRow{
				UnitID: 1, Key: key, Value: v, User: strPtr("alice"), Date: testStamp,
			}); err != nil {
				return err
			}
		}
		return nil
	})

	rows, err := s.ScanActive(ctx, 1, nil)
	if err != nil {
		t.Fatalf("ScanActive failed: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(rows))
	}

	// Rows come back in ledger order: int, bool, str, ref.
	wantKinds := []feature.Kind{feature.KindInt, feature.KindBool, feature.KindStr, feature.KindRef}
	for i, row := range rows {
		if row.Value.Kind() != wantKinds[i] {
			t.Errorf("row %d kind = %s, want %s", i, row.Value.Kind(), wantKinds[i])
		}
	}
}

func TestDeactivate_PreservesHistory(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	mustTx(t, s, func(tx *sql.Tx) error {
		return s.AppendFeature(ctx, tx, FeatureRow{
			UnitID: 1, Key: glossKey(), Value: feature.Str("walk"),
			User: strPtr("alice"), Date: testStamp,
		})
	})

	// Supersede: deactivate then insert, as the mutation engine does.
	mustTx(t, s, func(tx *sql.Tx) error {
		if err := s.DeactivateFeatures(ctx, tx, feature.KindStr, 1, []feature.Key{glossKey()}); err != nil {
			return err
		}
		return s.AppendFeature(ctx, tx, FeatureRow{
			UnitID: 1, Key: glossKey(), Value: feature.Str("run"),
			User: strPtr("bob"), Date: testStamp,
		})
	})

	rows, err := s.ScanActive(ctx, 1, nil)
	if err != nil {
		t.Fatalf("ScanActive failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d active rows, want 1", len(rows))
	}
	if rows[0].Value != feature.Str("run") {
		t.Errorf("active value = %v, want run", rows[0].Value)
	}

	// The superseded row must remain in storage with active = 0.
	var total, inactive int
	if err := s.db.QueryRow(
		`SELECT COUNT(*), SUM(active = 0) FROM str_features WHERE id = 1`,
	).Scan(&total, &inactive); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if total != 2 {
		t.Errorf("total rows = %d, want 2 (history never shrinks)", total)
	}
	if inactive != 1 {
		t.Errorf("inactive rows = %d, want 1", inactive)
	}
}

func TestDeactivate_IgnoresAttribution(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	// One suggestion and one confirmed row on the same key.
	mustTx(t, s, func(tx *sql.Tx) error {
		if err := s.AppendFeature(ctx, tx, FeatureRow{
			UnitID: 1, Key: glossKey(), Value: feature.Str("walk"),
			Probability: floatPtr(0.7), Date: testStamp,
		}); err != nil {
			return err
		}
		return s.AppendFeature(ctx, tx, FeatureRow{
			UnitID: 1, Key: glossKey(), Value: feature.Str("run"),
			User: strPtr("alice"), Date: testStamp,
		})
	})

	mustTx(t, s, func(tx *sql.Tx) error {
		return s.DeactivateFeatures(ctx, tx, feature.KindStr, 1, []feature.Key{glossKey()})
	})

	rows, err := s.ScanActive(ctx, 1, nil)
	if err != nil {
		t.Fatalf("ScanActive failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d active rows after deactivation, want 0", len(rows))
	}
}

func TestConfirmedValues_SkipsSuggestions(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	mustTx(t, s, func(tx *sql.Tx) error {
		if err := s.AppendFeature(ctx, tx, FeatureRow{
			UnitID: 1, Key: glossKey(), Value: feature.Str("run"),
			User: strPtr("alice"), Date: testStamp,
		}); err != nil {
			return err
		}
		// Unit 2 has only a suggestion.
		return s.AppendFeature(ctx, tx, FeatureRow{
			UnitID: 2, Key: glossKey(), Value: feature.Str("walk"),
			Probability: floatPtr(0.4), Date: testStamp,
		})
	})

	values, err := s.ConfirmedValues(ctx, feature.KindStr, glossKey(), []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("ConfirmedValues failed: %v", err)
	}
	if len(values) != 1 {
		t.Fatalf("got %d values, want 1", len(values))
	}
	if values[1] != feature.Str("run") {
		t.Errorf("values[1] = %v, want run", values[1])
	}
}
