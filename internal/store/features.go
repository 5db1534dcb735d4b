package store

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"

	"github.com/roach88/stratum/internal/feature"
)

// FeatureRow is one assertion in a typed ledger. A nil User marks an
// unattributed machine suggestion; suggestions carry a Probability and
// compete until a user confirms one. Attributed rows carry a Confidence
// local to that user.
type FeatureRow struct {
	UnitID      int64
	Key         feature.Key
	Value       feature.Value
	User        *string
	Confidence  *int64
	Date        string
	Probability *float64
}

// Confirmed reports whether the row was asserted by an identified user.
func (r FeatureRow) Confirmed() bool {
	return r.User != nil
}

// AppendFeature inserts a new active row into the ledger matching the
// value's kind. It never overwrites; deactivate superseded rows first
// (DeactivateFeatures) to get overwrite semantics.
func (s *Store) AppendFeature(ctx context.Context, tx *sql.Tx, row FeatureRow) error {
	// Table name comes from the closed Kind enum, never from input.
	_, err := tx.ExecContext(ctx, `
		INSERT INTO `+row.Value.Kind().Table()+`(id, feature, value, user, confidence, date, probability, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1)
	`,
		row.UnitID,
		row.Key.String(),
		row.Value.Storage(),
		row.User,
		row.Confidence,
		row.Date,
		row.Probability,
	)
	return errors.Wrapf(err, "append %s feature", row.Value.Kind())
}

// DeactivateFeatures flips active to 0 on every currently active row in
// one kind's ledger matching the unit and any of the keys, regardless
// of attribution. Both confirmation and history-preserving overwrite
// are built on this.
func (s *Store) DeactivateFeatures(ctx context.Context, tx *sql.Tx, kind feature.Kind, unitID int64, keys []feature.Key) error {
	if len(keys) == 0 {
		return nil
	}

	keyStrs := make([]string, len(keys))
	for i, k := range keys {
		keyStrs[i] = k.String()
	}
	placeholders, args := inClause(keyStrs)

	_, err := tx.ExecContext(ctx,
		`UPDATE `+kind.Table()+` SET active = 0
		 WHERE id = ? AND active = 1 AND feature IN (`+placeholders+`)`,
		append([]any{unitID}, args...)...,
	)
	return errors.Wrapf(err, "deactivate %s features", kind)
}

// ScanActive returns every active row for a unit across all four
// ledgers, optionally filtered to a key set. Rows come back in ledger
// order (int, bool, str, ref), each ledger in insertion order.
func (s *Store) ScanActive(ctx context.Context, unitID int64, keys []feature.Key) ([]FeatureRow, error) {
	var filter string
	var filterArgs []any
	if len(keys) > 0 {
		keyStrs := make([]string, len(keys))
		for i, k := range keys {
			keyStrs[i] = k.String()
		}
		placeholders, args := inClause(keyStrs)
		filter = ` AND feature IN (` + placeholders + `)`
		filterArgs = args
	}

	var result []FeatureRow
	for _, kind := range feature.Kinds {
		rows, err := s.db.QueryContext(ctx,
			`SELECT feature, value, user, confidence, date, probability
			 FROM `+kind.Table()+`
			 WHERE id = ? AND active = 1`+filter+`
			 ORDER BY rowid ASC`,
			append([]any{unitID}, filterArgs...)...,
		)
		if err != nil {
			return nil, errors.Wrapf(err, "query active %s features", kind)
		}

		result, err = appendScanned(result, rows, kind, unitID)
		rows.Close()
		if err != nil {
			return nil, err
		}
	}

	if result == nil {
		result = []FeatureRow{}
	}
	return result, nil
}

// appendScanned drains one ledger's rows into FeatureRow values.
func appendScanned(dst []FeatureRow, rows *sql.Rows, kind feature.Kind, unitID int64) ([]FeatureRow, error) {
	for rows.Next() {
		var (
			keyStr      string
			intVal      sql.NullInt64
			strVal      sql.NullString
			user        sql.NullString
			confidence  sql.NullInt64
			date        string
			probability sql.NullFloat64
		)

		var valueDst any = &intVal
		if kind == feature.KindStr {
			valueDst = &strVal
		}

		if err := rows.Scan(&keyStr, valueDst, &user, &confidence, &date, &probability); err != nil {
			return nil, errors.Wrapf(err, "scan %s feature", kind)
		}

		key, err := feature.ParseKey(keyStr)
		if err != nil {
			return nil, errors.Wrapf(err, "unit %d", unitID)
		}

		value, err := feature.FromStorage(kind, intVal.Int64, strVal.String)
		if err != nil {
			return nil, errors.Wrapf(err, "unit %d feature %s", unitID, keyStr)
		}

		row := FeatureRow{
			UnitID: unitID,
			Key:    key,
			Value:  value,
			Date:   date,
		}
		if user.Valid {
			u := user.String
			row.User = &u
		}
		if confidence.Valid {
			c := confidence.Int64
			row.Confidence = &c
		}
		if probability.Valid {
			p := probability.Float64
			row.Probability = &p
		}
		dst = append(dst, row)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "iterate %s features", kind)
	}
	return dst, nil
}

// ConfirmedValues returns unit id -> confirmed active value of one
// feature key for the given units. Units without a confirmed value are
// absent from the result.
func (s *Store) ConfirmedValues(ctx context.Context, kind feature.Kind, key feature.Key, unitIDs []int64) (map[int64]feature.Value, error) {
	values := make(map[int64]feature.Value, len(unitIDs))
	if len(unitIDs) == 0 {
		return values, nil
	}

	placeholders, args := inClause(unitIDs)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, value FROM `+kind.Table()+`
		 WHERE id IN (`+placeholders+`)
		   AND feature = ? AND user IS NOT NULL AND active = 1`,
		append(args, key.String())...,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "query confirmed %s values", kind)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var intVal sql.NullInt64
		var strVal sql.NullString

		var valueDst any = &intVal
		if kind == feature.KindStr {
			valueDst = &strVal
		}
		if err := rows.Scan(&id, valueDst); err != nil {
			return nil, errors.Wrapf(err, "scan confirmed %s value", kind)
		}

		value, err := feature.FromStorage(kind, intVal.Int64, strVal.String)
		if err != nil {
			return nil, errors.Wrapf(err, "unit %d feature %s", id, key)
		}
		values[id] = value
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "iterate confirmed %s values", kind)
	}

	return values, nil
}
