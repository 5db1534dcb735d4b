package store

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"

	"github.com/roach88/stratum/internal/feature"
)

// TypeExists reports whether a unit type has been registered. A type
// exists once it owns at least one tier entry (every type gets the
// implicit meta:active entry at definition).
func (s *Store) TypeExists(ctx context.Context, unitType string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM tiers WHERE unittype = ? LIMIT 1`, unitType,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "query type")
	}
	return true, nil
}

// InsertTierEntry registers one (tier, feature, kind) triple for a unit
// type. Schema entries are append-only; there is no delete or retype.
func (s *Store) InsertTierEntry(ctx context.Context, tx *sql.Tx, unitType string, key feature.Key, kind feature.Kind) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO tiers(tier, feature, unittype, valuetype)
		VALUES (?, ?, ?, ?)
	`, key.Tier, key.Feature, unitType, kind.String())
	return errors.Wrap(err, "insert tier entry")
}

// LookupKind resolves the declared value kind for a feature key scoped
// to a unit type. ok is false when the key is not declared for the type.
func (s *Store) LookupKind(ctx context.Context, unitType string, key feature.Key) (kind feature.Kind, ok bool, err error) {
	var kindName string
	err = s.db.QueryRowContext(ctx, `
		SELECT valuetype FROM tiers
		WHERE tier = ? AND feature = ? AND unittype = ?
	`, key.Tier, key.Feature, unitType).Scan(&kindName)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "query tier entry")
	}

	kind, err = feature.ParseKind(kindName)
	if err != nil {
		// A kind name we don't recognize means the registry was
		// written by something newer than this build.
		return "", false, errors.Wrapf(err, "tier entry %s for type %s", key, unitType)
	}
	return kind, true, nil
}
