package store

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
)

// Unit is one row of the unit directory.
type Unit struct {
	ID       int64
	Type     string
	Created  string
	Modified string
	Active   bool
}

// InsertUnit adds a new active unit of the given type and returns its
// id. Ids are assigned monotonically by SQLite's rowid allocator.
func (s *Store) InsertUnit(ctx context.Context, tx *sql.Tx, unitType, now string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO units(type, created, modified, active)
		VALUES (?, ?, ?, 1)
	`, unitType, now, now)
	if err != nil {
		return 0, errors.Wrap(err, "insert unit")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "insert unit: last insert id")
	}
	return id, nil
}

// UnitType returns the type of a unit regardless of its active flag.
// ok is false when the id is unknown.
func (s *Store) UnitType(ctx context.Context, id int64) (unitType string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT type FROM units WHERE id = ?`, id,
	).Scan(&unitType)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "query unit type")
	}
	return unitType, true, nil
}

// ActiveUnit returns the type and modification stamp of an active unit.
// ok is false when the unit is unknown or inactive.
func (s *Store) ActiveUnit(ctx context.Context, id int64) (unitType, modified string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT type, modified FROM units WHERE id = ? AND active = 1`, id,
	).Scan(&unitType, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, errors.Wrap(err, "query active unit")
	}
	return unitType, modified, true, nil
}

// Touch updates a unit's modified stamp. Every mutation that affects a
// unit directly or through a relation touches it.
func (s *Store) Touch(ctx context.Context, tx *sql.Tx, id int64, now string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE units SET modified = ? WHERE id = ?`, now, id,
	)
	return errors.Wrap(err, "touch unit")
}

// ActiveUnitIDs returns the ids of all active units of a type, ordered
// ascending for deterministic listings.
func (s *Store) ActiveUnitIDs(ctx context.Context, unitType string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM units
		WHERE type = ? AND active = 1
		ORDER BY id ASC
	`, unitType)
	if err != nil {
		return nil, errors.Wrap(err, "query active units")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan unit id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate active units")
	}

	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

// ModificationTimes returns id -> modified for the requested units.
// Unknown ids are simply absent from the result.
func (s *Store) ModificationTimes(ctx context.Context, ids []int64) (map[int64]string, error) {
	times := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return times, nil
	}

	placeholders, args := inClause(ids)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, modified FROM units WHERE id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query modification times")
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var modified string
		if err := rows.Scan(&id, &modified); err != nil {
			return nil, errors.Wrap(err, "scan modification time")
		}
		times[id] = modified
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate modification times")
	}

	return times, nil
}

// inClause builds a "?, ?, ..." placeholder list and the matching args
// slice for an IN query.
func inClause[T any](vals []T) (string, []any) {
	placeholders := make([]byte, 0, len(vals)*3)
	args := make([]any, len(vals))
	for i, v := range vals {
		if i > 0 {
			placeholders = append(placeholders, ',', ' ')
		}
		placeholders = append(placeholders, '?')
		args[i] = v
	}
	return string(placeholders), args
}
