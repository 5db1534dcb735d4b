package store

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
)

// Edge is one directed relation between two units. Primary edges form
// the annotation tree; secondary edges overlay an arbitrary graph and
// carry no exclusivity.
type Edge struct {
	Parent     int64
	ParentType string
	Child      int64
	ChildType  string
	Primary    bool
	Date       string
}

// ChildEdge is one active relation as seen from the parent side.
type ChildEdge struct {
	ChildID   int64
	ChildType string
	Primary   bool
}

// SetPrimary deactivates the active primary edge for exactly this
// (parent, child) pair, then inserts a new active primary edge.
// Exclusivity is scoped to the pair: setting a different parent as
// primary for the same child does not clear this one.
func (s *Store) SetPrimary(ctx context.Context, tx *sql.Tx, e Edge) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE relations SET active = 0
		WHERE parent = ? AND child = ? AND isprimary = 1 AND active = 1
	`, e.Parent, e.Child)
	if err != nil {
		return errors.Wrap(err, "deactivate primary edge")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO relations(parent, parent_type, child, child_type, isprimary, active, date)
		VALUES (?, ?, ?, ?, 1, 1, ?)
	`, e.Parent, e.ParentType, e.Child, e.ChildType, e.Date)
	return errors.Wrap(err, "insert primary edge")
}

// AddSecondary inserts a new active non-primary edge unconditionally.
// The ledger does not deduplicate secondary edges.
func (s *Store) AddSecondary(ctx context.Context, tx *sql.Tx, e Edge) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO relations(parent, parent_type, child, child_type, isprimary, active, date)
		VALUES (?, ?, ?, ?, 0, 1, ?)
	`, e.Parent, e.ParentType, e.Child, e.ChildType, e.Date)
	return errors.Wrap(err, "insert secondary edge")
}

// RemoveRelations deactivates all active edges, primary or secondary,
// between the pair. Idempotent: removing an already-removed pair is a
// no-op.
func (s *Store) RemoveRelations(ctx context.Context, tx *sql.Tx, parent, child int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE relations SET active = 0
		WHERE parent = ? AND child = ? AND active = 1
	`, parent, child)
	return errors.Wrap(err, "deactivate edges")
}

// ChildrenOf returns the active edges from a parent whose child unit is
// itself active, in insertion order.
func (s *Store) ChildrenOf(ctx context.Context, parent int64) ([]ChildEdge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT relations.child, relations.child_type, relations.isprimary
		FROM relations
		INNER JOIN units ON relations.child = units.id
		WHERE relations.active = 1 AND units.active = 1 AND relations.parent = ?
		ORDER BY relations.rowid ASC
	`, parent)
	if err != nil {
		return nil, errors.Wrap(err, "query children")
	}
	defer rows.Close()

	var children []ChildEdge
	for rows.Next() {
		var c ChildEdge
		var isPrimary int64
		if err := rows.Scan(&c.ChildID, &c.ChildType, &isPrimary); err != nil {
			return nil, errors.Wrap(err, "scan child edge")
		}
		c.Primary = isPrimary == 1
		children = append(children, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate children")
	}

	if children == nil {
		children = []ChildEdge{}
	}
	return children, nil
}

// ActiveEdges returns all active edges between a pair, used by tests to
// verify remove idempotency.
func (s *Store) ActiveEdges(ctx context.Context, parent, child int64) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT parent, parent_type, child, child_type, isprimary, date
		FROM relations
		WHERE parent = ? AND child = ? AND active = 1
		ORDER BY rowid ASC
	`, parent, child)
	if err != nil {
		return nil, errors.Wrap(err, "query active edges")
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		var isPrimary int64
		if err := rows.Scan(&e.Parent, &e.ParentType, &e.Child, &e.ChildType, &isPrimary, &e.Date); err != nil {
			return nil, errors.Wrap(err, "scan edge")
		}
		e.Primary = isPrimary == 1
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate edges")
	}

	if edges == nil {
		edges = []Edge{}
	}
	return edges, nil
}
