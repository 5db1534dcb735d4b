package engine

import (
	"context"

	"github.com/roach88/stratum/internal/feature"
)

// Node is a materialized unit: its directory fields, reconciled layers,
// and children grouped by child type. A child element is either a
// nested *Node (primary relation) or a bare int64 id (secondary).
type Node struct {
	Type     string           `json:"type"`
	ID       int64            `json:"id"`
	Modified string           `json:"modified"`
	Layers   Layers           `json:"layers"`
	Children map[string][]any `json:"children"`
}

// Materialize reassembles a unit and its descendants into one nested
// tree. filter optionally restricts the reconciled keys; reduced
// suppresses suggestion sets. Fails with NOT_FOUND when the root is
// absent or inactive, and with CYCLE_DETECTED when a unit is reachable
// from itself through primary relations or confirmed references.
func (e *Engine) Materialize(ctx context.Context, unitID int64, filter []feature.Key, reduced bool) (*Node, error) {
	node, err := e.materialize(ctx, unitID, filter, reduced, make(map[int64]bool))
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, Errorf(CodeNotFound, "unit %d not found", unitID)
	}
	return node, nil
}

// materialize is the recursive worker. It returns (nil, nil) for
// absent or inactive units so reference resolution can distinguish
// "omit" from a hard failure. visited tracks the current recursion
// path, not all units ever seen: the same unit may legitimately appear
// in separate branches (two morphemes referencing one lexeme), but a
// unit on its own ancestor path is a cycle.
func (e *Engine) materialize(ctx context.Context, unitID int64, filter []feature.Key, reduced bool, visited map[int64]bool) (*Node, error) {
	if visited[unitID] {
		return nil, Errorf(CodeCycleDetected, "unit %d is reachable from itself", unitID)
	}

	unitType, modified, ok, err := e.store.ActiveUnit(ctx, unitID)
	if err != nil {
		return nil, storageErr(err)
	}
	if !ok {
		return nil, nil
	}

	visited[unitID] = true
	defer delete(visited, unitID)

	rows, err := e.store.ScanActive(ctx, unitID, filter)
	if err != nil {
		return nil, storageErr(err)
	}

	layers, err := buildLayers(rows, reduced, func(ref int64) (any, error) {
		child, err := e.materialize(ctx, ref, filter, reduced, visited)
		if err != nil {
			return nil, err
		}
		if child == nil {
			return nil, nil
		}
		return child, nil
	})
	if err != nil {
		return nil, err
	}

	edges, err := e.store.ChildrenOf(ctx, unitID)
	if err != nil {
		return nil, storageErr(err)
	}

	children := make(map[string][]any)
	for _, edge := range edges {
		if !edge.Primary {
			children[edge.ChildType] = append(children[edge.ChildType], edge.ChildID)
			continue
		}

		sub, err := e.materialize(ctx, edge.ChildID, filter, reduced, visited)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			// ChildrenOf restricts to active units; a vanished child
			// between queries is simply skipped.
			continue
		}
		children[edge.ChildType] = append(children[edge.ChildType], sub)
	}

	return &Node{
		Type:     unitType,
		ID:       unitID,
		Modified: modified,
		Layers:   layers,
		Children: children,
	}, nil
}
