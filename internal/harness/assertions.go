package harness

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/roach88/stratum/internal/engine"
	"github.com/roach88/stratum/internal/feature"
)

// evaluate checks one assertion, recording mismatches on the result.
// Only malformed assertions and storage failures return an error.
func (h *Harness) evaluate(ctx context.Context, a Assertion, result *Result) error {
	switch a.Type {
	case AssertConfirmedValue:
		return h.assertConfirmedValue(ctx, a, result)
	case AssertNoEntry:
		return h.assertNoEntry(ctx, a, result)
	case AssertSuggestionValues:
		return h.assertSuggestionValues(ctx, a, result)
	case AssertChildren:
		return h.assertChildren(ctx, a, result)
	case AssertMaterializeError:
		return h.assertMaterializeError(ctx, a, result)
	case AssertHistoryRows:
		return h.assertHistoryRows(ctx, a, result)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func (h *Harness) materialize(ctx context.Context, label string) (*engine.Node, error) {
	unit, err := h.resolve(label)
	if err != nil {
		return nil, err
	}
	return h.engine.Materialize(ctx, unit, nil, false)
}

func (h *Harness) assertConfirmedValue(ctx context.Context, a Assertion, result *Result) error {
	node, err := h.materialize(ctx, a.Unit)
	if err != nil {
		return err
	}

	entry, ok := node.Layers[a.Tier][a.Feature].(engine.Confirmed)
	if !ok {
		result.failf("%s: %s:%s has no confirmed value", a.Unit, a.Tier, a.Feature)
		return nil
	}
	if !jsonEqual(entry.Value, a.Value) {
		result.failf("%s: %s:%s = %v, want %v", a.Unit, a.Tier, a.Feature, entry.Value, a.Value)
	}
	if a.User != "" && entry.User != a.User {
		result.failf("%s: %s:%s attributed to %s, want %s", a.Unit, a.Tier, a.Feature, entry.User, a.User)
	}
	return nil
}

func (h *Harness) assertNoEntry(ctx context.Context, a Assertion, result *Result) error {
	node, err := h.materialize(ctx, a.Unit)
	if err != nil {
		return err
	}
	if _, ok := node.Layers[a.Tier][a.Feature]; ok {
		result.failf("%s: %s:%s unexpectedly present", a.Unit, a.Tier, a.Feature)
	}
	return nil
}

func (h *Harness) assertSuggestionValues(ctx context.Context, a Assertion, result *Result) error {
	node, err := h.materialize(ctx, a.Unit)
	if err != nil {
		return err
	}

	set, ok := node.Layers[a.Tier][a.Feature].(engine.SuggestionSet)
	if !ok {
		result.failf("%s: %s:%s has no suggestion set", a.Unit, a.Tier, a.Feature)
		return nil
	}
	if len(set.Choices) != len(a.Values) {
		result.failf("%s: %s:%s has %d choices, want %d", a.Unit, a.Tier, a.Feature, len(set.Choices), len(a.Values))
		return nil
	}
	for i, choice := range set.Choices {
		if !jsonEqual(choice.Value, a.Values[i]) {
			result.failf("%s: %s:%s choice %d = %v, want %v", a.Unit, a.Tier, a.Feature, i, choice.Value, a.Values[i])
		}
	}
	return nil
}

func (h *Harness) assertChildren(ctx context.Context, a Assertion, result *Result) error {
	node, err := h.materialize(ctx, a.Unit)
	if err != nil {
		return err
	}

	nested, referred := 0, 0
	for _, children := range node.Children {
		for _, child := range children {
			if _, ok := child.(*engine.Node); ok {
				nested++
			} else {
				referred++
			}
		}
	}
	if nested != a.Nested {
		result.failf("%s: %d nested children, want %d", a.Unit, nested, a.Nested)
	}
	if referred != a.Referred {
		result.failf("%s: %d referred children, want %d", a.Unit, referred, a.Referred)
	}
	return nil
}

func (h *Harness) assertMaterializeError(ctx context.Context, a Assertion, result *Result) error {
	_, err := h.materialize(ctx, a.Unit)
	var opErr *engine.OpError
	if !errors.As(err, &opErr) {
		result.failf("%s: materialize succeeded, want error %s", a.Unit, a.Code)
		return nil
	}
	if string(opErr.Code) != a.Code {
		result.failf("%s: materialize failed with %s, want %s", a.Unit, opErr.Code, a.Code)
	}
	return nil
}

func (h *Harness) assertHistoryRows(ctx context.Context, a Assertion, result *Result) error {
	unit, err := h.resolve(a.Unit)
	if err != nil {
		return err
	}
	kind, err := feature.ParseKind(a.Kind)
	if err != nil {
		return err
	}
	key := feature.Key{Tier: a.Tier, Feature: a.Feature}

	var total, inactive int
	err = h.engine.Store().DB().QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(active = 0), 0) FROM "+kind.Table()+" WHERE id = ? AND feature = ?",
		unit, key.String()).Scan(&total, &inactive)
	if err != nil {
		return errors.Wrap(err, "count ledger rows")
	}

	if total != a.Total {
		result.failf("%s: %s has %d rows, want %d", a.Unit, key, total, a.Total)
	}
	if inactive != a.Inactive {
		result.failf("%s: %s has %d inactive rows, want %d", a.Unit, key, inactive, a.Inactive)
	}
	return nil
}

// jsonEqual compares values through their JSON encoding so YAML
// scalars and engine-rendered values compare cleanly across numeric
// types.
func jsonEqual(got, want any) bool {
	g, err := json.Marshal(got)
	if err != nil {
		return false
	}
	w, err := json.Marshal(want)
	if err != nil {
		return false
	}
	return string(g) == string(w)
}
