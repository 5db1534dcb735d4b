// Package harness runs YAML conformance scenarios against a real
// engine over a fresh in-memory store. Scenarios exercise the public
// operations end to end; assertions inspect materialized trees and
// raw ledgers.
package harness

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/roach88/stratum/internal/compiler"
	"github.com/roach88/stratum/internal/engine"
	"github.com/roach88/stratum/internal/feature"
	"github.com/roach88/stratum/internal/store"
	"github.com/roach88/stratum/internal/testutil"
)

// Harness executes one scenario. Each scenario gets a fresh store and
// a deterministic clock, so repeated runs produce identical state.
type Harness struct {
	engine *engine.Engine
	clock  *testutil.DeterministicClock
	ids    map[string]int64
}

// Result is the outcome of a scenario run. Failures are assertion
// mismatches; hard errors (malformed scenarios, unexpected operation
// failures) surface as errors from Run instead.
type Result struct {
	Name     string
	Failures []string
}

// Passed reports whether every assertion held.
func (r *Result) Passed() bool {
	return len(r.Failures) == 0
}

func (r *Result) failf(format string, args ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}

// Run executes a scenario against a fresh in-memory project.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:", nil)
	if err != nil {
		return nil, errors.Wrap(err, "open in-memory store")
	}
	defer func() { _ = st.Close() }()

	clock := testutil.NewDeterministicClock()
	h := &Harness{
		engine: engine.New(st, clock, nil),
		clock:  clock,
		ids:    make(map[string]int64),
	}

	ctx := context.Background()

	if scenario.Template != "" {
		tmpl, err := compiler.LoadTemplate(scenario.Template)
		if err != nil {
			return nil, errors.Wrapf(err, "scenario %s: template", scenario.Name)
		}
		if err := compiler.Apply(ctx, h.engine, tmpl); err != nil {
			return nil, errors.Wrapf(err, "scenario %s: apply template", scenario.Name)
		}
	}

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, step); err != nil {
			return nil, errors.Wrapf(err, "scenario %s: step %d (%s)", scenario.Name, i+1, step.Op)
		}
	}

	result := &Result{Name: scenario.Name}
	for i, assertion := range scenario.Assertions {
		if err := h.evaluate(ctx, assertion, result); err != nil {
			return nil, errors.Wrapf(err, "scenario %s: assertion %d (%s)", scenario.Name, i+1, assertion.Type)
		}
	}
	return result, nil
}

func (h *Harness) executeStep(ctx context.Context, step Step) error {
	err := h.applyOp(ctx, step)
	if step.ExpectError == "" {
		return err
	}

	var opErr *engine.OpError
	if !errors.As(err, &opErr) {
		return fmt.Errorf("expected error %s, got %v", step.ExpectError, err)
	}
	if string(opErr.Code) != step.ExpectError {
		return fmt.Errorf("expected error %s, got %s", step.ExpectError, opErr.Code)
	}
	return nil
}

func (h *Harness) applyOp(ctx context.Context, step Step) error {
	switch step.Op {
	case "create_type":
		return h.engine.DefineType(ctx, step.Type)

	case "create_feature":
		return h.engine.DefineFeature(ctx, step.Type, step.Tier, step.Feature, step.Kind)

	case "create_unit":
		id, err := h.engine.CreateUnit(ctx, step.Type, step.User)
		if err != nil {
			return err
		}
		if step.As != "" {
			h.ids[step.As] = id
		}
		return nil

	case "set_features":
		unit, err := h.resolve(step.Unit)
		if err != nil {
			return err
		}
		triples := make([]engine.FeatureTriple, len(step.Features))
		for i, f := range step.Features {
			raw, err := json.Marshal(f.Value)
			if err != nil {
				return errors.Wrap(err, "encode feature value")
			}
			triples[i] = engine.FeatureTriple{Tier: f.Tier, Feature: f.Feature, Value: raw}
		}
		_, _, err = h.engine.SetFeatures(ctx, unit, triples, step.User, step.Confidence)
		return err

	case "suggest":
		return h.suggest(ctx, step)

	case "set_parent":
		return h.relate(ctx, step, h.engine.SetPrimaryRelation)

	case "add_parent":
		return h.relate(ctx, step, h.engine.AddSecondaryRelation)

	case "remove_parent":
		return h.relate(ctx, step, h.engine.RemoveRelation)
	}
	return fmt.Errorf("unknown op %q", step.Op)
}

// suggest writes an unattributed row straight into the ledger, the
// way an import or analysis pipeline feeds candidates in.
func (h *Harness) suggest(ctx context.Context, step Step) error {
	unit, err := h.resolve(step.Unit)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(step.Value)
	if err != nil {
		return errors.Wrap(err, "encode suggestion value")
	}

	key := feature.Key{Tier: step.Tier, Feature: step.Feature}
	unitType, ok, err := h.engine.Store().UnitType(ctx, unit)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("unit %q does not exist", step.Unit)
	}
	kind, declared, err := h.engine.Store().LookupKind(ctx, unitType, key)
	if err != nil {
		return err
	}
	if !declared {
		return fmt.Errorf("%s is not declared for type %s", key, unitType)
	}
	value, err := feature.Decode(raw, kind)
	if err != nil {
		return err
	}

	return h.engine.Store().WithTx(ctx, func(tx *sql.Tx) error {
		return h.engine.Store().AppendFeature(ctx, tx, store.FeatureRow{
			UnitID:      unit,
			Key:         key,
			Value:       value,
			Probability: step.Probability,
			Date:        h.clock.Now().Format(store.TimeFormat),
		})
	})
}

func (h *Harness) relate(ctx context.Context, step Step, op func(ctx context.Context, parent, child int64) (string, error)) error {
	parent, err := h.resolve(step.Parent)
	if err != nil {
		return err
	}
	child, err := h.resolve(step.Child)
	if err != nil {
		return err
	}
	_, err = op(ctx, parent, child)
	return err
}

func (h *Harness) resolve(label string) (int64, error) {
	id, ok := h.ids[label]
	if !ok {
		return 0, fmt.Errorf("unbound unit label %q", label)
	}
	return id, nil
}
