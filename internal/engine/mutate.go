package engine

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/roach88/stratum/internal/feature"
	"github.com/roach88/stratum/internal/store"
)

// FeatureTriple is one (tier, feature, value) assignment in a
// set-features batch. The value arrives as raw JSON and is checked
// against the declared kind before anything is written.
type FeatureTriple struct {
	Tier    string          `json:"tier"`
	Feature string          `json:"feature"`
	Value   json.RawMessage `json:"value"`
}

// UnitValue pairs a unit id with the confirmed value of one feature.
// Value is nil when the unit has no confirmed value for the key.
type UnitValue struct {
	ID    int64
	Value feature.Value
}

// CreateUnit creates a unit of a registered type and records its
// provisional/confirmed creation state as the initial meta:active row:
// confirmed true when an acting user is named, otherwise an
// unattributed false suggestion awaiting confirmation.
func (e *Engine) CreateUnit(ctx context.Context, unitType, actingUser string) (int64, error) {
	exists, err := e.store.TypeExists(ctx, unitType)
	if err != nil {
		return 0, storageErr(err)
	}
	if !exists {
		return 0, Errorf(CodeUnknownType, "unknown unit type %q", unitType)
	}

	now := stamp(e.clock)
	var id int64
	err = e.store.WithTx(ctx, func(tx *sql.Tx) error {
		id, err = e.store.InsertUnit(ctx, tx, unitType, now)
		if err != nil {
			return err
		}

		row := store.FeatureRow{
			UnitID: id,
			Key:    feature.ActiveKey,
			Value:  feature.Bool(actingUser != ""),
			Date:   now,
		}
		if actingUser != "" {
			row.User = &actingUser
		}
		return e.store.AppendFeature(ctx, tx, row)
	})
	if err != nil {
		return 0, storageErr(err)
	}

	e.log.Infow("unit created", "type", unitType, "id", id, "confirmed", actingUser != "")
	return id, nil
}

// SetFeatures validates and applies a batch of feature assignments for
// one unit. The whole batch is validated against the schema registry
// before any row is written: an undeclared key or a kind mismatch
// aborts with nothing applied. On success the previously active rows
// for the touched keys are deactivated (suggestions included), the new
// attributed rows are inserted, and the unit's modified stamp is
// touched - all in one transaction.
func (e *Engine) SetFeatures(ctx context.Context, unitID int64, triples []FeatureTriple, user string, confidence int64) (updates int, when string, err error) {
	if user == "" {
		return 0, "", Errorf(CodeValidation, "acting user is required")
	}

	unitType, ok, err := e.store.UnitType(ctx, unitID)
	if err != nil {
		return 0, "", storageErr(err)
	}
	if !ok {
		return 0, "", Errorf(CodeUnknownUnit, "unit %d does not exist", unitID)
	}

	// Validate everything first; group accepted values by kind so each
	// ledger sees one deactivate pass.
	type accepted struct {
		key   feature.Key
		value feature.Value
	}
	byKind := make(map[feature.Kind][]accepted)
	for _, t := range triples {
		key := feature.Key{Tier: t.Tier, Feature: t.Feature}
		kind, declared, err := e.store.LookupKind(ctx, unitType, key)
		if err != nil {
			return 0, "", storageErr(err)
		}
		if !declared {
			return 0, "", Errorf(CodeUnknownFeature,
				"%s does not exist for type %s", key, unitType)
		}

		value, err := feature.Decode(t.Value, kind)
		if err != nil {
			return 0, "", &OpError{Code: CodeTypeMismatch,
				Message: "invalid value for " + key.String(), Err: err}
		}
		byKind[kind] = append(byKind[kind], accepted{key: key, value: value})
	}

	now := stamp(e.clock)
	err = e.store.WithTx(ctx, func(tx *sql.Tx) error {
		// Fixed kind order keeps ledger writes deterministic.
		for _, kind := range feature.Kinds {
			group := byKind[kind]
			if len(group) == 0 {
				continue
			}
			keys := make([]feature.Key, len(group))
			for i, a := range group {
				keys[i] = a.key
			}
			if err := e.store.DeactivateFeatures(ctx, tx, kind, unitID, keys); err != nil {
				return err
			}
			for _, a := range group {
				c := confidence
				if err := e.store.AppendFeature(ctx, tx, store.FeatureRow{
					UnitID:     unitID,
					Key:        a.key,
					Value:      a.value,
					User:       &user,
					Confidence: &c,
					Date:       now,
				}); err != nil {
					return err
				}
				updates++
			}
		}
		return e.store.Touch(ctx, tx, unitID, now)
	})
	if err != nil {
		return 0, "", storageErr(err)
	}

	e.log.Infow("features set", "unit", unitID, "updates", updates, "user", user)
	return updates, now, nil
}

// SetPrimaryRelation makes parent the primary parent of child,
// superseding any active primary edge for this exact pair.
func (e *Engine) SetPrimaryRelation(ctx context.Context, parent, child int64) (string, error) {
	return e.relate(ctx, parent, child, func(tx *sql.Tx, edge store.Edge) error {
		return e.store.SetPrimary(ctx, tx, edge)
	})
}

// AddSecondaryRelation adds a non-exclusive secondary edge between the
// pair. Duplicates are permitted.
func (e *Engine) AddSecondaryRelation(ctx context.Context, parent, child int64) (string, error) {
	return e.relate(ctx, parent, child, func(tx *sql.Tx, edge store.Edge) error {
		return e.store.AddSecondary(ctx, tx, edge)
	})
}

// RemoveRelation deactivates all active edges between the pair.
// Silently a no-op when none are active; both units are still touched.
func (e *Engine) RemoveRelation(ctx context.Context, parent, child int64) (string, error) {
	return e.relate(ctx, parent, child, func(tx *sql.Tx, edge store.Edge) error {
		return e.store.RemoveRelations(ctx, tx, parent, child)
	})
}

// relate resolves both endpoints, applies the edge operation, and
// touches both units' modified stamps in one transaction.
func (e *Engine) relate(ctx context.Context, parent, child int64, op func(tx *sql.Tx, edge store.Edge) error) (string, error) {
	parentType, ok, err := e.store.UnitType(ctx, parent)
	if err != nil {
		return "", storageErr(err)
	}
	if !ok {
		return "", Errorf(CodeUnknownUnit, "parent %d does not exist", parent)
	}

	childType, ok, err := e.store.UnitType(ctx, child)
	if err != nil {
		return "", storageErr(err)
	}
	if !ok {
		return "", Errorf(CodeUnknownUnit, "child %d does not exist", child)
	}

	now := stamp(e.clock)
	edge := store.Edge{
		Parent: parent, ParentType: parentType,
		Child: child, ChildType: childType,
		Date: now,
	}
	err = e.store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := op(tx, edge); err != nil {
			return err
		}
		if err := e.store.Touch(ctx, tx, parent, now); err != nil {
			return err
		}
		return e.store.Touch(ctx, tx, child, now)
	})
	if err != nil {
		return "", storageErr(err)
	}

	return now, nil
}

// ListByFeature returns every active unit of a type paired with the
// confirmed active value of one feature, ordered by unit id ascending.
// Units without a confirmed value appear with a nil Value.
func (e *Engine) ListByFeature(ctx context.Context, unitType, tier, featureName string) ([]UnitValue, error) {
	key := feature.Key{Tier: tier, Feature: featureName}
	kind, declared, err := e.store.LookupKind(ctx, unitType, key)
	if err != nil {
		return nil, storageErr(err)
	}
	if !declared {
		return nil, Errorf(CodeUnknownFeature,
			"unit type %q or feature %s does not exist", unitType, key)
	}

	ids, err := e.store.ActiveUnitIDs(ctx, unitType)
	if err != nil {
		return nil, storageErr(err)
	}

	values, err := e.store.ConfirmedValues(ctx, kind, key, ids)
	if err != nil {
		return nil, storageErr(err)
	}

	units := make([]UnitValue, len(ids))
	for i, id := range ids {
		units[i] = UnitValue{ID: id, Value: values[id]}
	}
	return units, nil
}

// ModificationTimes returns id -> modified stamp for the requested
// units; unknown ids are absent from the result.
func (e *Engine) ModificationTimes(ctx context.Context, ids []int64) (map[int64]string, error) {
	times, err := e.store.ModificationTimes(ctx, ids)
	if err != nil {
		return nil, storageErr(err)
	}
	return times, nil
}
