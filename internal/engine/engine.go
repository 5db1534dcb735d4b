package engine

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/roach88/stratum/internal/feature"
	"github.com/roach88/stratum/internal/store"
)

// Engine applies validated operations against one project's store.
// It owns all writes; the store's ledgers are passive.
type Engine struct {
	store *store.Store
	clock Clock
	log   *zap.SugaredLogger
}

// New creates an engine over a project store. A nil clock defaults to
// the wall clock; a nil logger is replaced with a nop.
func New(st *store.Store, clock Clock, logger *zap.SugaredLogger) *Engine {
	if clock == nil {
		clock = WallClock{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{store: st, clock: clock, log: logger}
}

// Store exposes the underlying project store for direct inspection.
func (e *Engine) Store() *store.Store {
	return e.store
}

// DefineType registers a new unit type. Every type implicitly owns the
// meta:active boolean feature recording unit confirmation state.
func (e *Engine) DefineType(ctx context.Context, unitType string) error {
	exists, err := e.store.TypeExists(ctx, unitType)
	if err != nil {
		return storageErr(err)
	}
	if exists {
		return Errorf(CodeAlreadyExists, "unit type %q already exists", unitType)
	}

	err = e.store.WithTx(ctx, func(tx *sql.Tx) error {
		return e.store.InsertTierEntry(ctx, tx, unitType, feature.ActiveKey, feature.KindBool)
	})
	if err != nil {
		return storageErr(err)
	}

	e.log.Infow("unit type defined", "type", unitType)
	return nil
}

// DefineFeature registers a (tier, feature, kind) triple for a unit
// type. The meta tier only admits the reserved parent/index fields.
func (e *Engine) DefineFeature(ctx context.Context, unitType, tier, featureName, kindName string) error {
	kind, err := feature.ParseKind(kindName)
	if err != nil {
		return Errorf(CodeInvalidKind, "invalid value kind %q", kindName)
	}

	if tier == feature.MetaTier && !feature.CheckMetaField(featureName, kind) {
		return Errorf(CodeInvalidMetaField,
			"meta:%s (%s) is not a permitted meta field", featureName, kind)
	}

	exists, err := e.store.TypeExists(ctx, unitType)
	if err != nil {
		return storageErr(err)
	}
	if !exists {
		return Errorf(CodeUnknownType, "unit type %q does not exist", unitType)
	}

	key := feature.Key{Tier: tier, Feature: featureName}
	err = e.store.WithTx(ctx, func(tx *sql.Tx) error {
		return e.store.InsertTierEntry(ctx, tx, unitType, key, kind)
	})
	if err != nil {
		return storageErr(err)
	}

	e.log.Infow("feature defined", "type", unitType, "key", key.String(), "kind", kind)
	return nil
}
