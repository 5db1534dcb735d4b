// Package store provides SQLite-backed durable storage for one
// annotation project.
//
// Each project is a fully isolated database file holding:
//   - units:      the unit directory (id, type, created, modified, active)
//   - tiers:      the schema registry ((tier, feature, unittype) -> kind)
//   - *_features: four typed value ledgers (int, bool, str, ref)
//   - relations:  the parent/child relation ledger
//
// The ledgers are append-only with soft deletion: superseding a value or
// an edge flips active to 0 on the old rows and inserts new active rows.
// Nothing is ever physically deleted, so the full assertion history of a
// project stays queryable.
//
// All mutating operations run inside a single transaction (WithTx): a
// set-feature batch either deactivates and reinserts every row or none.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
//   - single-writer connection pool (SQLite allows one writer)
package store
