package mesa

import (
	"context"

	"github.com/mesa-orm/mesa/model"
	"github.com/mesa-orm/mesa/queryast"
)

// TableStats is the row/size summary for one table, per spec §4.4's stats
// contract.
type TableStats struct {
	Count int64
	Size  int64
}

// Stats is the result of Driver.Stats: overall database size plus a
// per-table breakdown.
type Stats struct {
	Size   int64
	Tables map[string]TableStats
}

// Update is a constant-or-expression field update, as passed to Driver.Set:
// each value is either a plain Go value (a constant overwrite) or a
// queryast.Eval (a row-relative expression, e.g. incrementing a counter).
// Dotted keys address a JSON sub-path on the root field, per spec §4.3's
// "set algorithm" (compiled to chained json_set on SQL-native backends).
type Update map[string]any

// RowUpdater is an additional capability a Driver MAY implement for the
// SQLite-style row-function update form: the update value is computed from
// the full current row rather than expressed as a queryast.Eval. Per the
// open question resolved in DESIGN.md, this is SQLite-only; MySQL's Set
// only accepts constant/expression Update values.
type RowUpdater interface {
	SetFunc(ctx context.Context, sel model.Selection, fn func(row map[string]any) map[string]any) (int64, error)
}

// Driver is the per-backend contract of spec §4.4. Every method that
// reaches the database may suspend (§5); query compilation itself never
// does. A Driver owns its own connection/pool and Caster; Database
// coordinates across Drivers but never touches a connection directly.
type Driver interface {
	// Start acquires the connection/pool and registers any embedded-engine
	// UDFs (spec §6's regexp/json_array_contains for SQLite).
	Start(ctx context.Context) error
	// Stop closes the connection/pool. Idempotent.
	Stop(ctx context.Context) error

	// Prepare synchronizes the live table for m against its declaration
	// (spec §4.5), invoking m's migration hooks once the schema is in
	// shape and re-running the diff with any hook-reported drop keys.
	Prepare(ctx context.Context, m *model.Model) error
	// Drop removes one table, or every registered table when table == "".
	Drop(ctx context.Context, table string) error
	// Stats reports size and per-table counts.
	Stats(ctx context.Context) (Stats, error)

	// Get returns rows matching sel, already passed through Caster.Load.
	Get(ctx context.Context, sel model.Selection) ([]map[string]any, error)
	// Eval wraps sel as a subquery and returns the scalar result of expr as
	// the database driver scanned it; the value is not passed through
	// Caster.Load.
	Eval(ctx context.Context, sel model.Selection, expr queryast.Eval) (any, error)
	// Set updates rows matching sel.Query per update, returning the number
	// of rows affected. A sel.Query that compiles to the constant "0"
	// short-circuits to (0, nil) without issuing any statement.
	Set(ctx context.Context, sel model.Selection, update Update) (int64, error)
	// Remove deletes rows matching sel.Query, returning rows affected. Same
	// "0"-filter short-circuit as Set.
	Remove(ctx context.Context, sel model.Selection) (int64, error)
	// Create inserts one row and returns it as stored, including any
	// engine-assigned auto-increment id.
	Create(ctx context.Context, table string, data map[string]any) (map[string]any, error)
	// Upsert applies the algorithm of spec §4.3's "Upsert algorithm": for
	// each item in data, update the row matching keys if one exists, else
	// insert it with model-declared defaults applied. Returns every item's
	// resulting stored row, in input order.
	Upsert(ctx context.Context, table string, data []map[string]any, keys []string) ([]map[string]any, error)
}
