// Package mesa is the root package: the Database façade of spec §6, wiring
// together the Model Registry, a per-backend Driver, the Query/Eval algebra
// (package queryast), and an optional read-through Cache.
package mesa

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mesa-orm/mesa/field"
	"github.com/mesa-orm/mesa/model"
	"github.com/mesa-orm/mesa/queryast"
)

// Database coordinates one Driver against the Model Registry. It owns
// neither a connection nor a Caster — those belong to the Driver (spec
// §3's ownership rule) — only the table catalog, query parsing, and the
// optional cache.
type Database struct {
	registry *model.Registry
	driver   Driver
	cache    Cache
}

// New returns a Database backed by driver, with no cache.
func New(driver Driver) *Database {
	return &Database{registry: model.NewRegistry(), driver: driver}
}

// NewWithCache returns a Database backed by driver with cache wired into Get.
func NewWithCache(driver Driver, cache Cache) *Database {
	return &Database{registry: model.NewRegistry(), driver: driver, cache: cache}
}

// Extend declares (or replaces) a table and synchronizes its live schema via
// the Driver's Prepare, per spec §4.5.
func (db *Database) Extend(ctx context.Context, name string, fields []field.Descriptor, opts model.Options) (*model.Model, error) {
	m, err := db.registry.Extend(name, fields, opts)
	if err != nil {
		return nil, err
	}
	if err := db.driver.Prepare(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// modelFor resolves table against the registry or returns ErrTableNotRegistered.
func (db *Database) modelFor(table string) (*model.Model, error) {
	m, ok := db.registry.Get(table)
	if !ok {
		return nil, fmt.Errorf("%w: %q (%s not extended)", ErrTableNotRegistered, table, model.Humanize(table))
	}
	return m, nil
}

// parseQuery parses raw into queryast.Query, wrapping a malformed shape as
// the root QueryMalformedError (queryast stays import-cycle-free of this
// package; this is the one place that conversion happens).
func parseQuery(raw map[string]any) (queryast.Query, error) {
	q, err := queryast.ParseQuery(raw)
	if err != nil {
		return nil, asQueryMalformed(err)
	}
	return q, nil
}

func asQueryMalformed(err error) error {
	if me, ok := err.(*queryast.MalformedError); ok {
		return NewQueryMalformedError(me.Path, me.Op, me.Msg)
	}
	return err
}

func (db *Database) selectionFor(table string, rawQuery map[string]any, mod *model.Modifier) (model.Selection, error) {
	m, err := db.modelFor(table)
	if err != nil {
		return model.Selection{}, err
	}
	q, err := parseQuery(rawQuery)
	if err != nil {
		return model.Selection{}, err
	}
	return model.NewSelection(table, m, q, mod), nil
}

// Get returns rows matching query (nil or {} matches every row), optionally
// sorted/paged via mod.
func (db *Database) Get(ctx context.Context, table string, query map[string]any, mod *model.Modifier) ([]map[string]any, error) {
	sel, err := db.selectionFor(table, query, mod)
	if err != nil {
		return nil, err
	}
	if db.cache == nil {
		return db.driver.Get(ctx, sel)
	}
	key := cacheKeyFor(table, sel).String()
	if cached, ok := db.readCache(ctx, key); ok {
		return cached, nil
	}
	rows, err := db.driver.Get(ctx, sel)
	if err != nil {
		return nil, err
	}
	db.writeCache(ctx, key, rows)
	return rows, nil
}

func cacheKeyFor(table string, sel model.Selection) CacheKey {
	return CacheKey{
		Table:      table,
		Operation:  "get",
		Predicates: fmt.Sprintf("%#v|fields=%#v", sel.Query, sel.Fields),
		OrderBy:    fmt.Sprintf("%#v|limit=%d|offset=%d", sel.Sort, sel.Limit, sel.Offset),
		Limit:      sel.Limit,
		Offset:     sel.Offset,
	}
}

func (db *Database) readCache(ctx context.Context, key string) ([]map[string]any, bool) {
	b, err := db.cache.Get(ctx, key)
	if err != nil || b == nil {
		return nil, false
	}
	var rows []map[string]any
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, false
	}
	return rows, true
}

func (db *Database) writeCache(ctx context.Context, key string, rows []map[string]any) {
	b, err := json.Marshal(rows)
	if err != nil {
		return
	}
	_ = db.cache.Set(ctx, key, b, 0)
}

// Create inserts one row and returns it as stored.
func (db *Database) Create(ctx context.Context, table string, data map[string]any) (map[string]any, error) {
	if _, err := db.modelFor(table); err != nil {
		return nil, err
	}
	row, err := db.driver.Create(ctx, table, data)
	if err != nil {
		return nil, err
	}
	db.invalidate(ctx, table)
	return row, nil
}

// Set updates rows matching query per update, returning rows affected.
func (db *Database) Set(ctx context.Context, table string, query map[string]any, update Update) (int64, error) {
	sel, err := db.selectionFor(table, query, nil)
	if err != nil {
		return 0, err
	}
	n, err := db.driver.Set(ctx, sel, update)
	if err != nil {
		return 0, err
	}
	db.invalidate(ctx, table)
	return n, nil
}

// Upsert applies spec §4.3's upsert algorithm for each row in data.
func (db *Database) Upsert(ctx context.Context, table string, data []map[string]any, keys []string) ([]map[string]any, error) {
	if _, err := db.modelFor(table); err != nil {
		return nil, err
	}
	rows, err := db.driver.Upsert(ctx, table, data, keys)
	if err != nil {
		return nil, err
	}
	db.invalidate(ctx, table)
	return rows, nil
}

// Remove deletes rows matching query, returning rows affected.
func (db *Database) Remove(ctx context.Context, table string, query map[string]any) (int64, error) {
	sel, err := db.selectionFor(table, query, nil)
	if err != nil {
		return 0, err
	}
	n, err := db.driver.Remove(ctx, sel)
	if err != nil {
		return 0, err
	}
	db.invalidate(ctx, table)
	return n, nil
}

// Eval wraps query as a subquery and returns the scalar result of expr.
func (db *Database) Eval(ctx context.Context, table string, query map[string]any, expr map[string]any) (any, error) {
	sel, err := db.selectionFor(table, query, nil)
	if err != nil {
		return nil, err
	}
	e, err := queryast.ParseEval(expr)
	if err != nil {
		return nil, asQueryMalformed(err)
	}
	return db.driver.Eval(ctx, sel, e)
}

// Drop removes one table, or every registered table when table == "".
func (db *Database) Drop(ctx context.Context, table string) error {
	if table != "" {
		if _, err := db.modelFor(table); err != nil {
			return err
		}
	}
	if err := db.driver.Drop(ctx, table); err != nil {
		return err
	}
	if table == "" {
		for _, name := range db.registry.Names() {
			db.registry.Remove(name)
			db.invalidate(ctx, name)
		}
	} else {
		db.registry.Remove(table)
		db.invalidate(ctx, table)
	}
	return nil
}

// Stats returns overall size and per-table counts.
func (db *Database) Stats(ctx context.Context) (Stats, error) {
	return db.driver.Stats(ctx)
}

// invalidate drops every cached Get result for table. Per-query keys are not
// individually tracked, so a mutation invalidates the table's whole prefix.
func (db *Database) invalidate(ctx context.Context, table string) {
	if db.cache == nil {
		return
	}
	_ = db.cache.DeletePrefix(ctx, table+":get:")
}
