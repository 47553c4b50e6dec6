// Package sqlite implements the Driver protocol (spec §4.4) over an
// embedded modernc.org/sqlite connection: a single-writer, debounced-
// snapshot engine, per spec §5/§9.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	mesa "github.com/mesa-orm/mesa"
	"github.com/mesa-orm/mesa/cast"
	"github.com/mesa-orm/mesa/dialect"
	dialectsql "github.com/mesa-orm/mesa/dialect/sql"
	"github.com/mesa-orm/mesa/dialect/sql/dberrors"
	"github.com/mesa-orm/mesa/dialect/sql/schema"
	"github.com/mesa-orm/mesa/model"
	"github.com/mesa-orm/mesa/queryast"
)

// maxBoundVars approximates modernc.org/sqlite's bound-parameter ceiling
// closely enough to stay well clear of it; Upsert chunks multi-row
// statements against it per spec §9's expression-tree/statement size notes.
const maxBoundVars = 960

// Config configures a sqlite Driver. An empty or ":memory:" Path runs
// entirely in memory with no debounced snapshot; any other path opens the
// file directly. Debug and SlowQueryThreshold wrap the connection in
// dialect/sql's logging decorators (dialect/sql/stats.go); Debug takes
// priority when both are set.
type Config struct {
	Path string

	// Debug logs every statement this driver runs via log/slog.
	Debug bool
	// SlowQueryThreshold, if non-zero, logs statements that run longer
	// than it and accumulates query-timing stats reachable via QueryStats.
	SlowQueryThreshold time.Duration
}

// Driver is the sqlite implementation of mesa.Driver and mesa.RowUpdater.
type Driver struct {
	cfg    Config
	caster *cast.Caster
	sync   *schema.Synchronizer

	db    *sql.DB
	conn  dialect.Driver
	stats *dialectsql.QueryStats
	snap  *snapshotter

	mu     sync.RWMutex
	tables map[string]*model.Model
}

// New returns a Driver for cfg. Call Start before using it.
func New(cfg Config) *Driver {
	return &Driver{
		cfg:    cfg,
		caster: cast.New(dialect.SQLite),
		sync:   schema.NewSynchronizer(dialect.SQLite),
		tables: make(map[string]*model.Model),
	}
}

// Start opens the connection, registers the embedded-engine UDFs
// (regexp, json_array_contains), and arms the debounced snapshot if Path
// names a real file.
func (d *Driver) Start(ctx context.Context) error {
	if err := registerUDFs(); err != nil {
		return fmt.Errorf("sqlite: register udfs: %w", err)
	}
	path := d.cfg.Path
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	// A single pooled connection matches spec §5's single-writer model and
	// avoids SQLITE_BUSY contention between goroutines sharing this Driver.
	db.SetMaxOpenConns(1)
	d.db = db
	base := dialectsql.OpenDB(dialect.SQLite, db)
	switch {
	case d.cfg.Debug:
		d.conn = dialectsql.NewDebugDriver(base)
	case d.cfg.SlowQueryThreshold > 0:
		statsDrv := dialectsql.NewStatsDriver(base,
			dialectsql.WithSlowThreshold(d.cfg.SlowQueryThreshold),
			dialectsql.WithSlowQueryLog())
		d.stats = statsDrv.QueryStats()
		d.conn = statsDrv
	default:
		d.conn = base
	}
	if path != ":memory:" {
		d.snap = newSnapshotter(db, 200*time.Millisecond)
	}
	return nil
}

// QueryStats returns the query-timing stats accumulated when Config's
// SlowQueryThreshold is set, or nil otherwise.
func (d *Driver) QueryStats() *dialectsql.QueryStats {
	return d.stats
}

// Stop flushes any pending snapshot and closes the connection. Idempotent.
func (d *Driver) Stop(context.Context) error {
	if d.snap != nil {
		d.snap.flushNow()
	}
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Prepare synchronizes m's live table against its declaration, running
// migration hooks and re-diffing with their accumulated drop keys until
// none report further columns to drop, per spec §4.5 step 7.
func (d *Driver) Prepare(ctx context.Context, m *model.Model) error {
	d.mu.Lock()
	d.tables[m.Name] = m
	d.mu.Unlock()
	return d.prepareTable(ctx, m, nil)
}

func (d *Driver) prepareTable(ctx context.Context, m *model.Model, dropKeys []string) error {
	insp, err := schema.NewAtlasInspector(dialect.SQLite, d.db)
	if err != nil {
		return err
	}
	live, err := insp.InspectTable(ctx, m.Name)
	if err != nil {
		return err
	}
	declared := schema.Declare(dialect.SQLite, m)
	schema.LogDiagnostics(slog.Default(), live, declared)
	plan := schema.Diff(live, declared, dropKeys)
	if _, err := d.sync.Apply(ctx, d.conn, plan); err != nil {
		return err
	}
	d.afterWrite()

	for _, h := range m.Hooks {
		if h.Before == nil {
			continue
		}
		if err := h.Before(); err != nil {
			if h.Error != nil {
				h.Error(err)
			}
			return err
		}
	}
	var accDrop []string
	for _, h := range m.Hooks {
		if h.After == nil {
			continue
		}
		keys, err := h.After()
		if err != nil {
			if h.Error != nil {
				h.Error(err)
			}
			return err
		}
		accDrop = append(accDrop, keys...)
	}
	for _, h := range m.Hooks {
		if h.Finalize != nil {
			h.Finalize()
		}
	}
	if len(accDrop) > 0 {
		return d.prepareTable(ctx, m, accDrop)
	}
	return nil
}

// Drop removes one table, or every prepared table when table == "".
func (d *Driver) Drop(ctx context.Context, table string) error {
	if table != "" {
		return d.dropOne(ctx, table)
	}
	d.mu.RLock()
	names := make([]string, 0, len(d.tables))
	for n := range d.tables {
		names = append(names, n)
	}
	d.mu.RUnlock()
	for _, n := range names {
		if err := d.dropOne(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) dropOne(ctx context.Context, name string) error {
	ddl := "DROP TABLE IF EXISTS " + dialectsql.EscapeID(name)
	if err := d.conn.Exec(ctx, ddl, []any{}, nil); err != nil {
		return d.wrapStorage("drop", ddl, err)
	}
	d.mu.Lock()
	delete(d.tables, name)
	d.mu.Unlock()
	d.afterWrite()
	return nil
}

// Stats reports the database file size (via PRAGMA page_count/page_size)
// and a row count per prepared table.
func (d *Driver) Stats(ctx context.Context) (mesa.Stats, error) {
	d.mu.RLock()
	names := make([]string, 0, len(d.tables))
	for n := range d.tables {
		names = append(names, n)
	}
	d.mu.RUnlock()
	sort.Strings(names)

	counts := make([]int64, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, n := range names {
		i, n := i, n
		g.Go(func() error {
			q := "SELECT COUNT(*) FROM " + dialectsql.EscapeID(n)
			if err := d.db.QueryRowContext(gctx, q).Scan(&counts[i]); err != nil {
				return d.wrapStorage("stats", q, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return mesa.Stats{}, err
	}
	tables := make(map[string]mesa.TableStats, len(names))
	for i, n := range names {
		tables[n] = mesa.TableStats{Count: counts[i]}
	}
	var pageCount, pageSize int64
	if err := d.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return mesa.Stats{}, d.wrapStorage("stats", "PRAGMA page_count", err)
	}
	if err := d.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return mesa.Stats{}, d.wrapStorage("stats", "PRAGMA page_size", err)
	}
	return mesa.Stats{Size: pageCount * pageSize, Tables: tables}, nil
}

// Get implements mesa.Driver.
func (d *Driver) Get(ctx context.Context, sel model.Selection) ([]map[string]any, error) {
	compiler := dialectsql.NewCompiler(dialect.SQLite, sel.Model, sel.Ref, sel.Tables)
	whereSQL, whereArgs := compiler.CompileQuery(sel.Query)
	if whereSQL == "0" {
		return nil, nil
	}

	projected := sel.Fields != nil
	var columns []string
	if projected {
		aliases := make([]string, 0, len(sel.Fields))
		for a := range sel.Fields {
			aliases = append(aliases, a)
		}
		sort.Strings(aliases)
		for _, a := range aliases {
			exprSQL, exprArgs := compiler.CompileEval(sel.Fields[a])
			columns = append(columns, dialectsql.InlineArgs(dialect.SQLite, exprSQL, exprArgs)+" AS "+dialectsql.EscapeID(a))
		}
	}

	selector := dialectsql.Dialect(dialect.SQLite).Select(columns...).From(sel.Table).As(sel.Ref)
	selector.Where(dialectsql.Raw(whereSQL, whereArgs...))
	for _, s := range sel.Sort {
		exprSQL, exprArgs := compiler.CompileEval(s.Expr)
		selector.OrderBy(dialectsql.InlineArgs(dialect.SQLite, exprSQL, exprArgs), s.Desc)
	}
	if sel.Limit > 0 {
		selector.Limit(sel.Limit)
	}
	if sel.Offset > 0 {
		selector.Offset(sel.Offset)
	}
	q, args := selector.Query()

	var rows dialectsql.Rows
	if err := d.conn.Query(ctx, q, args, &rows); err != nil {
		return nil, d.wrapStorage("get", q, err)
	}
	defer rows.Close()
	raw, err := scanRows(&rows)
	if err != nil {
		return nil, d.wrapStorage("get", q, err)
	}
	if projected {
		return raw, nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		loaded, err := d.caster.Load(sel.Model, r)
		if err != nil {
			return nil, err
		}
		out = append(out, loaded)
	}
	return out, nil
}

// Eval implements mesa.Driver: sel is wrapped as a subquery and expr is
// compiled in aggregate context over its rows.
func (d *Driver) Eval(ctx context.Context, sel model.Selection, expr queryast.Eval) (any, error) {
	compiler := dialectsql.NewCompiler(dialect.SQLite, sel.Model, sel.Ref, sel.Tables)
	whereSQL, whereArgs := compiler.CompileQuery(sel.Query)
	if whereSQL == "0" {
		return nil, nil
	}
	inner := dialectsql.Dialect(dialect.SQLite).Select().From(sel.Table).As(sel.Ref)
	inner.Where(dialectsql.Raw(whereSQL, whereArgs...))
	innerSQL, innerArgs := inner.Query()
	exprSQL, exprArgs := compiler.CompileAggregateEval(expr)
	q := "SELECT " + exprSQL + " AS value FROM (" + innerSQL + ") AS " + dialectsql.EscapeID(sel.Ref)
	args := append(append([]any{}, exprArgs...), innerArgs...)

	var rows dialectsql.Rows
	if err := d.conn.Query(ctx, q, args, &rows); err != nil {
		return nil, d.wrapStorage("eval", q, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, d.wrapStorage("eval", q, err)
		}
		return nil, nil
	}
	var val any
	if err := rows.Scan(&val); err != nil {
		return nil, d.wrapStorage("eval", q, err)
	}
	return val, nil
}

// Set implements mesa.Driver.
func (d *Driver) Set(ctx context.Context, sel model.Selection, update mesa.Update) (int64, error) {
	compiler := dialectsql.NewCompiler(dialect.SQLite, sel.Model, sel.Ref, sel.Tables)
	whereSQL, whereArgs := compiler.CompileQuery(sel.Query)
	if whereSQL == "0" {
		return 0, nil
	}
	upd := dialectsql.Dialect(dialect.SQLite).Update(sel.Table)
	upd.ApplyUpdate(compiler, update)
	upd.Where(dialectsql.Raw(whereSQL, whereArgs...))
	q, args := upd.Query()

	var res dialectsql.Result
	if err := d.conn.Exec(ctx, q, args, &res); err != nil {
		return 0, d.wrapStorage("set", q, err)
	}
	n, _ := res.RowsAffected()
	d.afterWrite()
	return n, nil
}

// Remove implements mesa.Driver.
func (d *Driver) Remove(ctx context.Context, sel model.Selection) (int64, error) {
	compiler := dialectsql.NewCompiler(dialect.SQLite, sel.Model, sel.Ref, sel.Tables)
	whereSQL, whereArgs := compiler.CompileQuery(sel.Query)
	if whereSQL == "0" {
		return 0, nil
	}
	del := dialectsql.Dialect(dialect.SQLite).Delete(sel.Table)
	del.Where(dialectsql.Raw(whereSQL, whereArgs...))
	q, args := del.Query()

	var res dialectsql.Result
	if err := d.conn.Exec(ctx, q, args, &res); err != nil {
		return 0, d.wrapStorage("remove", q, err)
	}
	n, _ := res.RowsAffected()
	d.afterWrite()
	return n, nil
}

// Create implements mesa.Driver.
func (d *Driver) Create(ctx context.Context, table string, data map[string]any) (map[string]any, error) {
	m, ok := d.tableModel(table)
	if !ok {
		return nil, fmt.Errorf("sqlite: table %q is not prepared", table)
	}
	dumped, err := d.caster.Dump(m, data)
	if err != nil {
		return nil, err
	}
	var cols []string
	var vals []any
	for _, name := range m.FieldNames() {
		if v, ok := dumped[name]; ok {
			cols = append(cols, name)
			vals = append(vals, v)
		}
	}
	ins := dialectsql.Dialect(dialect.SQLite).Insert(table).Columns(cols...).Values(vals...)
	q, args := ins.Query()

	var res dialectsql.Result
	if err := d.conn.Exec(ctx, q, args, &res); err != nil {
		if dberrors.IsUniqueConstraintError(err) {
			return nil, mesa.NewDuplicateEntryError(table, conflictKeys(m), err)
		}
		return nil, d.wrapStorage("create", q, err)
	}
	d.afterWrite()

	row := make(map[string]any, len(dumped))
	for k, v := range dumped {
		row[k] = v
	}
	if m.AutoInc && m.IsScalarPrimary() {
		if id, idErr := res.LastInsertId(); idErr == nil {
			row[m.Primary[0]] = id
		}
	}
	return d.caster.Load(m, row)
}

// Upsert implements mesa.Driver via SQLite's native
// INSERT ... ON CONFLICT ... DO UPDATE ... RETURNING, chunked to stay under
// this engine's bound-parameter ceiling (spec §9).
func (d *Driver) Upsert(ctx context.Context, table string, data []map[string]any, keys []string) ([]map[string]any, error) {
	m, ok := d.tableModel(table)
	if !ok {
		return nil, fmt.Errorf("sqlite: table %q is not prepared", table)
	}
	if len(data) == 0 {
		return nil, nil
	}

	provided := make([]map[string]any, len(data))
	insertRows := make([]map[string]any, len(data))
	for i, row := range data {
		dumped, err := d.caster.Dump(m, row)
		if err != nil {
			return nil, err
		}
		provided[i] = dumped
		insertRows[i] = fillDefaults(m, dumped)
	}

	cols := unionColumns(m, insertRows)
	if len(cols) == 0 {
		return nil, fmt.Errorf("sqlite: upsert on %q: no columns to write", table)
	}
	keySet := make(map[string]bool, len(keys))
	for _, k := range keys {
		keySet[k] = true
	}
	var updateCols []string
	for _, c := range cols {
		if !keySet[c] {
			updateCols = append(updateCols, c)
		}
	}

	chunkSize := maxBoundVars / len(cols)
	if chunkSize < 1 {
		chunkSize = 1
	}

	results := make([]map[string]any, 0, len(insertRows))
	for start := 0; start < len(insertRows); start += chunkSize {
		end := start + chunkSize
		if end > len(insertRows) {
			end = len(insertRows)
		}
		chunk, err := d.upsertChunk(ctx, table, m, cols, updateCols, keys, insertRows[start:end], provided[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, chunk...)
	}
	d.afterWrite()
	return results, nil
}

func (d *Driver) upsertChunk(ctx context.Context, table string, m *model.Model, cols, updateCols, keys []string, rows, provided []map[string]any) ([]map[string]any, error) {
	var sb strings.Builder
	var args []any
	sb.WriteString("INSERT INTO ")
	sb.WriteString(dialectsql.EscapeID(table))
	sb.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(dialectsql.EscapeID(c))
	}
	sb.WriteString(") VALUES ")
	for ri, row := range rows {
		if ri > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for i, c := range cols {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("?")
			args = append(args, row[c])
		}
		sb.WriteString(")")
	}
	sb.WriteString(" ON CONFLICT (")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(dialectsql.EscapeID(k))
	}
	sb.WriteString(") DO UPDATE SET ")
	if len(updateCols) == 0 {
		sb.WriteString(dialectsql.EscapeID(keys[0]) + " = " + dialectsql.EscapeID(keys[0]))
	} else {
		for i, c := range updateCols {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(dialectsql.EscapeID(c) + " = " + updateExprForColumn(c, keys, provided))
		}
	}
	sb.WriteString(" RETURNING *")
	stmt := sb.String()

	var rows2 dialectsql.Rows
	if err := d.conn.Query(ctx, stmt, args, &rows2); err != nil {
		if dberrors.IsUniqueConstraintError(err) {
			return nil, mesa.NewDuplicateEntryError(table, keys, err)
		}
		return nil, d.wrapStorage("upsert", stmt, err)
	}
	defer rows2.Close()
	raw, err := scanRows(&rows2)
	if err != nil {
		return nil, d.wrapStorage("upsert", stmt, err)
	}
	out := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		loaded, err := d.caster.Load(m, r)
		if err != nil {
			return nil, err
		}
		out = append(out, loaded)
	}
	return out, nil
}

// SetFunc implements mesa.RowUpdater: fn computes the new row from the
// full current (cast-loaded) row, for update logic that can't be expressed
// as a queryast.Eval.
func (d *Driver) SetFunc(ctx context.Context, sel model.Selection, fn func(row map[string]any) map[string]any) (int64, error) {
	rows, err := d.Get(ctx, sel)
	if err != nil {
		return 0, err
	}
	var affected int64
	for _, row := range rows {
		updated := fn(row)
		dumped, err := d.caster.Dump(sel.Model, updated)
		if err != nil {
			return affected, err
		}
		where, whereArgs := primaryKeyFilter(sel.Model, dumped)
		if where == "" {
			continue
		}
		upd := dialectsql.Dialect(dialect.SQLite).Update(sel.Table)
		for _, name := range sel.Model.FieldNames() {
			if isPrimaryField(sel.Model, name) {
				continue
			}
			if v, ok := dumped[name]; ok {
				upd.Set(name, v)
			}
		}
		upd.Where(dialectsql.Raw(where, whereArgs...))
		q, args := upd.Query()
		var res dialectsql.Result
		if err := d.conn.Exec(ctx, q, args, &res); err != nil {
			return affected, d.wrapStorage("set", q, err)
		}
		n, _ := res.RowsAffected()
		affected += n
	}
	d.afterWrite()
	return affected, nil
}

func (d *Driver) tableModel(table string) (*model.Model, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.tables[table]
	return m, ok
}

func (d *Driver) afterWrite() {
	if d.snap != nil {
		d.snap.schedule()
	}
}

func (d *Driver) wrapStorage(op, sqlText string, err error) error {
	return mesa.NewStorageError(op, sqlText, err)
}

// updateExprForColumn builds col's ON CONFLICT DO UPDATE expression: rows
// that did not supply col are carved out with an iif keyed on their own key
// tuple so the update preserves col's existing value for exactly those
// rows, defaulting to excluded.col for every other row in the batch.
func updateExprForColumn(col string, keys []string, provided []map[string]any) string {
	expr := "excluded." + dialectsql.EscapeID(col)
	for _, row := range provided {
		if _, ok := row[col]; ok {
			continue
		}
		match := keyMatchExpr(keys, row)
		if match == "" {
			continue
		}
		expr = "iif(" + match + ", " + dialectsql.EscapeID(col) + ", " + expr + ")"
	}
	return expr
}

func keyMatchExpr(keys []string, row map[string]any) string {
	var parts []string
	for _, k := range keys {
		v, ok := row[k]
		if !ok {
			return ""
		}
		parts = append(parts, "excluded."+dialectsql.EscapeID(k)+" = "+dialectsql.EscapeValue(dialect.SQLite, v))
	}
	return strings.Join(parts, " AND ")
}

// conflictKeys best-effort identifies which declared constraint a duplicate-
// entry error most likely violated, for DuplicateEntryError's diagnostic
// Keys field: the scalar primary key if there is one, else the first
// declared unique group.
func conflictKeys(m *model.Model) []string {
	if m.IsScalarPrimary() {
		return m.Primary
	}
	if len(m.Unique) > 0 {
		return m.Unique[0]
	}
	return nil
}

func fillDefaults(m *model.Model, row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	for _, fd := range m.Fields() {
		if _, ok := out[fd.Name]; !ok && fd.HasInitial {
			out[fd.Name] = fd.Initial
		}
	}
	return out
}

func unionColumns(m *model.Model, rows []map[string]any) []string {
	present := make(map[string]bool)
	for _, r := range rows {
		for k := range r {
			present[k] = true
		}
	}
	var cols []string
	for _, name := range m.FieldNames() {
		if present[name] {
			cols = append(cols, name)
		}
	}
	return cols
}

func primaryKeyFilter(m *model.Model, dumped map[string]any) (string, []any) {
	if len(m.Primary) == 0 {
		return "", nil
	}
	var parts []string
	var args []any
	for _, p := range m.Primary {
		v, ok := dumped[p]
		if !ok {
			return "", nil
		}
		parts = append(parts, dialectsql.EscapeID(p)+" = ?")
		args = append(args, v)
	}
	return strings.Join(parts, " AND "), args
}

func isPrimaryField(m *model.Model, name string) bool {
	for _, p := range m.Primary {
		if p == name {
			return true
		}
	}
	return false
}

func scanRows(rows *dialectsql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var (
	_ mesa.Driver     = (*Driver)(nil)
	_ mesa.RowUpdater = (*Driver)(nil)
)
