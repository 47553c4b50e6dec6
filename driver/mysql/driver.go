// Package mysql implements the Driver protocol (spec §4.4) over a pooled
// go-sql-driver/mysql connection: a multiStatements batch queue for reads
// and native ON DUPLICATE KEY UPDATE for the upsert algorithm, per spec §5/§9.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"golang.org/x/sync/errgroup"

	mesa "github.com/mesa-orm/mesa"
	"github.com/mesa-orm/mesa/cast"
	"github.com/mesa-orm/mesa/dialect"
	dialectsql "github.com/mesa-orm/mesa/dialect/sql"
	"github.com/mesa-orm/mesa/dialect/sql/dberrors"
	"github.com/mesa-orm/mesa/dialect/sql/schema"
	"github.com/mesa-orm/mesa/model"
	"github.com/mesa-orm/mesa/queryast"
)

// Config configures a mysql Driver. Charset is applied via the connection
// DSN's params; MultiStatements enables the multi-statement round trip the
// batch queue relies on and MUST stay true for the Driver to function. Debug
// and SlowQueryThreshold wrap the connection in dialect/sql's logging
// decorators (dialect/sql/stats.go); Debug takes priority when both are set.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	Charset         string
	MultiStatements bool

	// Debug logs every statement this driver runs via log/slog.
	Debug bool
	// SlowQueryThreshold, if non-zero, logs statements that run longer
	// than it and accumulates query-timing stats reachable via QueryStats.
	SlowQueryThreshold time.Duration
}

func (c Config) dsn() string {
	cfg := gomysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	port := c.Port
	if port == 0 {
		port = 3306
	}
	cfg.Addr = fmt.Sprintf("%s:%d", c.Host, port)
	cfg.DBName = c.Database
	cfg.MultiStatements = c.MultiStatements
	cfg.ParseTime = true
	if c.Charset != "" {
		cfg.Params = map[string]string{"charset": c.Charset}
	}
	return cfg.FormatDSN()
}

// Driver is the mysql implementation of mesa.Driver.
type Driver struct {
	cfg    Config
	caster *cast.Caster
	sync   *schema.Synchronizer

	db    *sql.DB
	conn  dialect.Driver
	stats *dialectsql.QueryStats
	batch *batchQueue

	mu     sync.RWMutex
	tables map[string]*model.Model
}

// New returns a Driver for cfg. Call Start before using it.
func New(cfg Config) *Driver {
	if !cfg.MultiStatements {
		cfg.MultiStatements = true
	}
	return &Driver{
		cfg:    cfg,
		caster: cast.New(dialect.MySQL),
		sync:   schema.NewSynchronizer(dialect.MySQL),
		tables: make(map[string]*model.Model),
	}
}

// Start opens the pooled connection and arms the batch queue.
func (d *Driver) Start(ctx context.Context) error {
	db, err := sql.Open("mysql", d.cfg.dsn())
	if err != nil {
		return fmt.Errorf("mysql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("mysql: ping: %w", err)
	}
	d.attachDB(db)
	switch {
	case d.cfg.Debug:
		d.conn = dialectsql.NewDebugDriver(dialectsql.OpenDB(dialect.MySQL, db))
	case d.cfg.SlowQueryThreshold > 0:
		statsDrv := dialectsql.NewStatsDriver(dialectsql.OpenDB(dialect.MySQL, db),
			dialectsql.WithSlowThreshold(d.cfg.SlowQueryThreshold),
			dialectsql.WithSlowQueryLog())
		d.stats = statsDrv.QueryStats()
		d.conn = statsDrv
	}
	return nil
}

// attachDB wires an already-open *sql.DB into the driver, bypassing dsn
// construction and ping; used by Start and by tests driving the wire
// protocol through github.com/DATA-DOG/go-sqlmock. Leaves conn as the bare
// dialect/sql Driver, without Config's logging decorators, since sqlmock
// tests assert on the exact statements this driver issues.
func (d *Driver) attachDB(db *sql.DB) {
	d.db = db
	d.conn = dialectsql.OpenDB(dialect.MySQL, db)
	d.batch = newBatchQueue(db)
}

// QueryStats returns the query-timing stats accumulated when Config's
// SlowQueryThreshold is set, or nil otherwise.
func (d *Driver) QueryStats() *dialectsql.QueryStats {
	return d.stats
}

// Stop closes the pool. Idempotent.
func (d *Driver) Stop(context.Context) error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Prepare synchronizes m's live table against its declaration, per spec
// §4.5 step 7, identically to the sqlite driver's algorithm.
func (d *Driver) Prepare(ctx context.Context, m *model.Model) error {
	d.mu.Lock()
	d.tables[m.Name] = m
	d.mu.Unlock()
	return d.prepareTable(ctx, m, nil)
}

func (d *Driver) prepareTable(ctx context.Context, m *model.Model, dropKeys []string) error {
	insp, err := schema.NewAtlasInspector(dialect.MySQL, d.db)
	if err != nil {
		return err
	}
	live, err := insp.InspectTable(ctx, m.Name)
	if err != nil {
		return err
	}
	declared := schema.Declare(dialect.MySQL, m)
	schema.LogDiagnostics(slog.Default(), live, declared)
	plan := schema.Diff(live, declared, dropKeys)
	if _, err := d.sync.Apply(ctx, d.conn, plan); err != nil {
		return err
	}

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
	return nil
}

// Stats reports the schema's total data+index size (via information_schema)
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
	const sizeQuery = "SELECT COALESCE(SUM(data_length + index_length), 0) FROM information_schema.TABLES WHERE table_schema = DATABASE()"
	var size int64
	if err := d.db.QueryRowContext(ctx, sizeQuery).Scan(&size); err != nil {
		return mesa.Stats{}, d.wrapStorage("stats", sizeQuery, err)
	}
	return mesa.Stats{Size: size, Tables: tables}, nil
}

// Get implements mesa.Driver, routing the compiled SELECT through the
// batch queue so concurrent reads in one flush window share a round trip.
func (d *Driver) Get(ctx context.Context, sel model.Selection) ([]map[string]any, error) {
	q, args, projected, err := d.buildSelect(sel)
	if err != nil || q == "" {
		return nil, err
	}
	raw, err := d.batch.enqueue(ctx, q, args)
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

func (d *Driver) buildSelect(sel model.Selection) (string, []any, bool, error) {
	compiler := dialectsql.NewCompiler(dialect.MySQL, sel.Model, sel.Ref, sel.Tables)
	whereSQL, whereArgs := compiler.CompileQuery(sel.Query)
	if whereSQL == "0" {
		return "", nil, false, nil
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
			columns = append(columns, dialectsql.InlineArgs(dialect.MySQL, exprSQL, exprArgs)+" AS "+dialectsql.EscapeID(a))
		}
	}

	selector := dialectsql.Dialect(dialect.MySQL).Select(columns...).From(sel.Table).As(sel.Ref)
	selector.Where(dialectsql.Raw(whereSQL, whereArgs...))
	for _, s := range sel.Sort {
		exprSQL, exprArgs := compiler.CompileEval(s.Expr)
		selector.OrderBy(dialectsql.InlineArgs(dialect.MySQL, exprSQL, exprArgs), s.Desc)
	}
	if sel.Limit > 0 {
		selector.Limit(sel.Limit)
	}
	if sel.Offset > 0 {
		selector.Offset(sel.Offset)
	}
	q, args := selector.Query()
	return q, args, projected, nil
}

// Eval implements mesa.Driver: sel is wrapped as a subquery and expr is
// compiled in aggregate context over its rows, then routed through the
// same batch queue as Get.
func (d *Driver) Eval(ctx context.Context, sel model.Selection, expr queryast.Eval) (any, error) {
	compiler := dialectsql.NewCompiler(dialect.MySQL, sel.Model, sel.Ref, sel.Tables)
	whereSQL, whereArgs := compiler.CompileQuery(sel.Query)
	if whereSQL == "0" {
		return nil, nil
	}
	inner := dialectsql.Dialect(dialect.MySQL).Select().From(sel.Table).As(sel.Ref)
	inner.Where(dialectsql.Raw(whereSQL, whereArgs...))
	innerSQL, innerArgs := inner.Query()
	exprSQL, exprArgs := compiler.CompileAggregateEval(expr)
	q := "SELECT " + exprSQL + " AS value FROM (" + innerSQL + ") AS " + dialectsql.EscapeID(sel.Ref)
	args := append(append([]any{}, exprArgs...), innerArgs...)

	rows, err := d.batch.enqueue(ctx, q, args)
	if err != nil {
		return nil, d.wrapStorage("eval", q, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0]["value"], nil
}

// Set implements mesa.Driver, sharing the chained json_set Set algorithm
// with the sqlite driver via dialect/sql.UpdateBuilder.ApplyUpdate.
func (d *Driver) Set(ctx context.Context, sel model.Selection, update mesa.Update) (int64, error) {
	compiler := dialectsql.NewCompiler(dialect.MySQL, sel.Model, sel.Ref, sel.Tables)
	whereSQL, whereArgs := compiler.CompileQuery(sel.Query)
	if whereSQL == "0" {
		return 0, nil
	}
	upd := dialectsql.Dialect(dialect.MySQL).Update(sel.Table)
	upd.ApplyUpdate(compiler, update)
	upd.Where(dialectsql.Raw(whereSQL, whereArgs...))
	q, args := upd.Query()

	var res dialectsql.Result
	if err := d.conn.Exec(ctx, q, args, &res); err != nil {
		return 0, d.wrapStorage("set", q, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Remove implements mesa.Driver.
func (d *Driver) Remove(ctx context.Context, sel model.Selection) (int64, error) {
	compiler := dialectsql.NewCompiler(dialect.MySQL, sel.Model, sel.Ref, sel.Tables)
	whereSQL, whereArgs := compiler.CompileQuery(sel.Query)
	if whereSQL == "0" {
		return 0, nil
	}
	del := dialectsql.Dialect(dialect.MySQL).Delete(sel.Table)
	del.Where(dialectsql.Raw(whereSQL, whereArgs...))
	q, args := del.Query()

	var res dialectsql.Result
	if err := d.conn.Exec(ctx, q, args, &res); err != nil {
		return 0, d.wrapStorage("remove", q, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Create implements mesa.Driver.
func (d *Driver) Create(ctx context.Context, table string, data map[string]any) (map[string]any, error) {
	m, ok := d.tableModel(table)
	if !ok {
		return nil, fmt.Errorf("mysql: table %q is not prepared", table)
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
	ins := dialectsql.Dialect(dialect.MySQL).Insert(table).Columns(cols...).Values(vals...)
	q, args := ins.Query()

	var res dialectsql.Result
	if err := d.conn.Exec(ctx, q, args, &res); err != nil {
		if dberrors.IsUniqueConstraintError(err) {
			return nil, mesa.NewDuplicateEntryError(table, conflictKeys(m), err)
		}
		return nil, d.wrapStorage("create", q, err)
	}

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

// Upsert implements mesa.Driver via a single multi-row
// INSERT ... VALUES ... ON DUPLICATE KEY UPDATE, per spec §4.3's MySQL
// upsert strategy: columns every row supplied update unconditionally via
// VALUES(col), columns only some rows supplied fall back, for the rows that
// omitted them, to preserving the column's prior value (bare column
// reference), via a chain of IF(key-match, preserve, VALUES(col))
// expressions keyed on each exceptional row's key tuple.
func (d *Driver) Upsert(ctx context.Context, table string, data []map[string]any, keys []string) ([]map[string]any, error) {
	m, ok := d.tableModel(table)
	if !ok {
		return nil, fmt.Errorf("mysql: table %q is not prepared", table)
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
		return nil, fmt.Errorf("mysql: upsert on %q: no columns to write", table)
	}
	keySet := make(map[string]bool, len(keys))
	for _, k := range keys {
		keySet[k] = true
	}

	ins := dialectsql.Dialect(dialect.MySQL).Insert(table).Columns(cols...)
	for _, row := range insertRows {
		vals := make([]any, len(cols))
		for i, c := range cols {
			vals[i] = row[c]
		}
		ins.Values(vals...)
	}

	var updateExprs []string
	for _, c := range cols {
		if keySet[c] {
			continue
		}
		updateExprs = append(updateExprs, dialectsql.EscapeID(c)+" = "+updateExprForColumn(c, keys, provided))
	}
	if len(updateExprs) == 0 {
		updateExprs = []string{dialectsql.EscapeID(keys[0]) + " = " + dialectsql.EscapeID(keys[0])}
	}
	ins.OnDuplicateKeyUpdate(updateExprs...)
	q, args := ins.Query()

	var res dialectsql.Result
	if err := d.conn.Exec(ctx, q, args, &res); err != nil {
		if dberrors.IsUniqueConstraintError(err) {
			return nil, mesa.NewDuplicateEntryError(table, keys, err)
		}
		return nil, d.wrapStorage("upsert", q, err)
	}

	out := make([]map[string]any, 0, len(data))
	for _, row := range insertRows {
		where, whereArgs := primaryKeyOrKeysFilter(keys, row)
		if where == "" {
			continue
		}
		sel := dialectsql.Dialect(dialect.MySQL).Select().From(table)
		sel.Where(dialectsql.Raw(where, whereArgs...))
		selSQL, selArgs := sel.Query()
		var got dialectsql.Rows
		if err := d.conn.Query(ctx, selSQL, selArgs, &got); err != nil {
			return nil, d.wrapStorage("upsert", selSQL, err)
		}
		rawRow, err := scanOne(&got)
		got.Close()
		if err != nil {
			return nil, err
		}
		if rawRow == nil {
			continue
		}
		loaded, err := d.caster.Load(m, rawRow)
		if err != nil {
			return nil, err
		}
		out = append(out, loaded)
	}
	return out, nil
}

// updateExprForColumn builds col's ON DUPLICATE KEY UPDATE expression: rows
// that did not supply col are carved out with an IF keyed on their own key
// tuple so the update preserves col's existing value for exactly those
// rows, defaulting to VALUES(col) for every other row in the batch.
func updateExprForColumn(col string, keys []string, provided []map[string]any) string {
	expr := "VALUES(" + dialectsql.EscapeID(col) + ")"
	for _, row := range provided {
		if _, ok := row[col]; ok {
			continue
		}
		match := keyMatchExpr(keys, row)
		if match == "" {
			continue
		}
		expr = "IF(" + match + ", " + dialectsql.EscapeID(col) + ", " + expr + ")"
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
		parts = append(parts, "VALUES("+dialectsql.EscapeID(k)+") = "+dialectsql.EscapeValue(dialect.MySQL, v))
	}
	return strings.Join(parts, " AND ")
}

func (d *Driver) tableModel(table string) (*model.Model, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.tables[table]
	return m, ok
}

func (d *Driver) wrapStorage(op, sqlText string, err error) error {
	return mesa.NewStorageError(op, sqlText, err)
}

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

func primaryKeyOrKeysFilter(keys []string, row map[string]any) (string, []any) {
	var parts []string
	var args []any
	for _, k := range keys {
		v, ok := row[k]
		if !ok {
			return "", nil
		}
		parts = append(parts, dialectsql.EscapeID(k)+" = ?")
		args = append(args, v)
	}
	return strings.Join(parts, " AND "), args
}

func scanOne(rows *dialectsql.Rows) (map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		return nil, rows.Err()
	}
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
	return row, nil
}

var _ mesa.Driver = (*Driver)(nil)
