package sql

import (
	"strconv"
	"strings"
)

// Querier produces a final SQL string and its positional ("?") argument list.
type Querier interface {
	Query() (string, []any)
}

// DialectBuilder is the entry point for constructing statements against one
// dialect: sql.Dialect(dialect.SQLite).Select(...)....
type DialectBuilder struct {
	dialect string
}

// Dialect returns a builder entry point bound to the given dialect name.
func Dialect(name string) *DialectBuilder { return &DialectBuilder{dialect: name} }

// Select starts a SELECT statement over the given column expressions. An
// empty list selects "*".
func (d *DialectBuilder) Select(columns ...string) *Selector {
	return &Selector{dialect: d.dialect, columns: append([]string(nil), columns...)}
}

// Insert starts an INSERT statement into table.
func (d *DialectBuilder) Insert(table string) *InsertBuilder {
	return &InsertBuilder{dialect: d.dialect, table: table}
}

// Update starts an UPDATE statement against table.
func (d *DialectBuilder) Update(table string) *UpdateBuilder {
	return &UpdateBuilder{dialect: d.dialect, table: table}
}

// Delete starts a DELETE statement against table.
func (d *DialectBuilder) Delete(table string) *DeleteBuilder {
	return &DeleteBuilder{dialect: d.dialect, table: table}
}

// Selector builds a single-table SELECT statement: projection, filter,
// ordering, and offset/limit paging. It has no join support — per spec §3,
// the core compiles single-table selections (plus scalar subqueries for
// aggregation), even though Selection's Tables map is shaped to allow a
// future multi-table compiler to reuse it unchanged.
type Selector struct {
	dialect string
	table   string
	alias   string
	columns []string

	whereParts []string
	whereArgs  []any

	order []string

	limit    int
	hasLimit bool

	offset    int
	hasOffset bool
}

// Dialect reports the dialect this selector compiles for.
func (s *Selector) Dialect() string { return s.dialect }

// From sets the queried table.
func (s *Selector) From(table string) *Selector {
	s.table = table
	return s
}

// As sets the alias other expression paths use to address this table
// (Selection.Ref, per spec §3).
func (s *Selector) As(alias string) *Selector {
	s.alias = alias
	return s
}

// Table returns the configured table name.
func (s *Selector) Table() string { return s.table }

// C qualifies a column name with this selector's alias (if any) and quotes
// it, so predicate functions can embed it directly in a fragment.
func (s *Selector) C(name string) string {
	if s.alias != "" {
		return EscapeID(s.alias) + "." + EscapeID(name)
	}
	return EscapeID(name)
}

// appendWhere AND-appends a raw fragment (with its positional args) to the
// selector's filter. An empty-args fragment like "1" or "0" is valid, per
// the logical reduction rules in spec §4.3.
func (s *Selector) appendWhere(expr string, args ...any) {
	s.whereParts = append(s.whereParts, expr)
	s.whereArgs = append(s.whereArgs, args...)
}

// Where applies one predicate function, AND-composed with any existing
// filter already on this selector.
func (s *Selector) Where(p func(*Selector)) *Selector {
	p(s)
	return s
}

// OrderBy appends one ORDER BY term; expr is a raw, already-escaped SQL
// expression (as produced by the eval compiler).
func (s *Selector) OrderBy(expr string, desc bool) *Selector {
	if desc {
		expr += " DESC"
	} else {
		expr += " ASC"
	}
	s.order = append(s.order, expr)
	return s
}

// Limit sets the LIMIT clause.
func (s *Selector) Limit(n int) *Selector {
	s.limit, s.hasLimit = n, true
	return s
}

// Offset sets the OFFSET clause.
func (s *Selector) Offset(n int) *Selector {
	s.offset, s.hasOffset = n, true
	return s
}

// Query implements Querier, compiling the accumulated state into a SELECT
// statement and its positional args.
func (s *Selector) Query() (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(s.columns) == 0 {
		sb.WriteString("*")
	} else {
		sb.WriteString(strings.Join(s.columns, ", "))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(EscapeID(s.table))
	if s.alias != "" {
		sb.WriteString(" AS ")
		sb.WriteString(EscapeID(s.alias))
	}
	var args []any
	if len(s.whereParts) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(s.whereParts, " AND "))
		args = append(args, s.whereArgs...)
	}
	if len(s.order) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(s.order, ", "))
	}
	if s.hasLimit {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(s.limit))
	}
	if s.hasOffset {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.Itoa(s.offset))
	}
	return sb.String(), args
}

// InsertBuilder builds an INSERT statement, optionally with a MySQL
// "ON DUPLICATE KEY UPDATE" clause for the upsert algorithm (spec §4.4).
type InsertBuilder struct {
	dialect     string
	table       string
	cols        []string
	rows        [][]any
	onDuplicate []string // raw "col = expr" clauses; MySQL only
}

// Columns sets the column list, in row-value order.
func (b *InsertBuilder) Columns(cols ...string) *InsertBuilder {
	b.cols = cols
	return b
}

// Values appends one row of values, positional to Columns.
func (b *InsertBuilder) Values(vals ...any) *InsertBuilder {
	b.rows = append(b.rows, vals)
	return b
}

// OnDuplicateKeyUpdate attaches raw per-column update expressions to a
// MySQL multi-row insert. They are emitted verbatim and Query binds no args
// for them, so any literal they compare against must already be inlined.
func (b *InsertBuilder) OnDuplicateKeyUpdate(exprs ...string) *InsertBuilder {
	b.onDuplicate = append(b.onDuplicate, exprs...)
	return b
}

// Query implements Querier.
func (b *InsertBuilder) Query() (string, []any) {
	var sb strings.Builder
	var args []any
	sb.WriteString("INSERT INTO ")
	sb.WriteString(EscapeID(b.table))
	sb.WriteString(" (")
	for i, c := range b.cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(EscapeID(c))
	}
	sb.WriteString(") VALUES ")
	for ri, row := range b.rows {
		if ri > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for i, v := range row {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("?")
			args = append(args, v)
		}
		sb.WriteString(")")
	}
	if len(b.onDuplicate) > 0 {
		sb.WriteString(" ON DUPLICATE KEY UPDATE ")
		sb.WriteString(strings.Join(b.onDuplicate, ", "))
	}
	return sb.String(), args
}

// UpdateBuilder builds an UPDATE statement.
type UpdateBuilder struct {
	dialect string
	table   string
	sets    []setClause

	whereParts []string
	whereArgs  []any
}

type setClause struct {
	col  string
	expr string
	args []any
}

// Set assigns col a literal value (bound via a "?" placeholder).
func (b *UpdateBuilder) Set(col string, v any) *UpdateBuilder {
	b.sets = append(b.sets, setClause{col: col, expr: "?", args: []any{v}})
	return b
}

// SetExpr assigns col the result of a raw SQL expression, e.g. the nested
// json_set(...) chains spec §4.4's "Set algorithm" describes for dotted
// update paths, or the IF(...) chains its upsert algorithm describes.
func (b *UpdateBuilder) SetExpr(col, expr string, args ...any) *UpdateBuilder {
	b.sets = append(b.sets, setClause{col: col, expr: expr, args: args})
	return b
}

// Where applies a predicate function against a throwaway Selector bound to
// this statement's table, folding its compiled filter into the UPDATE.
func (b *UpdateBuilder) Where(p func(*Selector)) *UpdateBuilder {
	tmp := &Selector{dialect: b.dialect, table: b.table}
	p(tmp)
	b.whereParts = append(b.whereParts, tmp.whereParts...)
	b.whereArgs = append(b.whereArgs, tmp.whereArgs...)
	return b
}

// Query implements Querier.
func (b *UpdateBuilder) Query() (string, []any) {
	var sb strings.Builder
	var args []any
	sb.WriteString("UPDATE ")
	sb.WriteString(EscapeID(b.table))
	sb.WriteString(" SET ")
	for i, s := range b.sets {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(EscapeID(s.col))
		sb.WriteString(" = ")
		sb.WriteString(s.expr)
		args = append(args, s.args...)
	}
	if len(b.whereParts) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.whereParts, " AND "))
		args = append(args, b.whereArgs...)
	}
	return sb.String(), args
}

// DeleteBuilder builds a DELETE statement.
type DeleteBuilder struct {
	dialect string
	table   string

	whereParts []string
	whereArgs  []any
}

// Where applies a predicate function against a throwaway Selector bound to
// this statement's table, folding its compiled filter into the DELETE.
func (b *DeleteBuilder) Where(p func(*Selector)) *DeleteBuilder {
	tmp := &Selector{dialect: b.dialect, table: b.table}
	p(tmp)
	b.whereParts = append(b.whereParts, tmp.whereParts...)
	b.whereArgs = append(b.whereArgs, tmp.whereArgs...)
	return b
}

// Query implements Querier.
func (b *DeleteBuilder) Query() (string, []any) {
	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(EscapeID(b.table))
	var args []any
	if len(b.whereParts) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.whereParts, " AND "))
		args = append(args, b.whereArgs...)
	}
	return sb.String(), args
}

// Raw AND-appends an already-compiled fragment (as produced by the
// query/eval compiler) to a Selector/UpdateBuilder/DeleteBuilder's filter.
func Raw(expr string, args ...any) func(*Selector) {
	return func(s *Selector) { s.appendWhere(expr, args...) }
}

// EQ builds "col = ?".
func EQ(col string, v any) func(*Selector) {
	return func(s *Selector) { s.appendWhere(s.C(col)+" = ?", v) }
}

// NEQ builds "col <> ?".
func NEQ(col string, v any) func(*Selector) {
	return func(s *Selector) { s.appendWhere(s.C(col)+" <> ?", v) }
}

// GT builds "col > ?".
func GT(col string, v any) func(*Selector) {
	return func(s *Selector) { s.appendWhere(s.C(col)+" > ?", v) }
}

// GTE builds "col >= ?".
func GTE(col string, v any) func(*Selector) {
	return func(s *Selector) { s.appendWhere(s.C(col)+" >= ?", v) }
}

// LT builds "col < ?".
func LT(col string, v any) func(*Selector) {
	return func(s *Selector) { s.appendWhere(s.C(col)+" < ?", v) }
}

// LTE builds "col <= ?".
func LTE(col string, v any) func(*Selector) {
	return func(s *Selector) { s.appendWhere(s.C(col)+" <= ?", v) }
}

// Contains builds "col LIKE '%v%'".
func Contains(col, v string) func(*Selector) {
	return func(s *Selector) { s.appendWhere(s.C(col)+" LIKE ?", "%"+v+"%") }
}

// ContainsFold builds a case-insensitive LIKE.
func ContainsFold(col, v string) func(*Selector) {
	return func(s *Selector) {
		s.appendWhere("LOWER("+s.C(col)+") LIKE LOWER(?)", "%"+v+"%")
	}
}

// HasPrefix builds "col LIKE 'v%'".
func HasPrefix(col, v string) func(*Selector) {
	return func(s *Selector) { s.appendWhere(s.C(col)+" LIKE ?", v+"%") }
}

// HasSuffix builds "col LIKE '%v'".
func HasSuffix(col, v string) func(*Selector) {
	return func(s *Selector) { s.appendWhere(s.C(col)+" LIKE ?", "%"+v) }
}

// EqualFold builds a case-insensitive equality check.
func EqualFold(col, v string) func(*Selector) {
	return func(s *Selector) { s.appendWhere("LOWER("+s.C(col)+") = LOWER(?)", v) }
}

// IsNull builds "col IS NULL".
func IsNull(col string) func(*Selector) {
	return func(s *Selector) { s.appendWhere(s.C(col) + " IS NULL") }
}

// NotNull builds "col IS NOT NULL".
func NotNull(col string) func(*Selector) {
	return func(s *Selector) { s.appendWhere(s.C(col) + " IS NOT NULL") }
}

// In builds "col IN (?, ?, ...)". An empty vs compiles to the constant
// falsy fragment "0", matching spec §4.3's empty-$in rule.
func In(col string, vs ...any) func(*Selector) {
	return func(s *Selector) {
		if len(vs) == 0 {
			s.appendWhere("0")
			return
		}
		s.appendWhere(s.C(col)+" IN ("+placeholders(len(vs))+")", vs...)
	}
}

// NotIn builds "col NOT IN (?, ?, ...)". An empty vs compiles to the
// constant truthy fragment "1".
func NotIn(col string, vs ...any) func(*Selector) {
	return func(s *Selector) {
		if len(vs) == 0 {
			s.appendWhere("1")
			return
		}
		s.appendWhere(s.C(col)+" NOT IN ("+placeholders(len(vs))+")", vs...)
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// FieldEQ, FieldNEQ, ... are the untyped entry points the generic
// StringField/IntField/... wrappers in predicate.go funnel through.
func FieldEQ(name string, v any) func(*Selector)  { return EQ(name, v) }
func FieldNEQ(name string, v any) func(*Selector) { return NEQ(name, v) }
func FieldGT(name string, v any) func(*Selector)  { return GT(name, v) }
func FieldGTE(name string, v any) func(*Selector) { return GTE(name, v) }
func FieldLT(name string, v any) func(*Selector)  { return LT(name, v) }
func FieldLTE(name string, v any) func(*Selector) { return LTE(name, v) }

func FieldIsNull(name string) func(*Selector)  { return IsNull(name) }
func FieldNotNull(name string) func(*Selector) { return NotNull(name) }

func FieldContains(name, v string) func(*Selector)     { return Contains(name, v) }
func FieldContainsFold(name, v string) func(*Selector) { return ContainsFold(name, v) }
func FieldHasPrefix(name, v string) func(*Selector)    { return HasPrefix(name, v) }
func FieldHasSuffix(name, v string) func(*Selector)    { return HasSuffix(name, v) }
func FieldEqualFold(name, v string) func(*Selector)    { return EqualFold(name, v) }

// FieldIn is the generic entry point behind StringField.In/IntField.In/...
func FieldIn[T any](name string, vs ...T) func(*Selector) {
	v := make([]any, len(vs))
	for i := range vs {
		v[i] = vs[i]
	}
	return In(name, v...)
}

// FieldNotIn is the generic entry point behind StringField.NotIn/...
func FieldNotIn[T any](name string, vs ...T) func(*Selector) {
	v := make([]any, len(vs))
	for i := range vs {
		v[i] = vs[i]
	}
	return NotIn(name, v...)
}
