package sql

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mesa-orm/mesa/dialect"
	"github.com/mesa-orm/mesa/field"
	"github.com/mesa-orm/mesa/model"
	"github.com/mesa-orm/mesa/queryast"
)

// fragment is a compiled SQL expression paired with its positional "?" args.
type fragment struct {
	sql  string
	args []any
}

// Compiler turns a queryast.Query/queryast.Eval tree into SQL, per spec
// §4.3's parse_query/parse_eval. It is stateful only for the duration of one
// compilation: group tracks whether the current eval node is already inside
// an aggregate's argument (so a nested aggregation compiles as a plain
// aggregate rather than a correlated subquery), and subq numbers the
// correlated-subquery aliases it mints so repeated aggregations over the
// same table don't collide.
type Compiler struct {
	Dialect string
	Model   *model.Model
	Alias   string
	Tables  map[string]*model.Model

	group bool
	subq  int
}

// NewCompiler builds a Compiler for one Selection: m/alias are the default
// table a bare field name or unaliased path resolves against; tables is the
// Selection.Tables alias map used to resolve `{alias, path}` accessors.
func NewCompiler(d string, m *model.Model, alias string, tables map[string]*model.Model) *Compiler {
	return &Compiler{Dialect: d, Model: m, Alias: alias, Tables: tables}
}

// CompileQuery compiles q to a WHERE-clause fragment and its args, applying
// the logical reduction rules of spec §4.3. An empty query compiles to the
// constant "1"; callers must check for the constant "0" and short-circuit
// per spec §4.3's "callers MUST short-circuit" rule.
func (c *Compiler) CompileQuery(q queryast.Query) (string, []any) {
	f := c.compileQuery(q)
	return f.sql, f.args
}

// CompileEval compiles expr to a SELECT-list/ORDER-BY expression and its
// args.
func (c *Compiler) CompileEval(expr queryast.Eval) (string, []any) {
	f := c.compileEval(expr)
	return f.sql, f.args
}

// CompileAggregateEval compiles expr as if it were already inside a group
// context: a top-level Aggr node emits the plain SQL aggregate rather than
// the correlated json_each subquery. Driver.Eval uses this to evaluate an
// aggregation over the rows a Selection already matched (the aggregate
// argument is a row column, not an embedded JSON array), per spec §4.3.
func (c *Compiler) CompileAggregateEval(expr queryast.Eval) (string, []any) {
	wasGroup := c.group
	c.group = true
	f := c.compileEval(expr)
	c.group = wasGroup
	return f.sql, f.args
}

func (c *Compiler) compileQuery(q queryast.Query) fragment {
	switch v := q.(type) {
	case queryast.FieldQuery:
		return c.compileFieldQuery(v)
	case queryast.And:
		return c.logicalAnd(v.Children)
	case queryast.Or:
		return c.logicalOr(v.Children)
	case queryast.Not:
		f := c.compileQuery(v.Child)
		return fragment{sql: "NOT(" + f.sql + ")", args: f.args}
	case queryast.ExprQuery:
		return c.compileEval(v.Expr)
	default:
		return fragment{sql: "1"}
	}
}

// logicalAnd implements spec §4.3: empty -> "1"; any "0" child -> "0";
// otherwise AND-join.
func (c *Compiler) logicalAnd(children []queryast.Query) fragment {
	if len(children) == 0 {
		return fragment{sql: "1"}
	}
	parts := make([]string, 0, len(children))
	var args []any
	for _, ch := range children {
		f := c.compileQuery(ch)
		if f.sql == "0" {
			return fragment{sql: "0"}
		}
		parts = append(parts, f.sql)
		args = append(args, f.args...)
	}
	return fragment{sql: strings.Join(parts, " AND "), args: args}
}

// logicalOr implements spec §4.3: empty -> "0"; any "1" child -> "1";
// otherwise a parenthesized OR-join.
func (c *Compiler) logicalOr(children []queryast.Query) fragment {
	if len(children) == 0 {
		return fragment{sql: "0"}
	}
	parts := make([]string, 0, len(children))
	var args []any
	for _, ch := range children {
		f := c.compileQuery(ch)
		if f.sql == "1" {
			return fragment{sql: "1"}
		}
		parts = append(parts, f.sql)
		args = append(args, f.args...)
	}
	return fragment{sql: "(" + strings.Join(parts, " OR ") + ")", args: args}
}

func (c *Compiler) compileFieldQuery(fq queryast.FieldQuery) fragment {
	parts := make([]string, 0, len(fq.Operands))
	var args []any
	for _, op := range fq.Operands {
		f := c.compileOperand(fq.Field, op)
		if f.sql == "0" {
			return fragment{sql: "0"}
		}
		parts = append(parts, f.sql)
		args = append(args, f.args...)
	}
	if len(parts) == 0 {
		return fragment{sql: "1"}
	}
	return fragment{sql: strings.Join(parts, " AND "), args: args}
}

func (c *Compiler) compileOperand(name string, op queryast.Operand) fragment {
	col := EscapeID(name)
	switch op.Op {
	case queryast.OpIsNull:
		return fragment{sql: col + " IS NULL"}
	case queryast.OpEq:
		if op.Value == nil {
			return fragment{sql: col + " IS NULL"}
		}
		return fragment{sql: col + " = ?", args: []any{op.Value}}
	case queryast.OpNe:
		return fragment{sql: col + " <> ?", args: []any{op.Value}}
	case queryast.OpGt:
		return fragment{sql: col + " > ?", args: []any{op.Value}}
	case queryast.OpGte:
		return fragment{sql: col + " >= ?", args: []any{op.Value}}
	case queryast.OpLt:
		return fragment{sql: col + " < ?", args: []any{op.Value}}
	case queryast.OpLte:
		return fragment{sql: col + " <= ?", args: []any{op.Value}}
	case queryast.OpIn:
		vals, _ := op.Value.([]any)
		if len(vals) == 0 {
			return fragment{sql: "0"}
		}
		return fragment{sql: col + " IN (" + placeholders(len(vals)) + ")", args: vals}
	case queryast.OpNin:
		vals, _ := op.Value.([]any)
		if len(vals) == 0 {
			return fragment{sql: "1"}
		}
		return fragment{sql: col + " NOT IN (" + placeholders(len(vals)) + ")", args: vals}
	case queryast.OpRegex:
		return fragment{sql: col + " REGEXP ?", args: []any{regexSource(op.Value)}}
	case queryast.OpRegexFor:
		return fragment{sql: "? REGEXP " + col, args: []any{op.Value}}
	case queryast.OpExists:
		if b, _ := op.Value.(bool); b {
			return fragment{sql: col + " IS NOT NULL"}
		}
		return fragment{sql: col + " IS NULL"}
	case queryast.OpBitsAllSet:
		return fragment{sql: "(" + col + " & ?) = ?", args: []any{op.Value, op.Value}}
	case queryast.OpBitsAllClear:
		return fragment{sql: "(" + col + " & ?) = 0", args: []any{op.Value}}
	case queryast.OpBitsAnySet:
		return fragment{sql: "(" + col + " & ?) <> 0", args: []any{op.Value}}
	case queryast.OpBitsAnyClear:
		return fragment{sql: "(" + col + " & ?) <> ?", args: []any{op.Value, op.Value}}
	case queryast.OpEl:
		return c.compileEl(name, col, op.Value)
	case queryast.OpSize:
		return c.compileSize(col, op.Value)
	default:
		return fragment{sql: "1"}
	}
}

// compileEl implements spec §4.3's $el operator: json_contains for
// JSON-typed fields, comma-delimited LIKE for list-typed fields.
func (c *Compiler) compileEl(name, col string, v any) fragment {
	if c.fieldCategory(name) == field.CategoryJSON {
		enc, _ := json.Marshal(v)
		if c.Dialect == dialect.MySQL {
			return fragment{sql: "JSON_CONTAINS(" + col + ", ?)", args: []any{string(enc)}}
		}
		return fragment{sql: "json_array_contains(" + col + ", ?)", args: []any{string(enc)}}
	}
	pattern := fmt.Sprintf("%%,%v,%%", v)
	if c.Dialect == dialect.MySQL {
		return fragment{sql: "CONCAT(',', " + col + ", ',') LIKE ?", args: []any{pattern}}
	}
	return fragment{sql: "(',' || " + col + " || ',') LIKE ?", args: []any{pattern}}
}

// compileSize implements spec §4.3's $size operator over a comma-joined
// list column: $size(0) negates the column (empty-string falsy); $size(n)
// counts commas.
func (c *Compiler) compileSize(col string, v any) fragment {
	n, _ := asInt(v)
	if n == 0 {
		return fragment{sql: "NOT(" + col + ")"}
	}
	return fragment{
		sql:  "(" + col + " AND length(" + col + ") - length(replace(" + col + ", ',', '')) = ?)",
		args: []any{n - 1},
	}
}

func (c *Compiler) fieldCategory(name string) field.Category {
	if c.Model == nil {
		return field.CategoryStringLike
	}
	if fd, ok := c.Model.Field(name); ok {
		return fd.Type.Category()
	}
	return field.CategoryStringLike
}

// compileEval compiles one Eval node, per spec §4.3.
func (c *Compiler) compileEval(expr queryast.Eval) fragment {
	switch v := expr.(type) {
	case queryast.Lit:
		return fragment{sql: "?", args: []any{v.Value}}
	case queryast.Path:
		return c.compilePath(v)
	case queryast.Arith:
		return c.compileArith(v)
	case queryast.Cmp:
		return c.compileCmp(v)
	case queryast.Logical:
		return c.compileLogical(v)
	case queryast.Concat:
		return c.compileConcat(v)
	case queryast.If:
		return c.compileIf(v)
	case queryast.IfNull:
		return c.compileIfNull(v)
	case queryast.Aggr:
		return c.compileAggr(v)
	case queryast.Length:
		return c.compileLength(v)
	default:
		return fragment{sql: "NULL"}
	}
}

// compilePath resolves a declared field name directly to its column;
// otherwise it splits at the longest declared-field prefix and emits a
// json_extract against the remaining dotted path (spec §4.3).
func (c *Compiler) compilePath(p queryast.Path) fragment {
	m := c.Model
	if p.Alias != "" {
		m = c.Tables[p.Alias]
	}
	col := EscapeID(p.Field)
	if p.Alias != "" {
		col = EscapeID(p.Alias) + "." + EscapeID(p.Field)
	}
	if len(p.Segments) == 0 {
		return fragment{sql: col}
	}
	if m != nil && !m.HasField(p.Field) {
		// Not actually a declared field; treat the whole dotted string as
		// one field name instead (no JSON sub-extraction).
		full := strings.Join(append([]string{p.Field}, p.Segments...), ".")
		if p.Alias != "" {
			return fragment{sql: EscapeID(p.Alias) + "." + EscapeID(full)}
		}
		return fragment{sql: EscapeID(full)}
	}
	jsonPath := "$." + strings.Join(p.Segments, ".")
	return fragment{sql: "json_unquote(json_extract(" + col + ", '" + jsonPath + "'))"}
}

func (c *Compiler) compileArith(a queryast.Arith) fragment {
	sym := map[queryast.ArithOp]string{
		queryast.ArithAdd:      "+",
		queryast.ArithMultiply: "*",
		queryast.ArithSubtract: "-",
		queryast.ArithDivide:   "/",
	}[a.Op]
	parts := make([]string, 0, len(a.Args))
	var args []any
	for _, arg := range a.Args {
		f := c.compileEval(arg)
		parts = append(parts, f.sql)
		args = append(args, f.args...)
	}
	return fragment{sql: "(" + strings.Join(parts, " "+sym+" ") + ")", args: args}
}

func (c *Compiler) compileCmp(cmp queryast.Cmp) fragment {
	sym := map[queryast.CmpOp]string{
		queryast.CmpEq:  "=",
		queryast.CmpNe:  "<>",
		queryast.CmpGt:  ">",
		queryast.CmpGte: ">=",
		queryast.CmpLt:  "<",
		queryast.CmpLte: "<=",
	}[cmp.Op]
	l := c.compileEval(cmp.Left)
	r := c.compileEval(cmp.Right)
	args := append(append([]any{}, l.args...), r.args...)
	return fragment{sql: "(" + l.sql + " " + sym + " " + r.sql + ")", args: args}
}

func (c *Compiler) compileLogical(l queryast.Logical) fragment {
	if l.Op == queryast.LogicalNot {
		f := c.compileEval(l.Args[0])
		return fragment{sql: "NOT(" + f.sql + ")", args: f.args}
	}
	sym := " AND "
	if l.Op == queryast.LogicalOr {
		sym = " OR "
	}
	parts := make([]string, 0, len(l.Args))
	var args []any
	for _, arg := range l.Args {
		f := c.compileEval(arg)
		parts = append(parts, f.sql)
		args = append(args, f.args...)
	}
	return fragment{sql: "(" + strings.Join(parts, sym) + ")", args: args}
}

func (c *Compiler) compileConcat(cc queryast.Concat) fragment {
	parts := make([]string, 0, len(cc.Args))
	var args []any
	for _, arg := range cc.Args {
		f := c.compileEval(arg)
		parts = append(parts, f.sql)
		args = append(args, f.args...)
	}
	if c.Dialect == dialect.MySQL {
		return fragment{sql: "CONCAT(" + strings.Join(parts, ", ") + ")", args: args}
	}
	return fragment{sql: "(" + strings.Join(parts, " || ") + ")", args: args}
}

func (c *Compiler) compileIf(i queryast.If) fragment {
	cond := c.compileEval(i.Cond)
	then := c.compileEval(i.Then)
	els := c.compileEval(i.Else)
	args := append(append(append([]any{}, cond.args...), then.args...), els.args...)
	fn := "iif"
	if c.Dialect == dialect.MySQL {
		fn = "IF"
	}
	return fragment{sql: fn + "(" + cond.sql + ", " + then.sql + ", " + els.sql + ")", args: args}
}

func (c *Compiler) compileIfNull(i queryast.IfNull) fragment {
	val := c.compileEval(i.Value)
	def := c.compileEval(i.Default)
	args := append(append([]any{}, val.args...), def.args...)
	return fragment{sql: "IFNULL(" + val.sql + ", " + def.sql + ")", args: args}
}

// compileAggr implements spec §4.3: inside a group context, a plain
// aggregate; outside, a correlated subquery over json_each of the inner
// value (the embedded-array aggregation shorthand).
func (c *Compiler) compileAggr(a queryast.Aggr) fragment {
	name := map[queryast.AggrOp]string{
		queryast.AggrSum:   "sum",
		queryast.AggrAvg:   "avg",
		queryast.AggrMin:   "min",
		queryast.AggrMax:   "max",
		queryast.AggrCount: "count",
	}[a.Op]
	if c.group {
		inner := c.compileEval(a.Arg)
		return fragment{sql: name + "(" + inner.sql + ")", args: inner.args}
	}
	wasGroup := c.group
	c.group = true
	inner := c.compileEval(a.Arg)
	c.group = wasGroup
	c.subq++
	alias := fmt.Sprintf("je%d", c.subq)
	return fragment{
		sql:  fmt.Sprintf("(SELECT %s(value) FROM json_each(%s) AS %s)", name, inner.sql, alias),
		args: inner.args,
	}
}

// compileLength implements spec §4.3's $length: json_array_length for JSON
// values, a comma-count formula for list-joined text, plain length
// otherwise.
func (c *Compiler) compileLength(l queryast.Length) fragment {
	inner := c.compileEval(l.Arg)
	if p, ok := l.Arg.(queryast.Path); ok && len(p.Segments) == 0 {
		switch c.fieldCategory(p.Field) {
		case field.CategoryJSON:
			return fragment{sql: "json_array_length(" + inner.sql + ")", args: inner.args}
		case field.CategoryList:
			return fragment{
				sql: "CASE WHEN " + inner.sql + " = '' THEN 0 ELSE " +
					"length(" + inner.sql + ") - length(replace(" + inner.sql + ", ',', '')) + 1 END",
				args: append(append(append([]any{}, inner.args...), inner.args...), inner.args...),
			}
		}
	}
	return fragment{sql: "length(" + inner.sql + ")", args: inner.args}
}

func regexSource(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	default:
		return 0, false
	}
}
