package model

import "github.com/mesa-orm/mesa/queryast"

// Sort is one (expression, direction) pair in a Selection's ORDER BY clause.
type Sort struct {
	Expr queryast.Eval
	Desc bool
}

// Selection is the per-operation request value described in spec §3: a
// binding of a table, its Model, a compiled-or-raw filter query, optional
// projections, an optional ordering/paging modifier, and the multi-table
// alias map that lets expression paths address joined tables (the current
// core only ever compiles the aliased table itself plus scalar subqueries,
// per spec §2, but the map is populated so a future multi-table compiler can
// reuse Selection unchanged).
type Selection struct {
	Table string // the table being queried/mutated
	Ref   string // alias used inside Query/Fields paths; defaults to Table

	Model *Model

	Query queryast.Query

	// Fields is the optional explicit projection: alias -> eval expression.
	// A nil map means project every declared column ("*").
	Fields map[string]queryast.Eval

	// Tables maps every alias reachable from this selection's expressions to
	// its Model, including Ref -> Model.
	Tables map[string]*Model

	Sort   []Sort
	Limit  int // 0 means unset
	Offset int
}

// Modifier carries the optional sort/limit/offset a caller passes to
// Database.Get, kept distinct from Selection so callers don't need to know
// about Tables/Ref/Model wiring to page a result set.
type Modifier struct {
	Sort   []Sort
	Limit  int
	Offset int
}

// NewSelection builds a single-table Selection, defaulting Ref to table and
// Tables to {table: m}.
func NewSelection(table string, m *Model, q queryast.Query, mod *Modifier) Selection {
	sel := Selection{
		Table:  table,
		Ref:    table,
		Model:  m,
		Query:  q,
		Tables: map[string]*Model{table: m},
	}
	if mod != nil {
		sel.Sort = mod.Sort
		sel.Limit = mod.Limit
		sel.Offset = mod.Offset
	}
	return sel
}
