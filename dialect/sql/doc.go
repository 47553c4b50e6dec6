// Package sql provides the SQL query-building and compilation primitives
// shared by every concrete driver: identifier/value escaping, the
// query/eval expression compiler, and the statement builders. MySQL and
// SQLite output is selected by the dialect name string passed to Dialect and
// NewCompiler.
//
// # Builder types
//
//   - DialectBuilder: returned by Dialect(name); creates the builders below
//   - Selector: SELECT statement builder (projection, filter, sort, paging)
//   - InsertBuilder: INSERT statement builder
//   - UpdateBuilder: UPDATE statement builder (SET clauses, filter)
//   - DeleteBuilder: DELETE statement builder (filter)
//
// # Dialect selection
//
//	import "github.com/mesa-orm/mesa/dialect"
//
//	b := sql.Dialect(dialect.SQLite)
//	b.Select("id", "name").From("users").Where(sql.EQ("status", "active"))
//
// # Compiling query/eval expressions
//
// Compiler's CompileQuery and CompileEval turn a queryast.Query/queryast.Eval
// into a WHERE-clause fragment or SELECT-list expression: parenthesized
// infix arithmetic, $in/$regex/
// bit-test operators, dialect-specific aggregation subqueries, and the
// logical reduction rules (an all-true AND reduces to "1", any false child
// short-circuits an AND to "0", etc).
//
// # Connection wrapper
//
// Driver/Conn/Tx wrap database/sql to implement dialect.Driver/dialect.Tx,
// including per-session variable scoping via WithVar.
package sql
