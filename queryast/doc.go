// Package queryast defines the closed expression trees spec §3/§4.3
// describes as Query Expression and Eval Expression: a nestable, typed
// representation of filters, projections, aggregations, and field-path
// accessors, independent of any SQL dialect.
//
// Query and Eval are closed sum types: each is an exported interface with
// an unexported marker method, so only the variants declared in this
// package (FieldQuery, And, Or, Not, ExprQuery for Query; Lit, Path, Arith,
// Cmp, Logical, Concat, If, IfNull, Aggr, Length for Eval) can implement
// them. Compilers (dialect/sql) type-switch exhaustively over these
// variants; there is no extension point for new node kinds outside this
// package.
//
// ParseQuery and ParseEval turn the raw map[string]any shape callers submit
// (e.g. {"age": {"$gt": 18}}) into this AST, validating operator shapes as
// they go. A shape ParseQuery/ParseEval cannot make sense of returns a
// *MalformedError describing the offending path/operator — callers at the
// Database façade boundary convert this into the typed query-malformed
// error.
package queryast
