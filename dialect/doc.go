// Package dialect defines the database-dialect abstraction shared by every
// concrete driver: the identifying dialect name, and the Driver/Tx/
// ExecQuerier interfaces a compiled statement is executed against.
//
// # Supported dialects
//
//	dialect.MySQL  = "mysql"
//	dialect.SQLite = "sqlite"
//
// # Driver interface
//
//	type Driver interface {
//	    ExecQuerier
//	    Tx(ctx context.Context) (Tx, error)
//	    Dialect() string
//	    Close() error
//	}
//
// # Tx interface
//
//	type Tx interface {
//	    ExecQuerier
//	    Commit() error
//	    Rollback() error
//	}
//
// # ExecQuerier interface
//
//	type ExecQuerier interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	}
//
// # Sub-packages
//
//   - dialect/sql: the query builder/compiler (Selector, UpdateBuilder,
//     InsertBuilder, DeleteBuilder); MySQL and SQLite output is selected by
//     the dialect name string passed to sql.Dialect and sql.NewCompiler.
//   - dialect/sql/schema: live-schema introspection and the synchronizer
//     that diffs a declared Model against it.
//   - dialect/sql/dberrors: driver-agnostic constraint-error classification.
package dialect
