package dialect

import "context"

// Supported dialect names.
const (
	MySQL  = "mysql"
	SQLite = "sqlite"
)

// ExecQuerier wraps the two methods for executing and querying a statement,
// given its already-escaped SQL string and positional args. v is an
// out-parameter: *sql.Result for Exec, *sql.Rows-like scanner for Query.
// This mirrors the database/sql driver split so both a top-level Driver and
// an in-flight Tx can implement it identically.
type ExecQuerier interface {
	Exec(ctx context.Context, query string, args, v any) error
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is a connection to one database.
type Driver interface {
	ExecQuerier
	Tx(ctx context.Context) (Tx, error)
	Dialect() string
	Close() error
}

// Tx is a Driver bound to one in-flight transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}
