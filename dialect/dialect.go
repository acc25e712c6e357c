// Package dialect provides database dialect abstraction for the storage
// layer: the Driver/Tx/ExecQuerier interfaces the dialect/sql driver
// implements, and the dialect name constants used to select
// Postgres-specific SQL generation throughout layout, filter, and store.
package dialect

import "context"

// Supported dialect names. Postgres is the only dialect store/layout/filter
// generate backend-specific SQL for (tsvector/GIN, LEFT()-prefix indexes,
// array containment via @>); MySQL and SQLite are carried for the sql.Driver
// connection layer only.
const (
	Postgres = "postgres"
	MySQL    = "mysql"
	SQLite   = "sqlite"
)

// ExecQuerier wraps the two primitive operations a dialect connection
// exposes to the rest of the stack. args and v are typed as any so that
// dialect/sql can pass its own concrete Rows/Result types without this
// package importing database/sql.
type ExecQuerier interface {
	Exec(ctx context.Context, query string, args, v any) error
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is a database connection capable of starting transactions.
type Driver interface {
	ExecQuerier
	Tx(ctx context.Context) (Tx, error)
	Close() error
	Dialect() string
}

// Tx is a Driver bound to a single transaction.
type Tx interface {
	Driver
	Commit() error
	Rollback() error
}
