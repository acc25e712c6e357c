// Package dialect provides database dialect abstraction for the relational
// storage layer.
//
// This package defines the interfaces and types used for database-specific
// operations. The storage layer targets Postgres (arrays, LEFT()-prefix
// indexes, tsvector/GIN, range types), but the dialect string is still
// threaded through the SQL builder so it can pick the placeholder style
// ("?" for MySQL/SQLite, "$n" for Postgres) where nothing Postgres-specific
// is involved; identifiers are double-quoted for every dialect.
//
// # Supported Dialects
//
// The following dialects are supported:
//
//   - Postgres: PostgreSQL database
//   - MySQL: MySQL/MariaDB database
//   - SQLite: SQLite database
//
// # Dialect Constants
//
// Each dialect is identified by a constant string:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Driver Interface
//
// The package defines the Driver interface for database operations:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// # Transaction Interface
//
// The Tx interface extends Driver with transaction methods:
//
//	type Tx interface {
//	    Driver
//	    Commit() error
//	    Rollback() error
//	}
//
// # ExecQuerier Interface
//
// The ExecQuerier interface is implemented by both Driver and Tx:
//
//	type ExecQuerier interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	}
//
// # Usage
//
// Opening a database connection:
//
//	import (
//	    "github.com/K-Ho/ovm-graph-node/dialect"
//	    "github.com/K-Ho/ovm-graph-node/dialect/sql"
//	)
//
//	db, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
// # Sub-packages
//
// The dialect package contains:
//
//   - dialect/sql: SQL query builders and driver implementation
//
// Schema compilation and migration live outside dialect, in the layout and
// layout/migrate packages, which build directly on dialect/sql rather than
// through a generated schema intermediate.
package dialect
