// Package sql provides SQL query building primitives and database dialect
// abstraction.
//
// This package is the foundation for generating and executing SQL queries.
// It provides a fluent API for constructing statements and the low-level
// driver that executes them.
//
// # Builder Types
//
// The package provides specialized builders for different SQL operations:
//
//   - Builder: Low-level SQL string builder with identifier quoting
//   - Selector: SELECT query builder with joins, predicates, and pagination
//   - InsertBuilder: INSERT statement builder with RETURNING support
//   - UpdateBuilder: UPDATE statement builder with SET and WHERE clauses
//   - DeleteBuilder: DELETE statement builder with WHERE predicates
//
// # Dialect Support
//
// SQL generation adapts to different database dialects:
//
//	import "github.com/K-Ho/ovm-graph-node/dialect"
//
//	b := sql.Dialect(dialect.Postgres)
//	b.Select("id", "name").From(sql.Table("users")).Where(sql.EQ("status", "active"))
//
// # Predicates
//
// The package provides predicate functions, composable with And/Or/Not:
//
//	sql.EQ("name", "john")           // name = $1
//	sql.NEQ("status", "deleted")     // status <> $1
//	sql.GT("age", 18)                // age > $1
//	sql.LTE("price", 100.0)          // price <= $1
//	sql.Contains("name", "john")     // name LIKE '%john%'
//	sql.HasPrefix("email", "admin")  // email LIKE 'admin%'
//	sql.IsNull("deleted_at")         // deleted_at IS NULL
//	sql.NotNull("email")             // email IS NOT NULL
//	sql.In("status", "active", "pending")
//
// The filter package calls these directly when it lowers a predicate AST
// against a *layout.Table to SQL; it does not generate per-column wrapper
// types since a layout's columns are only known at runtime.
//
// # Joins
//
// Join operations are supported through the selector:
//
//	users := sql.Table("users").As("u")
//	posts := sql.Table("posts").As("p")
//	sql.Select("u.id", "u.name", "p.title").
//	    From(users).
//	    Join(posts).On(users.C("id"), posts.C("user_id")).
//	    Where(sql.EQ("u.status", "active"))
//
// # Pagination and locking
//
//	sql.Select("*").From(sql.Table("users")).Offset(20).Limit(10)
//
//	sql.Select("*").From(sql.Table("users")).
//	    Where(sql.EQ("id", 1)).
//	    ForUpdate()
package sql
