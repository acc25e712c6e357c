package sql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/K-Ho/ovm-graph-node/dialect"
)

// Predicate is a function that renders a WHERE-clause fragment (and any
// bind arguments it needs) into a shared Builder. It is the concrete type
// every FieldXxx helper and every And/Or/Not combinator returns; the filter
// package composes these when lowering its predicate AST to SQL.
type Predicate func(*Builder)

// Builder assembles a query string and its positional bind arguments. It is
// the common base of Selector, InsertBuilder, UpdateBuilder, and
// DeleteBuilder.
type Builder struct {
	dialect string
	sb      strings.Builder
	args    []any
}

// WriteString appends s verbatim to the builder.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// WriteByte appends a single byte to the builder.
func (b *Builder) WriteByte(c byte) *Builder {
	b.sb.WriteByte(c)
	return b
}

// Ident writes a quoted identifier (table or column name). A name
// containing a "." (an already-qualified column reference, e.g. "u.id") is
// written verbatim, since each part would need independent quoting.
func (b *Builder) Ident(name string) *Builder {
	if name == "" {
		return b
	}
	if strings.Contains(name, ".") || strings.Contains(name, "(") {
		b.sb.WriteString(name)
		return b
	}
	b.sb.WriteByte('"')
	b.sb.WriteString(strings.ReplaceAll(name, `"`, `""`))
	b.sb.WriteByte('"')
	return b
}

// isBareLowerIdent reports whether name is already a safe lowercase SQL
// identifier ([a-z_][a-z0-9_]*) that round-trips through Postgres's
// fold-to-lowercase rule for an unquoted reference.
func isBareLowerIdent(name string) bool {
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// QuoteColumn double-quotes name only when it isn't already a safe bare
// lowercase identifier. A schema field declared with a mixed-case or
// otherwise non-bare name (e.g. "ownerId") is created as a case-preserving
// quoted column (layout.quoteIdent); every place that later reads or
// filters on that column must quote it identically, or Postgres folds the
// unquoted reference to lowercase and resolves it to the wrong column.
func QuoteColumn(name string) string {
	if name == "" || isBareLowerIdent(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Arg appends a bind argument and writes its placeholder: "$n" for
// Postgres, "?" for MySQL/SQLite.
func (b *Builder) Arg(v any) *Builder {
	b.args = append(b.args, v)
	if b.dialect == dialect.MySQL || b.dialect == dialect.SQLite {
		b.sb.WriteByte('?')
		return b
	}
	b.sb.WriteByte('$')
	b.sb.WriteString(strconv.Itoa(len(b.args)))
	return b
}

// String returns the accumulated query text.
func (b *Builder) String() string { return b.sb.String() }

// Args returns the accumulated bind arguments.
func (b *Builder) Args() []any { return b.args }

func (b *Builder) writeWheres(preds []*Predicate) {
	if len(preds) == 0 {
		return
	}
	b.WriteString(" WHERE ")
	for i, p := range preds {
		if i > 0 {
			b.WriteString(" AND ")
		}
		(*p)(b)
	}
}

// DialectBuilder scopes Select/Insert/Update/Delete statement construction
// to a specific backend's placeholder style.
type DialectBuilder struct{ dialect string }

// Dialect starts a statement builder scoped to the given dialect name
// (dialect.Postgres, dialect.MySQL, dialect.SQLite).
func Dialect(name string) *DialectBuilder { return &DialectBuilder{dialect: name} }

// Select starts a SELECT statement in this dialect.
func (d *DialectBuilder) Select(columns ...string) *Selector {
	return &Selector{Builder: Builder{dialect: d.dialect}, columns: columns}
}

// Insert starts an INSERT statement in this dialect.
func (d *DialectBuilder) Insert(table string) *InsertBuilder {
	return &InsertBuilder{Builder: Builder{dialect: d.dialect}, table: table}
}

// Update starts an UPDATE statement in this dialect.
func (d *DialectBuilder) Update(table string) *UpdateBuilder {
	return &UpdateBuilder{Builder: Builder{dialect: d.dialect}, table: table}
}

// Delete starts a DELETE statement in this dialect.
func (d *DialectBuilder) Delete(table string) *DeleteBuilder {
	return &DeleteBuilder{Builder: Builder{dialect: d.dialect}, table: table}
}

// Select starts a Postgres-dialect SELECT statement; layout/filter/store all
// target Postgres exclusively (spec.md §6), so this is the common entry
// point outside of explicit cross-dialect benchmarks/tests.
func Select(columns ...string) *Selector {
	return Dialect(dialect.Postgres).Select(columns...)
}

// Table starts a Postgres-dialect Selector scoped to a table, usable
// standalone (as a query) or as a From/Join source.
func Table(name string) *Selector {
	return &Selector{Builder: Builder{dialect: dialect.Postgres}, table: name}
}

type join struct {
	table, as, on string
}

// Selector builds a SELECT statement incrementally: table, columns, joins,
// WHERE predicates, ORDER BY, LIMIT/OFFSET.
type Selector struct {
	Builder
	table     string
	as        string
	columns   []string
	joins     []join
	wheres    []*Predicate
	order     []string
	limit     *int
	offset    *int
	distinct  bool
	forUpdate bool
}

// As sets a table alias.
func (s *Selector) As(alias string) *Selector {
	s.as = alias
	return s
}

// From sets the selector's table (and alias) from src, typically the result
// of Table(name).As(alias).
func (s *Selector) From(src *Selector) *Selector {
	s.table = src.table
	s.as = src.as
	return s
}

// Distinct marks the selection as SELECT DISTINCT.
func (s *Selector) Distinct() *Selector {
	s.distinct = true
	return s
}

// C qualifies a bare column name with the selector's table alias (or table
// name if no alias was set).
func (s *Selector) C(column string) string {
	if s.as != "" {
		return s.as + "." + column
	}
	if s.table != "" {
		return s.table + "." + column
	}
	return column
}

type joinBuilder struct {
	sel   *Selector
	table *Selector
}

// Join starts an inner join against t; call On to supply the join
// condition and resume building the outer selector.
func (s *Selector) Join(t *Selector) *joinBuilder {
	return &joinBuilder{sel: s, table: t}
}

// On supplies the join condition as two already-qualified column
// references (e.g. users.C("id"), posts.C("user_id")) and returns the
// outer selector.
func (j *joinBuilder) On(left, right string) *Selector {
	j.sel.joins = append(j.sel.joins, join{table: j.table.table, as: j.table.as, on: left + " = " + right})
	return j.sel
}

// Where appends predicates to the selector's WHERE clause, ANDing them with
// any already present.
func (s *Selector) Where(preds ...*Predicate) *Selector {
	s.wheres = append(s.wheres, preds...)
	return s
}

// OrderBy appends raw "column [ASC|DESC]" expressions, in call order.
func (s *Selector) OrderBy(exprs ...string) *Selector {
	s.order = append(s.order, exprs...)
	return s
}

// Limit sets the LIMIT clause.
func (s *Selector) Limit(n int) *Selector {
	s.limit = &n
	return s
}

// Offset sets the OFFSET clause.
func (s *Selector) Offset(n int) *Selector {
	s.offset = &n
	return s
}

// ForUpdate appends "FOR UPDATE" row-level locking to the statement.
func (s *Selector) ForUpdate() *Selector {
	s.forUpdate = true
	return s
}

// Query renders the accumulated SELECT statement and its bind arguments.
func (s *Selector) Query() (string, []any) {
	s.Builder = Builder{dialect: s.Builder.dialect}
	s.WriteString("SELECT ")
	if s.distinct {
		s.WriteString("DISTINCT ")
	}
	if len(s.columns) == 0 {
		s.WriteString("*")
	} else {
		s.WriteString(strings.Join(s.columns, ", "))
	}
	if s.table != "" {
		s.WriteString(" FROM ")
		s.Ident(s.table)
		if s.as != "" {
			s.WriteString(" AS ")
			s.Ident(s.as)
		}
	}
	for _, j := range s.joins {
		s.WriteString(" JOIN ")
		s.Ident(j.table)
		if j.as != "" {
			s.WriteString(" AS ")
			s.Ident(j.as)
		}
		s.WriteString(" ON ")
		s.WriteString(j.on)
	}
	s.writeWheres(s.wheres)
	if len(s.order) > 0 {
		s.WriteString(" ORDER BY ")
		s.WriteString(strings.Join(s.order, ", "))
	}
	if s.limit != nil {
		s.WriteString(fmt.Sprintf(" LIMIT %d", *s.limit))
	}
	if s.offset != nil {
		s.WriteString(fmt.Sprintf(" OFFSET %d", *s.offset))
	}
	if s.forUpdate {
		s.WriteString(" FOR UPDATE")
	}
	return s.String(), s.Args()
}

// InsertBuilder builds an INSERT statement with optional RETURNING.
type InsertBuilder struct {
	Builder
	table     string
	columns   []string
	values    [][]any
	returning []string
	isDefault bool
}

// Insert starts a Postgres-dialect INSERT statement.
func Insert(table string) *InsertBuilder { return Dialect(dialect.Postgres).Insert(table) }

// Columns sets the column list for the rows supplied via Values.
func (b *InsertBuilder) Columns(cols ...string) *InsertBuilder {
	b.columns = cols
	return b
}

// Values appends one row of values, positionally matching Columns.
func (b *InsertBuilder) Values(vs ...any) *InsertBuilder {
	b.values = append(b.values, vs)
	return b
}

// Default marks the statement as "INSERT INTO t DEFAULT VALUES".
func (b *InsertBuilder) Default() *InsertBuilder {
	b.isDefault = true
	return b
}

// Returning sets the RETURNING column list.
func (b *InsertBuilder) Returning(cols ...string) *InsertBuilder {
	b.returning = cols
	return b
}

// Query renders the accumulated INSERT statement and its bind arguments.
func (b *InsertBuilder) Query() (string, []any) {
	b.Builder = Builder{dialect: b.Builder.dialect}
	b.WriteString("INSERT INTO ")
	b.Ident(b.table)
	switch {
	case b.isDefault:
		b.WriteString(" DEFAULT VALUES")
	default:
		b.WriteString(" (")
		for i, c := range b.columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Ident(c)
		}
		b.WriteString(") VALUES ")
		for i, row := range b.values {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('(')
			for j, v := range row {
				if j > 0 {
					b.WriteString(", ")
				}
				b.Arg(v)
			}
			b.WriteByte(')')
		}
	}
	if len(b.returning) > 0 {
		b.WriteString(" RETURNING ")
		b.WriteString(strings.Join(b.returning, ", "))
	}
	return b.String(), b.Args()
}

type setPair struct {
	column string
	value  any
}

// UpdateBuilder builds an UPDATE statement.
type UpdateBuilder struct {
	Builder
	table  string
	sets   []setPair
	wheres []*Predicate
}

// Update starts a Postgres-dialect UPDATE statement.
func Update(table string) *UpdateBuilder { return Dialect(dialect.Postgres).Update(table) }

// Set appends a "column = value" assignment.
func (b *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	b.sets = append(b.sets, setPair{column, v})
	return b
}

// Where appends predicates to the UPDATE's WHERE clause.
func (b *UpdateBuilder) Where(preds ...*Predicate) *UpdateBuilder {
	b.wheres = append(b.wheres, preds...)
	return b
}

// Query renders the accumulated UPDATE statement and its bind arguments.
func (b *UpdateBuilder) Query() (string, []any) {
	b.Builder = Builder{dialect: b.Builder.dialect}
	b.WriteString("UPDATE ")
	b.Ident(b.table)
	b.WriteString(" SET ")
	for i, s := range b.sets {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(s.column)
		b.WriteString(" = ")
		b.Arg(s.value)
	}
	b.writeWheres(b.wheres)
	return b.String(), b.Args()
}

// DeleteBuilder builds a DELETE statement.
type DeleteBuilder struct {
	Builder
	table  string
	wheres []*Predicate
}

// Delete starts a Postgres-dialect DELETE statement.
func Delete(table string) *DeleteBuilder { return Dialect(dialect.Postgres).Delete(table) }

// Where appends predicates to the DELETE's WHERE clause.
func (b *DeleteBuilder) Where(preds ...*Predicate) *DeleteBuilder {
	b.wheres = append(b.wheres, preds...)
	return b
}

// Query renders the accumulated DELETE statement and its bind arguments.
func (b *DeleteBuilder) Query() (string, []any) {
	b.Builder = Builder{dialect: b.Builder.dialect}
	b.WriteString("DELETE FROM ")
	b.Ident(b.table)
	b.writeWheres(b.wheres)
	return b.String(), b.Args()
}

// And combines predicates with AND, parenthesized as a group. An empty
// preds list renders the always-true "TRUE", matching the filter package's
// empty-And convention (spec.md §4.3).
func And(preds ...*Predicate) *Predicate {
	p := Predicate(func(b *Builder) {
		if len(preds) == 0 {
			b.WriteString("TRUE")
			return
		}
		b.WriteByte('(')
		for i, pr := range preds {
			if i > 0 {
				b.WriteString(" AND ")
			}
			(*pr)(b)
		}
		b.WriteByte(')')
	})
	return &p
}

// Or combines predicates with OR, parenthesized as a group. An empty preds
// list renders the always-false "FALSE", matching the filter package's
// empty-Or convention (spec.md §4.3).
func Or(preds ...*Predicate) *Predicate {
	p := Predicate(func(b *Builder) {
		if len(preds) == 0 {
			b.WriteString("FALSE")
			return
		}
		b.WriteByte('(')
		for i, pr := range preds {
			if i > 0 {
				b.WriteString(" OR ")
			}
			(*pr)(b)
		}
		b.WriteByte(')')
	})
	return &p
}

// Not negates a predicate.
func Not(pred *Predicate) *Predicate {
	p := Predicate(func(b *Builder) {
		b.WriteString("NOT (")
		(*pred)(b)
		b.WriteByte(')')
	})
	return &p
}

// In builds a "column IN ($n, $n+1, ...)" fragment; an empty vs renders the
// always-false "FALSE" per the filter package's empty-In convention.
func In(column string, vs ...any) *Predicate {
	p := Predicate(func(b *Builder) {
		if len(vs) == 0 {
			b.WriteString("FALSE")
			return
		}
		b.WriteString(QuoteColumn(column))
		b.WriteString(" IN (")
		for i, v := range vs {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Arg(v)
		}
		b.WriteByte(')')
	})
	return &p
}

// NotIn builds a "column NOT IN (...)" fragment; an empty vs renders the
// always-true "TRUE" per the filter package's empty-NotIn convention.
func NotIn(column string, vs ...any) *Predicate {
	p := Predicate(func(b *Builder) {
		if len(vs) == 0 {
			b.WriteString("TRUE")
			return
		}
		b.WriteString(QuoteColumn(column))
		b.WriteString(" NOT IN (")
		for i, v := range vs {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Arg(v)
		}
		b.WriteByte(')')
	})
	return &p
}

func binary(column, op string, v any) *Predicate {
	p := Predicate(func(b *Builder) {
		b.WriteString(QuoteColumn(column))
		b.WriteString(op)
		b.Arg(v)
	})
	return &p
}

// EQ builds "column = $n".
func EQ(column string, v any) *Predicate { return binary(column, " = ", v) }

// NEQ builds "column <> $n".
func NEQ(column string, v any) *Predicate { return binary(column, " <> ", v) }

// GT builds "column > $n".
func GT(column string, v any) *Predicate { return binary(column, " > ", v) }

// GTE builds "column >= $n".
func GTE(column string, v any) *Predicate { return binary(column, " >= ", v) }

// LT builds "column < $n".
func LT(column string, v any) *Predicate { return binary(column, " < ", v) }

// LTE builds "column <= $n".
func LTE(column string, v any) *Predicate { return binary(column, " <= ", v) }

// Contains builds a case-sensitive "column LIKE '%v%'" fragment.
func Contains(column, v string) *Predicate { return FieldContains(column, v) }

// HasPrefix builds a "column LIKE 'v%'" fragment.
func HasPrefix(column, v string) *Predicate { return FieldHasPrefix(column, v) }

// HasSuffix builds a "column LIKE '%v'" fragment.
func HasSuffix(column, v string) *Predicate { return FieldHasSuffix(column, v) }

// IsNull builds a "column IS NULL" fragment.
func IsNull(column string) *Predicate { return FieldIsNull(column) }

// NotNull builds a "column IS NOT NULL" fragment.
func NotNull(column string) *Predicate { return FieldNotNull(column) }

// FieldContains builds a case-sensitive "column LIKE '%v%'" fragment
// (Postgres LIKE is case-sensitive by default).
func FieldContains(column, v string) *Predicate {
	return binary(column, " LIKE ", "%"+escapeLike(v)+"%")
}

// FieldHasPrefix builds a "column LIKE 'v%'" fragment.
func FieldHasPrefix(column, v string) *Predicate {
	return binary(column, " LIKE ", escapeLike(v)+"%")
}

// FieldHasSuffix builds a "column LIKE '%v'" fragment.
func FieldHasSuffix(column, v string) *Predicate {
	return binary(column, " LIKE ", "%"+escapeLike(v))
}

// FieldIsNull builds a "column IS NULL" fragment.
func FieldIsNull(column string) *Predicate {
	p := Predicate(func(b *Builder) {
		b.WriteString(QuoteColumn(column))
		b.WriteString(" IS NULL")
	})
	return &p
}

// FieldNotNull builds a "column IS NOT NULL" fragment.
func FieldNotNull(column string) *Predicate {
	p := Predicate(func(b *Builder) {
		b.WriteString(QuoteColumn(column))
		b.WriteString(" IS NOT NULL")
	})
	return &p
}

// escapeLike escapes LIKE metacharacters so a literal value used inside a
// %...% pattern doesn't itself act as a wildcard.
func escapeLike(v string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return r.Replace(v)
}
