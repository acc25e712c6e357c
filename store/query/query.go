// Package query compiles and executes entity selections against a
// layout.Layout: single-type direct SELECTs, and the multi-type
// EntityCollection path that UNIONs per-type ordering keys before fetching
// full rows (spec.md §4.4).
package query

import (
	"context"
	"fmt"

	velox "github.com/K-Ho/ovm-graph-node"
	"github.com/K-Ho/ovm-graph-node/dialect"
	"github.com/K-Ho/ovm-graph-node/dialect/sql"
	"github.com/K-Ho/ovm-graph-node/filter"
	"github.com/K-Ho/ovm-graph-node/layout"
	"github.com/K-Ho/ovm-graph-node/value"
)

// Order is a single ORDER BY clause: a field name (or "id") and direction.
type Order struct {
	Attr string
	Desc bool
}

// Query describes one entity selection: one or more concrete entity types
// (more than one only for an EntityCollection over an interface), an
// optional filter and order, a page (skip/first), and the block number the
// result must be visible at (spec.md §4.4, §4.5).
type Query struct {
	Types  []string
	Filter filter.Filter
	Order  *Order
	First  *int
	Skip   int
	Block  int64
}

// Run executes q against l, returning entities in the requested order. A
// single type runs as one direct SELECT; multiple types compile a per-type
// query for each, UNION ALL them over (id, entity_type, order key), apply
// ordering/paging over the union, and then fetch each winning row from its
// own table (spec.md §4.4).
func Run(ctx context.Context, conn dialect.ExecQuerier, l *layout.Layout, q Query) ([]velox.Entity, error) {
	tables := make([]*layout.Table, 0, len(q.Types))
	for _, typ := range q.Types {
		t, err := l.TableFor(typ)
		if err != nil {
			return nil, velox.NewUnknownTableError(typ)
		}
		tables = append(tables, t)
	}
	if len(tables) == 0 {
		return nil, nil
	}
	if len(tables) == 1 {
		return runSingle(ctx, conn, l, tables[0], q)
	}
	return runUnion(ctx, conn, l, tables, q)
}

// BlockVisible returns the predicate restricting a selection to rows whose
// block_range covers block (spec.md §5: "as of" visibility).
func BlockVisible(block int64) *sql.Predicate {
	p := sql.Predicate(func(b *sql.Builder) {
		b.WriteString(sql.QuoteColumn("block_range")).WriteString(" @> ").Arg(block).WriteString("::bigint")
	})
	return &p
}

// SelectColumns returns the column list a row of t is read through: id
// first, then every declared scalar column, in declaration order. tsvector
// and block_range columns are never read back into an Entity. Names are
// bare (unquoted): callers pass this same slice to ScanRow, which resolves
// each name back to a layout.Column via t.ColumnByName, and to
// QuotedSelectColumns when rendering the SELECT list itself.
func SelectColumns(t *layout.Table) []string {
	cols := make([]string, 0, len(t.Columns)+1)
	cols = append(cols, "id")
	for _, c := range t.Columns {
		cols = append(cols, c.Name)
	}
	return cols
}

// QuotedSelectColumns renders cols (as returned by SelectColumns) for use in
// a SELECT list, quoting each one via sql.QuoteColumn so a mixed-case field
// (created as a case-preserving quoted column by layout.tableDDL) is
// addressed by its exact name rather than folded to lowercase by an
// unquoted reference.
func QuotedSelectColumns(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = sql.QuoteColumn(c)
	}
	return out
}

// TableRef returns the table reference to hand to sql.Table for name under
// l: the raw name when l has no namespace (sql.Ident quotes it), or l's
// already-quoted, dot-qualified form when it does (sql.Ident passes a
// dotted reference through verbatim). store reuses this so write-path SQL
// addresses the same table the planner does.
func TableRef(l *layout.Layout, name string) string {
	if l.Namespace == "" {
		return name
	}
	return l.QualifiedTable(name)
}

func tableRef(l *layout.Layout, name string) string { return TableRef(l, name) }

func orderClauses(t *layout.Table, o *Order) ([]string, error) {
	if o == nil || o.Attr == "" || o.Attr == "id" {
		dir := "ASC"
		if o != nil && o.Desc {
			dir = "DESC"
		}
		return []string{fmt.Sprintf("id %s", dir)}, nil
	}
	if _, ok := t.ColumnByName(o.Attr); !ok {
		return nil, velox.NewSchemaMismatchError(t.EntityType, o.Attr, "unknown order field")
	}
	dir := "ASC"
	if o.Desc {
		dir = "DESC"
	}
	return []string{fmt.Sprintf("%s %s", quoteIdentSimple(o.Attr), dir), "id ASC"}, nil
}

func quoteIdentSimple(name string) string {
	return `"` + name + `"`
}

func runSingle(ctx context.Context, conn dialect.ExecQuerier, l *layout.Layout, t *layout.Table, q Query) ([]velox.Entity, error) {
	cols := SelectColumns(t)
	sel := sql.Select(QuotedSelectColumns(cols)...).From(sql.Table(tableRef(l, t.Name))).Where(BlockVisible(q.Block))

	if q.Filter != nil {
		p, err := filter.Compile(t, q.Filter)
		if err != nil {
			return nil, err
		}
		sel = sel.Where(p)
	}

	orderExprs, err := orderClauses(t, q.Order)
	if err != nil {
		return nil, err
	}
	sel = sel.OrderBy(orderExprs...)

	if q.Skip > 0 {
		sel = sel.Offset(q.Skip)
	}
	if q.First != nil {
		sel = sel.Limit(*q.First)
	}

	queryStr, args := sel.Query()
	var rows sql.Rows
	if err := conn.Query(ctx, queryStr, args, &rows); err != nil {
		return nil, velox.NewQueryError(t.EntityType, "select", err)
	}
	defer rows.Close()

	var out []velox.Entity
	for rows.Next() {
		e, err := ScanRow(t, cols, &rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, velox.NewQueryError(t.EntityType, "select", err)
	}
	return out, nil
}

// unionKey is one (id, entity_type) pair surviving the ordered, paged union
// over all candidate tables (spec.md §4.4, phase 1).
type unionKey struct {
	id  string
	typ string
}

func runUnion(ctx context.Context, conn dialect.ExecQuerier, l *layout.Layout, tables []*layout.Table, q Query) ([]velox.Entity, error) {
	keys, err := unionKeys(ctx, conn, l, tables, q)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	byType := make(map[string][]string)
	for _, k := range keys {
		byType[k.typ] = append(byType[k.typ], k.id)
	}

	rowsByKey := make(map[unionKey]velox.Entity, len(keys))
	for _, t := range tables {
		ids := byType[t.EntityType]
		if len(ids) == 0 {
			continue
		}
		cols := SelectColumns(t)
		idArgs := make([]any, len(ids))
		for i, id := range ids {
			idArgs[i] = id
		}
		p := sql.In("id", idArgs...)
		sel := sql.Select(QuotedSelectColumns(cols)...).From(sql.Table(tableRef(l, t.Name))).
			Where(BlockVisible(q.Block)).Where(p)
		queryStr, args := sel.Query()

		var rows sql.Rows
		if err := conn.Query(ctx, queryStr, args, &rows); err != nil {
			return nil, velox.NewQueryError(t.EntityType, "select", err)
		}
		for rows.Next() {
			e, err := ScanRow(t, cols, &rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			rowsByKey[unionKey{id: e.ID(), typ: t.EntityType}] = e
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	out := make([]velox.Entity, 0, len(keys))
	for _, k := range keys {
		if e, ok := rowsByKey[k]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// unionKeys runs phase 1 of a multi-type selection: a per-type SELECT of
// (id, entity_type, order key) UNION ALL'd together, with ordering and
// paging applied to the union as a whole (spec.md §4.4).
func unionKeys(ctx context.Context, conn dialect.ExecQuerier, l *layout.Layout, tables []*layout.Table, q Query) ([]unionKey, error) {
	var parts []string
	var args []any
	orderAttr := "id"
	if q.Order != nil && q.Order.Attr != "" {
		orderAttr = q.Order.Attr
	}

	numeric := false
	haveKind := false
	if orderAttr != "id" {
		for _, t := range tables {
			col, ok := t.ColumnByName(orderAttr)
			if !ok {
				return nil, velox.NewSchemaMismatchError(t.EntityType, orderAttr, "unknown order field")
			}
			n := isNumericStorage(col.Storage)
			if haveKind && n != numeric {
				return nil, velox.NewSchemaMismatchError(t.EntityType, orderAttr,
					"order field has inconsistent storage types across the queried entity types")
			}
			numeric, haveKind = n, true
		}
	}

	for _, t := range tables {
		sel := sql.Select("id", fmt.Sprintf("%s AS entity_type", quoteLiteral(t.EntityType)), orderKeyExpr(orderAttr, numeric)).
			From(sql.Table(tableRef(l, t.Name))).Where(BlockVisible(q.Block))
		if q.Filter != nil {
			p, err := filter.Compile(t, q.Filter)
			if err != nil {
				return nil, err
			}
			sel = sel.Where(p)
		}
		partSQL, partArgs := sel.Query()
		parts = append(parts, renumberPlaceholders(partSQL, len(args)))
		args = append(args, partArgs...)
	}

	union := "(" + joinUnion(parts) + ") AS u"
	dir := "ASC"
	if q.Order != nil && q.Order.Desc {
		dir = "DESC"
	}
	outer := fmt.Sprintf("SELECT id, entity_type FROM %s ORDER BY order_key %s, id ASC", union, dir)
	if q.First != nil {
		outer += fmt.Sprintf(" LIMIT %d", *q.First)
	}
	if q.Skip > 0 {
		outer += fmt.Sprintf(" OFFSET %d", q.Skip)
	}

	var rows sql.Rows
	if err := conn.Query(ctx, outer, args, &rows); err != nil {
		return nil, velox.NewBackendError("select-union", err)
	}
	defer rows.Close()

	var keys []unionKey
	for rows.Next() {
		var id, typ string
		if err := rows.Scan(&id, &typ); err != nil {
			return nil, velox.NewBackendError("select-union-scan", err)
		}
		keys = append(keys, unionKey{id: id, typ: typ})
	}
	return keys, rows.Err()
}

// isNumericStorage reports whether a storage kind orders as a number
// (spec.md line 64: Int32/BigDecimal/BigInt compare numerically, not
// lexicographically).
func isNumericStorage(k layout.StorageKind) bool {
	switch k {
	case layout.StorageInt32, layout.StorageNumeric, layout.StorageBigNumeric:
		return true
	default:
		return false
	}
}

// orderKeyExpr projects the UNION ALL ordering column. Numeric columns cast
// to ::numeric so cross-table ordering stays numeric (spec.md line 64);
// everything else casts to ::text, matching the single-type ORDER BY's
// native column comparison for those storage kinds.
func orderKeyExpr(attr string, numeric bool) string {
	if attr == "id" {
		return "id AS order_key"
	}
	if numeric {
		return quoteIdentSimple(attr) + "::numeric AS order_key"
	}
	return quoteIdentSimple(attr) + "::text AS order_key"
}

func joinUnion(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " UNION ALL "
		}
		out += p
	}
	return out
}

// renumberPlaceholders shifts a part's "$1".."$n" Postgres placeholders so
// they don't collide when several per-type SELECTs are concatenated with
// UNION ALL into one statement sharing a single positional arg list.
func renumberPlaceholders(part string, offset int) string {
	if offset == 0 {
		return part
	}
	var out []byte
	for i := 0; i < len(part); i++ {
		if part[i] == '$' {
			j := i + 1
			n := 0
			for j < len(part) && part[j] >= '0' && part[j] <= '9' {
				n = n*10 + int(part[j]-'0')
				j++
			}
			if j > i+1 {
				out = append(out, []byte(fmt.Sprintf("$%d", n+offset))...)
				i = j - 1
				continue
			}
		}
		out = append(out, part[i])
	}
	return string(out)
}

func quoteLiteral(s string) string {
	out := "'"
	for _, r := range s {
		if r == '\'' {
			out += "''"
			continue
		}
		out += string(r)
	}
	return out + "'"
}

// ScanRow scans one row of cols (as built by SelectColumns) from rows into
// an Entity, converting each driver value back into a value.Value via t's
// column layout.
func ScanRow(t *layout.Table, cols []string, rows sql.ColumnScanner) (velox.Entity, error) {
	dest := make([]any, len(cols))
	for i := range dest {
		dest[i] = new(any)
	}
	if err := rows.Scan(dest...); err != nil {
		return velox.Entity{}, velox.NewBackendError("scan", err)
	}

	fields := make([]velox.EntityField, 0, len(cols))
	for i, name := range cols {
		raw := *(dest[i].(*any))
		if name == "id" {
			s, _ := raw.(string)
			fields = append(fields, velox.EntityField{Name: "id", Value: value.NewString(s)})
			continue
		}
		col, _ := t.ColumnByName(name)
		v, err := ScanToValue(t.EntityType, col, raw)
		if err != nil {
			return velox.Entity{}, err
		}
		fields = append(fields, velox.EntityField{Name: name, Value: v})
	}
	return velox.NewEntity(fields...), nil
}
