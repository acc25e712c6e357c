// Package layout compiles a parsed schema.Document into a Layout: the
// physical projection of entity types onto tables, columns, indexes, and
// tsvector search columns (spec.md §3-§4.2).
package layout

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/K-Ho/ovm-graph-node/dialect"
	"github.com/K-Ho/ovm-graph-node/schema"
)

// StringPrefixSize (P) is the layout-wide prefix-index width: text columns
// are indexed over LEFT(value, StringPrefixSize) (spec.md §4.6).
const StringPrefixSize = 256

// StorageKind is the physical column type a scalar field is stored as.
type StorageKind uint8

const (
	StorageUnknown StorageKind = iota
	StorageBoolean
	StorageInt32
	StorageNumeric   // BigDecimal
	StorageText      // String, Enum
	StorageBytes     // Bytes
	StorageBigNumeric // BigInt, stored as unconstrained numeric
)

// SQLType returns the Postgres type name for the storage kind, as a scalar
// or, when list is true, the corresponding array type.
func (k StorageKind) SQLType(list bool) string {
	base := map[StorageKind]string{
		StorageBoolean:    "boolean",
		StorageInt32:      "integer",
		StorageNumeric:    "numeric",
		StorageText:       "text",
		StorageBytes:      "bytea",
		StorageBigNumeric: "numeric",
	}[k]
	if base == "" {
		base = "text"
	}
	if list {
		return base + "[]"
	}
	return base
}

func storageKindFor(s schema.ScalarKind) StorageKind {
	switch s {
	case schema.ScalarBoolean:
		return StorageBoolean
	case schema.ScalarInt:
		return StorageInt32
	case schema.ScalarBigDecimal:
		return StorageNumeric
	case schema.ScalarBigInt:
		return StorageBigNumeric
	case schema.ScalarString, schema.ScalarEnum, schema.ScalarID:
		return StorageText
	case schema.ScalarBytes:
		return StorageBytes
	default:
		return StorageUnknown
	}
}

// Column is one scalar field projected onto a physical column.
type Column struct {
	Name     string
	Scalar   schema.ScalarKind
	Storage  StorageKind
	EnumName string
	Nullable bool
	List     bool
}

// IsText reports whether the column stores text that participates in the
// prefix-index rule (plain strings and enums; not list-of-text, which is
// compared by array containment instead).
func (c Column) IsText() bool {
	return c.Storage == StorageText && !c.List
}

// TSVectorColumn is a generated full-text search column aggregating a set of
// source fields per spec.md §3/§4.6.
type TSVectorColumn struct {
	Name         string
	Language     string
	Algorithm    schema.FullTextAlgorithm
	SourceFields []string
}

// Table is the compiled physical projection of one entity type.
type Table struct {
	EntityType string
	Name       string
	Columns    []Column
	TSVectors  []TSVectorColumn
}

// ColumnByName returns the column with the given name, if present.
func (t *Table) ColumnByName(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// TSVectorByName returns the tsvector column with the given full-text
// configuration name, if present on this table.
func (t *Table) TSVectorByName(name string) (TSVectorColumn, bool) {
	for _, c := range t.TSVectors {
		if c.Name == name {
			return c, true
		}
	}
	return TSVectorColumn{}, false
}

// Layout is the compiled physical projection of a schema.Document, bound to
// a namespace (database schema) and subgraph (spec.md §3).
type Layout struct {
	Namespace  string
	SubgraphID string
	PrefixSize int
	Tables     map[string]*Table
	Doc        *schema.Document
}

// TableFor returns the table for an entity type, or an UnknownTableError if
// the type isn't in the Layout (spec.md §7).
func (l *Layout) TableFor(entityType string) (*Table, error) {
	t, ok := l.Tables[entityType]
	if !ok {
		return nil, &UnknownTableError{Type: entityType}
	}
	return t, nil
}

// UnknownTableError mirrors the root package's error of the same name; kept
// local so layout has no import-cycle dependency on the root module for its
// own error signaling. store wraps this into the root velox.UnknownTableError
// at the public-API boundary.
type UnknownTableError struct{ Type string }

func (e *UnknownTableError) Error() string { return fmt.Sprintf("unknown table '%s'", e.Type) }

// Compile projects doc onto a Layout bound to namespace and subgraphID
// (spec.md §4.2). It validates reserved-identifier collisions, unknown
// scalar kinds, and case-insensitive field name collisions within a type.
func Compile(doc *schema.Document, namespace, subgraphID string) (*Layout, error) {
	l := &Layout{
		Namespace:  namespace,
		SubgraphID: subgraphID,
		PrefixSize: StringPrefixSize,
		Tables:     map[string]*Table{},
		Doc:        doc,
	}

	names := make([]string, 0, len(doc.Types))
	for n := range doc.Types {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		et := doc.Types[name]
		table, err := compileTable(et)
		if err != nil {
			return nil, err
		}
		l.Tables[name] = table
	}

	for _, ft := range doc.FullText {
		if err := attachFullText(l, ft); err != nil {
			return nil, err
		}
	}

	return l, nil
}

func compileTable(et *schema.EntityType) (*Table, error) {
	t := &Table{EntityType: et.Name, Name: strings.ToLower(et.Name)}
	seenFold := map[string]string{}
	for _, f := range et.Fields {
		if f.Name == "id" {
			continue // id is implicit: every table's primary key, not a Column
		}
		lower := strings.ToLower(f.Name)
		if orig, ok := seenFold[lower]; ok && orig != f.Name {
			return nil, &schema.DocumentError{Type: et.Name, Field: f.Name,
				Message: fmt.Sprintf("field name collides with %q by case alone", orig)}
		}
		seenFold[lower] = f.Name
		if isReservedColumnName(f.Name) {
			return nil, &schema.DocumentError{Type: et.Name, Field: f.Name,
				Message: "field name collides with a reserved identifier"}
		}
		storage := storageKindFor(f.Scalar)
		if storage == StorageUnknown {
			return nil, &schema.DocumentError{Type: et.Name, Field: f.Name,
				Message: fmt.Sprintf("unknown scalar kind %q", f.Scalar)}
		}
		t.Columns = append(t.Columns, Column{
			Name:     f.Name,
			Scalar:   f.Scalar,
			Storage:  storage,
			EnumName: f.EnumName,
			Nullable: f.Nullable,
			List:     f.List,
		})
	}
	return t, nil
}

func isReservedColumnName(name string) bool {
	return name == "id" || name == "block_range"
}

func attachFullText(l *Layout, ft schema.FullText) error {
	colName := strings.ToLower(ft.Name)
	for _, inc := range ft.Include {
		table, ok := l.Tables[inc.Entity]
		if !ok {
			return &UnknownTableError{Type: inc.Entity}
		}
		for _, fieldName := range inc.Fields {
			if _, ok := table.ColumnByName(fieldName); !ok && fieldName != "id" {
				return &schema.DocumentError{Type: inc.Entity, Field: fieldName,
					Message: fmt.Sprintf("full-text config %q includes unknown field", ft.Name)}
			}
		}
		if colName == "id" || colName == "block_range" {
			return &schema.DocumentError{Type: inc.Entity, Field: ft.Name,
				Message: "full-text config name collides with a reserved identifier"}
		}
		if _, ok := table.ColumnByName(ft.Name); ok {
			return &schema.DocumentError{Type: inc.Entity, Field: ft.Name,
				Message: "full-text config name collides with a declared field"}
		}
		if _, ok := table.TSVectorByName(ft.Name); ok {
			return &schema.DocumentError{Type: inc.Entity, Field: ft.Name,
				Message: "full-text config name collides with another full-text config"}
		}
		table.TSVectors = append(table.TSVectors, TSVectorColumn{
			Name:         ft.Name,
			Language:     ft.Language,
			Algorithm:    ft.Algorithm,
			SourceFields: inc.Fields,
		})
	}
	return nil
}

// CreateRelationalSchema compiles doc into a Layout and materializes it in
// the database as one table per entity type, a primary key on id, a
// LEFT(v,P) prefix index per text column, and a generated tsvector column
// plus GIN index per full-text configuration (spec.md §6).
func CreateRelationalSchema(ctx context.Context, conn dialect.ExecQuerier, namespace, subgraphID string, doc *schema.Document) (*Layout, error) {
	l, err := Compile(doc, namespace, subgraphID)
	if err != nil {
		return nil, err
	}
	for _, stmt := range l.DDL() {
		if err := conn.Exec(ctx, stmt, []any{}, nil); err != nil {
			return nil, fmt.Errorf("layout: create relational schema: %w", err)
		}
	}
	return l, nil
}

// DDL renders the bootstrap CREATE SCHEMA/TABLE/INDEX statements for the
// Layout, in dependency order (the schema, then each table followed by its
// own indexes, tables sorted by name). It is the
// direct-apply path CreateRelationalSchema uses; layout/migrate provides the
// Atlas-backed diff/ALTER path for schemas that already exist.
func (l *Layout) DDL() []string {
	var stmts []string
	if l.Namespace != "" {
		stmts = append(stmts, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quoteIdent(l.Namespace)))
	}

	names := make([]string, 0, len(l.Tables))
	for n := range l.Tables {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		t := l.Tables[n]
		stmts = append(stmts, l.tableDDL(t)...)
	}
	return stmts
}

// QualifiedTable returns name quoted and schema-qualified by the Layout's
// namespace (or unqualified if Namespace is empty). store and store/query
// use this to address a table outside of DDL generation.
func (l *Layout) QualifiedTable(name string) string {
	if l.Namespace == "" {
		return quoteIdent(name)
	}
	return quoteIdent(l.Namespace) + "." + quoteIdent(name)
}

func (l *Layout) qualifiedTable(name string) string { return l.QualifiedTable(name) }

func (l *Layout) tableDDL(t *Table) []string {
	var b strings.Builder
	qt := l.qualifiedTable(t.Name)
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", qt)
	b.WriteString("  id text NOT NULL,\n")
	for _, c := range t.Columns {
		fmt.Fprintf(&b, "  %s %s", quoteIdent(c.Name), c.Storage.SQLType(c.List))
		if !c.Nullable {
			b.WriteString(" NOT NULL")
		}
		b.WriteString(",\n")
	}
	for _, tv := range t.TSVectors {
		fmt.Fprintf(&b, "  %s tsvector,\n", quoteIdent(tv.Name))
	}
	b.WriteString("  block_range int8range NOT NULL,\n")
	b.WriteString("  PRIMARY KEY (id, block_range)\n)")

	stmts := []string{b.String()}
	for _, c := range t.Columns {
		if !c.IsText() {
			continue
		}
		idx := fmt.Sprintf("%s_%s_prefix_idx", t.Name, c.Name)
		stmts = append(stmts, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s (LEFT(%s, %d))",
			quoteIdent(idx), qt, quoteIdent(c.Name), l.prefixSize(),
		))
	}
	for _, tv := range t.TSVectors {
		idx := fmt.Sprintf("%s_%s_gin_idx", t.Name, tv.Name)
		stmts = append(stmts, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s USING GIN (%s)",
			quoteIdent(idx), qt, quoteIdent(tv.Name),
		))
	}
	return stmts
}

func (l *Layout) prefixSize() int {
	if l.PrefixSize == 0 {
		return StringPrefixSize
	}
	return l.PrefixSize
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
