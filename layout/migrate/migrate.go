// Package migrate renders a compiled layout.Layout into an Atlas schema
// description and diffs it against a live database, producing the ALTER
// statements needed to bring an already-existing relational schema up to
// date with a new subgraph deployment (spec.md §4.2, "existing schema
// evolves"). layout.CreateRelationalSchema (layout.DDL) covers the simpler
// bootstrap case of a namespace that doesn't exist yet; this package is for
// the case that does.
package migrate

import (
	"context"
	"fmt"
	"sort"

	atlasmigrate "ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/postgres"
	atlasschema "ariga.io/atlas/sql/schema"

	"github.com/K-Ho/ovm-graph-node/layout"
)

// ExecQuerier is the Atlas-side connection interface Open accepts; a
// *sql.DB or *sql.Tx satisfies it, the same connection the rest of the
// store opens through dialect/sql.Open.
type ExecQuerier = atlasschema.ExecQuerier

// BuildSchema renders l as an Atlas *schema.Schema: one *schema.Table per
// entity type, with Postgres-native column types (matching
// layout.StorageKind.SQLType), a tsvector column per full-text
// configuration, and a primary key on (id, block_range).
func BuildSchema(l *layout.Layout) *atlasschema.Schema {
	name := l.Namespace
	if name == "" {
		name = "public"
	}
	s := atlasschema.New(name)

	names := make([]string, 0, len(l.Tables))
	for n := range l.Tables {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		s.AddTables(buildTable(l.Tables[n]))
	}
	return s
}

func buildTable(t *layout.Table) *atlasschema.Table {
	tbl := atlasschema.NewTable(t.Name)

	id := atlasschema.NewColumn("id").SetType(&atlasschema.StringType{T: "text"})
	tbl.AddColumns(id)

	for _, c := range t.Columns {
		col := atlasschema.NewColumn(c.Name).
			SetType(columnType(c)).
			SetNull(c.Nullable)
		tbl.AddColumns(col)
	}

	for _, tv := range t.TSVectors {
		tbl.AddColumns(atlasschema.NewColumn(tv.Name).
			SetType(&atlasschema.StringType{T: "tsvector"}).
			SetNull(true))
	}

	blockRange := atlasschema.NewColumn("block_range").
		SetType(&atlasschema.StringType{T: "int8range"})
	tbl.AddColumns(blockRange)
	tbl.SetPrimaryKey(atlasschema.NewPrimaryKey(id, blockRange))

	for _, c := range t.Columns {
		if !c.IsText() {
			continue
		}
		col, _ := tbl.Column(c.Name)
		tbl.AddIndexes(atlasschema.NewIndex(t.Name + "_" + c.Name + "_prefix_idx").
			AddColumns(col))
	}
	for _, tv := range t.TSVectors {
		col, _ := tbl.Column(tv.Name)
		tbl.AddIndexes(atlasschema.NewIndex(t.Name + "_" + tv.Name + "_gin_idx").
			AddColumns(col))
	}

	return tbl
}

func columnType(c layout.Column) atlasschema.Type {
	raw := c.Storage.SQLType(c.List)
	switch c.Storage {
	case layout.StorageBoolean:
		return &atlasschema.BoolType{T: raw}
	case layout.StorageInt32:
		return &atlasschema.IntegerType{T: raw}
	case layout.StorageNumeric, layout.StorageBigNumeric:
		return &atlasschema.DecimalType{T: raw}
	case layout.StorageBytes:
		return &atlasschema.BinaryType{T: raw}
	default:
		return &atlasschema.StringType{T: raw}
	}
}

// Driver is the Atlas driver surface Diff/Apply need: schema inspection,
// diffing, and change application, matching migrate.Driver from
// ariga.io/atlas/sql/migrate.
type Driver interface {
	atlasschema.Differ
	atlasschema.Inspector
	atlasmigrate.PlanApplier
	ExecQuerier
}

// Open wraps a live Postgres connection as an Atlas migration Driver.
func Open(db atlasschema.ExecQuerier) (Driver, error) {
	drv, err := postgres.Open(db)
	if err != nil {
		return nil, fmt.Errorf("layout/migrate: open: %w", err)
	}
	return drv, nil
}

// Diff inspects the current schema named l.Namespace (or "public") over drv
// and returns the Atlas changeset needed to reach l's desired shape. An
// empty result means the live schema already matches.
func Diff(ctx context.Context, drv Driver, l *layout.Layout) ([]atlasschema.Change, error) {
	name := l.Namespace
	if name == "" {
		name = "public"
	}
	current, err := drv.InspectSchema(ctx, name, nil)
	if err != nil {
		return nil, fmt.Errorf("layout/migrate: inspect %q: %w", name, err)
	}
	desired := BuildSchema(l)
	changes, err := drv.SchemaDiff(current, desired)
	if err != nil {
		return nil, fmt.Errorf("layout/migrate: diff %q: %w", name, err)
	}
	return changes, nil
}

// Apply executes changes against drv, bringing the live schema to the
// desired state computed by Diff.
func Apply(ctx context.Context, drv Driver, changes []atlasschema.Change) error {
	if len(changes) == 0 {
		return nil
	}
	if err := drv.ApplyChanges(ctx, changes); err != nil {
		return fmt.Errorf("layout/migrate: apply: %w", err)
	}
	return nil
}

// Sync is the common path: diff l against the live schema over drv and
// apply whatever changes are needed. It is the counterpart to
// layout.CreateRelationalSchema for namespaces that already exist.
func Sync(ctx context.Context, drv Driver, l *layout.Layout) error {
	changes, err := Diff(ctx, drv, l)
	if err != nil {
		return err
	}
	return Apply(ctx, drv, changes)
}
