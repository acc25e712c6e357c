package layout_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/K-Ho/ovm-graph-node/layout"
	"github.com/K-Ho/ovm-graph-node/schema"
)

func petDoc() *schema.Document {
	return &schema.Document{
		Types: map[string]*schema.EntityType{
			"Cat": {
				Name: "Cat",
				Fields: []schema.Field{
					{Name: "id", Scalar: schema.ScalarID},
					{Name: "name", Scalar: schema.ScalarString},
					{Name: "age", Scalar: schema.ScalarInt, Nullable: true},
					{Name: "tags", Scalar: schema.ScalarString, List: true},
				},
			},
			"User": {
				Name: "User",
				Fields: []schema.Field{
					{Name: "id", Scalar: schema.ScalarID},
					{Name: "name", Scalar: schema.ScalarString},
					{Name: "email", Scalar: schema.ScalarString, Nullable: true},
				},
			},
		},
		Interfaces: map[string]*schema.Interface{},
		Enums:      map[string]*schema.Enum{},
	}
}

func TestCompile_ProjectsColumns(t *testing.T) {
	l, err := layout.Compile(petDoc(), "sgd1", "Qm123")
	require.NoError(t, err)

	tbl, err := l.TableFor("Cat")
	require.NoError(t, err)
	assert.Equal(t, "cat", tbl.Name)

	name, ok := tbl.ColumnByName("name")
	require.True(t, ok)
	assert.Equal(t, layout.StorageText, name.Storage)
	assert.True(t, name.IsText())

	age, ok := tbl.ColumnByName("age")
	require.True(t, ok)
	assert.True(t, age.Nullable)
	assert.Equal(t, layout.StorageInt32, age.Storage)

	tags, ok := tbl.ColumnByName("tags")
	require.True(t, ok)
	assert.True(t, tags.List)
	assert.False(t, tags.IsText(), "list-of-text is array containment, not prefix-indexed")

	_, ok = tbl.ColumnByName("id")
	assert.False(t, ok, "id is implicit, not a projected column")
}

func TestCompile_UnknownTable(t *testing.T) {
	l, err := layout.Compile(petDoc(), "sgd1", "Qm123")
	require.NoError(t, err)

	_, err = l.TableFor("Chair")
	require.Error(t, err)
	assert.Equal(t, `unknown table 'Chair'`, err.Error())
}

func TestCompile_CaseFoldCollision(t *testing.T) {
	doc := &schema.Document{
		Types: map[string]*schema.EntityType{
			"Thing": {
				Name: "Thing",
				Fields: []schema.Field{
					{Name: "id", Scalar: schema.ScalarID},
					{Name: "Name", Scalar: schema.ScalarString},
					{Name: "name", Scalar: schema.ScalarString},
				},
			},
		},
	}
	_, err := layout.Compile(doc, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collides")
}

func TestCompile_ReservedColumnName(t *testing.T) {
	doc := &schema.Document{
		Types: map[string]*schema.EntityType{
			"Thing": {
				Name: "Thing",
				Fields: []schema.Field{
					{Name: "id", Scalar: schema.ScalarID},
					{Name: "block_range", Scalar: schema.ScalarInt},
				},
			},
		},
	}
	_, err := layout.Compile(doc, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved identifier")
}

func TestCompile_FullText(t *testing.T) {
	doc := petDoc()
	doc.FullText = []schema.FullText{
		{
			Name:     "userSearch",
			Language: "english",
			Include: []schema.FullTextInclude{
				{Entity: "User", Fields: []string{"name", "email"}},
			},
		},
	}

	l, err := layout.Compile(doc, "", "")
	require.NoError(t, err)

	tbl, err := l.TableFor("User")
	require.NoError(t, err)
	tv, ok := tbl.TSVectorByName("userSearch")
	require.True(t, ok)
	assert.Equal(t, []string{"name", "email"}, tv.SourceFields)
}

func TestCompile_FullTextUnknownEntity(t *testing.T) {
	doc := petDoc()
	doc.FullText = []schema.FullText{
		{Name: "search", Include: []schema.FullTextInclude{{Entity: "Chair", Fields: []string{"name"}}}},
	}
	_, err := layout.Compile(doc, "", "")
	require.Error(t, err)
	assert.Equal(t, `unknown table 'Chair'`, err.Error())
}

func TestDDL_BootstrapStatements(t *testing.T) {
	l, err := layout.Compile(petDoc(), "sgd1", "Qm123")
	require.NoError(t, err)

	stmts := l.DDL()
	require.NotEmpty(t, stmts)
	assert.Equal(t, `CREATE SCHEMA IF NOT EXISTS "sgd1"`, stmts[0])

	joined := stmts[0]
	for _, s := range stmts {
		joined += "\n" + s
	}
	assert.Contains(t, joined, `CREATE TABLE IF NOT EXISTS "sgd1"."cat"`)
	assert.Contains(t, joined, "block_range int8range NOT NULL")
	assert.Contains(t, joined, "PRIMARY KEY (id, block_range)")
	assert.Contains(t, joined, `LEFT("name", 256)`)
}

func TestDDL_NoNamespace(t *testing.T) {
	l, err := layout.Compile(petDoc(), "", "")
	require.NoError(t, err)

	for _, s := range l.DDL() {
		assert.NotContains(t, s, "CREATE SCHEMA")
	}
}
