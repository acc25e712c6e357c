package migrate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/K-Ho/ovm-graph-node/layout"
	"github.com/K-Ho/ovm-graph-node/layout/migrate"
	"github.com/K-Ho/ovm-graph-node/schema"
)

func doc() *schema.Document {
	return &schema.Document{
		Types: map[string]*schema.EntityType{
			"Cat": {
				Name: "Cat",
				Fields: []schema.Field{
					{Name: "id", Scalar: schema.ScalarID},
					{Name: "name", Scalar: schema.ScalarString},
					{Name: "age", Scalar: schema.ScalarInt, Nullable: true},
				},
			},
		},
	}
}

func TestBuildSchema_MatchesLayout(t *testing.T) {
	l, err := layout.Compile(doc(), "sgd1", "Qm123")
	require.NoError(t, err)

	s := migrate.BuildSchema(l)
	require.Len(t, s.Tables, 1)

	tbl := s.Tables[0]
	assert.Equal(t, "cat", tbl.Name)

	id, ok := tbl.Column("id")
	require.True(t, ok)
	require.NotNil(t, tbl.PrimaryKey)
	assert.Contains(t, tbl.PrimaryKey.Parts[0].C.Name, id.Name)

	name, ok := tbl.Column("name")
	require.True(t, ok)
	assert.False(t, name.Type.Null)

	age, ok := tbl.Column("age")
	require.True(t, ok)
	assert.True(t, age.Type.Null)

	_, ok = tbl.Column("block_range")
	assert.True(t, ok)
}

func TestBuildSchema_PrefixIndexes(t *testing.T) {
	l, err := layout.Compile(doc(), "", "")
	require.NoError(t, err)

	s := migrate.BuildSchema(l)
	tbl := s.Tables[0]

	var found bool
	for _, idx := range tbl.Indexes {
		if idx.Name == "cat_name_prefix_idx" {
			found = true
		}
	}
	assert.True(t, found, "expected a prefix index over the text column name")
}

func TestBuildSchema_DefaultsToPublicSchema(t *testing.T) {
	l, err := layout.Compile(doc(), "", "")
	require.NoError(t, err)

	s := migrate.BuildSchema(l)
	assert.Equal(t, "public", s.Name)
}
