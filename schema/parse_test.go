package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/K-Ho/ovm-graph-node/schema"
)

// thingsGQL mirrors the fixture schema used to test the relational
// projection in the original system (Cat/Dog/Ferret implement Pet, User
// carries a fulltext index over name+email).
const thingsGQL = `
type _Schema_ @fulltext(
	name: "userSearch"
	language: "en"
	algorithm: "rank"
	include: [
		{
			entity: "User",
			fields: [
				{ name: "name" },
				{ name: "email" },
			]
		}
	]
)

enum Color { yellow, red, BLUE }

interface Pet {
	id: ID!
	name: String!
}

type Cat implements Pet @entity {
	id: ID!
	name: String!
}

type Dog implements Pet @entity {
	id: ID!
	name: String!
}

type Ferret implements Pet @entity {
	id: ID!
	name: String!
}

type User @entity {
	id: ID!
	name: String!
	email: String!
	age: Int!
	weight: BigDecimal!
	seconds_age: BigInt!
	coffee: Boolean!
	favorite_color: Color
	drinks: [String!]
	bin_name: Bytes!
}
`

func TestParseDocumentEntityTypesAndFields(t *testing.T) {
	doc, err := schema.ParseDocument(thingsGQL)
	require.NoError(t, err)

	require.Contains(t, doc.Types, "User")
	user := doc.Types["User"]

	age, ok := user.FieldByName("age")
	require.True(t, ok)
	assert.Equal(t, schema.ScalarInt, age.Scalar)
	assert.False(t, age.Nullable)

	color, ok := user.FieldByName("favorite_color")
	require.True(t, ok)
	assert.Equal(t, schema.ScalarEnum, color.Scalar)
	assert.Equal(t, "Color", color.EnumName)
	assert.True(t, color.Nullable)

	drinks, ok := user.FieldByName("drinks")
	require.True(t, ok)
	assert.True(t, drinks.List)
	assert.Equal(t, schema.ScalarString, drinks.Scalar)

	weight, ok := user.FieldByName("weight")
	require.True(t, ok)
	assert.Equal(t, schema.ScalarBigDecimal, weight.Scalar)
}

func TestParseDocumentInterfaceIdentityGroup(t *testing.T) {
	doc, err := schema.ParseDocument(thingsGQL)
	require.NoError(t, err)

	require.Contains(t, doc.Interfaces, "Pet")
	assert.ElementsMatch(t, []string{"Cat", "Dog", "Ferret"}, doc.Interfaces["Pet"].Implementers)
	assert.ElementsMatch(t, []string{"Cat", "Dog", "Ferret"}, doc.IdentityGroup("Cat"))
}

func TestParseDocumentEnum(t *testing.T) {
	doc, err := schema.ParseDocument(thingsGQL)
	require.NoError(t, err)

	require.Contains(t, doc.Enums, "Color")
	assert.True(t, doc.Enums["Color"].Has("yellow"))
	assert.False(t, doc.Enums["Color"].Has("purple"))
}

func TestParseDocumentFullText(t *testing.T) {
	doc, err := schema.ParseDocument(thingsGQL)
	require.NoError(t, err)

	ft, ok := doc.ResolveFullText("userSearch")
	require.True(t, ok)
	assert.Equal(t, schema.AlgorithmRank, ft.Algorithm)
	require.Len(t, ft.Include, 1)
	assert.Equal(t, "User", ft.Include[0].Entity)
	assert.ElementsMatch(t, []string{"name", "email"}, ft.Include[0].Fields)
}

func TestParseDocumentRejectsUnknownScalar(t *testing.T) {
	_, err := schema.ParseDocument(`
		type Widget @entity {
			id: ID!
			gizmo: Gizmo!
		}
	`)
	assert.Error(t, err)
}

func TestParseDocumentRejectsCaseOnlyFieldCollision(t *testing.T) {
	_, err := schema.ParseDocument(`
		type Widget @entity {
			id: ID!
			Name: String!
			name: String!
		}
	`)
	assert.Error(t, err)
}

func TestParseDocumentRejectsReservedFieldName(t *testing.T) {
	_, err := schema.ParseDocument(`
		type Widget @entity {
			id: ID!
			block_range: String!
		}
	`)
	assert.Error(t, err)
}

func TestParseDocumentRejectsUnknownFullTextAlgorithm(t *testing.T) {
	_, err := schema.ParseDocument(`
		type _Schema_ @fulltext(
			name: "userSearch"
			language: "en"
			algorithm: "proximtyRank"
			include: [
				{
					entity: "User",
					fields: [ { name: "name" } ]
				}
			]
		)

		type User @entity {
			id: ID!
			name: String!
		}
	`)
	assert.Error(t, err)
}
