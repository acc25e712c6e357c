package fulltext_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/K-Ho/ovm-graph-node/dialect/sql"
	"github.com/K-Ho/ovm-graph-node/fulltext"
	"github.com/K-Ho/ovm-graph-node/layout"
	"github.com/K-Ho/ovm-graph-node/schema"
)

func TestBuildExpr_Rank_EqualWeight(t *testing.T) {
	tv := layout.TSVectorColumn{
		Name:         "search",
		Language:     "english",
		Algorithm:    schema.AlgorithmRank,
		SourceFields: []string{"name", "description"},
	}
	expr := fulltext.BuildExpr(tv)
	assert.Contains(t, expr, "setweight(to_tsvector('english', coalesce(\"name\", '')), 'A')")
	assert.Contains(t, expr, "setweight(to_tsvector('english', coalesce(\"description\", '')), 'A')")
}

func TestBuildExpr_ProximityRank_DecreasingWeight(t *testing.T) {
	tv := layout.TSVectorColumn{
		Name:         "search",
		Language:     "english",
		Algorithm:    schema.AlgorithmProximityRank,
		SourceFields: []string{"title", "body"},
	}
	expr := fulltext.BuildExpr(tv)
	assert.Contains(t, expr, "'A')")
	assert.Contains(t, expr, "'B')")
}

func TestBuildExpr_DefaultsLanguage(t *testing.T) {
	tv := layout.TSVectorColumn{Name: "search", SourceFields: []string{"name"}}
	expr := fulltext.BuildExpr(tv)
	assert.Contains(t, expr, "'english'")
}

func TestMatchPredicate_ForwardsQueryVerbatim(t *testing.T) {
	tv := layout.TSVectorColumn{Name: "search", Language: "english"}
	pred := fulltext.MatchPredicate(tv, "cat:* & fuzzy")

	sel := sql.Table("x").Where(pred)
	q, args := sel.Query()
	assert.Contains(t, q, "@@ to_tsquery(")
	assert.Equal(t, []any{"english", "cat:* & fuzzy"}, args)
}
