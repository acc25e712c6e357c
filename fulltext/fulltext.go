// Package fulltext owns the write-side tsvector construction and the
// query-side tsquery matching for the full-text configurations described in
// a schema.Document (spec.md §4.6, §9 "Full-text configuration belongs to
// the Layout").
package fulltext

import (
	"fmt"
	"strings"

	"github.com/K-Ho/ovm-graph-node/dialect/sql"
	"github.com/K-Ho/ovm-graph-node/layout"
	"github.com/K-Ho/ovm-graph-node/schema"
)

// weightFor assigns a Postgres tsvector weight label ('A'..'D') to the nth
// source field. AlgorithmRank treats every field equally important;
// AlgorithmProximityRank ranks earlier fields above later ones, matching
// the field declaration order in the @fulltext include list.
func weightFor(alg schema.FullTextAlgorithm, i int) byte {
	if alg == schema.AlgorithmRank {
		return 'A'
	}
	labels := []byte{'A', 'B', 'C', 'D'}
	if i >= len(labels) {
		return labels[len(labels)-1]
	}
	return labels[i]
}

// BuildExpr renders the SQL expression that recomputes tv's tsvector value
// from a row's source columns, for use in INSERT/UPDATE statements.
func BuildExpr(tv layout.TSVectorColumn) string {
	lang := tv.Language
	if lang == "" {
		lang = "english"
	}
	parts := make([]string, 0, len(tv.SourceFields))
	for i, f := range tv.SourceFields {
		w := weightFor(tv.Algorithm, i)
		parts = append(parts, fmt.Sprintf(
			"setweight(to_tsvector(%s, coalesce(%s, '')), %s)",
			quoteLiteral(lang), quoteIdent(f), quoteLiteral(string(w)),
		))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("to_tsvector(%s, '')", quoteLiteral(lang))
	}
	return strings.Join(parts, " || ")
}

// MatchPredicate builds "tsvector_column @@ to_tsquery(language, query)".
// query is forwarded verbatim to to_tsquery, including any ":*" prefix-match
// or "&"/"|" boolean operators the caller supplied (spec.md §4.6: "forwarding
// the user query to the underlying search engine").
func MatchPredicate(tv layout.TSVectorColumn, query string) *sql.Predicate {
	lang := tv.Language
	if lang == "" {
		lang = "english"
	}
	p := sql.Predicate(func(b *sql.Builder) {
		b.Ident(tv.Name).WriteString(" @@ to_tsquery(").Arg(lang).WriteString(", ").Arg(query).WriteString(")")
	})
	return &p
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
