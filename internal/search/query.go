package search

import "strings"

// Index and field names shared by the live indices and the reindexer.
const (
	sparseField = "ml.tokens"
	inferenceID = ".elser-2-elasticsearch"

	rrfRankWindowSize = 100
	rrfRankConstant   = 60
)

// lexicalQuery is the document-matching core shared by both search modes:
// fuzzy multi_match over the text fields with a boosted title, OR'd with an
// exact keyword-terms match.
func lexicalQuery(terms []string) map[string]any {
	joined := strings.Join(terms, " ")
	return map[string]any{
		"bool": map[string]any{
			"should": []any{
				map[string]any{
					"multi_match": map[string]any{
						"query":     joined,
						"fields":    []string{"title^2", "content", "description", "summary"},
						"type":      "best_fields",
						"fuzziness": "AUTO",
					},
				},
				map[string]any{
					"terms": map[string]any{
						"keywords": terms,
					},
				},
			},
			"minimum_should_match": 1,
		},
	}
}

// sourceExcludes keeps bulky raw fields out of the hit payloads.
var sourceExcludes = []string{"raw_data", "full_text"}

// BuildLexicalQuery builds the plain BM25 request: score-ordered with a
// date tiebreak, documents without a date sorting last.
func BuildLexicalQuery(terms []string, limit int) map[string]any {
	return map[string]any{
		"query": lexicalQuery(terms),
		"size":  limit,
		"sort": []any{
			map[string]any{"_score": map[string]any{"order": "desc"}},
			map[string]any{"date": map[string]any{"order": "desc", "missing": "_last"}},
		},
		"_source": map[string]any{
			"excludes": sourceExcludes,
		},
	}
}

// BuildRRFQuery builds the hybrid request: the lexical query and an ELSER
// sparse_vector query fused with reciprocal rank fusion. The rrf retriever
// owns ordering, so no sort clause is allowed here.
func BuildRRFQuery(terms []string, limit int) map[string]any {
	joined := strings.Join(terms, " ")
	return map[string]any{
		"retriever": map[string]any{
			"rrf": map[string]any{
				"retrievers": []any{
					map[string]any{
						"standard": map[string]any{
							"query": lexicalQuery(terms),
						},
					},
					map[string]any{
						"standard": map[string]any{
							"query": map[string]any{
								"sparse_vector": map[string]any{
									"field":        sparseField,
									"inference_id": inferenceID,
									"query":        joined,
								},
							},
						},
					},
				},
				"rank_window_size": rrfRankWindowSize,
				"rank_constant":    rrfRankConstant,
			},
		},
		"size": limit,
		"_source": map[string]any{
			"excludes": sourceExcludes,
		},
	}
}
