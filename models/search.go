package models

// QueryIntent is the result of classifying a user query into one of the
// fixed data categories. Derived fresh per query, never persisted.
type QueryIntent struct {
	PrimaryType string         `json:"primary_type"`
	Scores      map[string]int `json:"scores"`
	SearchTerms []string       `json:"search_terms"`
}

// Search methods reported by the retriever.
const (
	SearchMethodRRF      = "rrf"
	SearchMethodLexical  = "lexical"
	SearchMethodFallback = "fallback"
)

// SearchResult is a single ranked hit from the document index.
type SearchResult struct {
	Index      string         `json:"index"`
	DocumentID string         `json:"document_id"`
	Score      float64        `json:"score"`
	Source     map[string]any `json:"source"`
	Type       string         `json:"type"`
}

// SearchResponse is the aggregate result of one retrieval pass, sorted by
// descending score and deduplicated by (index, document id).
type SearchResponse struct {
	Results         []SearchResult `json:"results"`
	Total           int            `json:"total"`
	QueryType       string         `json:"query_type"`
	SearchTerms     []string       `json:"search_terms"`
	IndicesSearched []string       `json:"indices_searched"`
	Method          string         `json:"method"`
}
