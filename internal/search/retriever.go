package search

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/estctiger/estctiger/models"
)

// ErrNoDocuments reports that neither Elasticsearch nor the fallback corpus
// produced anything to ground a response on.
var ErrNoDocuments = errors.New("no documents available")

// indexMapping routes each query category to its indices. Unknown categories
// search the general set.
var indexMapping = map[string][]string{
	"financial":   {"estc-financial-data", "estc-earnings", "estc-revenue"},
	"stock":       {"estc-stock-data", "estc-prices", "estc-analyst-ratings"},
	"competitive": {"estc-competitive-analysis", "estc-market-comparison"},
	"rsu":         {"estc-rsu-data", "estc-equity-compensation"},
	"general":     {"estc-general-data", "estc-company-info", "estc-news"},
}

// Retriever fans a query out over the category's indices, hybrid when the
// cluster supports it, and falls back to the local corpus when the cluster
// is unreachable.
type Retriever struct {
	es       *ESClient
	fallback *FallbackCorpus
	logger   *zap.Logger
}

func NewRetriever(es *ESClient, fallback *FallbackCorpus, logger *zap.Logger) *Retriever {
	return &Retriever{es: es, fallback: fallback, logger: logger}
}

// Search retrieves documents for one classified query. Per-index failures
// are tolerated; a fully unreachable cluster degrades to the fallback
// corpus, and ErrNoDocuments is returned only when that too is empty.
func (r *Retriever) Search(ctx context.Context, queryType string, searchTerms []string, limit int) (*models.SearchResponse, error) {
	if r.es == nil || !r.es.Ping(ctx) {
		return r.searchFallback(queryType, searchTerms, limit)
	}

	indices, ok := indexMapping[queryType]
	if !ok {
		indices = indexMapping["general"]
	}

	method := models.SearchMethodLexical
	body := BuildLexicalQuery(searchTerms, limit)
	if r.es.SupportsRRF(ctx) {
		method = models.SearchMethodRRF
		body = BuildRRFQuery(searchTerms, limit)
	}

	var results []models.SearchResult
	total := 0
	failures := 0
	for _, index := range indices {
		resp, err := r.es.Search(ctx, index, body)
		if err != nil {
			r.logger.Warn("index search failed", zap.String("index", index), zap.Error(err))
			failures++
			continue
		}
		total += resp.Hits.Total.Value
		for _, hit := range resp.Hits.Hits {
			docType, _ := hit.Source["type"].(string)
			if docType == "" {
				docType = "unknown"
			}
			results = append(results, models.SearchResult{
				Index:      index,
				DocumentID: hit.ID,
				Score:      hit.Score,
				Source:     hit.Source,
				Type:       docType,
			})
		}
	}

	if failures == len(indices) {
		return r.searchFallback(queryType, searchTerms, limit)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	results = dedupe(results)
	if len(results) > limit {
		results = results[:limit]
	}

	return &models.SearchResponse{
		Results:         results,
		Total:           total,
		QueryType:       queryType,
		SearchTerms:     searchTerms,
		IndicesSearched: indices,
		Method:          method,
	}, nil
}

func (r *Retriever) searchFallback(queryType string, searchTerms []string, limit int) (*models.SearchResponse, error) {
	if r.fallback == nil || r.fallback.Empty() {
		return nil, ErrNoDocuments
	}
	r.logger.Warn("elasticsearch unreachable, searching fallback corpus")
	return r.fallback.Search(queryType, searchTerms, limit), nil
}

// dedupe drops repeat (index, id) pairs, keeping the first (highest-scored)
// occurrence. The same document can surface twice when it is indexed under
// an alias as well as its concrete index.
func dedupe(results []models.SearchResult) []models.SearchResult {
	type key struct{ index, id string }
	seen := make(map[key]bool, len(results))
	kept := results[:0]
	for _, res := range results {
		k := key{res.Index, res.DocumentID}
		if seen[k] {
			continue
		}
		seen[k] = true
		kept = append(kept, res)
	}
	return kept
}
