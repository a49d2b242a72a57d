package search

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/estctiger/estctiger/models"
)

// diversityCap bounds the first selection pass so the top results span
// distinct indices before score order fills the rest.
const diversityCap = 6

// docTypeWeight scales term-presence scores per index so dense indices do
// not crowd everything else out of the top results.
var docTypeWeight = map[string]float64{
	"estc-financial-data":      1.0,
	"estc-stock-data":          1.0,
	"estc-competitive-data":    0.8,
	"estc-product-milestones":  0.6,
	"estc-partnership-data":    0.7,
	"estc-acquisition-history": 0.5,
	"estc-analyst-ratings":     1.0,
	"estc-rsu-data":            0.9,
	"estc-news":                0.6,
	"estc-earnings":            1.0,
	"estc-revenue":             1.0,
	"estc-prices":              1.0,
	"estc-general-data":        0.8,
	"estc-company-info":        0.7,
}

const defaultDocTypeWeight = 0.5

// categoryTerms earns a flat per-term bonus when the query category's
// domain vocabulary appears in a document.
var categoryTerms = map[string][]string{
	"financial":   {"revenue", "earnings", "financial", "growth", "profit", "margin"},
	"stock":       {"stock", "price", "analyst", "rating", "target", "valuation"},
	"competitive": {"datadog", "splunk", "competitor", "competitive", "market share"},
	"rsu":         {"rsu", "equity", "compensation", "vesting", "shares"},
}

const categoryTermBonus = 0.3

type fallbackDoc struct {
	index string
	id    string
	// text is every string field lowercased and concatenated, the haystack
	// for term scoring.
	text   string
	source map[string]any
}

// FallbackCorpus is the bundled document set searched when Elasticsearch is
// down. It is loaded once at startup and read-only afterwards.
type FallbackCorpus struct {
	docs []fallbackDoc
}

// LoadFallbackCorpus reads an Elasticsearch bulk NDJSON file: alternating
// index-action and document lines. Malformed pairs are skipped.
func LoadFallbackCorpus(path string, logger *zap.Logger) (*FallbackCorpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fallback corpus: %w", err)
	}
	defer f.Close()

	var docs []fallbackDoc
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	var action struct {
		Index struct {
			Index string `json:"_index"`
			ID    string `json:"_id"`
		} `json:"index"`
	}
	n := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		n++
		if n%2 == 1 {
			action.Index.Index = ""
			action.Index.ID = ""
			if err := json.Unmarshal([]byte(line), &action); err != nil {
				n-- // resync: treat the next line as an action line
			}
			continue
		}
		var source map[string]any
		if err := json.Unmarshal([]byte(line), &source); err != nil {
			continue
		}
		doc := fallbackDoc{
			index:  action.Index.Index,
			id:     action.Index.ID,
			text:   searchableText(source),
			source: source,
		}
		if doc.index == "" {
			doc.index = "unknown"
		}
		if doc.id == "" {
			doc.id = fmt.Sprintf("doc_%d", len(docs))
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read fallback corpus: %w", err)
	}

	logger.Info("loaded fallback corpus", zap.String("path", path), zap.Int("documents", len(docs)))
	return &FallbackCorpus{docs: docs}, nil
}

func (c *FallbackCorpus) Empty() bool {
	return c == nil || len(c.docs) == 0
}

// Search scores every document by search-term presence, weighted per index
// and topped up with a category vocabulary bonus, then selects with an
// index-diversity first pass before filling by score.
func (c *FallbackCorpus) Search(queryType string, searchTerms []string, limit int) *models.SearchResponse {
	var scored []models.SearchResult
	for _, doc := range c.docs {
		base := 0.0
		for _, term := range searchTerms {
			if strings.Contains(doc.text, strings.ToLower(term)) {
				base++
			}
		}

		weight, ok := docTypeWeight[doc.index]
		if !ok {
			weight = defaultDocTypeWeight
		}
		score := base * weight

		if queryType != "general" {
			for _, term := range categoryTerms[queryType] {
				if strings.Contains(doc.text, term) {
					score += categoryTermBonus
				}
			}
		}

		if score <= 0 {
			continue
		}
		docType, _ := doc.source["type"].(string)
		if docType == "" {
			docType = "unknown"
		}
		scored = append(scored, models.SearchResult{
			Index:      doc.index,
			DocumentID: doc.id,
			Score:      score,
			Source:     doc.source,
			Type:       docType,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	selected := diversify(scored, limit)

	return &models.SearchResponse{
		Results:         selected,
		Total:           len(selected),
		QueryType:       queryType,
		SearchTerms:     searchTerms,
		IndicesSearched: []string{"fallback_data"},
		Method:          models.SearchMethodFallback,
	}
}

// diversify takes the best hit from each distinct index first, up to
// min(limit, diversityCap), then fills the remaining slots in score order.
func diversify(scored []models.SearchResult, limit int) []models.SearchResult {
	firstPass := limit
	if firstPass > diversityCap {
		firstPass = diversityCap
	}

	var selected []models.SearchResult
	picked := make(map[int]bool)
	seenIndices := make(map[string]bool)
	for i, res := range scored {
		if seenIndices[res.Index] {
			continue
		}
		seenIndices[res.Index] = true
		picked[i] = true
		selected = append(selected, res)
		if len(selected) >= firstPass {
			break
		}
	}
	for i, res := range scored {
		if len(selected) >= limit {
			break
		}
		if picked[i] {
			continue
		}
		picked[i] = true
		selected = append(selected, res)
	}
	return selected
}

// searchableText flattens a document's string fields into one lowercase
// haystack, mirroring how the live indices analyze their text fields.
func searchableText(source map[string]any) string {
	var b strings.Builder
	for field, value := range source {
		switch v := value.(type) {
		case string:
			b.WriteString(strings.ToLower(v))
			b.WriteByte(' ')
		default:
			if field == "document_type" || field == "notes" || field == "status" {
				b.WriteString(strings.ToLower(fmt.Sprint(v)))
				b.WriteByte(' ')
			}
		}
	}
	return b.String()
}
