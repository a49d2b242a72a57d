// Package intent maps free-text queries onto the fixed data categories the
// retriever knows how to search. Matching is deliberately plain substring
// counting; the keyword lists are part of the search contract and must not
// be "improved".
package intent

import (
	"strings"

	"github.com/estctiger/estctiger/models"
)

// Query categories, in tie-break order.
const (
	CategoryFinancial   = "financial"
	CategoryStock       = "stock"
	CategoryCompetitive = "competitive"
	CategoryRSU         = "rsu"
	CategoryGeneral     = "general"
)

var categoryKeywords = map[string][]string{
	CategoryFinancial:   {"revenue", "earnings", "profit", "margin", "growth", "financial", "income", "sales"},
	CategoryStock:       {"stock", "price", "analyst", "rating", "target", "valuation", "market cap"},
	CategoryCompetitive: {"datadog", "splunk", "competitor", "competitive", "market share", "comparison"},
	CategoryRSU:         {"rsu", "equity", "compensation", "vesting", "stock options", "shares"},
}

// categoryOrder fixes the argmax tie-break so classification stays
// deterministic.
var categoryOrder = []string{CategoryFinancial, CategoryStock, CategoryCompetitive, CategoryRSU}

var stopWords = map[string]bool{
	"what": true, "how": true, "when": true, "where": true, "why": true,
	"the": true, "and": true, "or": true, "but": true,
}

// Classifier scores queries against the fixed keyword sets and extracts
// search terms, always appending the tracked ticker and company name.
type Classifier struct {
	symbol      string
	companyName string
}

func NewClassifier(symbol, companyName string) *Classifier {
	return &Classifier{
		symbol:      strings.ToLower(symbol),
		companyName: strings.ToLower(companyName),
	}
}

// Classify derives the query intent. The primary category is the
// highest-scoring keyword set, or "general" when nothing matches.
func (c *Classifier) Classify(query string) models.QueryIntent {
	queryLower := strings.ToLower(query)

	scores := make(map[string]int, len(categoryOrder))
	for _, category := range categoryOrder {
		n := 0
		for _, keyword := range categoryKeywords[category] {
			if strings.Contains(queryLower, keyword) {
				n++
			}
		}
		scores[category] = n
	}

	primary := CategoryGeneral
	best := 0
	for _, category := range categoryOrder {
		if scores[category] > best {
			best = scores[category]
			primary = category
		}
	}

	return models.QueryIntent{
		PrimaryType: primary,
		Scores:      scores,
		SearchTerms: c.extractTerms(queryLower),
	}
}

// extractTerms keeps whitespace tokens longer than 3 characters that are
// not stop words, deduplicated, then appends the ticker and company name.
func (c *Classifier) extractTerms(queryLower string) []string {
	seen := make(map[string]bool)
	var terms []string
	add := func(term string) {
		if term == "" || seen[term] {
			return
		}
		seen[term] = true
		terms = append(terms, term)
	}

	for _, word := range strings.Fields(queryLower) {
		if len(word) > 3 && !stopWords[word] {
			add(word)
		}
	}
	add(c.symbol)
	add(c.companyName)

	return terms
}
