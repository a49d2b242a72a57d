package generator

import "strings"

// DataNeed says which market data, if any, a query calls for.
type DataNeed string

const (
	NeedNone       DataNeed = "none"
	NeedCurrent    DataNeed = "current"
	NeedHistorical DataNeed = "historical"
)

var historicalKeywords = []string{
	"last 5 years", "last five years", "historical", "over time",
	"years", "correlation", "trend", "pattern", "since",
	"past", "history", "over the", "timeline", "evolution",
}

var currentPriceKeywords = []string{
	"current price", "latest price", "price now", "stock price",
	"current value", "trading at", "price today", "today",
	"now", "current", "latest", "real time", "live",
	"market price", "share price",
}

var performanceKeywords = []string{"performance", "how is", "doing", "trend"}

var decisionKeywords = []string{"sell", "buy", "hold", "invest", "position", "shares", "rsu", "decision"}

// MarketDataNeed decides what to fetch from the market API for a query.
// Historical phrasing wins over current phrasing; a query that asks for
// neither fetches nothing.
func MarketDataNeed(query, primaryType string) DataNeed {
	queryLower := strings.ToLower(query)

	for _, kw := range historicalKeywords {
		if strings.Contains(queryLower, kw) {
			return NeedHistorical
		}
	}
	for _, kw := range currentPriceKeywords {
		if strings.Contains(queryLower, kw) {
			return NeedCurrent
		}
	}
	if primaryType == "stock" {
		return NeedCurrent
	}
	if strings.Contains(queryLower, "stock") {
		for _, kw := range performanceKeywords {
			if strings.Contains(queryLower, kw) {
				return NeedCurrent
			}
		}
	}
	for _, kw := range decisionKeywords {
		if strings.Contains(queryLower, kw) {
			return NeedCurrent
		}
	}
	return NeedNone
}
