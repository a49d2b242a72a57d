package generator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/estctiger/estctiger/internal/intent"
	"github.com/estctiger/estctiger/internal/memory"
	"github.com/estctiger/estctiger/models"
)

type stubSearcher struct {
	resp *models.SearchResponse
	err  error
}

func (s *stubSearcher) Search(ctx context.Context, queryType string, terms []string, limit int) (*models.SearchResponse, error) {
	return s.resp, s.err
}

type stubMarket struct {
	available bool
	summary   *models.StockSummary
	series    *models.CandleSeries

	summaryCalls int
	seriesCalls  int
}

func (s *stubMarket) IsAvailable() bool { return s.available }

func (s *stubMarket) StockSummary(ctx context.Context) (*models.StockSummary, error) {
	s.summaryCalls++
	return s.summary, nil
}

func (s *stubMarket) ExtendedHistorical(ctx context.Context, years int) (*models.CandleSeries, error) {
	s.seriesCalls++
	return s.series, nil
}

type stubCompleter struct {
	lastSystem string
	lastUser   string
	response   string
	err        error
}

func (s *stubCompleter) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	s.lastSystem = system
	s.lastUser = user
	return s.response, s.err
}

func searchResponse() *models.SearchResponse {
	return &models.SearchResponse{
		Results: []models.SearchResult{
			{
				Index:      "estc-financial-data",
				DocumentID: "doc-revenue-2024",
				Score:      4.2,
				Type:       "financial_report",
				Source: map[string]any{
					"title":   "FY24 revenue",
					"content": "Revenue reached $1.48B",
					"revenue": "1.48B",
				},
			},
		},
		Total:           1,
		QueryType:       "financial",
		SearchTerms:     []string{"revenue", "estc", "elastic"},
		IndicesSearched: []string{"estc-financial-data", "estc-earnings", "estc-revenue"},
		Method:          models.SearchMethodLexical,
	}
}

func quoteSummary(price string) *models.StockSummary {
	p, _ := decimal.NewFromString(price)
	return &models.StockSummary{
		Quote: models.Quote{
			Symbol:       "ESTC",
			CurrentPrice: p,
			Timestamp:    time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC),
			Source:       models.SourceFinnhub,
		},
	}
}

func newTestGenerator(searcher Searcher, market MarketData, completer Completer) (*Generator, *memory.Store) {
	store := memory.NewStore(100, time.Hour, zap.NewNop())
	classifier := intent.NewClassifier("ESTC", "elastic")
	return New(searcher, market, completer, store, classifier, "ESTC", zap.NewNop()), store
}

func TestGenerateFormatsAndRecords(t *testing.T) {
	completer := &stubCompleter{response: "Revenue reached $1.48B [estc-financial-data, doc-revenue-2024]. Key Metrics: growth strong."}
	g, store := newTestGenerator(&stubSearcher{resp: searchResponse()}, &stubMarket{}, completer)

	response, sessionID, err := g.Generate(context.Background(), "What was the revenue last year?", "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if sessionID == "" {
		t.Fatal("no session id returned")
	}
	if !strings.Contains(response, "\n\nKey Metrics:") {
		t.Fatalf("response not formatted:\n%s", response)
	}

	history := store.History(sessionID)
	if len(history) != 1 {
		t.Fatalf("history length = %d", len(history))
	}
	if len(history[0].Calls) != 1 || history[0].Calls[0].Service != "elasticsearch" {
		t.Fatalf("calls = %+v", history[0].Calls)
	}
	if history[0].Calls[0].DocumentCount != 1 {
		t.Fatalf("DocumentCount = %d", history[0].Calls[0].DocumentCount)
	}
}

func TestGeneratePromptCarriesRetrievedDocs(t *testing.T) {
	completer := &stubCompleter{response: "ok"}
	g, _ := newTestGenerator(&stubSearcher{resp: searchResponse()}, &stubMarket{}, completer)

	if _, _, err := g.Generate(context.Background(), "What was the revenue last year?", ""); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(completer.lastUser, "doc-revenue-2024") {
		t.Fatal("document id missing from prompt")
	}
	if !strings.Contains(completer.lastUser, "Revenue: 1.48B") {
		t.Fatalf("financial field missing from prompt:\n%s", completer.lastUser)
	}
	if !strings.Contains(completer.lastSystem, "COMPREHENSIVE DATA CONTEXT") {
		t.Fatal("data context missing from system message")
	}
}

func TestGenerateNoDataError(t *testing.T) {
	g, _ := newTestGenerator(&stubSearcher{err: context.DeadlineExceeded}, &stubMarket{}, &stubCompleter{})

	_, _, err := g.Generate(context.Background(), "What was the revenue?", "")
	if err != ErrNoData {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestGenerateCompletionFailureApologizes(t *testing.T) {
	completer := &stubCompleter{err: context.DeadlineExceeded}
	g, store := newTestGenerator(&stubSearcher{resp: searchResponse()}, &stubMarket{}, completer)

	response, sessionID, err := g.Generate(context.Background(), "What was the revenue?", "")
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if response != internalErrorMessage {
		t.Fatalf("response = %q", response)
	}
	if len(store.History(sessionID)) != 0 {
		t.Fatal("failed exchange should not be recorded")
	}
}

func TestGeneratePricePhraseOnlyOnce(t *testing.T) {
	market := &stubMarket{available: true, summary: quoteSummary("85.71")}
	completer := &stubCompleter{response: "Based on the current stock price of $85.71 [data from finnhub.io API], holding looks fine."}
	g, _ := newTestGenerator(&stubSearcher{resp: searchResponse()}, market, completer)

	_, sessionID, err := g.Generate(context.Background(), "What is the current stock price?", "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(completer.lastSystem, `Start your response with: "Based on the current stock price of $85.71`) {
		t.Fatal("price phrase instruction missing on first mention")
	}

	if _, _, err := g.Generate(context.Background(), "And what is the current stock price now?", sessionID); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if strings.Contains(completer.lastSystem, "Start your response with") {
		t.Fatal("price phrase instruction repeated within session")
	}
}

func TestGenerateSkipsMarketWhenNotNeeded(t *testing.T) {
	market := &stubMarket{available: true, summary: quoteSummary("85.71")}
	g, _ := newTestGenerator(&stubSearcher{resp: searchResponse()}, market, &stubCompleter{response: "ok"})

	if _, _, err := g.Generate(context.Background(), "Who are Elastic's competitors?", ""); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if market.summaryCalls != 0 || market.seriesCalls != 0 {
		t.Fatalf("market fetched for a query that needs none: %+v", market)
	}
}

func TestGenerateHistoricalNeedFetchesSeries(t *testing.T) {
	market := &stubMarket{
		available: true,
		series: &models.CandleSeries{
			Symbol:    "ESTC",
			PriceData: map[string]models.CandlePoint{"2023-01-03": {Date: "2023-01-03", Close: 52.0}},
			DateRange: "2019-06-15 to 2024-06-15",
			Years:     5,
			Source:    models.SourceSynthetic,
		},
	}
	completer := &stubCompleter{response: "ok"}
	g, store := newTestGenerator(&stubSearcher{resp: searchResponse()}, market, completer)

	_, sessionID, err := g.Generate(context.Background(), "How did the stock move over the last 5 years?", "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if market.seriesCalls != 1 {
		t.Fatalf("seriesCalls = %d", market.seriesCalls)
	}
	if !strings.Contains(completer.lastUser, "HISTORICAL STOCK DATA") {
		t.Fatal("historical section missing from prompt")
	}
	if !strings.Contains(completer.lastUser, models.SourceSynthetic) {
		t.Fatal("synthetic provenance missing from prompt")
	}

	history := store.History(sessionID)
	calls := history[0].Calls
	if len(calls) != 2 || calls[1].Operation != "get_extended_historical_data" {
		t.Fatalf("calls = %+v", calls)
	}
}

func TestGenerateSessionContinuity(t *testing.T) {
	completer := &stubCompleter{response: "ok"}
	g, _ := newTestGenerator(&stubSearcher{resp: searchResponse()}, &stubMarket{}, completer)

	_, sessionID, err := g.Generate(context.Background(), "What was the revenue?", "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if strings.Contains(completer.lastSystem, "CONVERSATION CONTEXT") {
		t.Fatal("first exchange should have no conversation context")
	}

	if _, _, err := g.Generate(context.Background(), "How does that compare to margins?", sessionID); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(completer.lastSystem, "What was the revenue?") {
		t.Fatal("previous exchange missing from system message")
	}
	if !strings.Contains(completer.lastUser, "Review the previous conversation context") {
		t.Fatal("continuity reminder missing from user message")
	}
}
