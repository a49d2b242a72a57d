// Package generator is the middle pipeline stage: it retrieves documents
// and market data for a validated query, prompts the model, and post
// processes the answer.
package generator

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/estctiger/estctiger/internal/intent"
	"github.com/estctiger/estctiger/internal/memory"
	"github.com/estctiger/estctiger/models"
)

// ErrNoData means no documents could be retrieved from any source, so no
// grounded analysis is possible.
var ErrNoData = errors.New("no data source available")

const internalErrorMessage = "I encountered an internal error while analyzing ESTC data. Please try again."

const (
	searchLimit      = 10
	historicalYears  = 5
	generationTokens = 1000
)

// Searcher retrieves documents for a classified query.
type Searcher interface {
	Search(ctx context.Context, queryType string, searchTerms []string, limit int) (*models.SearchResponse, error)
}

// MarketData fetches live or estimated stock data.
type MarketData interface {
	IsAvailable() bool
	StockSummary(ctx context.Context) (*models.StockSummary, error)
	ExtendedHistorical(ctx context.Context, years int) (*models.CandleSeries, error)
}

// Completer is the model call that writes the answer.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// Generator wires retrieval, market data, conversation memory, and the
// model into one Generate call.
type Generator struct {
	searcher   Searcher
	market     MarketData
	completer  Completer
	store      *memory.Store
	classifier *intent.Classifier
	symbol     string
	logger     *zap.Logger
}

func New(searcher Searcher, market MarketData, completer Completer, store *memory.Store, classifier *intent.Classifier, symbol string, logger *zap.Logger) *Generator {
	return &Generator{
		searcher:   searcher,
		market:     market,
		completer:  completer,
		store:      store,
		classifier: classifier,
		symbol:     symbol,
		logger:     logger,
	}
}

// Generate answers one validated query within a session. It returns the
// session id actually used, which may be freshly created. ErrNoData is
// returned when retrieval found nothing to ground the answer on.
func (g *Generator) Generate(ctx context.Context, query, sessionID string) (response string, sid string, err error) {
	sessionID = g.store.GetOrCreate(sessionID)

	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("generation panicked", zap.Any("panic", r))
			response = internalErrorMessage
			sid = sessionID
			err = nil
		}
	}()

	queryIntent := g.classifier.Classify(query)
	need := MarketDataNeed(query, queryIntent.PrimaryType)

	var (
		wg        sync.WaitGroup
		search    *models.SearchResponse
		searchErr error
		market    = &marketData{}
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		search, searchErr = g.searcher.Search(ctx, queryIntent.PrimaryType, queryIntent.SearchTerms, searchLimit)
	}()

	if need != NeedNone && g.market != nil && g.market.IsAvailable() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var fetchErr error
			switch need {
			case NeedHistorical:
				market.series, fetchErr = g.market.ExtendedHistorical(ctx, historicalYears)
			case NeedCurrent:
				market.summary, fetchErr = g.market.StockSummary(ctx)
			}
			if fetchErr != nil {
				g.logger.Warn("market data fetch failed", zap.String("need", string(need)), zap.Error(fetchErr))
			}
		}()
	}
	wg.Wait()

	if searchErr != nil {
		return "", sessionID, ErrNoData
	}

	calls := buildCallRecords(search, market, g.symbol)

	conversationContext := g.store.ContextForPrompt(sessionID)
	includePricePhrase := market.summary != nil && !g.store.HasPriceBeenMentioned(sessionID)

	system := buildSystemMessage(search, conversationContext)
	if includePricePhrase {
		system += pricePhraseInstruction(market.summary)
		g.store.MarkPriceMentioned(sessionID)
	}
	user := buildUserMessage(query, search, market, conversationContext != "")

	raw, err := g.completer.Complete(ctx, system, user, generationTokens)
	if err != nil {
		g.logger.Error("completion failed", zap.Error(err))
		return internalErrorMessage, sessionID, nil
	}

	formatted := FormatResponse(raw)
	g.store.AddExchange(sessionID, query, formatted, calls)

	return formatted, sessionID, nil
}

// buildCallRecords captures what was retrieved for the session audit trail.
func buildCallRecords(search *models.SearchResponse, market *marketData, symbol string) []models.RetrievalCall {
	var calls []models.RetrievalCall

	if search != nil && len(search.Results) > 0 {
		docs := make([]models.RetrievedDoc, 0, maxPromptDocs)
		for i, res := range search.Results {
			if i >= maxPromptDocs {
				break
			}
			docs = append(docs, models.RetrievedDoc{
				ID:    res.DocumentID,
				Type:  res.Type,
				Score: res.Score,
			})
		}
		calls = append(calls, models.RetrievalCall{
			Service:       "elasticsearch",
			Operation:     "search",
			Indices:       search.IndicesSearched,
			DocumentCount: len(search.Results),
			Documents:     docs,
			QueryType:     search.QueryType,
			SearchTerms:   search.SearchTerms,
		})
	}

	if market.series != nil {
		calls = append(calls, models.RetrievalCall{
			Service:   "finnhub",
			Operation: "get_extended_historical_data",
			Symbol:    symbol,
			DataType:  "historical_stock_data",
			Years:     market.series.Years,
		})
	}
	if market.summary != nil {
		calls = append(calls, models.RetrievalCall{
			Service:   "finnhub",
			Operation: "get_stock_summary",
			Symbol:    symbol,
			DataType:  "real_time_stock_data",
		})
	}
	return calls
}
