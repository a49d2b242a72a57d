// Package market fetches live quotes and candles from Finnhub, backfilling
// long-range history with synthetic estimates when the API tier refuses it.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/estctiger/estctiger/internal/cache"
	"github.com/estctiger/estctiger/models"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// Cache lifetimes: quotes go stale fast, long-range history barely moves.
const (
	quoteTTL   = time.Minute
	historyTTL = 6 * time.Hour
)

// Fetcher wraps the Finnhub REST API for one symbol. With no API key every
// live method reports unavailability rather than erroring.
type Fetcher struct {
	client *resty.Client
	logger *zap.Logger
	apiKey string
	symbol string
	cache  *cache.TTLCache

	// Injected for tests; jitter drives the synthetic daily variation.
	now    func() time.Time
	jitter func() float64
}

func NewFetcher(apiKey, symbol string, logger *zap.Logger) *Fetcher {
	client := resty.New()
	client.SetBaseURL(finnhubBaseURL)
	client.SetTimeout(15 * time.Second)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(500 * time.Millisecond)

	return &Fetcher{
		client: client,
		logger: logger,
		apiKey: apiKey,
		symbol: symbol,
		cache:  cache.New(),
		now:    time.Now,
		jitter: defaultJitter,
	}
}

// IsAvailable reports whether live quotes can be fetched at all.
func (f *Fetcher) IsAvailable() bool {
	return f.apiKey != ""
}

type finnhubQuote struct {
	Current       float64 `json:"c"`
	PreviousClose float64 `json:"pc"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
}

// Quote fetches the current price snapshot. Returns nil, nil when no API
// key is configured.
func (f *Fetcher) Quote(ctx context.Context) (*models.Quote, error) {
	if !f.IsAvailable() {
		return nil, nil
	}
	if v, ok := f.cache.Get("quote"); ok {
		return v.(*models.Quote), nil
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": f.symbol,
			"token":  f.apiKey,
		}).
		Get("/quote")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote for %s: %w", f.symbol, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("quote API error %d: %s", resp.StatusCode(), resp.String())
	}

	var q finnhubQuote
	if err := json.Unmarshal(resp.Body(), &q); err != nil {
		return nil, fmt.Errorf("failed to parse quote response: %w", err)
	}

	quote := &models.Quote{
		Symbol:        f.symbol,
		CurrentPrice:  decimal.NewFromFloat(q.Current),
		PreviousClose: decimal.NewFromFloat(q.PreviousClose),
		Change:        decimal.NewFromFloat(q.Change),
		ChangePercent: decimal.NewFromFloat(q.ChangePercent),
		DayHigh:       decimal.NewFromFloat(q.High),
		DayLow:        decimal.NewFromFloat(q.Low),
		DayOpen:       decimal.NewFromFloat(q.Open),
		Timestamp:     f.now(),
		Source:        models.SourceFinnhub,
	}
	f.cache.Set("quote", quote, quoteTTL)
	return quote, nil
}

type finnhubCandles struct {
	Status     string    `json:"s"`
	Timestamps []int64   `json:"t"`
	Closes     []float64 `json:"c"`
	Highs      []float64 `json:"h"`
	Lows       []float64 `json:"l"`
	Opens      []float64 `json:"o"`
	Volumes    []float64 `json:"v"`
}

func (f *Fetcher) candles(ctx context.Context, from, to time.Time) (*finnhubCandles, int, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":     f.symbol,
			"resolution": "D",
			"from":       strconv.FormatInt(from.Unix(), 10),
			"to":         strconv.FormatInt(to.Unix(), 10),
			"token":      f.apiKey,
		}).
		Get("/stock/candle")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch candles for %s: %w", f.symbol, err)
	}
	if resp.StatusCode() != 200 {
		return nil, resp.StatusCode(), fmt.Errorf("candle API error %d: %s", resp.StatusCode(), resp.String())
	}
	var c finnhubCandles
	if err := json.Unmarshal(resp.Body(), &c); err != nil {
		return nil, resp.StatusCode(), fmt.Errorf("failed to parse candle response: %w", err)
	}
	if c.Status != "ok" {
		return nil, resp.StatusCode(), fmt.Errorf("candle request not ok: %s", c.Status)
	}
	return &c, resp.StatusCode(), nil
}

// Historical fetches recent daily bars. Returns nil, nil without an API
// key; short-range history has no synthetic substitute.
func (f *Fetcher) Historical(ctx context.Context, days int) (*models.HistoryBars, error) {
	if !f.IsAvailable() {
		return nil, nil
	}

	end := f.now()
	start := end.AddDate(0, 0, -days)
	c, _, err := f.candles(ctx, start, end)
	if err != nil {
		return nil, err
	}

	bars := &models.HistoryBars{
		Symbol:  f.symbol,
		Days:    days,
		Source:  models.SourceFinnhub,
		Closes:  c.Closes,
		Highs:   c.Highs,
		Lows:    c.Lows,
		Opens:   c.Opens,
		Volumes: make([]int64, len(c.Volumes)),
		Dates:   make([]string, len(c.Timestamps)),
	}
	for i, ts := range c.Timestamps {
		bars.Dates[i] = time.Unix(ts, 0).Format("2006-01-02")
	}
	for i, v := range c.Volumes {
		bars.Volumes[i] = int64(v)
	}
	return bars, nil
}

// ExtendedHistorical fetches a multi-year daily series. A 403 from the
// candle endpoint means the API tier has no historical access, so the
// synthetic estimate series stands in; any other failure does the same.
// Without an API key there is nothing to attempt and nil is returned.
func (f *Fetcher) ExtendedHistorical(ctx context.Context, years int) (*models.CandleSeries, error) {
	if !f.IsAvailable() {
		return nil, nil
	}

	cacheKey := fmt.Sprintf("historical-%d", years)
	if v, ok := f.cache.Get(cacheKey); ok {
		return v.(*models.CandleSeries), nil
	}

	end := f.now()
	start := end.AddDate(0, 0, -years*365)
	c, status, err := f.candles(ctx, start, end)
	if err != nil {
		if status == 403 {
			f.logger.Warn("historical candles denied, using synthetic estimates",
				zap.Int("years", years))
		} else {
			f.logger.Warn("historical candle fetch failed, using synthetic estimates",
				zap.Int("years", years), zap.Error(err))
		}
		return f.syntheticSeries(years), nil
	}

	series := &models.CandleSeries{
		Symbol:    f.symbol,
		PriceData: make(map[string]models.CandlePoint, len(c.Timestamps)),
		DateRange: fmt.Sprintf("%s to %s", start.Format("2006-01-02"), end.Format("2006-01-02")),
		Years:     years,
		Source:    models.SourceFinnhub,
	}
	for i, ts := range c.Timestamps {
		date := time.Unix(ts, 0).Format("2006-01-02")
		series.PriceData[date] = models.CandlePoint{
			Date:   date,
			Close:  c.Closes[i],
			High:   c.Highs[i],
			Low:    c.Lows[i],
			Open:   c.Opens[i],
			Volume: int64(c.Volumes[i]),
		}
	}
	f.cache.Set(cacheKey, series, historyTTL)
	return series, nil
}

// PriceForDate finds the candle closest to the requested date, scanning a
// two-week window to skate over weekends and market holidays.
func (f *Fetcher) PriceForDate(ctx context.Context, date string) (*models.DatePrice, error) {
	if !f.IsAvailable() {
		return nil, nil
	}

	target, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}

	c, _, err := f.candles(ctx, target.AddDate(0, 0, -7), target.AddDate(0, 0, 7))
	if err != nil {
		return nil, err
	}
	if len(c.Timestamps) == 0 {
		return nil, nil
	}

	best := 0
	bestDiff := time.Duration(1<<63 - 1)
	for i, ts := range c.Timestamps {
		diff := time.Unix(ts, 0).Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			bestDiff = diff
			best = i
		}
	}

	actual := time.Unix(c.Timestamps[best], 0).Format("2006-01-02")
	return &models.DatePrice{
		Symbol:        f.symbol,
		RequestedDate: date,
		ActualDate:    actual,
		PriceData: models.CandlePoint{
			Date:   actual,
			Close:  c.Closes[best],
			High:   c.Highs[best],
			Low:    c.Lows[best],
			Open:   c.Opens[best],
			Volume: int64(c.Volumes[best]),
		},
		Source: models.SourceFinnhub,
	}, nil
}

// StockSummary combines the current quote with trailing 30-day aggregates.
// Returns nil, nil when no API key is configured, and the bare quote when
// history is unavailable.
func (f *Fetcher) StockSummary(ctx context.Context) (*models.StockSummary, error) {
	quote, err := f.Quote(ctx)
	if err != nil {
		return nil, err
	}
	if quote == nil {
		return nil, nil
	}

	summary := &models.StockSummary{Quote: *quote}

	bars, err := f.Historical(ctx, 30)
	if err != nil {
		f.logger.Warn("history unavailable for summary", zap.Error(err))
		return summary, nil
	}
	if bars == nil || len(bars.Closes) < 7 {
		return summary, nil
	}

	week := bars.Closes[len(bars.Closes)-7:]
	summary.WeekHigh = decimalMax(week)
	summary.WeekLow = decimalMin(week)
	summary.HasWeek = true

	if len(bars.Closes) >= 30 {
		summary.MonthHigh = decimalMax(bars.Closes)
		summary.MonthLow = decimalMin(bars.Closes)
		summary.MonthAvg = decimalAvg(bars.Closes)
		summary.HasMonth = true
	}
	return summary, nil
}

func decimalMax(prices []float64) decimal.Decimal {
	max := prices[0]
	for _, p := range prices[1:] {
		if p > max {
			max = p
		}
	}
	return decimal.NewFromFloat(max)
}

func decimalMin(prices []float64) decimal.Decimal {
	min := prices[0]
	for _, p := range prices[1:] {
		if p < min {
			min = p
		}
	}
	return decimal.NewFromFloat(min)
}

func decimalAvg(prices []float64) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range prices {
		sum = sum.Add(decimal.NewFromFloat(p))
	}
	return sum.Div(decimal.NewFromInt(int64(len(prices)))).Round(2)
}
