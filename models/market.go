package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Provenance tags carried on market data all the way to citation text.
// Synthetic data must never be presented under the live tag.
const (
	SourceFinnhub   = "finnhub.io API"
	SourceSynthetic = "historical estimates (Finnhub subscription limitation)"
)

// Quote is a point-in-time snapshot of the tracked symbol.
type Quote struct {
	Symbol        string          `json:"symbol"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	DayHigh       decimal.Decimal `json:"day_high"`
	DayLow        decimal.Decimal `json:"day_low"`
	DayOpen       decimal.Decimal `json:"day_open"`
	Timestamp     time.Time       `json:"timestamp"`
	Source        string          `json:"source"`
}

// CandlePoint is one trading day of OHLCV data.
type CandlePoint struct {
	Date   string  `json:"date"`
	Close  float64 `json:"close"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Open   float64 `json:"open"`
	Volume int64   `json:"volume"`
}

// CandleSeries is a date-keyed daily price series with provenance.
type CandleSeries struct {
	Symbol    string                 `json:"symbol"`
	PriceData map[string]CandlePoint `json:"price_data"`
	DateRange string                 `json:"date_range"`
	Years     int                    `json:"years"`
	Source    string                 `json:"source"`
}

// HistoryBars holds parallel arrays of recent daily prices, the shape the
// candle endpoint returns.
type HistoryBars struct {
	Symbol  string    `json:"symbol"`
	Dates   []string  `json:"dates"`
	Closes  []float64 `json:"closes"`
	Highs   []float64 `json:"highs"`
	Lows    []float64 `json:"lows"`
	Opens   []float64 `json:"opens"`
	Volumes []int64   `json:"volumes"`
	Days    int       `json:"days"`
	Source  string    `json:"source"`
}

// DatePrice is the candle closest to a requested date.
type DatePrice struct {
	Symbol        string      `json:"symbol"`
	RequestedDate string      `json:"requested_date"`
	ActualDate    string      `json:"actual_date"`
	PriceData     CandlePoint `json:"price_data"`
	Source        string      `json:"source"`
}

// StockSummary composes the current quote with trailing week/month
// high-low aggregates when 30-day history is available.
type StockSummary struct {
	Quote
	WeekHigh  decimal.Decimal `json:"week_high,omitempty"`
	WeekLow   decimal.Decimal `json:"week_low,omitempty"`
	MonthHigh decimal.Decimal `json:"month_high,omitempty"`
	MonthLow  decimal.Decimal `json:"month_low,omitempty"`
	MonthAvg  decimal.Decimal `json:"month_avg,omitempty"`
	HasWeek   bool            `json:"has_week"`
	HasMonth  bool            `json:"has_month"`
}
