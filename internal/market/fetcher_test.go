package market

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/estctiger/estctiger/models"
)

func newTestFetcher(t *testing.T, handler http.Handler) *Fetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	f := NewFetcher("test-key", "ESTC", zap.NewNop())
	f.client.SetBaseURL(srv.URL)
	f.now = func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) }
	f.jitter = func() float64 { return 1.0 }
	return f
}

func TestQuoteParsesFields(t *testing.T) {
	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quote" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("symbol") != "ESTC" || r.URL.Query().Get("token") != "test-key" {
			t.Errorf("bad query params: %v", r.URL.Query())
		}
		fmt.Fprint(w, `{"c":95.5,"pc":94.0,"d":1.5,"dp":1.6,"h":96.2,"l":93.8,"o":94.1}`)
	}))

	quote, err := f.Quote(context.Background())
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if quote.CurrentPrice.String() != "95.5" {
		t.Fatalf("CurrentPrice = %s", quote.CurrentPrice)
	}
	if quote.PreviousClose.String() != "94" {
		t.Fatalf("PreviousClose = %s", quote.PreviousClose)
	}
	if quote.Source != models.SourceFinnhub {
		t.Fatalf("Source = %q", quote.Source)
	}
}

func TestQuoteServedFromCache(t *testing.T) {
	var calls int
	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"c":95.5,"pc":94.0,"d":1.5,"dp":1.6,"h":96.2,"l":93.8,"o":94.1}`)
	}))

	if _, err := f.Quote(context.Background()); err != nil {
		t.Fatalf("Quote: %v", err)
	}
	quote, err := f.Quote(context.Background())
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if quote.CurrentPrice.String() != "95.5" {
		t.Fatalf("CurrentPrice = %s", quote.CurrentPrice)
	}
}

func TestQuoteNilWithoutKey(t *testing.T) {
	f := NewFetcher("", "ESTC", zap.NewNop())
	quote, err := f.Quote(context.Background())
	if err != nil || quote != nil {
		t.Fatalf("quote = %v, err = %v, want nil, nil", quote, err)
	}
	if f.IsAvailable() {
		t.Fatal("IsAvailable should be false without a key")
	}
}

const candleJSON = `{"s":"ok",
	"t":[1717977600,1718064000,1718150400],
	"c":[95.0,96.5,94.2],
	"h":[96.0,97.0,95.5],
	"l":[94.0,95.5,93.0],
	"o":[94.5,96.0,95.0],
	"v":[1200000,900000,1100000]}`

func TestHistoricalParsesBars(t *testing.T) {
	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stock/candle" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("resolution") != "D" {
			t.Errorf("resolution = %q", r.URL.Query().Get("resolution"))
		}
		fmt.Fprint(w, candleJSON)
	}))

	bars, err := f.Historical(context.Background(), 30)
	if err != nil {
		t.Fatalf("Historical: %v", err)
	}
	if len(bars.Dates) != 3 || len(bars.Closes) != 3 {
		t.Fatalf("bars = %+v", bars)
	}
	if bars.Volumes[0] != 1200000 {
		t.Fatalf("Volumes[0] = %d", bars.Volumes[0])
	}
	if bars.Source != models.SourceFinnhub {
		t.Fatalf("Source = %q", bars.Source)
	}
}

func TestExtendedHistoricalSynthesizesOn403(t *testing.T) {
	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))

	series, err := f.ExtendedHistorical(context.Background(), 2)
	if err != nil {
		t.Fatalf("ExtendedHistorical: %v", err)
	}
	if series.Source != models.SourceSynthetic {
		t.Fatalf("Source = %q, want synthetic tag", series.Source)
	}
	if series.Years != 2 {
		t.Fatalf("Years = %d", series.Years)
	}
	// Daily coverage: 2*365 days inclusive of both endpoints.
	if len(series.PriceData) != 2*365+1 {
		t.Fatalf("got %d days, want %d", len(series.PriceData), 2*365+1)
	}
	for date, point := range series.PriceData {
		if point.Close < priceFloor || point.Low < priceFloor {
			t.Fatalf("%s below floor: %+v", date, point)
		}
		if point.Volume != syntheticVolume {
			t.Fatalf("%s volume = %d", date, point.Volume)
		}
	}
}

func TestExtendedHistoricalLiveData(t *testing.T) {
	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, candleJSON)
	}))

	series, err := f.ExtendedHistorical(context.Background(), 5)
	if err != nil {
		t.Fatalf("ExtendedHistorical: %v", err)
	}
	if series.Source != models.SourceFinnhub {
		t.Fatalf("Source = %q", series.Source)
	}
	if len(series.PriceData) != 3 {
		t.Fatalf("got %d points, want 3", len(series.PriceData))
	}
}

func TestSyntheticInterpolation(t *testing.T) {
	f := NewFetcher("k", "ESTC", zap.NewNop())
	f.jitter = func() float64 { return 1.0 }

	// Midpoint of the 2022-06-01 (60.0) to 2022-12-01 (75.0) segment.
	mid := time.Date(2022, 9, 1, 0, 0, 0, 0, time.UTC)
	price := interpolatePrice(mid)
	if price < 60.0 || price > 75.0 {
		t.Fatalf("interpolated price %v outside segment", price)
	}

	// Before the first milestone the earliest price holds.
	if got := interpolatePrice(time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)); got != 40.0 {
		t.Fatalf("pre-range price = %v, want 40.0", got)
	}
	// After the last milestone the latest price holds.
	if got := interpolatePrice(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)); got != 85.0 {
		t.Fatalf("post-range price = %v, want 85.0", got)
	}
}

func TestSyntheticFloorAfterJitter(t *testing.T) {
	f := NewFetcher("k", "ESTC", zap.NewNop())
	f.now = func() time.Time { return time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC) }
	f.jitter = func() float64 { return 0.95 } // worst case downward

	series := f.syntheticSeries(1)
	for date, point := range series.PriceData {
		for _, p := range []float64{point.Close, point.High, point.Low, point.Open} {
			if p < priceFloor {
				t.Fatalf("%s price %v below floor", date, p)
			}
		}
	}
}

func TestPriceForDatePicksClosest(t *testing.T) {
	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, candleJSON)
	}))

	// 1718064000 is 2024-06-11 UTC.
	dp, err := f.PriceForDate(context.Background(), "2024-06-11")
	if err != nil {
		t.Fatalf("PriceForDate: %v", err)
	}
	if dp.PriceData.Close != 96.5 {
		t.Fatalf("Close = %v, want 96.5", dp.PriceData.Close)
	}
	if dp.RequestedDate != "2024-06-11" {
		t.Fatalf("RequestedDate = %q", dp.RequestedDate)
	}
}

func TestPriceForDateRejectsBadDate(t *testing.T) {
	f := NewFetcher("k", "ESTC", zap.NewNop())
	if _, err := f.PriceForDate(context.Background(), "june 11"); err == nil {
		t.Fatal("expected error for malformed date")
	}
}

func TestStockSummaryAggregates(t *testing.T) {
	closes := make([]string, 30)
	ts := make([]string, 30)
	for i := 0; i < 30; i++ {
		closes[i] = fmt.Sprintf("%d.0", 80+i)
		ts[i] = fmt.Sprintf("%d", 1715000000+i*86400)
	}
	filler := strings.Repeat("1.0,", 29) + "1.0"
	vols := strings.Repeat("1000,", 29) + "1000"
	candles := fmt.Sprintf(`{"s":"ok","t":[%s],"c":[%s],"h":[%s],"l":[%s],"o":[%s],"v":[%s]}`,
		strings.Join(ts, ","), strings.Join(closes, ","), filler, filler, filler, vols)

	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quote":
			fmt.Fprint(w, `{"c":110.0,"pc":109.0,"d":1.0,"dp":0.9,"h":111.0,"l":108.0,"o":109.5}`)
		case "/stock/candle":
			fmt.Fprint(w, candles)
		default:
			http.NotFound(w, r)
		}
	}))

	summary, err := f.StockSummary(context.Background())
	if err != nil {
		t.Fatalf("StockSummary: %v", err)
	}
	if !summary.HasWeek || !summary.HasMonth {
		t.Fatalf("aggregates missing: %+v", summary)
	}
	// Last 7 closes are 103..109.
	if summary.WeekHigh.String() != "109" || summary.WeekLow.String() != "103" {
		t.Fatalf("week = %s/%s", summary.WeekHigh, summary.WeekLow)
	}
	if summary.MonthHigh.String() != "109" || summary.MonthLow.String() != "80" {
		t.Fatalf("month = %s/%s", summary.MonthHigh, summary.MonthLow)
	}
	// Average of 80..109 is 94.5.
	if summary.MonthAvg.String() != "94.5" {
		t.Fatalf("MonthAvg = %s", summary.MonthAvg)
	}
	if summary.CurrentPrice.String() != "110" {
		t.Fatalf("CurrentPrice = %s", summary.CurrentPrice)
	}
}
