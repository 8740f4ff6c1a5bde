package free

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/archelyst/marketdata-go/internal/cache"
	"github.com/archelyst/marketdata-go/internal/provider"
	"github.com/archelyst/marketdata-go/internal/ratelimit"
	"github.com/archelyst/marketdata-go/internal/types"
)

func testAdapter(t *testing.T, handler http.Handler) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cacheSvc := cache.NewService(cache.NewMemoryBackend(), zerolog.Nop())
	limiter := ratelimit.NewLimiter()
	require.NoError(t, limiter.SetBudget(providerName, ratelimit.Budget{PerMinute: 100, PerHour: 1000, PerDay: 10000, Burst: 50}))

	a := New(Config{BaseURL: srv.URL, PacingQPS: 1000}, cacheSvc, limiter, zerolog.Nop())
	a.retry = provider.RetryConfig{MaxRetries: 0, BackoffBase: 0}
	return a
}

func TestCryptoSymbolResolvesToDashUSDTicker(t *testing.T) {
	var gotSymbols string
	a := testAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSymbols = r.URL.Query().Get("symbols")
		w.Write([]byte(`{"quoteResponse":{"result":[{"symbol":"BTC-USD","shortName":"Bitcoin USD",
			"regularMarketPrice":64000.5,"regularMarketVolume":123,"currency":"USD"}],"error":null}}`))
	}))

	sym, _ := types.NewSymbol("BTC")
	q, err := a.GetQuote(context.Background(), sym)
	require.NoError(t, err)
	require.Equal(t, "BTC-USD", gotSymbols, "bare crypto tickers map to Yahoo's -USD pairs")
	require.Equal(t, types.Symbol("BTC"), q.Symbol, "canonical symbol is preserved on the normalized quote")
	require.Equal(t, "64000.5", q.Price.String())
}

func TestGetQuoteEmptyResultIsNotFound(t *testing.T) {
	a := testAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteResponse":{"result":[],"error":null}}`))
	}))

	sym, _ := types.NewSymbol("ZZZZ")
	_, err := a.GetQuote(context.Background(), sym)
	var pe *provider.Error
	require.ErrorAs(t, err, &pe)
	require.Equal(t, provider.KindUpstreamNotFound, pe.Kind)
}

func TestGetHistoricalSortsOutOfOrderTimestamps(t *testing.T) {
	a := testAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[{"timestamp":[1704240000,1704067200,1704153600],
			"indicators":{"quote":[{"open":[3,1,2],"high":[3,1,2],"low":[3,1,2],
			"close":[3,1,2],"volume":[30,10,20]}]}}]}}`))
	}))

	sym, _ := types.NewSymbol("AAPL")
	series, err := a.GetHistorical(context.Background(), provider.HistoricalParams{
		Symbol: sym, Period: types.Period1M, Interval: types.Interval1D,
	})
	require.NoError(t, err)
	require.True(t, series.IsSorted())
	require.Equal(t, "1", series.Points[0].Close.String())
	require.Equal(t, "3", series.Points[2].Close.String())
	require.Equal(t, series.Points[0].Date, series.StartDate)
}

func TestGetHistoricalRejectsIntradayIntervalWithLongPeriod(t *testing.T) {
	a := testAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must be rejected before any upstream call")
	}))

	sym, _ := types.NewSymbol("AAPL")
	_, err := a.GetHistorical(context.Background(), provider.HistoricalParams{
		Symbol: sym, Period: types.Period1Y, Interval: types.Interval5Min,
	})
	var pe *provider.Error
	require.ErrorAs(t, err, &pe)
	require.Equal(t, provider.KindValidation, pe.Kind)
}

func TestSearchClassifiesCryptoResults(t *testing.T) {
	a := testAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quotes":[
			{"symbol":"AAPL","shortname":"Apple Inc.","quoteType":"EQUITY","exchange":"NMS"},
			{"symbol":"BTC-USD","shortname":"Bitcoin USD","quoteType":"CRYPTOCURRENCY","exchange":"CCC"}]}`))
	}))

	set, err := a.Search(context.Background(), "app", 10)
	require.NoError(t, err)
	require.Len(t, set.Results, 2)
	require.Equal(t, types.AssetStock, set.Results[0].AssetType)
	require.Equal(t, types.AssetCrypto, set.Results[1].AssetType)
	require.Equal(t, 100.0, set.Results[0].RelevanceScore)
	require.Greater(t, set.Results[0].RelevanceScore, set.Results[1].RelevanceScore)
}

func TestServerErrorIsTransient(t *testing.T) {
	a := testAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	sym, _ := types.NewSymbol("AAPL")
	_, err := a.GetQuote(context.Background(), sym)
	var pe *provider.Error
	require.ErrorAs(t, err, &pe)
	require.Equal(t, provider.KindUpstreamTransient, pe.Kind)
}
