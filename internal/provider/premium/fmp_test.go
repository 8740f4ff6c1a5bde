package premium

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

func testAdapter(t *testing.T, handler http.Handler) (*Adapter, *cache.Service) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cacheSvc := cache.NewService(cache.NewMemoryBackend(), zerolog.Nop())
	limiter := ratelimit.NewLimiter()
	require.NoError(t, limiter.SetBudget(providerName, ratelimit.Budget{PerMinute: 100, PerHour: 1000, PerDay: 10000, Burst: 50}))

	a := New(Config{APIKey: "test-key", BaseURL: srv.URL, PacingQPS: 1000}, cacheSvc, limiter, zerolog.Nop())
	a.retry = provider.RetryConfig{MaxRetries: 0, BackoffBase: 0}
	return a, cacheSvc
}

func TestGetQuoteDecodesAndNormalizes(t *testing.T) {
	var gotKey string
	a, _ := testAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("apikey")
		w.Write([]byte(`[{"symbol":"AAPL","name":"Apple Inc.","price":150.25,"change":2.5,
			"changesPercentage":1.69,"previousClose":147.75,"open":148.0,"dayHigh":151.0,
			"dayLow":147.5,"volume":50000000,"marketCap":2500000000000,"pe":28.5}]`))
	}))

	sym, _ := types.NewSymbol("AAPL")
	q, err := a.GetQuote(context.Background(), sym)
	require.NoError(t, err)
	require.Equal(t, "test-key", gotKey, "API key travels as a query-string parameter")
	require.Equal(t, "150.25", q.Price.String())
	require.Equal(t, "1.69", q.ChangePercent.String())
	require.Equal(t, int64(50000000), q.Volume)
	require.NotNil(t, q.MarketCap)
}

func TestGetQuoteSecondCallServedFromCache(t *testing.T) {
	calls := 0
	a, cacheSvc := testAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`[{"symbol":"AAPL","name":"Apple Inc.","price":150.25,"volume":1}]`))
	}))

	sym, _ := types.NewSymbol("AAPL")
	ctx, meta := provider.WithCacheMetaTracker(context.Background())

	_, err := a.GetQuote(ctx, sym)
	require.NoError(t, err)
	require.False(t, meta.Hit)

	_, err = a.GetQuote(ctx, sym)
	require.NoError(t, err)
	require.True(t, meta.Hit, "second identical request must come from cache")
	require.Equal(t, 1, calls, "upstream must be hit exactly once")

	stats := cacheSvc.Stats()[string(cache.LevelQuotes)+":"+providerName]
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
}

func TestGetQuoteAuthFailureIsFatalNotRetried(t *testing.T) {
	calls := 0
	a, _ := testAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	a.retry = provider.RetryConfig{MaxRetries: 3, BackoffBase: 0}

	sym, _ := types.NewSymbol("AAPL")
	_, err := a.GetQuote(context.Background(), sym)
	require.Error(t, err)

	var pe *provider.Error
	require.ErrorAs(t, err, &pe)
	require.Equal(t, provider.KindUpstreamAuth, pe.Kind)
	require.Equal(t, 1, calls, "authentication failures must not be retried")
}

func TestGetQuoteEmptyPayloadIsNotFound(t *testing.T) {
	a, _ := testAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))

	sym, _ := types.NewSymbol("ZZZZ")
	_, err := a.GetQuote(context.Background(), sym)
	var pe *provider.Error
	require.ErrorAs(t, err, &pe)
	require.Equal(t, provider.KindUpstreamNotFound, pe.Kind)
}

func TestRateLimitDenialFailsFastWithoutUpstreamCall(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	cacheSvc := cache.NewService(cache.NewMemoryBackend(), zerolog.Nop())
	limiter := ratelimit.NewLimiter()
	require.NoError(t, limiter.SetBudget(providerName, ratelimit.Budget{PerMinute: 10, PerHour: 100, PerDay: 1000, Burst: 1}))

	a := New(Config{APIKey: "k", BaseURL: srv.URL, PacingQPS: 1000}, cacheSvc, limiter, zerolog.Nop())

	sym1, _ := types.NewSymbol("AAPL")
	sym2, _ := types.NewSymbol("MSFT")
	_, _ = a.GetQuote(context.Background(), sym1)

	_, err := a.GetQuote(context.Background(), sym2)
	var pe *provider.Error
	require.ErrorAs(t, err, &pe)
	require.Equal(t, provider.KindRateLimited, pe.Kind)
	require.Equal(t, 1, calls, "denied request must never reach the upstream")
}

func TestGetHistoricalSortsOutOfOrderPayload(t *testing.T) {
	a, _ := testAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"AAPL","historical":[
			{"date":"2024-01-03","open":3,"high":3,"low":3,"close":3,"volume":3},
			{"date":"2024-01-01","open":1,"high":1,"low":1,"close":1,"volume":1},
			{"date":"2024-01-02","open":2,"high":2,"low":2,"close":2,"volume":2}]}`))
	}))

	sym, _ := types.NewSymbol("AAPL")
	series, err := a.GetHistorical(context.Background(), provider.HistoricalParams{
		Symbol: sym, Period: types.Period1Y, Interval: types.Interval1D,
	})
	require.NoError(t, err)
	require.True(t, series.IsSorted())
	require.Equal(t, 3, series.Count)
	require.Equal(t, series.Points[0].Date, series.StartDate)
	require.Equal(t, series.Points[2].Date, series.EndDate)
}
