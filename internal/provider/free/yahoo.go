// Package free implements the free-tier, no-auth provider adapter for
// Yahoo Finance's public query API: lower rate budgets, a crypto
// ticker-suffix mapping, and Yahoo's nested response shape.
package free

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/archelyst/marketdata-go/internal/cache"
	"github.com/archelyst/marketdata-go/internal/provider"
	"github.com/archelyst/marketdata-go/internal/ratelimit"
	"github.com/archelyst/marketdata-go/internal/types"
)

const providerName = "yahoo"

// cryptoMapping maps bare crypto tickers to Yahoo's -USD pair symbols.
var cryptoMapping = map[string]string{
	"BTC": "BTC-USD", "ETH": "ETH-USD", "ADA": "ADA-USD", "DOT": "DOT-USD",
	"LTC": "LTC-USD", "XRP": "XRP-USD", "DOGE": "DOGE-USD", "SOL": "SOL-USD",
	"MATIC": "MATIC-USD", "AVAX": "AVAX-USD",
}

func resolveTicker(symbol string) string {
	if mapped, ok := cryptoMapping[symbol]; ok {
		return mapped
	}
	return symbol
}

// Config configures a Yahoo adapter instance.
type Config struct {
	BaseURL string // defaults to https://query1.finance.yahoo.com

	// PacingQPS bounds the courtesy outbound pace applied on top of the
	// sliding-window rate limiter (see provider.PacedTransport). Zero
	// falls back to a conservative default.
	PacingQPS   float64
	PacingBurst int
}

// Adapter is the free-tier Yahoo-Finance-grounded provider.
type Adapter struct {
	cfg        Config
	httpClient *http.Client
	cacheSvc   *cache.Service
	limiter    *ratelimit.Limiter
	log        zerolog.Logger
	retry      provider.RetryConfig
}

// New constructs a Yahoo adapter wired to the shared cache and rate
// limiter. Callers must also register a ratelimit.Budget for "yahoo" on
// limiter before use.
func New(cfg Config, cacheSvc *cache.Service, limiter *ratelimit.Limiter, log zerolog.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://query1.finance.yahoo.com"
	}
	qps := cfg.PacingQPS
	if qps <= 0 {
		qps = 0.5 // 30 req/min, Yahoo's default reference rate budget
	}
	return &Adapter{
		cfg:      cfg,
		cacheSvc: cacheSvc,
		limiter:  limiter,
		log:      log.With().Str("provider", providerName).Logger(),
		retry:    provider.DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: provider.NewPacedTransport(nil, qps, cfg.PacingBurst),
		},
	}
}

func (a *Adapter) Name() string { return providerName }

func (a *Adapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Name:             providerName,
		Tier:             types.TierFree,
		SupportsStocks:   true,
		SupportsCrypto:   true,
		SupportsProfiles: true,
		SupportsHistory:  true,
		SupportsSearch:   true,
		SupportsOverview: true,
		Priority:         10,
		RequiresAPIKey:   false,
	}
}

func cacheLevelFor(operation string) cache.Level {
	switch operation {
	case "quote":
		return cache.LevelQuotes
	case "profile":
		return cache.LevelProfiles
	case "history":
		return cache.LevelHistorical
	case "search":
		return cache.LevelSearch
	default:
		return cache.LevelRealTime
	}
}

func (a *Adapter) request(ctx context.Context, operation, path string, params url.Values, cacheIdentifier string) (json.RawMessage, error) {
	allowed, diag := a.limiter.IsAllowed(providerName, operation)
	if !allowed {
		return nil, provider.NewError(provider.KindRateLimited, providerName, operation,
			fmt.Sprintf("rate limit exceeded on %s window", diag.ExceededWindow), nil)
	}

	level := cacheLevelFor(operation)
	cacheParams := make(map[string]string, len(params))
	for k := range params {
		cacheParams[k] = params.Get(k)
	}

	if a.cacheSvc != nil {
		if res, err := a.cacheSvc.Get(ctx, level, providerName, cacheIdentifier, cacheParams); err == nil && res != nil {
			provider.MarkCacheHit(ctx, res.Age)
			return res.Payload, nil
		}
	}
	provider.MarkCacheMiss(ctx)

	reqURL := fmt.Sprintf("%s%s?%s", a.cfg.BaseURL, path, params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, provider.NewError(provider.KindUpstreamTransient, providerName, operation, "build request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "Mozilla/5.0 (compatible; archelyst-marketdata-go/1.0)")

	status, body, err := provider.WithRetry(ctx, a.retry, func(ctx context.Context, req *http.Request) (int, []byte, error) {
		return provider.HTTPDo(a.httpClient, req)
	}, httpReq, classifyYahooResponse)

	if err != nil {
		return nil, classifyYahooError(operation, status, err)
	}
	if status != http.StatusOK {
		return nil, classifyYahooError(operation, status, nil)
	}

	if a.cacheSvc != nil {
		_ = a.cacheSvc.Set(ctx, level, providerName, cacheIdentifier, cacheParams, json.RawMessage(body), 0)
	}
	return body, nil
}

func classifyYahooResponse(status int, body []byte, err error) (done, retry bool) {
	if err != nil {
		return false, true
	}
	switch {
	case status == http.StatusOK:
		return true, false
	case status == http.StatusTooManyRequests:
		return false, true
	case status >= 500:
		return false, true
	default:
		return true, false
	}
}

func classifyYahooError(operation string, status int, err error) error {
	if status == http.StatusNotFound {
		return provider.NewError(provider.KindUpstreamNotFound, providerName, operation, "not found", err)
	}
	return provider.NewError(provider.KindUpstreamTransient, providerName, operation, "request failed", err)
}

type yahooQuoteResult struct {
	Symbol              string  `json:"symbol"`
	LongName            string  `json:"longName"`
	ShortName           string  `json:"shortName"`
	RegularMarketPrice  float64 `json:"regularMarketPrice"`
	RegularMarketChange float64 `json:"regularMarketChange"`
	RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
	RegularMarketPreviousClose float64 `json:"regularMarketPreviousClose"`
	RegularMarketOpen   float64 `json:"regularMarketOpen"`
	RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
	RegularMarketDayLow float64 `json:"regularMarketDayLow"`
	RegularMarketVolume int64   `json:"regularMarketVolume"`
	MarketCap           float64 `json:"marketCap"`
	TrailingPE          float64 `json:"trailingPE"`
	Currency            string  `json:"currency"`
	FullExchangeName    string  `json:"fullExchangeName"`
}

type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []yahooQuoteResult `json:"result"`
		Error  interface{}        `json:"error"`
	} `json:"quoteResponse"`
}

func (a *Adapter) GetQuote(ctx context.Context, symbol types.Symbol) (*types.Quote, error) {
	ticker := resolveTicker(symbol.String())
	params := url.Values{"symbols": {ticker}}
	body, err := a.request(ctx, "quote", "/v7/finance/quote", params, ticker)
	if err != nil {
		return nil, err
	}

	var raw yahooQuoteResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, provider.NewError(provider.KindUpstreamTransient, providerName, "quote", "decode response", err)
	}
	if len(raw.QuoteResponse.Result) == 0 {
		return nil, provider.NewError(provider.KindUpstreamNotFound, providerName, "quote", "empty quote response", nil)
	}

	r := raw.QuoteResponse.Result[0]
	name := r.LongName
	if name == "" {
		name = r.ShortName
	}
	marketCap := decimal.NewFromFloat(r.MarketCap)
	peRatio := decimal.NewFromFloat(r.TrailingPE)
	exchange := r.FullExchangeName

	return &types.Quote{
		Symbol:        symbol,
		Name:          name,
		Price:         decimal.NewFromFloat(r.RegularMarketPrice),
		Change:        decimal.NewFromFloat(r.RegularMarketChange),
		ChangePercent: decimal.NewFromFloat(r.RegularMarketChangePercent),
		PreviousClose: decimal.NewFromFloat(r.RegularMarketPreviousClose),
		Open:          decimal.NewFromFloat(r.RegularMarketOpen),
		High:          decimal.NewFromFloat(r.RegularMarketDayHigh),
		Low:           decimal.NewFromFloat(r.RegularMarketDayLow),
		Volume:        r.RegularMarketVolume,
		MarketCap:     &marketCap,
		PERatio:       &peRatio,
		Currency:      r.Currency,
		Exchange:      &exchange,
		Timezone:      "America/New_York",
		LastUpdated:   time.Now().UTC(),
	}, nil
}

type yahooProfileResult struct {
	Symbol         string `json:"symbol"`
	LongName       string `json:"longName"`
	LongBusinessSummary string `json:"longBusinessSummary"`
	Industry       string `json:"industry"`
	Sector         string `json:"sector"`
	Country        string `json:"country"`
	Website        string `json:"website"`
	FullTimeEmployees int64 `json:"fullTimeEmployees"`
	Exchange       string `json:"exchange"`
	Currency       string `json:"currency"`
}

type yahooProfileResponse struct {
	QuoteSummary struct {
		Result []struct {
			AssetProfile yahooProfileResult `json:"assetProfile"`
		} `json:"result"`
	} `json:"quoteSummary"`
}

func (a *Adapter) GetProfile(ctx context.Context, symbol types.Symbol) (*types.Profile, error) {
	ticker := resolveTicker(symbol.String())
	params := url.Values{"modules": {"assetProfile"}}
	body, err := a.request(ctx, "profile", fmt.Sprintf("/v10/finance/quoteSummary/%s", ticker), params, ticker)
	if err != nil {
		return nil, err
	}

	var raw yahooProfileResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, provider.NewError(provider.KindUpstreamTransient, providerName, "profile", "decode response", err)
	}
	if len(raw.QuoteSummary.Result) == 0 {
		return nil, provider.NewError(provider.KindUpstreamNotFound, providerName, "profile", "empty profile response", nil)
	}

	p := raw.QuoteSummary.Result[0].AssetProfile
	website := p.Website
	employees := p.FullTimeEmployees

	return &types.Profile{
		Symbol:      symbol,
		CompanyName: p.LongName,
		Description: p.LongBusinessSummary,
		Industry:    p.Industry,
		Sector:      p.Sector,
		Country:     p.Country,
		Website:     &website,
		Employees:   &employees,
		Exchange:    p.Exchange,
		Currency:    p.Currency,
		LastUpdated: time.Now().UTC(),
	}, nil
}

type yahooChartResult struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

// yahooIntervalFor maps our Interval enum to Yahoo's chart-API interval
// strings, which mostly match our own vocabulary already.
func yahooIntervalFor(i types.Interval) string {
	return string(i)
}

func (a *Adapter) GetHistorical(ctx context.Context, params provider.HistoricalParams) (*types.HistoricalSeries, error) {
	if err := types.ValidatePeriodInterval(params.Period, params.Interval); err != nil {
		return nil, provider.NewError(provider.KindValidation, providerName, "history", err.Error(), err)
	}

	ticker := resolveTicker(params.Symbol.String())
	q := url.Values{
		"range":    {string(params.Period)},
		"interval": {yahooIntervalFor(params.Interval)},
	}
	body, err := a.request(ctx, "history", fmt.Sprintf("/v8/finance/chart/%s", ticker), q, ticker)
	if err != nil {
		return nil, err
	}

	var raw yahooChartResult
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, provider.NewError(provider.KindUpstreamTransient, providerName, "history", "decode response", err)
	}
	if len(raw.Chart.Result) == 0 || len(raw.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, provider.NewError(provider.KindUpstreamNotFound, providerName, "history", "empty chart response", nil)
	}

	r := raw.Chart.Result[0]
	q0 := r.Indicators.Quote[0]

	n := len(r.Timestamp)
	bars := make([]types.OHLCVBar, 0, n)
	for i := 0; i < n; i++ {
		if i >= len(q0.Close) {
			break
		}
		bars = append(bars, types.OHLCVBar{
			Date:   time.Unix(r.Timestamp[i], 0).UTC(),
			Open:   decimal.NewFromFloat(valueOr(q0.Open, i)),
			High:   decimal.NewFromFloat(valueOr(q0.High, i)),
			Low:    decimal.NewFromFloat(valueOr(q0.Low, i)),
			Close:  decimal.NewFromFloat(valueOr(q0.Close, i)),
			Volume: volumeOr(q0.Volume, i),
		})
	}

	series := &types.HistoricalSeries{
		Symbol:      params.Symbol,
		Period:      params.Period,
		Interval:    params.Interval,
		Count:       len(bars),
		Currency:    "USD",
		Timezone:    "America/New_York",
		Points:      bars,
		LastUpdated: time.Now().UTC(),
	}
	series.SortPoints()
	if len(series.Points) > 0 {
		series.StartDate = series.Points[0].Date
		series.EndDate = series.Points[len(series.Points)-1].Date
	}
	return series, nil
}

func valueOr(s []float64, i int) float64 {
	if i < len(s) {
		return s[i]
	}
	return 0
}

func volumeOr(s []int64, i int) int64 {
	if i < len(s) {
		return s[i]
	}
	return 0
}

// relevanceForRank maps a result's position to the 0-100 relevance
// scale: upstream returns best matches first, so score decays with rank.
func relevanceForRank(i int) float64 {
	score := 100 - float64(i)*5
	if score < 0 {
		return 0
	}
	return score
}

type yahooSearchQuote struct {
	Symbol      string `json:"symbol"`
	ShortName   string `json:"shortname"`
	QuoteType   string `json:"quoteType"`
	Exchange    string `json:"exchange"`
}

type yahooSearchResponse struct {
	Quotes []yahooSearchQuote `json:"quotes"`
}

func (a *Adapter) Search(ctx context.Context, query string, limit int) (*types.SearchResultSet, error) {
	start := time.Now()
	params := url.Values{"q": {query}, "quotesCount": {fmt.Sprintf("%d", limit)}, "newsCount": {"0"}}
	body, err := a.request(ctx, "search", "/v1/finance/search", params, query)
	if err != nil {
		return nil, err
	}

	var raw yahooSearchResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, provider.NewError(provider.KindUpstreamTransient, providerName, "search", "decode response", err)
	}

	results := make([]types.SearchResult, 0, len(raw.Quotes))
	for i, hit := range raw.Quotes {
		sym, err := types.NewSymbol(hit.Symbol)
		if err != nil {
			continue
		}
		assetType := types.AssetStock
		if strings.EqualFold(hit.QuoteType, "cryptocurrency") {
			assetType = types.AssetCrypto
		}
		results = append(results, types.SearchResult{
			Symbol:         sym,
			Name:           hit.ShortName,
			AssetType:      assetType,
			Exchange:       hit.Exchange,
			RelevanceScore: relevanceForRank(i),
		})
	}

	return &types.SearchResultSet{
		Query:            query,
		Results:          results,
		TotalCount:       len(results),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		LastUpdated:      time.Now().UTC(),
	}, nil
}

func (a *Adapter) GetMarketOverview(ctx context.Context) (*types.MarketOverview, error) {
	params := url.Values{"symbols": {"^GSPC,^IXIC,^DJI,BTC-USD,ETH-USD"}}
	body, err := a.request(ctx, "quote", "/v7/finance/quote", params, "overview")
	if err != nil {
		return nil, err
	}

	var raw yahooQuoteResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, provider.NewError(provider.KindUpstreamTransient, providerName, "market_overview", "decode response", err)
	}

	overview := &types.MarketOverview{
		MarketStatus: map[string]string{"us_equity": "unknown"},
		LastUpdated:  time.Now().UTC(),
	}
	for _, r := range raw.QuoteResponse.Result {
		// Yahoo's index tickers are "^"-prefixed (^GSPC, ^IXIC, ^DJI),
		// which the canonical Symbol alphabet doesn't admit; strip the
		// marker before normalizing rather than dropping the quote.
		sym, err := types.NewSymbol(strings.TrimPrefix(r.Symbol, "^"))
		if err != nil {
			continue
		}
		quote := types.Quote{
			Symbol:        sym,
			Name:          r.LongName,
			Price:         decimal.NewFromFloat(r.RegularMarketPrice),
			Change:        decimal.NewFromFloat(r.RegularMarketChange),
			ChangePercent: decimal.NewFromFloat(r.RegularMarketChangePercent),
			Currency:      r.Currency,
			LastUpdated:   time.Now().UTC(),
		}
		if strings.HasSuffix(r.Symbol, "-USD") {
			overview.Crypto = append(overview.Crypto, quote)
		} else {
			overview.Indices = append(overview.Indices, quote)
		}
	}
	return overview, nil
}

func (a *Adapter) HealthCheck(ctx context.Context) (bool, time.Duration, error) {
	start := time.Now()
	params := url.Values{"symbols": {"AAPL"}}
	_, err := a.request(ctx, "quote", "/v7/finance/quote", params, "health-check-AAPL")
	return err == nil, time.Since(start), err
}
