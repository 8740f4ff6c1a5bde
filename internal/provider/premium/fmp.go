// Package premium implements the paid-tier provider adapter for
// Financial Modeling Prep: query-string API-key auth, higher rate
// budgets, and FMP's wire format. Each request runs the shared guarded
// fetch: rate-limit check, cache read, retrying GET, cache write.
package premium

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/archelyst/marketdata-go/internal/cache"
	"github.com/archelyst/marketdata-go/internal/provider"
	"github.com/archelyst/marketdata-go/internal/ratelimit"
	"github.com/archelyst/marketdata-go/internal/types"
)

const providerName = "fmp"

// Config configures an FMP adapter instance.
type Config struct {
	APIKey  string
	BaseURL string // defaults to https://financialmodelingprep.com/api/v3

	// PacingQPS bounds the courtesy outbound pace applied on top of the
	// sliding-window rate limiter (see provider.PacedTransport). Zero
	// falls back to a conservative default.
	PacingQPS   float64
	PacingBurst int
}

// Adapter is the premium-tier FMP-grounded provider.
type Adapter struct {
	cfg        Config
	httpClient *http.Client
	cacheSvc   *cache.Service
	limiter    *ratelimit.Limiter
	log        zerolog.Logger
	retry      provider.RetryConfig
}

// New constructs an FMP adapter wired to the shared cache and rate
// limiter. Callers must also register a ratelimit.Budget for "fmp" on
// limiter before use.
func New(cfg Config, cacheSvc *cache.Service, limiter *ratelimit.Limiter, log zerolog.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://financialmodelingprep.com/api/v3"
	}
	qps := cfg.PacingQPS
	if qps <= 0 {
		qps = 1.0 // 60 req/min, FMP's default reference rate budget
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
		Tier:             types.TierPremium,
		SupportsStocks:   true,
		SupportsCrypto:   true,
		SupportsProfiles: true,
		SupportsHistory:  true,
		SupportsSearch:   true,
		SupportsOverview: true,
		Priority:         0,
		RequiresAPIKey:   true,
	}
}

// cacheLevelFor maps an endpoint class to its cache tier.
func cacheLevelFor(endpoint string) cache.Level {
	switch endpoint {
	case "quote":
		return cache.LevelQuotes
	case "profile":
		return cache.LevelProfiles
	case "historical":
		return cache.LevelHistorical
	case "search":
		return cache.LevelSearch
	case "market_overview":
		return cache.LevelMarketOverview
	default:
		return cache.LevelRealTime
	}
}

// request performs a rate-limit-gated, cached, retrying GET against an
// FMP endpoint and returns the decoded JSON body.
func (a *Adapter) request(ctx context.Context, endpoint, path string, params url.Values, cacheIdentifier string) (json.RawMessage, error) {
	allowed, diag := a.limiter.IsAllowed(providerName, endpoint)
	if !allowed {
		return nil, provider.NewError(provider.KindRateLimited, providerName, endpoint,
			fmt.Sprintf("rate limit exceeded on %s window", diag.ExceededWindow), nil)
	}

	level := cacheLevelFor(endpoint)
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

	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("apikey", a.cfg.APIKey)

	reqURL := fmt.Sprintf("%s%s?%s", a.cfg.BaseURL, path, q.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, provider.NewError(provider.KindUpstreamTransient, providerName, endpoint, "build request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "archelyst-marketdata-go/1.0")

	status, body, err := provider.WithRetry(ctx, a.retry, func(ctx context.Context, req *http.Request) (int, []byte, error) {
		return provider.HTTPDo(a.httpClient, req)
	}, httpReq, classifyFMPResponse)

	if err != nil {
		return nil, classifyFMPError(endpoint, status, err)
	}
	if status != http.StatusOK {
		return nil, classifyFMPError(endpoint, status, nil)
	}

	if a.cacheSvc != nil {
		_ = a.cacheSvc.Set(ctx, level, providerName, cacheIdentifier, cacheParams, json.RawMessage(body), 0)
	}

	return body, nil
}

func classifyFMPResponse(status int, body []byte, err error) (done, retry bool) {
	if err != nil {
		return false, true
	}
	switch {
	case status == http.StatusOK:
		return true, false
	case status == http.StatusTooManyRequests:
		return false, true
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return true, false
	case status >= 500:
		return false, true
	default:
		return true, false
	}
}

func classifyFMPError(endpoint string, status int, err error) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return provider.NewError(provider.KindUpstreamAuth, providerName, endpoint, "authentication failed", err)
	case status == http.StatusNotFound:
		return provider.NewError(provider.KindUpstreamNotFound, providerName, endpoint, "not found", err)
	default:
		return provider.NewError(provider.KindUpstreamTransient, providerName, endpoint, "request failed", err)
	}
}

type fmpQuote struct {
	Symbol             string  `json:"symbol"`
	Name               string  `json:"name"`
	Price              float64 `json:"price"`
	Change             float64 `json:"change"`
	ChangesPercentage  float64 `json:"changesPercentage"`
	PreviousClose      float64 `json:"previousClose"`
	Open               float64 `json:"open"`
	DayHigh            float64 `json:"dayHigh"`
	DayLow             float64 `json:"dayLow"`
	Volume             int64   `json:"volume"`
	MarketCap          float64 `json:"marketCap"`
	PE                 float64 `json:"pe"`
}

func (a *Adapter) GetQuote(ctx context.Context, symbol types.Symbol) (*types.Quote, error) {
	params := url.Values{"symbol": {symbol.String()}}
	body, err := a.request(ctx, "quote", "/quote", params, symbol.String())
	if err != nil {
		return nil, err
	}

	var raw []fmpQuote
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, provider.NewError(provider.KindUpstreamTransient, providerName, "quote", "decode response", err)
	}
	if len(raw) == 0 {
		return nil, provider.NewError(provider.KindUpstreamNotFound, providerName, "quote", "empty quote response", nil)
	}

	q := raw[0]
	marketCap := decimal.NewFromFloat(q.MarketCap)
	peRatio := decimal.NewFromFloat(q.PE)

	return &types.Quote{
		Symbol:        symbol,
		Name:          q.Name,
		Price:         decimal.NewFromFloat(q.Price),
		Change:        decimal.NewFromFloat(q.Change),
		ChangePercent: decimal.NewFromFloat(q.ChangesPercentage),
		PreviousClose: decimal.NewFromFloat(q.PreviousClose),
		Open:          decimal.NewFromFloat(q.Open),
		High:          decimal.NewFromFloat(q.DayHigh),
		Low:           decimal.NewFromFloat(q.DayLow),
		Volume:        q.Volume,
		MarketCap:     &marketCap,
		PERatio:       &peRatio,
		Currency:      "USD",
		Timezone:      "America/New_York",
		LastUpdated:   time.Now().UTC(),
	}, nil
}

type fmpProfile struct {
	Symbol             string  `json:"symbol"`
	CompanyName        string  `json:"companyName"`
	Description        string  `json:"description"`
	Industry           string  `json:"industry"`
	Sector             string  `json:"sector"`
	Country            string  `json:"country"`
	Website            string  `json:"website"`
	MktCap             float64 `json:"mktCap"`
	FullTimeEmployees  string  `json:"fullTimeEmployees"`
	ExchangeShortName  string  `json:"exchangeShortName"`
	Currency           string  `json:"currency"`
	CEO                string  `json:"ceo"`
}

func (a *Adapter) GetProfile(ctx context.Context, symbol types.Symbol) (*types.Profile, error) {
	params := url.Values{"symbol": {symbol.String()}}
	body, err := a.request(ctx, "profile", "/profile", params, symbol.String())
	if err != nil {
		return nil, err
	}

	var raw []fmpProfile
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, provider.NewError(provider.KindUpstreamTransient, providerName, "profile", "decode response", err)
	}
	if len(raw) == 0 {
		return nil, provider.NewError(provider.KindUpstreamNotFound, providerName, "profile", "empty profile response", nil)
	}

	p := raw[0]
	marketCap := decimal.NewFromFloat(p.MktCap)
	website := p.Website
	ceo := p.CEO

	profile := &types.Profile{
		Symbol:      symbol,
		CompanyName: p.CompanyName,
		Description: p.Description,
		Industry:    p.Industry,
		Sector:      p.Sector,
		Country:     p.Country,
		Website:     &website,
		MarketCap:   &marketCap,
		Exchange:    p.ExchangeShortName,
		Currency:    p.Currency,
		CEO:         &ceo,
		LastUpdated: time.Now().UTC(),
	}
	// FMP serializes the head count as a string; an unparseable value
	// stays absent rather than becoming a fabricated zero.
	if n, err := strconv.ParseInt(p.FullTimeEmployees, 10, 64); err == nil {
		profile.Employees = &n
	}
	return profile, nil
}

type fmpHistoricalBar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

type fmpHistoricalResponse struct {
	Symbol     string              `json:"symbol"`
	Historical []fmpHistoricalBar  `json:"historical"`
}

func (a *Adapter) GetHistorical(ctx context.Context, params provider.HistoricalParams) (*types.HistoricalSeries, error) {
	if err := types.ValidatePeriodInterval(params.Period, params.Interval); err != nil {
		return nil, provider.NewError(provider.KindValidation, providerName, "historical", err.Error(), err)
	}

	q := url.Values{"symbol": {params.Symbol.String()}}
	body, err := a.request(ctx, "historical", "/historical-price-full", q, params.Symbol.String())
	if err != nil {
		return nil, err
	}

	var raw fmpHistoricalResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, provider.NewError(provider.KindUpstreamTransient, providerName, "historical", "decode response", err)
	}

	// FMP returns newest-first; cap at 100 bars.
	limit := len(raw.Historical)
	if limit > 100 {
		limit = 100
	}

	bars := make([]types.OHLCVBar, 0, limit)
	for i := 0; i < limit; i++ {
		b := raw.Historical[i]
		date, err := time.Parse("2006-01-02", b.Date)
		if err != nil {
			continue
		}
		bars = append(bars, types.OHLCVBar{
			Date:   date,
			Open:   decimal.NewFromFloat(b.Open),
			High:   decimal.NewFromFloat(b.High),
			Low:    decimal.NewFromFloat(b.Low),
			Close:  decimal.NewFromFloat(b.Close),
			Volume: b.Volume,
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

// relevanceForRank maps a result's position to the 0-100 relevance
// scale: upstream returns best matches first, so score decays with rank.
func relevanceForRank(i int) float64 {
	score := 100 - float64(i)*5
	if score < 0 {
		return 0
	}
	return score
}

type fmpSearchHit struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
	StockExchange string `json:"stockExchange"`
}

func (a *Adapter) Search(ctx context.Context, query string, limit int) (*types.SearchResultSet, error) {
	start := time.Now()
	q := url.Values{"query": {query}, "limit": {fmt.Sprintf("%d", limit)}}
	body, err := a.request(ctx, "search", "/search", q, query)
	if err != nil {
		return nil, err
	}

	var raw []fmpSearchHit
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, provider.NewError(provider.KindUpstreamTransient, providerName, "search", "decode response", err)
	}

	results := make([]types.SearchResult, 0, len(raw))
	for i, hit := range raw {
		sym, err := types.NewSymbol(hit.Symbol)
		if err != nil {
			continue
		}
		results = append(results, types.SearchResult{
			Symbol:         sym,
			Name:           hit.Name,
			AssetType:      types.AssetStock,
			Exchange:       hit.StockExchange,
			Currency:       hit.Currency,
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
	q := url.Values{"symbol": {"SPY,QQQ,DIA,BTC-USD,ETH-USD"}}
	body, err := a.request(ctx, "market_overview", "/quote/SPY,QQQ,DIA,BTC-USD,ETH-USD", q, "overview")
	if err != nil {
		return nil, err
	}

	var raw []fmpQuote
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, provider.NewError(provider.KindUpstreamTransient, providerName, "market_overview", "decode response", err)
	}

	overview := &types.MarketOverview{
		MarketStatus: map[string]string{"us_equity": "unknown"},
		LastUpdated:  time.Now().UTC(),
	}
	for _, q := range raw {
		sym, err := types.NewSymbol(q.Symbol)
		if err != nil {
			continue
		}
		quote := types.Quote{
			Symbol:        sym,
			Name:          q.Name,
			Price:         decimal.NewFromFloat(q.Price),
			Change:        decimal.NewFromFloat(q.Change),
			ChangePercent: decimal.NewFromFloat(q.ChangesPercentage),
			Currency:      "USD",
			LastUpdated:   time.Now().UTC(),
		}
		switch q.Symbol {
		case "BTC-USD", "ETH-USD":
			overview.Crypto = append(overview.Crypto, quote)
		default:
			overview.Indices = append(overview.Indices, quote)
		}
	}
	return overview, nil
}

func (a *Adapter) HealthCheck(ctx context.Context) (bool, time.Duration, error) {
	start := time.Now()
	q := url.Values{"symbol": {"AAPL"}}
	_, err := a.request(ctx, "quote", "/quote", q, "health-check-AAPL")
	latency := time.Since(start)
	return err == nil, latency, err
}
