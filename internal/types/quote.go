package types

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a normalized, provider-agnostic market quote.
type Quote struct {
	Symbol         Symbol           `json:"symbol"`
	Name           string           `json:"name"`
	Price          decimal.Decimal  `json:"price"`
	Change         decimal.Decimal  `json:"change"`
	ChangePercent  decimal.Decimal  `json:"change_percent"`
	PreviousClose  decimal.Decimal  `json:"previous_close"`
	Open           decimal.Decimal  `json:"open"`
	High           decimal.Decimal  `json:"high"`
	Low            decimal.Decimal  `json:"low"`
	Volume         int64            `json:"volume"`
	MarketCap      *decimal.Decimal `json:"market_cap,omitempty"`
	PERatio        *decimal.Decimal `json:"pe_ratio,omitempty"`
	Bid            *decimal.Decimal `json:"bid,omitempty"`
	Ask            *decimal.Decimal `json:"ask,omitempty"`
	Currency       string           `json:"currency"`
	Exchange       *string          `json:"exchange,omitempty"`
	Timezone       string           `json:"timezone"`
	LastUpdated    time.Time        `json:"last_updated"`
}

// Profile is a normalized company/asset profile.
type Profile struct {
	Symbol       Symbol           `json:"symbol"`
	CompanyName  string           `json:"company_name"`
	Description  string           `json:"description"`
	Industry     string           `json:"industry"`
	Sector       string           `json:"sector"`
	Country      string           `json:"country"`
	Website      *string          `json:"website,omitempty"`
	MarketCap    *decimal.Decimal `json:"market_cap,omitempty"`
	Employees    *int64           `json:"employees,omitempty"`
	Exchange     string           `json:"exchange"`
	Currency     string           `json:"currency"`
	CEO          *string          `json:"ceo,omitempty"`
	Founded      *string          `json:"founded,omitempty"`
	Headquarters *string          `json:"headquarters,omitempty"`
	LastUpdated  time.Time        `json:"last_updated"`
}

// OHLCVBar is a single historical bar.
type OHLCVBar struct {
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// HistoricalSeries is a normalized, strictly-ascending-by-date OHLCV series.
type HistoricalSeries struct {
	Symbol      Symbol     `json:"symbol"`
	Period      Period     `json:"period"`
	Interval    Interval   `json:"interval"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     time.Time  `json:"end_date"`
	Count       int        `json:"count"`
	Currency    string     `json:"currency"`
	Timezone    string     `json:"timezone"`
	Points      []OHLCVBar `json:"points"`
	LastUpdated time.Time  `json:"last_updated"`
}

// IsSorted reports whether Points is strictly ascending by Date, with no
// duplicate dates. The orchestrator rejects any provider response that
// fails this before accepting it.
func (h HistoricalSeries) IsSorted() bool {
	for i := 1; i < len(h.Points); i++ {
		if !h.Points[i].Date.After(h.Points[i-1].Date) {
			return false
		}
	}
	return true
}

// SortPoints sorts Points ascending by Date in place.
func (h *HistoricalSeries) SortPoints() {
	sort.Slice(h.Points, func(i, j int) bool {
		return h.Points[i].Date.Before(h.Points[j].Date)
	})
}

// SearchResult is one normalized security search hit.
type SearchResult struct {
	Symbol         Symbol           `json:"symbol"`
	Name           string           `json:"name"`
	AssetType      AssetType        `json:"asset_type"`
	Exchange       string           `json:"exchange"`
	Currency       string           `json:"currency"`
	Country        *string          `json:"country,omitempty"`
	Industry       *string          `json:"industry,omitempty"`
	MarketCap      *decimal.Decimal `json:"market_cap,omitempty"`
	RelevanceScore float64          `json:"relevance_score"`
}

// SearchResultSet is the full result of a symbol search.
type SearchResultSet struct {
	Query            string         `json:"query"`
	Results          []SearchResult `json:"results"`
	TotalCount       int            `json:"total_count"`
	ProcessingTimeMS int64          `json:"processing_time_ms"`
	LastUpdated      time.Time      `json:"last_updated"`
}

// MarketOverview is the broad-market snapshot fanned out across
// categories.
type MarketOverview struct {
	Indices       []Quote           `json:"indices"`
	Crypto        []Quote           `json:"crypto"`
	Commodities   []Quote           `json:"commodities"`
	Forex         []Quote           `json:"forex"`
	MarketStatus  map[string]string `json:"market_status"`
	LastUpdated   time.Time         `json:"last_updated"`
}
