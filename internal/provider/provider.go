// Package provider defines the adapter contract every market-data
// source implements, and the shared error/capability types the registry
// and orchestrator use to reason about providers generically. Concrete
// adapters live in sibling packages (premium, free, tertiary).
package provider

import (
	"context"
	"time"

	"github.com/archelyst/marketdata-go/internal/types"
)

// Tier classifies a provider for baseline accuracy and default priority
// purposes; re-exported here so adapters don't need to import types
// just for this alias.
type Tier = types.ProviderTier

// Capabilities declares what a provider can serve and how it should be
// weighed against others.
type Capabilities struct {
	Name              string
	Tier              Tier
	SupportsStocks    bool
	SupportsCrypto    bool
	SupportsProfiles  bool
	SupportsHistory   bool
	SupportsSearch    bool
	SupportsOverview  bool
	Priority          int // lower runs first under priority_order selection
	RequiresAPIKey    bool
}

// HistoricalParams bundles a historical-data request's shape.
type HistoricalParams struct {
	Symbol   types.Symbol
	Period   types.Period
	Interval types.Interval
}

// Provider is the contract every market-data source implements. Every
// method returns raw normalized domain data and an error; quality
// scoring, anomaly detection, and failover are layered on top by the
// registry and orchestrator — an adapter only knows how to fetch and
// normalize its own wire format.
type Provider interface {
	Name() string
	Capabilities() Capabilities

	GetQuote(ctx context.Context, symbol types.Symbol) (*types.Quote, error)
	GetProfile(ctx context.Context, symbol types.Symbol) (*types.Profile, error)
	GetHistorical(ctx context.Context, params HistoricalParams) (*types.HistoricalSeries, error)
	Search(ctx context.Context, query string, limit int) (*types.SearchResultSet, error)
	GetMarketOverview(ctx context.Context) (*types.MarketOverview, error)

	// HealthCheck performs a lightweight upstream probe (distinct from
	// the registry's passive success/failure tracking) and reports how
	// long it took.
	HealthCheck(ctx context.Context) (healthy bool, latency time.Duration, err error)
}
