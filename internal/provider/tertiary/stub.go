// Package tertiary provides a minimal, disabled-by-default third
// provider slot. It exercises the registry's N-provider selection and
// failover paths without a real upstream integration behind it.
package tertiary

import (
	"context"
	"time"

	"github.com/archelyst/marketdata-go/internal/provider"
	"github.com/archelyst/marketdata-go/internal/types"
)

const providerName = "polygon"

// Adapter is a data-empty provider that declares stock, profile and
// history support (no crypto, search or overview): every
// method returns KindUpstreamNotFound immediately. It is meant to be
// registered with Enabled: false until a real Polygon.io integration
// replaces it.
type Adapter struct{}

// New constructs the stub adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return providerName }

func (a *Adapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Name:             providerName,
		Tier:             types.TierPremium,
		SupportsStocks:   true,
		SupportsCrypto:   false,
		SupportsProfiles: true,
		SupportsHistory:  true,
		SupportsSearch:   false,
		SupportsOverview: false,
		Priority:         5,
		RequiresAPIKey:   true,
	}
}

func notImplemented(endpoint string) error {
	return provider.NewError(provider.KindUpstreamNotFound, providerName, endpoint, "tertiary provider is a stub; not wired to a real upstream", nil)
}

func (a *Adapter) GetQuote(ctx context.Context, symbol types.Symbol) (*types.Quote, error) {
	return nil, notImplemented("quote")
}

func (a *Adapter) GetProfile(ctx context.Context, symbol types.Symbol) (*types.Profile, error) {
	return nil, notImplemented("profile")
}

func (a *Adapter) GetHistorical(ctx context.Context, params provider.HistoricalParams) (*types.HistoricalSeries, error) {
	return nil, notImplemented("historical")
}

func (a *Adapter) Search(ctx context.Context, query string, limit int) (*types.SearchResultSet, error) {
	return nil, notImplemented("search")
}

func (a *Adapter) GetMarketOverview(ctx context.Context) (*types.MarketOverview, error) {
	return nil, notImplemented("market_overview")
}

func (a *Adapter) HealthCheck(ctx context.Context) (bool, time.Duration, error) {
	return false, 0, notImplemented("health_check")
}
