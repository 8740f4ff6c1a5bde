package orchestrator

import (
	"context"
	"time"

	"github.com/archelyst/marketdata-go/internal/types"
)

// MarketOverviewResponse is the canonical get_market_overview response.
type MarketOverviewResponse struct {
	types.Envelope
	Data *types.MarketOverview `json:"data,omitempty"`
}

// GetMarketOverview fans out over a pre-agreed symbol set: the adapter
// populates whichever of indices/crypto/commodities/forex it could
// fetch. An empty category alone does not fail the request: it succeeds
// when at least one category is populated, and fails when every
// provider errors or every category comes back empty.
func (s *Service) GetMarketOverview(ctx context.Context) MarketOverviewResponse {
	ctx, _ = s.requestContext(ctx)
	start := time.Now()

	callCtx, cancel, cacheMeta := s.callContext(ctx)
	defer cancel()

	overview, call, err := s.registry.GetMarketOverview(callCtx, s.maxRetries, s.globalTimeout)
	elapsed := time.Since(start)

	if err != nil {
		return MarketOverviewResponse{Envelope: failureEnvelope(elapsed, castErr(err))}
	}

	populated := len(overview.Indices) > 0 || len(overview.Crypto) > 0 ||
		len(overview.Commodities) > 0 || len(overview.Forex) > 0

	o := buildOutcome(call, elapsed, cacheMeta)
	quality := s.qualityFor(call.Provider, o.cacheHit, elapsed, completenessForSymbolOnly(populated))

	var warnings []string
	if !populated {
		warnings = append(warnings, "market overview returned no populated categories")
	}

	return MarketOverviewResponse{
		Envelope: types.Envelope{
			Success:     populated,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			DataQuality: quality,
			Provenance:  s.buildProvenance(o),
			Warnings:    warnings,
		},
		Data: overview,
	}
}
