package orchestrator

import (
	"context"
	"time"

	"github.com/archelyst/marketdata-go/internal/provider"
	"github.com/archelyst/marketdata-go/internal/types"
)

// HistoricalResponse is the canonical get_historical response.
type HistoricalResponse struct {
	types.Envelope
	Data *types.HistoricalSeries `json:"data,omitempty"`
}

// GetHistorical fetches an OHLCV series with failover. Adapters sort
// their bars ascending before returning, and the orchestrator re-checks
// before accepting the response: a series that arrives out of order or
// with duplicate dates is rejected outright rather than silently
// repaired.
func (s *Service) GetHistorical(ctx context.Context, params provider.HistoricalParams) HistoricalResponse {
	ctx, _ = s.requestContext(ctx)
	start := time.Now()

	if err := types.ValidatePeriodInterval(params.Period, params.Interval); err != nil {
		return HistoricalResponse{Envelope: failureEnvelope(time.Since(start),
			provider.NewError(provider.KindValidation, "", "historical", err.Error(), err))}
	}

	callCtx, cancel, cacheMeta := s.callContext(ctx)
	defer cancel()

	series, call, err := s.registry.GetHistorical(callCtx, s.maxRetries, s.globalTimeout, params)
	elapsed := time.Since(start)

	if err != nil {
		return HistoricalResponse{Envelope: failureEnvelope(elapsed, castErr(err))}
	}

	if !series.IsSorted() {
		return HistoricalResponse{Envelope: failureEnvelope(elapsed,
			provider.NewError(provider.KindUpstreamTransient, call.Provider, "historical",
				"provider returned an out-of-order or duplicate-date historical series", nil))}
	}

	o := buildOutcome(call, elapsed, cacheMeta)
	quality := s.qualityFor(call.Provider, o.cacheHit, elapsed, completenessForSymbolOnly(series.Symbol != ""))

	return HistoricalResponse{
		Envelope: types.Envelope{
			Success:     true,
			Symbol:      params.Symbol.String(),
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			DataQuality: quality,
			Provenance:  s.buildProvenance(o),
		},
		Data: series,
	}
}
