package orchestrator

import (
	"context"
	"time"

	"github.com/archelyst/marketdata-go/internal/types"
)

// ProfileResponse is the canonical get_profile response.
type ProfileResponse struct {
	types.Envelope
	Data *types.Profile `json:"data,omitempty"`
}

// GetProfile fetches a company/asset profile with failover. Its
// completeness required-field set is {symbol} only, since a profile
// carries no price.
func (s *Service) GetProfile(ctx context.Context, symbol types.Symbol) ProfileResponse {
	ctx, _ = s.requestContext(ctx)
	start := time.Now()

	callCtx, cancel, cacheMeta := s.callContext(ctx)
	defer cancel()

	profile, call, err := s.registry.GetProfile(callCtx, s.maxRetries, s.globalTimeout, symbol)
	elapsed := time.Since(start)

	if err != nil {
		return ProfileResponse{Envelope: failureEnvelope(elapsed, castErr(err))}
	}

	o := buildOutcome(call, elapsed, cacheMeta)

	quality := s.qualityFor(call.Provider, o.cacheHit, elapsed, completenessForSymbolOnly(profile.Symbol != ""))

	return ProfileResponse{
		Envelope: types.Envelope{
			Success:     true,
			Symbol:      symbol.String(),
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			DataQuality: quality,
			Provenance:  s.buildProvenance(o),
		},
		Data: profile,
	}
}
