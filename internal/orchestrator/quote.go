package orchestrator

import (
	"context"
	"time"

	"github.com/archelyst/marketdata-go/internal/provider"
	"github.com/archelyst/marketdata-go/internal/types"
)

// QuoteResponse is the canonical get_quote response, generic over the
// envelope wrapper so every operation shares the same provenance/quality
// machinery while still returning a strongly-typed payload.
type QuoteResponse struct {
	types.Envelope
	Data *types.Quote `json:"data,omitempty"`
}

// GetQuote validates its inputs, calls the registry with failover, then
// computes quality/anomaly/provenance and returns the envelope. Nothing
// below this method ever panics or returns an error the caller must
// additionally handle — failures are encoded in the envelope itself.
func (s *Service) GetQuote(ctx context.Context, symbol types.Symbol, assetType types.AssetType) QuoteResponse {
	ctx, _ = s.requestContext(ctx)
	start := time.Now()

	if !assetType.Valid() {
		return QuoteResponse{Envelope: failureEnvelope(time.Since(start),
			provider.NewError(provider.KindValidation, "", "quote", "invalid asset_type", nil))}
	}

	callCtx, cancel, cacheMeta := s.callContext(ctx)
	defer cancel()

	quote, call, err := s.registry.GetQuote(callCtx, s.maxRetries, s.globalTimeout, symbol)
	elapsed := time.Since(start)

	if err != nil {
		return QuoteResponse{Envelope: failureEnvelope(elapsed, castErr(err))}
	}

	o := buildOutcome(call, elapsed, cacheMeta)

	quality := s.qualityFor(call.Provider, o.cacheHit, elapsed, completenessForQuote(quote))
	anomaly := s.detectQuoteAnomalies(quote, nil)

	return QuoteResponse{
		Envelope: types.Envelope{
			Success:     true,
			Symbol:      symbol.String(),
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			DataQuality: quality,
			Anomaly:     &anomaly,
			Provenance:  s.buildProvenance(o),
		},
		Data: quote,
	}
}
