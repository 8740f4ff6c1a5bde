package orchestrator

import (
	"context"
	"time"

	"github.com/archelyst/marketdata-go/internal/provider"
	"github.com/archelyst/marketdata-go/internal/types"
)

// SearchResponse is the canonical search response.
type SearchResponse struct {
	types.Envelope
	Data *types.SearchResultSet `json:"data,omitempty"`
}

// Search runs a symbol search with failover. assetTypes, if non-empty,
// filters the provider's results down to the requested instrument kinds
// after normalization — the adapter interface does not carry an
// asset-type filter itself, so the orchestrator applies it uniformly
// across providers.
func (s *Service) Search(ctx context.Context, query string, assetTypes []types.AssetType, limit int) SearchResponse {
	ctx, _ = s.requestContext(ctx)
	start := time.Now()

	if query == "" {
		return SearchResponse{Envelope: failureEnvelope(time.Since(start),
			provider.NewError(provider.KindValidation, "", "search", "query must not be empty", nil))}
	}
	if limit <= 0 {
		limit = 10
	}

	callCtx, cancel, cacheMeta := s.callContext(ctx)
	defer cancel()

	set, call, err := s.registry.Search(callCtx, s.maxRetries, s.globalTimeout, query, limit)
	elapsed := time.Since(start)

	if err != nil {
		return SearchResponse{Envelope: failureEnvelope(elapsed, castErr(err))}
	}

	filterSearchResults(set, assetTypes)

	o := buildOutcome(call, elapsed, cacheMeta)
	quality := s.qualityFor(call.Provider, o.cacheHit, elapsed, completenessForSymbolOnly(len(set.Results) > 0))

	return SearchResponse{
		Envelope: types.Envelope{
			Success:     true,
			Query:       query,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			DataQuality: quality,
			Provenance:  s.buildProvenance(o),
		},
		Data: set,
	}
}

// filterSearchResults restricts set.Results to the requested asset
// types in place, leaving it untouched when no filter was requested.
func filterSearchResults(set *types.SearchResultSet, assetTypes []types.AssetType) {
	if len(assetTypes) == 0 {
		return
	}
	allowed := make(map[types.AssetType]bool, len(assetTypes))
	for _, a := range assetTypes {
		allowed[a] = true
	}

	filtered := set.Results[:0]
	for _, r := range set.Results {
		if allowed[r.AssetType] {
			filtered = append(filtered, r)
		}
	}
	set.Results = filtered
	set.TotalCount = len(filtered)
}
