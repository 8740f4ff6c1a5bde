// Package orchestrator implements the market data service: the single
// entry point higher layers call. It wires the registry (failover),
// the cache, and the quality/anomaly computations together and
// assembles the uniform response envelope.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/archelyst/marketdata-go/internal/cache"
	"github.com/archelyst/marketdata-go/internal/provider"
	"github.com/archelyst/marketdata-go/internal/registry"
	"github.com/archelyst/marketdata-go/internal/types"
)

// AnomalyConfig holds the global anomaly-detection knobs.
type AnomalyConfig struct {
	Enabled                  bool
	PriceChangeThresholdPct  float64
	VolumeSpikeMultiplier    float64
}

// DefaultAnomalyConfig enables detection with a 20% price-change
// threshold and a 5x volume-spike multiplier.
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{Enabled: true, PriceChangeThresholdPct: 20.0, VolumeSpikeMultiplier: 5.0}
}

// Service is the Market Data Service: the only entry point higher
// layers use. It holds no mutable state of its own — all shared state
// lives in the registry and cache it was constructed with.
type Service struct {
	registry      *registry.Registry
	cache         *cache.Service
	anomalyCfg    AnomalyConfig
	globalTimeout time.Duration
	maxRetries    int
	log           zerolog.Logger
	startedAt     time.Time
}

// New constructs the orchestrator over an already-initialized registry
// and cache.
func New(reg *registry.Registry, cacheSvc *cache.Service, anomalyCfg AnomalyConfig, globalTimeout time.Duration, maxRetries int, log zerolog.Logger) *Service {
	return &Service{
		registry:      reg,
		cache:         cacheSvc,
		anomalyCfg:    anomalyCfg,
		globalTimeout: globalTimeout,
		maxRetries:    maxRetries,
		log:           log.With().Str("component", "orchestrator").Logger(),
		startedAt:     time.Now(),
	}
}

// requestContext attaches a logger stamped with a fresh correlation id
// to ctx (readable through zerolog.Ctx). No code in this module reads it
// back, so no log line carries the id.
func (s *Service) requestContext(ctx context.Context) (context.Context, zerolog.Logger) {
	reqID := uuid.NewString()
	log := s.log.With().Str("request_id", reqID).Logger()
	return log.WithContext(ctx), log
}

// outcome bundles what a factory call produced, used to build the
// quality/anomaly/provenance envelope uniformly across operations.
type outcome struct {
	call          registry.Call
	cacheHit      bool
	cacheAge      *time.Duration
	elapsed       time.Duration
}

// buildProvenance assembles the Provenance block for a successful call.
func (s *Service) buildProvenance(o outcome) types.Provenance {
	var ageSeconds *float64
	if o.cacheAge != nil {
		v := o.cacheAge.Seconds()
		ageSeconds = &v
	}
	return types.Provenance{
		PrimarySource:    o.call.Provider,
		FallbackSources:  o.call.FallbackSources,
		ProcessingTimeMS: o.elapsed.Milliseconds(),
		CacheHit:         o.cacheHit,
		CacheAgeSeconds:  ageSeconds,
		ProviderHealth:   s.registry.ProviderHealthMap(),
	}
}

// failureEnvelope builds the canonical "every provider failed"
// envelope: success=false, zeroed quality, fallback provenance.
func failureEnvelope(elapsed time.Duration, err error) types.Envelope {
	return types.Envelope{
		Success:     false,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		DataQuality: types.ZeroQuality(),
		Provenance: types.Provenance{
			PrimarySource:    types.FallbackDefaultSource,
			ProcessingTimeMS: elapsed.Milliseconds(),
		},
		Error: err.Error(),
	}
}

// accuracyForProvider looks up the declared baseline for whichever
// provider produced the data.
func (s *Service) accuracyForProvider(name string) float64 {
	p, ok := s.registry.Adapter(name)
	if !ok {
		return types.ProviderBaselineAccuracy(types.TierUnknown)
	}
	return types.ProviderBaselineAccuracy(p.Capabilities().Tier)
}

// callContext wraps ctx with both the per-call timeout and a fresh
// CacheMeta tracker, so whichever adapter ends up serving the call can
// record a cache hit/age that the orchestrator reads back once the
// failover call returns.
func (s *Service) callContext(ctx context.Context) (context.Context, context.CancelFunc, *provider.CacheMeta) {
	ctx, cancel := context.WithTimeout(ctx, s.globalTimeout)
	ctx, meta := provider.WithCacheMetaTracker(ctx)
	return ctx, cancel, meta
}

// buildOutcome assembles an outcome from a successful factory call and
// the CacheMeta recorded by whichever adapter produced it.
func buildOutcome(call registry.Call, elapsed time.Duration, meta *provider.CacheMeta) outcome {
	o := outcome{call: call, elapsed: elapsed, cacheHit: meta.Hit}
	if meta.Hit {
		age := meta.Age
		o.cacheAge = &age
	}
	return o
}

// castErr narrows err to *provider.Error when possible, falling back to
// a generic AllProvidersFailed wrapper — every error that escapes the
// registry should already be one, but this keeps the orchestrator
// defensive against a future adapter that panics-to-error incorrectly.
func castErr(err error) *provider.Error {
	if pe, ok := err.(*provider.Error); ok {
		return pe
	}
	return provider.NewError(provider.KindAllProvidersFailed, "", "", err.Error(), err)
}
