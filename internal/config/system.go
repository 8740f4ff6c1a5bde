package config

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/archelyst/marketdata-go/internal/cache"
	"github.com/archelyst/marketdata-go/internal/orchestrator"
	"github.com/archelyst/marketdata-go/internal/provider"
	"github.com/archelyst/marketdata-go/internal/provider/free"
	"github.com/archelyst/marketdata-go/internal/provider/premium"
	"github.com/archelyst/marketdata-go/internal/provider/tertiary"
	"github.com/archelyst/marketdata-go/internal/ratelimit"
	"github.com/archelyst/marketdata-go/internal/registry"
)

// System bundles the fully-wired runtime: the only thing CLI commands
// (and any future outer caller) need to hold onto.
type System struct {
	Cache      *cache.Service
	Limiter    *ratelimit.Limiter
	Registry   *registry.Registry
	Orchestrator *orchestrator.Service
	Global     GlobalConfig
}

// Build constructs a System from a providers file and the process
// environment. Provider names in the file with no adapter
// implementation are logged and skipped rather than silently dropped.
func Build(ctx context.Context, providersPath string, log zerolog.Logger) (*System, error) {
	pf, err := LoadProvidersFile(providersPath)
	if err != nil {
		log.Warn().Err(err).Str("path", providersPath).Msg("falling back to built-in provider defaults")
		pf = DefaultProvidersFile()
	}

	global := LoadGlobalConfig()
	resolved := ResolveAll(pf)

	var backend cache.Backend
	if global.CacheBackendURL != "" {
		backend = cache.NewRedisBackend(global.CacheBackendURL, global.RedisPassword, global.RedisDB)
	} else {
		backend = cache.NewMemoryBackend()
	}
	cacheSvc := cache.NewService(backend, log)

	limiter := ratelimit.NewLimiter()
	reg := registry.New(global.FailoverStrategy, global.MaxConcurrentHealthChecks, log)

	for _, rp := range resolved {
		if err := limiter.SetBudget(rp.Name, rp.Budget); err != nil {
			return nil, fmt.Errorf("config: provider %s: %w", rp.Name, err)
		}

		adapter, ok := buildAdapter(rp, cacheSvc, limiter, log)
		if !ok {
			log.Warn().Str("provider", rp.Name).Msg("no adapter implementation for configured provider; skipping registration")
			continue
		}
		reg.Register(adapter, rp.Registry)
	}

	reg.InitializeAll(ctx)
	// The sweep tick just bounds how often due providers are noticed;
	// each provider's own HealthCheckInterval decides whether it is due.
	reg.StartHealthMonitor(ctx, 30*time.Second)

	orch := orchestrator.New(reg, cacheSvc, global.AnomalyConfig(), global.Timeout(), 2, log)

	return &System{
		Cache:        cacheSvc,
		Limiter:      limiter,
		Registry:     reg,
		Orchestrator: orch,
		Global:       global,
	}, nil
}

// buildAdapter maps a resolved provider name onto its concrete adapter
// constructor. Only the three known providers are wired; a
// providers.yaml entry naming anything else is reported and skipped
// rather than guessed at.
func buildAdapter(rp ResolvedProvider, cacheSvc *cache.Service, limiter *ratelimit.Limiter, log zerolog.Logger) (provider.Provider, bool) {
	qps := float64(rp.Budget.PerMinute) / 60.0

	switch rp.Name {
	case "fmp":
		return premium.New(premium.Config{APIKey: rp.APIKey, BaseURL: rp.BaseURL, PacingQPS: qps, PacingBurst: rp.Budget.Burst}, cacheSvc, limiter, log), true
	case "yahoo":
		return free.New(free.Config{BaseURL: rp.BaseURL, PacingQPS: qps, PacingBurst: rp.Budget.Burst}, cacheSvc, limiter, log), true
	case "polygon":
		return tertiary.New(), true
	default:
		return nil, false
	}
}
