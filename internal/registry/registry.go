package registry

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/archelyst/marketdata-go/internal/provider"
	"github.com/archelyst/marketdata-go/internal/types"
)

// Config is the per-provider registration config: priority, rate
// limits, and circuit breaker thresholds.
type Config struct {
	Name                  string
	Enabled               bool
	Priority              int
	RequestsPerMinute     int
	CircuitBreakerThreshold uint32
	CircuitBreakerTimeout   time.Duration
	HealthCheckInterval     time.Duration
}

// DefaultConfig fills in the standard per-provider defaults.
func DefaultConfig(name string, priority int) Config {
	return Config{
		Name:                    name,
		Enabled:                 true,
		Priority:                priority,
		RequestsPerMinute:       60,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   60 * time.Second,
		HealthCheckInterval:     60 * time.Second,
	}
}

type providerEntry struct {
	mu      sync.RWMutex
	adapter provider.Provider
	cfg     Config
	stats   RuntimeStats
	breaker *gobreaker.CircuitBreaker
}

func (e *providerEntry) snapshot() ProviderSnapshot {
	e.checkCircuitRecovery()
	e.mu.RLock()
	defer e.mu.RUnlock()
	return ProviderSnapshot{
		Name:        e.cfg.Name,
		Status:      e.stats.Status,
		Priority:    e.cfg.Priority,
		Stats:       e.stats,
		CircuitOpen: e.breaker.State() == gobreaker.StateOpen,
	}
}

// available reports whether a provider is eligible for selection:
// enabled, healthy or degraded, and breaker not open. The adapter is
// always non-nil once registered, since InitializeAll runs before any
// request can reach the registry.
func (e *providerEntry) available() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.cfg.Enabled {
		return false
	}
	if e.stats.Status != StatusHealthy && e.stats.Status != StatusDegraded {
		return false
	}
	return e.breaker.State() != gobreaker.StateOpen
}

// Registry owns provider configs and adapter instances for the process
// lifetime, selects among them, and tracks per-provider runtime stats.
type Registry struct {
	mu            sync.RWMutex
	entries       map[string]*providerEntry
	order         []string // registration order, used for round-robin tiebreak
	policy        Policy
	log           zerolog.Logger
	failoverCount int64
	rrCursor      int
	maxHealthConcurrency int
}

// New constructs an empty registry with the given selection policy.
func New(policy Policy, maxHealthConcurrency int, log zerolog.Logger) *Registry {
	if maxHealthConcurrency <= 0 {
		maxHealthConcurrency = 4
	}
	return &Registry{
		entries:              make(map[string]*providerEntry),
		policy:               policy,
		log:                  log.With().Str("component", "registry").Logger(),
		maxHealthConcurrency: maxHealthConcurrency,
	}
}

// Register adds a provider before InitializeAll is called.
func (r *Registry) Register(adapter provider.Provider, cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := StatusUnknown
	if !cfg.Enabled {
		status = StatusDisabled
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     cfg.CircuitBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.CircuitBreakerThreshold
		},
		// A denial from our own rate limiter is an attempt, not a
		// provider failure; it must never move the breaker toward
		// open.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			pe, ok := err.(*provider.Error)
			return ok && pe.Kind == provider.KindRateLimited
		},
	})

	r.entries[cfg.Name] = &providerEntry{
		adapter: adapter,
		cfg:     cfg,
		stats:   RuntimeStats{Status: status},
		breaker: breaker,
	}
	r.order = append(r.order, cfg.Name)
}

// InitializeAll health-checks every enabled provider once, setting its
// initial status to healthy or unhealthy.
func (r *Registry) InitializeAll(ctx context.Context) map[string]bool {
	r.mu.RLock()
	names := append([]string(nil), r.order...)
	r.mu.RUnlock()

	result := make(map[string]bool, len(names))
	for _, name := range names {
		e := r.entries[name]
		e.mu.RLock()
		enabled := e.cfg.Enabled
		e.mu.RUnlock()
		if !enabled {
			result[name] = false
			continue
		}

		healthy, latency, err := e.adapter.HealthCheck(ctx)
		e.mu.Lock()
		e.stats.LastHealthCheck = time.Now()
		if err == nil && healthy {
			e.stats.Status = StatusHealthy
			e.stats.AvgResponseTimeS = latency.Seconds()
		} else {
			e.stats.Status = StatusUnhealthy
		}
		e.mu.Unlock()

		result[name] = err == nil && healthy
		r.log.Info().Str("provider", name).Bool("healthy", healthy).Msg("provider initialized")
	}
	return result
}

// availableNames returns the names of providers currently eligible for
// selection, in registration order.
func (r *Registry) availableNames() []string {
	r.mu.RLock()
	names := append([]string(nil), r.order...)
	r.mu.RUnlock()

	var out []string
	for _, n := range names {
		if r.entries[n].available() {
			out = append(out, n)
		}
	}
	return out
}

// select picks the next provider per the configured policy, excluding
// anything in attempted.
func (r *Registry) selectProvider(attempted map[string]bool) (string, bool) {
	candidates := r.availableNames()
	var filtered []string
	for _, n := range candidates {
		if !attempted[n] {
			filtered = append(filtered, n)
		}
	}
	if len(filtered) == 0 {
		return "", false
	}

	switch r.policy {
	case PolicyRoundRobin:
		sort.Strings(filtered)
		r.mu.Lock()
		idx := r.rrCursor % len(filtered)
		r.rrCursor++
		r.mu.Unlock()
		return filtered[idx], true

	case PolicyHealthBased:
		best := filtered[0]
		bestScore := -1.0
		for _, n := range filtered {
			e := r.entries[n]
			e.mu.RLock()
			score := e.stats.healthScore()
			e.mu.RUnlock()
			if score > bestScore {
				bestScore = score
				best = n
			}
		}
		return best, true

	case PolicyLoadBalanced:
		weights := make([]float64, len(filtered))
		total := 0.0
		for i, n := range filtered {
			e := r.entries[n]
			e.mu.RLock()
			rpm := e.cfg.RequestsPerMinute
			e.mu.RUnlock()
			w := 1.0 / float64(rpm+1)
			weights[i] = w
			total += w
		}
		pick := rand.Float64() * total
		cum := 0.0
		for i, w := range weights {
			cum += w
			if pick <= cum {
				return filtered[i], true
			}
		}
		return filtered[len(filtered)-1], true

	default: // PolicyPriorityOrder
		best := filtered[0]
		bestPriority := r.entries[best].cfg.Priority
		for _, n := range filtered[1:] {
			if p := r.entries[n].cfg.Priority; p < bestPriority {
				best = n
				bestPriority = p
			}
		}
		return best, true
	}
}

// Call records what a failover-guarded invocation ended up doing: who
// served it and who was tried first.
type Call struct {
	Provider        string
	FallbackSources []string
}

// invoke runs op against the named provider's adapter, updating its
// runtime stats and circuit breaker from the outcome.
func (r *Registry) invoke(ctx context.Context, name string, timeout time.Duration, op func(context.Context, provider.Provider) (any, error)) (any, error) {
	e := r.entries[name]

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result, breakerErr := e.breaker.Execute(func() (any, error) {
		return op(callCtx, e.adapter)
	})
	elapsed := time.Since(start)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.TotalRequests++

	var perr *provider.Error
	if pe, ok := breakerErr.(*provider.Error); ok {
		perr = pe
	}
	isRateLimited := perr != nil && perr.Kind == provider.KindRateLimited

	switch {
	case breakerErr == nil:
		const alpha = 0.1
		if e.stats.AvgResponseTimeS == 0 {
			e.stats.AvgResponseTimeS = elapsed.Seconds()
		} else {
			e.stats.AvgResponseTimeS = alpha*elapsed.Seconds() + (1-alpha)*e.stats.AvgResponseTimeS
		}
		e.stats.SuccessfulRequests++
		e.stats.ConsecutiveFailures = 0
		e.stats.LastUsed = time.Now()
		if e.stats.Status == StatusUnhealthy {
			e.stats.Status = StatusHealthy
		}
	case isRateLimited:
		// Rate-limit denials are attempts, not failures: stats stay
		// untouched, so undo the total_requests increment applied
		// above.
		e.stats.TotalRequests--
	default:
		e.stats.FailedRequests++
		e.stats.ConsecutiveFailures++
		if e.stats.ConsecutiveFailures >= int(e.cfg.CircuitBreakerThreshold) && e.stats.CircuitOpenedAt.IsZero() {
			e.stats.CircuitOpenedAt = time.Now()
		}
		// Rejected credentials won't heal on retry: take the provider
		// out of rotation now and leave it for operational review
		// rather than burning the failover budget on it.
		if perr != nil && perr.Kind == provider.KindUpstreamAuth {
			e.stats.Status = StatusUnhealthy
		}
	}

	return result, breakerErr
}

// GetWithFailover tries up to maxRetries+1 providers in selection
// order, returning the first success. Rate-limited attempts skip a
// provider without recording it as a fallback source.
func (r *Registry) GetWithFailover(ctx context.Context, maxRetries int, timeout time.Duration, op func(context.Context, provider.Provider) (any, error)) (any, Call, error) {
	attempted := make(map[string]bool)
	var fallback []string
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		name, ok := r.selectProvider(attempted)
		if !ok {
			if lastErr == nil {
				lastErr = provider.NewError(provider.KindAllProvidersFailed, "", "", "no available providers", nil)
			}
			break
		}
		attempted[name] = true

		result, err := r.invoke(ctx, name, timeout, op)
		if err == nil {
			return result, Call{Provider: name, FallbackSources: fallback}, nil
		}

		lastErr = err
		if perr, ok := err.(*provider.Error); !ok || perr.Kind != provider.KindRateLimited {
			fallback = append(fallback, name)
		}

		if attempt < maxRetries {
			r.mu.Lock()
			r.failoverCount++
			r.mu.Unlock()
		}

		select {
		case <-ctx.Done():
			return nil, Call{FallbackSources: fallback}, ctx.Err()
		default:
		}
	}

	if lastErr == nil {
		lastErr = provider.NewError(provider.KindAllProvidersFailed, "", "", "all providers failed", nil)
	}
	return nil, Call{FallbackSources: fallback}, lastErr
}

// Typed convenience wrappers over GetWithFailover: each binds one
// adapter operation so callers don't repeat the closure-and-type-assert
// dance.

func (r *Registry) GetQuote(ctx context.Context, maxRetries int, timeout time.Duration, symbol types.Symbol) (*types.Quote, Call, error) {
	result, call, err := r.GetWithFailover(ctx, maxRetries, timeout, func(ctx context.Context, p provider.Provider) (any, error) {
		return p.GetQuote(ctx, symbol)
	})
	if err != nil {
		return nil, call, err
	}
	return result.(*types.Quote), call, nil
}

func (r *Registry) GetProfile(ctx context.Context, maxRetries int, timeout time.Duration, symbol types.Symbol) (*types.Profile, Call, error) {
	result, call, err := r.GetWithFailover(ctx, maxRetries, timeout, func(ctx context.Context, p provider.Provider) (any, error) {
		return p.GetProfile(ctx, symbol)
	})
	if err != nil {
		return nil, call, err
	}
	return result.(*types.Profile), call, nil
}

func (r *Registry) GetHistorical(ctx context.Context, maxRetries int, timeout time.Duration, params provider.HistoricalParams) (*types.HistoricalSeries, Call, error) {
	result, call, err := r.GetWithFailover(ctx, maxRetries, timeout, func(ctx context.Context, p provider.Provider) (any, error) {
		return p.GetHistorical(ctx, params)
	})
	if err != nil {
		return nil, call, err
	}
	return result.(*types.HistoricalSeries), call, nil
}

func (r *Registry) Search(ctx context.Context, maxRetries int, timeout time.Duration, query string, limit int) (*types.SearchResultSet, Call, error) {
	result, call, err := r.GetWithFailover(ctx, maxRetries, timeout, func(ctx context.Context, p provider.Provider) (any, error) {
		return p.Search(ctx, query, limit)
	})
	if err != nil {
		return nil, call, err
	}
	return result.(*types.SearchResultSet), call, nil
}

func (r *Registry) GetMarketOverview(ctx context.Context, maxRetries int, timeout time.Duration) (*types.MarketOverview, Call, error) {
	result, call, err := r.GetWithFailover(ctx, maxRetries, timeout, func(ctx context.Context, p provider.Provider) (any, error) {
		return p.GetMarketOverview(ctx)
	})
	if err != nil {
		return nil, call, err
	}
	return result.(*types.MarketOverview), call, nil
}

// FactoryStatus is the registry's operational snapshot: per-provider
// stats, selection policy, and failover counter.
type FactoryStatus struct {
	Providers     []ProviderSnapshot
	Policy        Policy
	FailoverCount int64
}

func (r *Registry) Status() FactoryStatus {
	r.mu.RLock()
	names := append([]string(nil), r.order...)
	policy := r.policy
	failovers := r.failoverCount
	r.mu.RUnlock()

	snaps := make([]ProviderSnapshot, 0, len(names))
	for _, n := range names {
		snaps = append(snaps, r.entries[n].snapshot())
	}
	return FactoryStatus{Providers: snaps, Policy: policy, FailoverCount: failovers}
}

// ProviderHealthMap returns name -> status string, used for provenance
// assembly.
func (r *Registry) ProviderHealthMap() map[string]string {
	st := r.Status()
	out := make(map[string]string, len(st.Providers))
	for _, p := range st.Providers {
		out[p.Name] = string(p.Status)
	}
	return out
}

// Adapter returns the named provider's adapter directly, for callers
// (cache warming, the orchestrator's baseline-accuracy lookup) that need
// a specific provider rather than failover selection.
func (r *Registry) Adapter(name string) (provider.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.adapter, true
}

// StartHealthMonitor runs a background loop that probes any provider
// whose last health check is older than its configured interval,
// bounded to maxHealthConcurrency concurrent probes via a semaphore
// channel. It never blocks request handling for long, since it holds
// each providerEntry's lock only briefly: to check whether a probe is
// due and to record the probe's result.
func (r *Registry) StartHealthMonitor(ctx context.Context, tick time.Duration) {
	sem := make(chan struct{}, r.maxHealthConcurrency)
	go func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.runHealthSweep(ctx, sem)
			}
		}
	}()
}

func (r *Registry) runHealthSweep(ctx context.Context, sem chan struct{}) {
	r.mu.RLock()
	names := append([]string(nil), r.order...)
	r.mu.RUnlock()

	var wg sync.WaitGroup
	now := time.Now()
	for _, name := range names {
		e := r.entries[name]
		e.mu.RLock()
		due := e.cfg.Enabled && now.Sub(e.stats.LastHealthCheck) >= e.cfg.HealthCheckInterval
		e.mu.RUnlock()
		if !due {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(name string, e *providerEntry) {
			defer wg.Done()
			defer func() { <-sem }()

			probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			healthy, latency, err := e.adapter.HealthCheck(probeCtx)

			e.mu.Lock()
			prev := e.stats.Status
			e.stats.LastHealthCheck = time.Now()
			if err == nil && healthy {
				e.stats.Status = StatusHealthy
				e.stats.AvgResponseTimeS = latency.Seconds()
			} else {
				e.stats.Status = StatusUnhealthy
			}
			next := e.stats.Status
			e.mu.Unlock()

			if prev != next {
				r.log.Info().Str("provider", name).Str("from", string(prev)).Str("to", string(next)).
					Msg("provider status transition")
			}
		}(name, e)
	}
	wg.Wait()
}

// checkCircuitRecovery supports the half-open-on-next-request model:
// when the breaker's own Timeout elapses it already transitions to
// half-open internally (gobreaker's native behavior), so this only
// zeroes our own stats view of the open circuit once that happens —
// call it opportunistically before reporting status.
func (e *providerEntry) checkCircuitRecovery() {
	if e.breaker.State() != gobreaker.StateOpen {
		e.mu.Lock()
		if !e.stats.CircuitOpenedAt.IsZero() {
			e.stats.CircuitOpenedAt = time.Time{}
			e.stats.ConsecutiveFailures = 0
		}
		e.mu.Unlock()
	}
}

// healthSnapshot reports the raw RuntimeStats for tests and diagnostics
// without exposing the unexported providerEntry type.
func (r *Registry) healthSnapshot(name string) (RuntimeStats, bool) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return RuntimeStats{}, false
	}
	e.checkCircuitRecovery()
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats, true
}
