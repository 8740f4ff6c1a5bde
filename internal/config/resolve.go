package config

import (
	"os"
	"sort"
	"strings"
	"time"

	"github.com/archelyst/marketdata-go/internal/ratelimit"
	"github.com/archelyst/marketdata-go/internal/registry"
)

// ResolvedProvider is one provider's fully-merged configuration: YAML
// defaults with {NAME}_API_KEY / {NAME}_BASE_URL /
// {NAME}_RATE_LIMIT_PER_MINUTE / {NAME}_PRIORITY environment overrides
// applied.
type ResolvedProvider struct {
	Name     string
	APIKey   string
	BaseURL  string
	Registry registry.Config
	Budget   ratelimit.Budget
}

// Resolve merges a named provider's YAML defaults with its environment
// overrides. The env var prefix is the upper-cased provider name (e.g.
// FMP_API_KEY, YAHOO_BASE_URL).
func Resolve(name string, d ProviderDefaults) ResolvedProvider {
	prefix := strings.ToUpper(name)

	baseURL := envStringOr(prefix+"_BASE_URL", d.BaseURL)
	priority := envInt(prefix+"_PRIORITY", d.Priority)
	rpm := envInt(prefix+"_RATE_LIMIT_PER_MINUTE", d.RateLimitPerMinute)

	rph := d.RateLimitPerHour
	if rpm > rph {
		rph = rpm
	}
	rpd := d.RateLimitPerDay
	if rph > rpd {
		rpd = rph
	}

	return ResolvedProvider{
		Name:    name,
		APIKey:  os.Getenv(prefix + "_API_KEY"),
		BaseURL: baseURL,
		Registry: registry.Config{
			Name:                    name,
			Enabled:                 d.Enabled,
			Priority:                priority,
			RequestsPerMinute:       rpm,
			CircuitBreakerThreshold: d.CircuitBreakerThreshold,
			CircuitBreakerTimeout:   time.Duration(d.CircuitBreakerTimeoutSecs) * time.Second,
			HealthCheckInterval:     time.Duration(d.HealthCheckIntervalSecs) * time.Second,
		},
		Budget: ratelimit.Budget{
			PerMinute: rpm,
			PerHour:   rph,
			PerDay:    rpd,
			Burst:     d.BurstLimit,
		},
	}
}

// ResolveAll resolves every provider in a defaults file, in a
// deterministic name-sorted order.
func ResolveAll(f *ProvidersFile) []ResolvedProvider {
	names := make([]string, 0, len(f.Providers))
	for name := range f.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ResolvedProvider, 0, len(names))
	for _, name := range names {
		out = append(out, Resolve(name, f.Providers[name]))
	}
	return out
}

func envStringOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
