package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/archelyst/marketdata-go/internal/registry"
)

func TestDefaultProvidersFileIsValid(t *testing.T) {
	f := DefaultProvidersFile()
	for name, p := range f.Providers {
		require.NoError(t, p.Validate(name))
	}
	require.Contains(t, f.Providers, "fmp")
	require.Contains(t, f.Providers, "yahoo")
	require.False(t, f.Providers["polygon"].Enabled, "tertiary provider ships disabled")
}

func TestLoadProvidersFileRejectsBadBudgets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")
	doc := `
providers:
  fmp:
    base_url: https://example.com
    rate_limit_per_minute: 500
    rate_limit_per_hour: 100
    rate_limit_per_day: 1000
    circuit_breaker_threshold: 5
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	_, err := LoadProvidersFile(path)
	require.Error(t, err, "per-minute budget above per-hour must fail validation")
}

func TestResolveAppliesEnvOverrides(t *testing.T) {
	t.Setenv("FMP_API_KEY", "test-key")
	t.Setenv("FMP_BASE_URL", "https://override.example.com")
	t.Setenv("FMP_RATE_LIMIT_PER_MINUTE", "120")

	d := DefaultProvidersFile().Providers["fmp"]
	rp := Resolve("fmp", d)

	require.Equal(t, "test-key", rp.APIKey)
	require.Equal(t, "https://override.example.com", rp.BaseURL)
	require.Equal(t, 120, rp.Budget.PerMinute)
	require.NoError(t, rp.Budget.Validate(), "env-raised per-minute must keep the budget monotonic")
	require.Equal(t, 120, rp.Registry.RequestsPerMinute)
	require.Equal(t, 60*time.Second, rp.Registry.CircuitBreakerTimeout)
}

func TestResolveAllIsNameSorted(t *testing.T) {
	resolved := ResolveAll(DefaultProvidersFile())
	require.Len(t, resolved, 3)
	require.Equal(t, "fmp", resolved[0].Name)
	require.Equal(t, "polygon", resolved[1].Name)
	require.Equal(t, "yahoo", resolved[2].Name)
}

func TestLoadGlobalConfigDefaultsAndOverrides(t *testing.T) {
	t.Setenv("GLOBAL_TIMEOUT_SECONDS", "7")
	t.Setenv("FAILOVER_STRATEGY", "health_based")
	t.Setenv("ANOMALY_DETECTION_ENABLED", "false")
	t.Setenv("PRICE_CHANGE_ANOMALY_THRESHOLD_PCT", "35.5")

	g := LoadGlobalConfig()
	require.Equal(t, 7*time.Second, g.Timeout())
	require.Equal(t, registry.PolicyHealthBased, g.FailoverStrategy)
	require.False(t, g.AnomalyDetectionEnabled)
	require.Equal(t, 35.5, g.PriceChangeThresholdPct)
	require.Equal(t, 5.0, g.VolumeSpikeMultiplier, "unset knobs keep their documented defaults")
}

func TestLoadGlobalConfigRejectsUnknownPolicy(t *testing.T) {
	t.Setenv("FAILOVER_STRATEGY", "coin_flip")
	g := LoadGlobalConfig()
	require.Equal(t, registry.PolicyPriorityOrder, g.FailoverStrategy)
}
