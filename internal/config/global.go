package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/archelyst/marketdata-go/internal/orchestrator"
	"github.com/archelyst/marketdata-go/internal/registry"
)

// GlobalConfig is the process-wide configuration surface, loaded
// entirely from the environment (no YAML equivalent — these are
// deploy-time knobs, not per-provider defaults).
type GlobalConfig struct {
	TimeoutSeconds            int
	MaxConcurrentHealthChecks int
	FailoverStrategy          registry.Policy
	AnomalyDetectionEnabled   bool
	PriceChangeThresholdPct   float64
	VolumeSpikeMultiplier     float64
	CacheBackendURL           string
	RedisPassword             string
	RedisDB                   int
}

// LoadGlobalConfig reads GLOBAL_TIMEOUT_SECONDS, MAX_CONCURRENT_HEALTH_CHECKS,
// FAILOVER_STRATEGY, ANOMALY_DETECTION_ENABLED, PRICE_CHANGE_ANOMALY_THRESHOLD_PCT,
// VOLUME_SPIKE_MULTIPLIER, and CACHE_BACKEND_URL, falling back to the
// orchestrator's and registry's own defaults.
func LoadGlobalConfig() GlobalConfig {
	defaultAnomaly := orchestrator.DefaultAnomalyConfig()
	return GlobalConfig{
		TimeoutSeconds:            envInt("GLOBAL_TIMEOUT_SECONDS", 10),
		MaxConcurrentHealthChecks: envInt("MAX_CONCURRENT_HEALTH_CHECKS", 4),
		FailoverStrategy:          envPolicy("FAILOVER_STRATEGY", registry.PolicyPriorityOrder),
		AnomalyDetectionEnabled:   envBool("ANOMALY_DETECTION_ENABLED", defaultAnomaly.Enabled),
		PriceChangeThresholdPct:   envFloat("PRICE_CHANGE_ANOMALY_THRESHOLD_PCT", defaultAnomaly.PriceChangeThresholdPct),
		VolumeSpikeMultiplier:     envFloat("VOLUME_SPIKE_MULTIPLIER", defaultAnomaly.VolumeSpikeMultiplier),
		CacheBackendURL:           os.Getenv("CACHE_BACKEND_URL"),
		RedisPassword:             os.Getenv("CACHE_BACKEND_PASSWORD"),
		RedisDB:                   envInt("CACHE_BACKEND_DB", 0),
	}
}

// Timeout returns the global per-call timeout as a time.Duration.
func (g GlobalConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// AnomalyConfig narrows GlobalConfig down to the orchestrator's anomaly
// detection knobs.
func (g GlobalConfig) AnomalyConfig() orchestrator.AnomalyConfig {
	return orchestrator.AnomalyConfig{
		Enabled:                 g.AnomalyDetectionEnabled,
		PriceChangeThresholdPct: g.PriceChangeThresholdPct,
		VolumeSpikeMultiplier:   g.VolumeSpikeMultiplier,
	}
}

func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envPolicy(key string, fallback registry.Policy) registry.Policy {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	switch registry.Policy(strings.ToLower(v)) {
	case registry.PolicyPriorityOrder, registry.PolicyRoundRobin, registry.PolicyHealthBased, registry.PolicyLoadBalanced:
		return registry.Policy(strings.ToLower(v))
	default:
		return fallback
	}
}
