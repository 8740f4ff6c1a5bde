// Package config loads the market-data orchestrator's configuration
// surface: YAML-file provider defaults layered under
// environment-variable overrides for secrets and per-deploy tuning,
// plus the wiring that assembles the full runtime from them.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProviderDefaults is one provider's entry in the YAML defaults file:
// its registry, rate-limit, and circuit-breaker knobs.
type ProviderDefaults struct {
	BaseURL                    string `yaml:"base_url"`
	Priority                   int    `yaml:"priority"`
	Enabled                    bool   `yaml:"enabled"`
	RequiresAPIKey             bool   `yaml:"requires_api_key"`
	RateLimitPerMinute         int    `yaml:"rate_limit_per_minute"`
	RateLimitPerHour           int    `yaml:"rate_limit_per_hour"`
	RateLimitPerDay            int    `yaml:"rate_limit_per_day"`
	BurstLimit                 int    `yaml:"burst_limit"`
	CircuitBreakerThreshold    uint32 `yaml:"circuit_breaker_threshold"`
	CircuitBreakerTimeoutSecs  int    `yaml:"circuit_breaker_timeout_seconds"`
	HealthCheckIntervalSecs    int    `yaml:"health_check_interval_seconds"`
}

// Validate ensures a provider's YAML defaults are internally
// consistent.
func (p *ProviderDefaults) Validate(name string) error {
	if p.BaseURL == "" {
		return fmt.Errorf("provider %s: base_url cannot be empty", name)
	}
	if p.RateLimitPerMinute <= 0 {
		return fmt.Errorf("provider %s: rate_limit_per_minute must be positive, got %d", name, p.RateLimitPerMinute)
	}
	if p.RateLimitPerHour < p.RateLimitPerMinute {
		return fmt.Errorf("provider %s: rate_limit_per_hour (%d) must be >= rate_limit_per_minute (%d)", name, p.RateLimitPerHour, p.RateLimitPerMinute)
	}
	if p.RateLimitPerDay < p.RateLimitPerHour {
		return fmt.Errorf("provider %s: rate_limit_per_day (%d) must be >= rate_limit_per_hour (%d)", name, p.RateLimitPerDay, p.RateLimitPerHour)
	}
	if p.CircuitBreakerThreshold == 0 {
		return fmt.Errorf("provider %s: circuit_breaker_threshold must be positive", name)
	}
	return nil
}

// ProvidersFile is the root of the YAML provider-defaults document.
type ProvidersFile struct {
	Providers map[string]ProviderDefaults `yaml:"providers"`
}

// LoadProvidersFile loads and validates the provider defaults document.
func LoadProvidersFile(path string) (*ProvidersFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read providers file: %w", err)
	}

	var f ProvidersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse providers file: %w", err)
	}

	for name, p := range f.Providers {
		if err := p.Validate(name); err != nil {
			return nil, fmt.Errorf("config: invalid providers file: %w", err)
		}
	}

	return &f, nil
}

// DefaultProvidersFile returns the reference set of provider defaults
// shipped at config/providers.yaml, used when no file is supplied or as
// a fallback if the configured path is missing.
func DefaultProvidersFile() *ProvidersFile {
	return &ProvidersFile{
		Providers: map[string]ProviderDefaults{
			"fmp": {
				BaseURL:                   "https://financialmodelingprep.com/api/v3",
				Priority:                  0,
				Enabled:                   true,
				RequiresAPIKey:            true,
				RateLimitPerMinute:        60,
				RateLimitPerHour:          2000,
				RateLimitPerDay:           20000,
				BurstLimit:                10,
				CircuitBreakerThreshold:   5,
				CircuitBreakerTimeoutSecs: 60,
				HealthCheckIntervalSecs:   60,
			},
			"yahoo": {
				BaseURL:                   "https://query1.finance.yahoo.com",
				Priority:                  10,
				Enabled:                   true,
				RequiresAPIKey:            false,
				RateLimitPerMinute:        30,
				RateLimitPerHour:          1000,
				RateLimitPerDay:           10000,
				BurstLimit:                5,
				CircuitBreakerThreshold:   5,
				CircuitBreakerTimeoutSecs: 60,
				HealthCheckIntervalSecs:   60,
			},
			"polygon": {
				BaseURL:                   "https://api.polygon.io",
				Priority:                  5,
				Enabled:                   false,
				RequiresAPIKey:            true,
				RateLimitPerMinute:        5,
				RateLimitPerHour:          100,
				RateLimitPerDay:           1000,
				BurstLimit:                2,
				CircuitBreakerThreshold:   5,
				CircuitBreakerTimeoutSecs: 60,
				HealthCheckIntervalSecs:   120,
			},
		},
	}
}
