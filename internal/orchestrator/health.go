package orchestrator

import (
	"time"

	"github.com/archelyst/marketdata-go/internal/registry"
)

// HealthSnapshot is the canonical system-health response, a direct
// surface of the registry's per-provider stats plus the selection
// policy and uptime.
type HealthSnapshot struct {
	Timestamp     string                      `json:"timestamp"`
	Providers     []registry.ProviderSnapshot `json:"providers"`
	Policy        registry.Policy             `json:"policy"`
	FailoverCount int64                       `json:"failover_count"`
	UptimeSeconds float64                     `json:"uptime_seconds"`
}

// GetSystemHealth reports the factory's current view of every
// registered provider, used by the CLI's `health` subcommand and
// (outside this core) the HTTP layer's health endpoint.
func (s *Service) GetSystemHealth() HealthSnapshot {
	status := s.registry.Status()
	return HealthSnapshot{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Providers:     status.Providers,
		Policy:        status.Policy,
		FailoverCount: status.FailoverCount,
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
	}
}
