// Package registry implements the provider factory: registration,
// health monitoring, selection policy, and the circuit-breaker-guarded
// failover call every orchestrator operation goes through. It owns the
// adapter instances and their runtime stats for the process lifetime.
package registry

import "time"

// Status is a provider's current operational state. Providers start
// unknown, move to healthy/unhealthy after their first health check,
// and flip between the two on later checks; degraded is reserved for
// partial-function conditions and disabled is terminal.
type Status string

const (
	StatusUnknown   Status = "unknown"
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
	StatusDisabled  Status = "disabled"
)

// Policy selects which provider to try next among the available set.
type Policy string

const (
	PolicyPriorityOrder Policy = "priority_order"
	PolicyRoundRobin    Policy = "round_robin"
	PolicyHealthBased   Policy = "health_based"
	PolicyLoadBalanced  Policy = "load_balanced"
)

// RuntimeStats is the mutable per-provider bookkeeping the factory
// updates on every request outcome and health-check completion. Access
// is guarded by the owning providerEntry's mutex — never read or
// written directly from outside registry.go.
type RuntimeStats struct {
	Status              Status
	TotalRequests        int64
	SuccessfulRequests    int64
	FailedRequests        int64
	ConsecutiveFailures   int
	AvgResponseTimeS      float64 // exponential moving average, α=0.1
	LastHealthCheck       time.Time
	LastUsed              time.Time
	CircuitOpenedAt       time.Time
}

// SuccessRate returns SuccessfulRequests / TotalRequests, or 0 with no traffic.
func (s RuntimeStats) SuccessRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.SuccessfulRequests) / float64(s.TotalRequests)
}

// speedScore maps average response time onto 0-100: 0s is 100, 10s or
// slower is 0.
func (s RuntimeStats) speedScore() float64 {
	score := 100 - (s.AvgResponseTimeS/10)*100
	if score < 0 {
		return 0
	}
	return score
}

// healthScore implements 0.7*success_rate + 0.3*speed_score, expressed
// with success_rate scaled to the same 0-100 range as speed_score.
func (s RuntimeStats) healthScore() float64 {
	return 0.7*(s.SuccessRate()*100) + 0.3*s.speedScore()
}

// ProviderSnapshot is an immutable copy of one provider's status for
// factory_status() / health-endpoint consumption.
type ProviderSnapshot struct {
	Name     string
	Status   Status
	Priority int
	Stats    RuntimeStats
	CircuitOpen bool
}
