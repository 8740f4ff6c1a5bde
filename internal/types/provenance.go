package types

// Provenance describes what produced a response: which provider, what
// else was tried, how long it took, and whether it came from cache.
type Provenance struct {
	PrimarySource    string            `json:"primary_source"`
	FallbackSources  []string          `json:"fallback_sources"`
	ProcessingTimeMS int64             `json:"processing_time_ms"`
	CacheHit         bool              `json:"cache_hit"`
	CacheAgeSeconds  *float64          `json:"cache_age_seconds,omitempty"`
	ProviderHealth   map[string]string `json:"provider_health"`
}

// FallbackDefaultSource is the primary_source recorded on a response
// envelope when every provider failed.
const FallbackDefaultSource = "fallback_default"

// Envelope is the uniform response wrapper every public operation
// returns.
type Envelope struct {
	Success     bool           `json:"success"`
	Symbol      string         `json:"symbol,omitempty"`
	Query       string         `json:"query,omitempty"`
	Timestamp   string         `json:"timestamp"`
	DataQuality DataQualityMetrics `json:"data_quality"`
	Anomaly     *AnomalyReport `json:"anomaly_detection,omitempty"`
	Provenance  Provenance     `json:"provenance"`
	Error       string         `json:"error,omitempty"`
	Warnings    []string       `json:"warnings,omitempty"`
}
