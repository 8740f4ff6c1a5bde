// Package cache implements the multi-level, TTL-tiered cache shared by
// every provider adapter: per-level TTLs, deterministic parameterized
// keys, hit/miss/set/error statistics, pattern invalidation, and cache
// warming, over a swappable in-memory or Redis backend.
package cache

import (
	"context"
	"time"
)

// Level names one of the seven TTL tiers.
type Level string

const (
	LevelRealTime       Level = "real_time"
	LevelQuotes         Level = "quotes"
	LevelProfiles       Level = "profiles"
	LevelHistorical     Level = "historical"
	LevelSearch         Level = "search"
	LevelMarketOverview Level = "market_overview"
	LevelAIInsights     Level = "ai_insights"
)

// defaultTTLs is keyed by data class: the faster it goes stale, the
// shorter it lives.
var defaultTTLs = map[Level]time.Duration{
	LevelRealTime:       30 * time.Second,
	LevelQuotes:         60 * time.Second,
	LevelProfiles:       3600 * time.Second,
	LevelHistorical:     14400 * time.Second,
	LevelSearch:         900 * time.Second,
	LevelMarketOverview: 300 * time.Second,
	LevelAIInsights:     1800 * time.Second,
}

// TTL returns the default TTL for a level, or zero if the level is
// unrecognized (callers should treat that as "do not cache").
func TTL(level Level) time.Duration {
	return defaultTTLs[level]
}

// Backend is the storage interface the cache service is built on: an
// in-memory map or a Redis client. Get/Set work over raw bytes; Delete
// and pattern Scan exist so invalidation and size introspection can be
// implemented without reaching past the interface.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}
