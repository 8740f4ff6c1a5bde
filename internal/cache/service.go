package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// envelope wraps every cached payload with the write time, so Get can
// report cache age to the orchestrator's provenance block without the
// backend needing to expose its own clock (Redis TTL only tells you
// time-to-live, not time-since-write).
type envelope struct {
	StoredAt time.Time       `json:"stored_at"`
	Payload  json.RawMessage `json:"payload"`
}

// Service is the multi-level cache facade used by the rest of the
// system, generalized over the Backend interface so the same logic runs
// atop either MemoryBackend or RedisBackend.
type Service struct {
	backend Backend
	stats   *Stats
	log     zerolog.Logger
}

// NewService builds a cache service over the given backend.
func NewService(backend Backend, log zerolog.Logger) *Service {
	return &Service{backend: backend, stats: newStats(), log: log.With().Str("component", "cache").Logger()}
}

// Result is what Get returns on a hit.
type Result struct {
	Payload json.RawMessage
	Age     time.Duration
}

// Get fetches and unwraps a cached value, recording a hit or miss.
func (s *Service) Get(ctx context.Context, level Level, provider, identifier string, params map[string]string) (*Result, error) {
	key := MakeKey(level, provider, identifier, params)

	raw, found, err := s.backend.Get(ctx, key)
	if err != nil {
		s.stats.recordError(level, provider)
		s.log.Error().Err(err).Str("key", key).Msg("cache get error")
		return nil, err
	}
	if !found {
		s.stats.recordMiss(level, provider)
		return nil, nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.stats.recordError(level, provider)
		return nil, fmt.Errorf("cache: corrupt entry for key %s: %w", key, err)
	}

	s.stats.recordHit(level, provider)
	return &Result{Payload: env.Payload, Age: time.Since(env.StoredAt)}, nil
}

// Set stores a JSON-marshalable value under the level's default TTL,
// or ttlOverride if positive.
func (s *Service) Set(ctx context.Context, level Level, provider, identifier string, params map[string]string, value any, ttlOverride time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: marshal value: %w", err)
	}

	env := envelope{StoredAt: time.Now().UTC(), Payload: payload}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("cache: marshal envelope: %w", err)
	}

	ttl := ttlOverride
	if ttl <= 0 {
		ttl = TTL(level)
	}

	key := MakeKey(level, provider, identifier, params)
	if err := s.backend.Set(ctx, key, raw, ttl); err != nil {
		s.stats.recordError(level, provider)
		s.log.Error().Err(err).Str("key", key).Msg("cache set error")
		return err
	}
	s.stats.recordSet(level, provider)
	return nil
}

// Delete removes one cache entry.
func (s *Service) Delete(ctx context.Context, level Level, provider, identifier string, params map[string]string) (bool, error) {
	key := MakeKey(level, provider, identifier, params)
	n, err := s.backend.Delete(ctx, key)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InvalidatePattern deletes every key matching
// "cache:{level}:{provider}:{pattern}"; wildcards are permitted in the
// identifier pattern.
func (s *Service) InvalidatePattern(ctx context.Context, level Level, provider, pattern string) (int, error) {
	if pattern == "" {
		pattern = "*"
	}
	searchPattern := fmt.Sprintf("cache:%s:%s:%s", level, provider, pattern)

	keys, err := s.backend.Scan(ctx, searchPattern)
	if err != nil {
		s.log.Error().Err(err).Str("pattern", searchPattern).Msg("cache invalidation scan error")
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	n, err := s.backend.Delete(ctx, keys...)
	if err != nil {
		return 0, err
	}
	s.log.Info().Str("pattern", searchPattern).Int("keys_deleted", n).Msg("cache invalidation")
	return n, nil
}

// SizeInfo reports how much of the cache a (level, provider) slice
// occupies.
type SizeInfo struct {
	KeyCount    int   `json:"key_count"`
	MemoryBytes int64 `json:"memory_bytes"`
}

// Size reports the key count and stored byte total for a (level,
// provider) slice of the cache. An empty level or provider matches all
// of that dimension.
func (s *Service) Size(ctx context.Context, level Level, provider string) (SizeInfo, error) {
	levelPat := string(level)
	if levelPat == "" {
		levelPat = "*"
	}
	providerPat := provider
	if providerPat == "" {
		providerPat = "*"
	}

	keys, err := s.backend.Scan(ctx, fmt.Sprintf("cache:%s:%s:*", levelPat, providerPat))
	if err != nil {
		return SizeInfo{}, err
	}

	info := SizeInfo{KeyCount: len(keys)}
	for _, k := range keys {
		raw, found, err := s.backend.Get(ctx, k)
		if err == nil && found {
			info.MemoryBytes += int64(len(raw))
		}
	}
	return info, nil
}

// Stats exposes the per-(level,provider) counters for the health
// endpoint.
func (s *Service) Stats() map[string]LevelProviderStats {
	return s.stats.Snapshot()
}
