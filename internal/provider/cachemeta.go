package provider

import (
	"context"
	"time"
)

// CacheMeta records whether the most recent adapter call underneath the
// current request context was served from cache, and how stale that
// entry was. Adapters set it via MarkCacheHit/MarkCacheMiss; the
// orchestrator reads it back after the call completes to populate
// Provenance.
type CacheMeta struct {
	Hit bool
	Age time.Duration
}

type cacheMetaKey struct{}

// WithCacheMetaTracker attaches a fresh, zeroed CacheMeta to ctx and
// returns both the new context and a pointer to the tracker so the
// caller can read it back after the call completes.
func WithCacheMetaTracker(ctx context.Context) (context.Context, *CacheMeta) {
	meta := &CacheMeta{}
	return context.WithValue(ctx, cacheMetaKey{}, meta), meta
}

// MarkCacheHit records a cache hit with the given age on ctx's tracker,
// if one is present. A no-op when the context carries no tracker (e.g.
// direct adapter use in tests).
func MarkCacheHit(ctx context.Context, age time.Duration) {
	if meta, ok := ctx.Value(cacheMetaKey{}).(*CacheMeta); ok {
		meta.Hit = true
		meta.Age = age
	}
}

// MarkCacheMiss records a cache miss on ctx's tracker, if present.
func MarkCacheMiss(ctx context.Context) {
	if meta, ok := ctx.Value(cacheMetaKey{}).(*CacheMeta); ok {
		meta.Hit = false
		meta.Age = 0
	}
}
