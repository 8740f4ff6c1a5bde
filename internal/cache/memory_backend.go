package cache

import (
	"context"
	"path"
	"sync"
	"time"
)

type memEntry struct {
	val []byte
	exp time.Time
}

// MemoryBackend is a sync.Mutex-guarded in-process map, the backend
// used when no Redis address is configured.
type MemoryBackend struct {
	mu sync.Mutex
	m  map[string]memEntry
}

// NewMemoryBackend creates an empty in-process backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{m: make(map[string]memEntry)}
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(b.m, key)
		return nil, false, nil
	}
	return e.val, true, nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := memEntry{val: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	b.m[key] = e
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, keys ...string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, k := range keys {
		if _, ok := b.m[k]; ok {
			delete(b.m, k)
			n++
		}
	}
	return n, nil
}

func (b *MemoryBackend) Scan(_ context.Context, pattern string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for k := range b.m {
		matched, err := path.Match(pattern, k)
		if err == nil && matched {
			out = append(out, k)
		}
	}
	return out, nil
}

// Size returns the number of live entries, sweeping expired ones first.
func (b *MemoryBackend) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	for k, e := range b.m {
		if !e.exp.IsZero() && now.After(e.exp) {
			delete(b.m, k)
		}
	}
	return len(b.m)
}
