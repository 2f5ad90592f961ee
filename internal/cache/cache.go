// Package cache provides the bounded memo caches shared by the model client
// and the retrieval engine. Callers depend on the Cache interface so tests can
// inject a small LRU or the no-op cache.
package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is a concurrency-safe key/value memo. Add is idempotent: two callers
// racing on the same key both succeed and the last value wins.
type Cache[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	Add(ctx context.Context, key K, value V)
}

// ─── LRU ──────────────────────────────────────────────────────────────────────

// LRU is a fixed-capacity, least-recently-used in-process cache.
type LRU[K comparable, V any] struct {
	inner *lru.Cache[K, V]
}

// NewLRU returns an LRU holding at most size entries.
func NewLRU[K comparable, V any](size int) (*LRU[K, V], error) {
	inner, err := lru.New[K, V](size)
	if err != nil {
		return nil, fmt.Errorf("cache: new lru(%d): %w", size, err)
	}
	return &LRU[K, V]{inner: inner}, nil
}

func (c *LRU[K, V]) Get(_ context.Context, key K) (V, bool) { return c.inner.Get(key) }

func (c *LRU[K, V]) Add(_ context.Context, key K, value V) { c.inner.Add(key, value) }

// Len reports the number of cached entries.
func (c *LRU[K, V]) Len() int { return c.inner.Len() }

// ─── NOOP ─────────────────────────────────────────────────────────────────────

// Noop never stores anything. Useful in tests that must observe every
// underlying call.
type Noop[K comparable, V any] struct{}

func (Noop[K, V]) Get(context.Context, K) (V, bool) {
	var zero V
	return zero, false
}

func (Noop[K, V]) Add(context.Context, K, V) {}

// ─── TIERED ───────────────────────────────────────────────────────────────────

// Tiered reads through a fast local cache to a slower shared one and
// back-fills the local cache on a shared hit.
type Tiered[K comparable, V any] struct {
	local  Cache[K, V]
	shared Cache[K, V]
}

// NewTiered layers local in front of shared.
func NewTiered[K comparable, V any](local, shared Cache[K, V]) *Tiered[K, V] {
	return &Tiered[K, V]{local: local, shared: shared}
}

func (t *Tiered[K, V]) Get(ctx context.Context, key K) (V, bool) {
	if v, ok := t.local.Get(ctx, key); ok {
		return v, true
	}
	v, ok := t.shared.Get(ctx, key)
	if ok {
		t.local.Add(ctx, key, v)
	}
	return v, ok
}

func (t *Tiered[K, V]) Add(ctx context.Context, key K, value V) {
	t.local.Add(ctx, key, value)
	t.shared.Add(ctx, key, value)
}
