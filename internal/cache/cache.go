// internal/cache/cache.go
// Package cache provides the key/value cache used to accelerate catalog
// point lookups. The cache is never the source of truth: every value stored
// here is a serialized snapshot of an entry with a fixed time-to-live.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is the key/value contract consumed by the storage layer. A miss is
// reported through the boolean, not through an error; errors indicate the
// cache itself misbehaved and callers treat them as misses.
type Cache interface {
	// GetJSON reads the value under key into out, reporting whether the key
	// was present and deserializable.
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	// SetJSON stores the JSON serialization of value under key with a TTL.
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// Ping reports whether the cache backend is reachable.
	Ping(ctx context.Context) error
	// Close releases the underlying connection.
	Close() error
}

// EntryKey builds the cache key for one seller's SKU snapshot.
func EntryKey(sellerID, sku string) string {
	return fmt.Sprintf("produto:%s:%s", sellerID, sku)
}

// noop is used when no cache backend is configured. Every read is a miss and
// every write succeeds silently.
type noop struct{}

// NewNoop returns a Cache that stores nothing.
func NewNoop() Cache { return noop{} }

func (noop) GetJSON(ctx context.Context, key string, out any) (bool, error) { return false, nil }

func (noop) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	return nil
}

func (noop) Delete(ctx context.Context, keys ...string) error { return nil }

func (noop) Ping(ctx context.Context) error { return nil }

func (noop) Close() error { return nil }
