// internal/storage/cached.go
package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/sellerhub/sellerhub-catalog-go/internal/cache"
	"github.com/sellerhub/sellerhub-catalog-go/internal/metrics"
	"github.com/sellerhub/sellerhub-catalog-go/internal/model"
)

// cached decorates a Store with cache-aside behavior on the point-lookup and
// mutation paths. Cache failures are never fatal: a failed read falls through
// to the inner store and a failed write or invalidation is only logged.
// Invalidation happens strictly after a successful store mutation.
type cached struct {
	inner   Store
	cache   cache.Cache
	ttl     time.Duration
	metrics *metrics.Metrics
}

// NewCached wraps a Store with a cache for point lookups. Snapshots are
// stored under cache.EntryKey and expire after ttl; mutations delete the
// affected key after the inner store reports success.
func NewCached(inner Store, c cache.Cache, ttl time.Duration) Store {
	return &cached{inner: inner, cache: c, ttl: ttl, metrics: metrics.NewMetrics()}
}

func (s *cached) Get(ctx context.Context, sellerID, sku string) (*model.Entry, error) {
	key := cache.EntryKey(sellerID, sku)

	var snapshot model.Entry
	hit, err := s.cache.GetJSON(ctx, key, &snapshot)
	if err != nil {
		slog.Debug("cache read failed, falling back to store", "key", key, "error", err)
		s.metrics.CacheLookupTotal.WithLabelValues("error").Inc()
	}
	if hit {
		s.metrics.CacheLookupTotal.WithLabelValues("hit").Inc()
		return &snapshot, nil
	}
	if err == nil {
		s.metrics.CacheLookupTotal.WithLabelValues("miss").Inc()
	}

	entry, err := s.inner.Get(ctx, sellerID, sku)
	if err != nil {
		return nil, err
	}

	// Best-effort write-back; a failure here only costs the next lookup.
	if err := s.cache.SetJSON(ctx, key, entry, s.ttl); err != nil {
		slog.Debug("cache write failed", "key", key, "error", err)
	}

	return entry, nil
}

func (s *cached) Insert(ctx context.Context, entry model.Entry) (*model.Entry, error) {
	stored, err := s.inner.Insert(ctx, entry)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, stored.SellerID, stored.SKU)
	return stored, nil
}

func (s *cached) Replace(ctx context.Context, sellerID, sku string, entry model.Entry) (*model.Entry, error) {
	updated, err := s.inner.Replace(ctx, sellerID, sku, entry)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, sellerID, sku)
	return updated, nil
}

func (s *cached) Patch(ctx context.Context, sellerID, sku string, patch model.EntryPatch) (*model.Entry, error) {
	updated, err := s.inner.Patch(ctx, sellerID, sku, patch)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, sellerID, sku)
	return updated, nil
}

func (s *cached) Delete(ctx context.Context, sellerID, sku string) (bool, error) {
	removed, err := s.inner.Delete(ctx, sellerID, sku)
	if err != nil {
		return false, err
	}
	if removed {
		s.invalidate(ctx, sellerID, sku)
	}
	return removed, nil
}

func (s *cached) List(ctx context.Context, query model.ListQuery) (*model.ListResult, error) {
	return s.inner.List(ctx, query)
}

func (s *cached) CountBySeller(ctx context.Context, sellerID string) (int, error) {
	return s.inner.CountBySeller(ctx, sellerID)
}

func (s *cached) invalidate(ctx context.Context, sellerID, sku string) {
	key := cache.EntryKey(sellerID, sku)
	if err := s.cache.Delete(ctx, key); err != nil {
		slog.Warn("cache invalidation failed", "key", key, "error", err)
	}
}
