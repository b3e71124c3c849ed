// Package respcache stores serialized query responses in Redis with a TTL.
// Every operation fails open: a broken cache degrades to a cache miss, never
// to a failed request.
package respcache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/jobrag/internal/db"
	"github.com/kailas-cloud/jobrag/internal/logger"
	"github.com/kailas-cloud/jobrag/internal/metrics"
)

// kv is the consumer interface for cache storage.
type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache is a fail-open response cache keyed by request fingerprint.
type Cache struct {
	kv        kv
	keyPrefix string
	ttl       time.Duration
}

// New creates a response cache writing keys under keyPrefix with the given
// TTL. A non-positive ttl is a caller bug; gate construction on it instead.
func New(kv kv, keyPrefix string, ttl time.Duration) *Cache {
	return &Cache{kv: kv, keyPrefix: keyPrefix, ttl: ttl}
}

// Get returns the cached response for the key, reporting hit, miss or a
// storage error through metrics. Errors surface as misses.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	blob, err := c.kv.Get(ctx, c.keyPrefix+key)
	switch {
	case err == nil:
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return blob, true
	case errors.Is(err, db.ErrKeyNotFound):
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, false
	default:
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		logger.FromContext(ctx).Warn("cache get failed", zap.Error(err))
		return nil, false
	}
}

// Set stores the response best-effort; write failures are logged and
// swallowed.
func (c *Cache) Set(ctx context.Context, key string, value []byte) {
	if err := c.kv.SetWithTTL(ctx, c.keyPrefix+key, value, c.ttl); err != nil {
		logger.FromContext(ctx).Warn("cache set failed", zap.Error(err))
	}
}
