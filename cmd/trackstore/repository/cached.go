package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/soundsphere/trackstore/cmd/trackstore/models"
	"github.com/soundsphere/trackstore/common/cache"
	"github.com/soundsphere/trackstore/common/logger"
)

// CachedCatalog serves Get hits from a cache in front of another catalog.
// Only found records are cached; a miss always goes to the backing catalog
// so a freshly committed record is never hidden.
type CachedCatalog struct {
	inner TrackCatalog
	cache cache.Cache
	ttl   time.Duration
	log   *logger.Logger
}

// NewCachedCatalog wraps inner
func NewCachedCatalog(inner TrackCatalog, c cache.Cache, ttl time.Duration, log *logger.Logger) *CachedCatalog {
	return &CachedCatalog{inner: inner, cache: c, ttl: ttl, log: log}
}

func cacheKey(key string) string {
	return "track:" + key
}

// Get checks the cache, then the backing catalog
func (c *CachedCatalog) Get(ctx context.Context, key string) (*models.Track, error) {
	if raw, ok, err := c.cache.Get(ctx, cacheKey(key)); err != nil {
		c.log.Warn("catalog cache read failed", "track_key", key, "error", err)
	} else if ok {
		var t models.Track
		if err := json.Unmarshal(raw, &t); err == nil {
			return &t, nil
		}
		_ = c.cache.Delete(ctx, cacheKey(key))
	}

	t, err := c.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	c.store(ctx, t)
	return t, nil
}

// Insert writes through and primes the cache
func (c *CachedCatalog) Insert(ctx context.Context, t *models.Track) error {
	if err := c.inner.Insert(ctx, t); err != nil {
		return err
	}
	c.store(ctx, t)
	return nil
}

// BatchExists always asks the backing catalog
func (c *CachedCatalog) BatchExists(ctx context.Context, keys []string) ([]models.TrackSummary, error) {
	return c.inner.BatchExists(ctx, keys)
}

// Delete removes from the backing catalog and evicts the cached copy
func (c *CachedCatalog) Delete(ctx context.Context, key string) (*models.Track, error) {
	t, err := c.inner.Delete(ctx, key)
	if evictErr := c.cache.Delete(ctx, cacheKey(key)); evictErr != nil {
		c.log.Warn("catalog cache evict failed", "track_key", key, "error", evictErr)
	}
	return t, err
}

func (c *CachedCatalog) store(ctx context.Context, t *models.Track) {
	raw, err := json.Marshal(t)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, cacheKey(t.Key), raw, c.ttl); err != nil {
		c.log.Warn("catalog cache write failed", "track_key", t.Key, "error", err)
	}
}
