package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/port/cache"
	"go.uber.org/zap"
)

// DefaultCacheTTL is used when CachedSource is built without a TTL.
const DefaultCacheTTL = 5 * time.Minute

type bypassKey struct{}

// WithBypass marks ctx so cached sources skip reading the cache. The fresh
// page is still written back.
func WithBypass(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassKey{}, true)
}

// Bypassed reports whether ctx was marked by WithBypass.
func Bypassed(ctx context.Context) bool {
	v, _ := ctx.Value(bypassKey{}).(bool)
	return v
}

// PageCacheKey is the cache key of one page of a named feed.
func PageCacheKey(feedName string, q Query) string {
	return fmt.Sprintf("%s%s:p%d", PageCachePrefix(feedName), q.Identity(), q.Page)
}

// PageCachePrefix is shared by every cached page of a feed.
func PageCachePrefix(feedName string) string {
	return "feed:" + feedName + ":"
}

// CachedSource serves pages from a CacheRepository and falls back to the
// wrapped source. Cache failures never fail a fetch.
type CachedSource[T any] struct {
	name      string
	upstream  Source[T]
	repo      cache.CacheRepository
	ttl       time.Duration
	freshness *Freshness
	log       *logger.Logger
}

// NewCachedSource wraps upstream. freshness may be nil.
func NewCachedSource[T any](name string, upstream Source[T], repo cache.CacheRepository, ttl time.Duration, freshness *Freshness, log *logger.Logger) *CachedSource[T] {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &CachedSource[T]{
		name:      name,
		upstream:  upstream,
		repo:      repo,
		ttl:       ttl,
		freshness: freshness,
		log:       log.Named("cache").With(zap.String("feed", name)),
	}
}

func (c *CachedSource[T]) Fetch(ctx context.Context, q Query) (Page[T], error) {
	key := PageCacheKey(c.name, q)

	fresh := false
	if c.freshness != nil {
		fresh = c.freshness.Touch(key)
	}

	if !Bypassed(ctx) {
		if page, ok := c.lookup(ctx, key); ok {
			c.log.Debug("Page served from cache", zap.String("key", key), zap.Bool("fresh", fresh))
			return page, nil
		}
	}

	page, err := c.upstream.Fetch(ctx, q)
	if err != nil {
		return page, err
	}
	if page.Missing() {
		return page, nil
	}

	data, err := json.Marshal(page)
	if err != nil {
		c.log.Warn("Failed to encode page for cache", zap.String("key", key), zap.Error(err))
		return page, nil
	}
	if err := c.repo.Set(ctx, key, data, c.ttl); err != nil {
		c.log.Warn("Failed to store page in cache", zap.String("key", key), zap.Error(err))
	}
	return page, nil
}

func (c *CachedSource[T]) lookup(ctx context.Context, key string) (Page[T], bool) {
	var page Page[T]
	data, err := c.repo.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			c.log.Warn("Cache lookup failed, falling back to source", zap.String("key", key), zap.Error(err))
		}
		return page, false
	}
	if err := json.Unmarshal(data, &page); err != nil || page.Missing() {
		c.log.Warn("Dropping unreadable cache entry", zap.String("key", key), zap.Error(err))
		if delErr := c.repo.Delete(ctx, key); delErr != nil {
			c.log.Warn("Failed to delete cache entry", zap.String("key", key), zap.Error(delErr))
		}
		return page, false
	}
	return page, true
}
