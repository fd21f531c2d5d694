package cache

import (
	"context"
	"time"
)

// CacheRepository stores encoded feed pages under string keys with a TTL.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Purger is implemented by repositories that can drop every key sharing a
// prefix, e.g. all cached pages of one feed.
type Purger interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

type CacheError string

func (e CacheError) Error() string {
	return string(e)
}

const (
	ErrNotFound = CacheError("page not found in cache")
	ErrNoPurge  = CacheError("cache backend cannot purge by prefix")
)

// Purge drops every key under prefix when repo supports it.
func Purge(ctx context.Context, repo CacheRepository, prefix string) (int, error) {
	p, ok := repo.(Purger)
	if !ok {
		return 0, ErrNoPurge
	}
	return p.DeletePrefix(ctx, prefix)
}
