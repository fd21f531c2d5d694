package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/config"
	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/port/cache"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// scanBatch is the COUNT hint used when walking keys for DeletePrefix.
const scanBatch = 200

// PageStore keeps encoded feed pages in Redis. Pages always expire: a
// non-positive TTL falls back to the store default.
type PageStore struct {
	client     *redis.Client
	logger     *logger.Logger
	defaultTTL time.Duration
}

var (
	_ cache.CacheRepository = (*PageStore)(nil)
	_ cache.Purger          = (*PageStore)(nil)
)

func NewRedisClient(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Error("Failed to connect to Redis", zap.String("address", cfg.Address), zap.Error(err))
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Address, err)
	}
	log.Info("Connected to Redis page cache", zap.String("address", cfg.Address), zap.Int("db", cfg.DB))
	return rdb, nil
}

func NewPageStore(client *redis.Client, defaultTTL time.Duration, log *logger.Logger) *PageStore {
	return &PageStore{
		client:     client,
		logger:     log.Named("redis"),
		defaultTTL: defaultTTL,
	}
}

func (s *PageStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, cache.ErrNotFound
	case err != nil:
		s.logger.Error("Redis page lookup failed", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("PageStore.Get %q: %w", key, err)
	}
	return val, nil
}

func (s *PageStore) Set(ctx context.Context, key string, page []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if err := s.client.Set(ctx, key, page, ttl).Err(); err != nil {
		s.logger.Error("Redis page store failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("PageStore.Set %q: %w", key, err)
	}
	s.logger.Debug("Page stored", zap.String("key", key), zap.Int("bytes", len(page)), zap.Duration("ttl", ttl))
	return nil
}

func (s *PageStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.logger.Error("Redis page delete failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("PageStore.Delete %q: %w", key, err)
	}
	return nil
}

// DeletePrefix unlinks every key starting with prefix. SCAN may return a key
// more than once, so the count is of UNLINKed keys, not of SCAN hits.
func (s *PageStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return deleted, fmt.Errorf("PageStore.DeletePrefix %q: scan: %w", prefix, err)
		}
		if len(keys) > 0 {
			n, err := s.client.Unlink(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("PageStore.DeletePrefix %q: unlink: %w", prefix, err)
			}
			deleted += int(n)
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	s.logger.Info("Purged cached pages", zap.String("prefix", prefix), zap.Int("deleted", deleted))
	return deleted, nil
}
