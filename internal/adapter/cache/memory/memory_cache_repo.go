package memory

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/port/cache"
)

const (
	defaultShardCount      = 16
	defaultCleanupInterval = time.Minute
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

type shard struct {
	mu    sync.RWMutex
	items map[string]entry
}

// Repository is an in-process, sharded TTL cache. Expired entries are
// invisible to Get and removed by the cleanup worker.
type Repository struct {
	shards []*shard
	now    func() time.Time

	cleanupInterval time.Duration
	workerMu        sync.Mutex
	workerStop      chan struct{}
	workerWg        sync.WaitGroup
}

var (
	_ cache.CacheRepository = (*Repository)(nil)
	_ cache.Purger          = (*Repository)(nil)
)

func NewRepository(shardCount int) *Repository {
	if shardCount < 1 {
		shardCount = defaultShardCount
	}
	shards := make([]*shard, shardCount)
	for i := range shards {
		shards[i] = &shard{items: make(map[string]entry)}
	}
	return &Repository{
		shards:          shards,
		now:             time.Now,
		cleanupInterval: defaultCleanupInterval,
	}
}

func (r *Repository) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return r.shards[h.Sum32()%uint32(len(r.shards))]
}

func (r *Repository) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.shardFor(key)
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok || e.expired(r.now()) {
		return nil, cache.ErrNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores value; a non-positive ttl keeps it until deleted.
func (r *Repository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = r.now().Add(ttl)
	}
	s := r.shardFor(key)
	s.mu.Lock()
	s.items[key] = e
	s.mu.Unlock()
	return nil
}

func (r *Repository) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.shardFor(key)
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// DeletePrefix drops every live entry whose key starts with prefix.
func (r *Repository) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	now := r.now()
	n := 0
	for _, s := range r.shards {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		s.mu.Lock()
		for k, e := range s.items {
			if strings.HasPrefix(k, prefix) {
				if !e.expired(now) {
					n++
				}
				delete(s.items, k)
			}
		}
		s.mu.Unlock()
	}
	return n, nil
}

// Len counts live entries.
func (r *Repository) Len() int {
	now := r.now()
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		for _, e := range s.items {
			if !e.expired(now) {
				n++
			}
		}
		s.mu.RUnlock()
	}
	return n
}

// CleanExpired drops every expired entry.
func (r *Repository) CleanExpired(ctx context.Context) error {
	now := r.now()
	for _, s := range r.shards {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.mu.Lock()
		for k, e := range s.items {
			if e.expired(now) {
				delete(s.items, k)
			}
		}
		s.mu.Unlock()
	}
	return nil
}

// StartCleanupWorker runs CleanExpired periodically until StopCleanupWorker.
func (r *Repository) StartCleanupWorker() {
	r.workerMu.Lock()
	defer r.workerMu.Unlock()
	if r.workerStop != nil {
		return
	}
	r.workerStop = make(chan struct{})
	r.workerWg.Add(1)
	go r.cleanupLoop(r.workerStop)
}

func (r *Repository) StopCleanupWorker() {
	r.workerMu.Lock()
	defer r.workerMu.Unlock()
	if r.workerStop == nil {
		return
	}
	close(r.workerStop)
	r.workerWg.Wait()
	r.workerStop = nil
}

func (r *Repository) cleanupLoop(stop <-chan struct{}) {
	defer r.workerWg.Done()
	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			_ = r.CleanExpired(ctx)
			cancel()
		}
	}
}
