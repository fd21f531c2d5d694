package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/adapter/cache/memory"
	redisCache "github.com/Abdurahmanit/GroupProject/feed-sync/internal/adapter/cache/redis"
	mongoAdapter "github.com/Abdurahmanit/GroupProject/feed-sync/internal/adapter/mongo"
	natsAdapter "github.com/Abdurahmanit/GroupProject/feed-sync/internal/adapter/nats"
	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/adapter/rest"
	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/config"
	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/entity"
	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/feed"
	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/platform/metrics"
	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/platform/tracer"
	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/port/cache"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const metricsNamespace = "feedsync"

// App owns every long-lived dependency of a command run.
type App struct {
	cfg       *config.Config
	logger    *logger.Logger
	metrics   *metrics.MetricsManager
	publisher feed.Publisher
	cache     cache.CacheRepository
	freshness *feed.Freshness
	rest      *rest.Client
	mongo     *mongo.Client

	closers []func(context.Context)
}

// NewApp wires the configured backends. Optional ones (cache, NATS, Mongo,
// tracing) are only connected when configured.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appLogger, err := logger.NewLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return newAppWithLogger(ctx, cfg, appLogger)
}

func newAppWithLogger(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) (*App, error) {
	a := &App{
		cfg:       cfg,
		logger:    appLogger,
		metrics:   metrics.NewMetricsManager(metricsNamespace),
		freshness: feed.NewFreshness(cfg.Cache.FreshnessWindow),
	}
	a.closers = append(a.closers, func(context.Context) { _ = appLogger.Sync() })

	tp := tracer.InitTracer(cfg.ServiceName, cfg.Tracing.OTLPEndpoint, appLogger)
	a.closers = append(a.closers, func(ctx context.Context) {
		if err := tp.Shutdown(ctx); err != nil {
			appLogger.Warn("Tracer shutdown failed", zap.Error(err))
		}
	})

	if err := a.initCache(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initPublisher(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initSources(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) initCache(ctx context.Context) error {
	switch a.cfg.Cache.Backend {
	case config.CacheMemory:
		repo := memory.NewRepository(0)
		repo.StartCleanupWorker()
		a.cache = repo
		a.closers = append(a.closers, func(context.Context) { repo.StopCleanupWorker() })
	case config.CacheRedis:
		client, err := redisCache.NewRedisClient(ctx, a.cfg.Redis, a.logger)
		if err != nil {
			return err
		}
		a.cache = redisCache.NewPageStore(client, a.cfg.Cache.TTL, a.logger)
		a.closers = append(a.closers, func(context.Context) { _ = client.Close() })
	}
	if a.cache != nil {
		a.logger.Info("Page cache enabled",
			zap.String("backend", a.cfg.Cache.Backend),
			zap.Duration("ttl", a.cfg.Cache.TTL),
		)
	}
	return nil
}

func (a *App) initPublisher() error {
	if a.cfg.NATS.URL == "" {
		return nil
	}
	pub, err := natsAdapter.NewPublisher(a.cfg.NATS.URL, a.cfg.NATS.SubjectPrefix, a.logger, a.cfg.ServiceName)
	if err != nil {
		return err
	}
	a.publisher = pub
	a.closers = append(a.closers, func(context.Context) { pub.Close() })
	return nil
}

func (a *App) initSources(ctx context.Context) error {
	needREST, needMongo := false, false
	for _, name := range a.cfg.FeedNames() {
		switch a.cfg.Feeds[name].Source {
		case config.SourceMongo:
			needMongo = true
		default:
			needREST = true
		}
	}

	if needREST {
		client, err := rest.NewClient(rest.Options{
			BaseURL:   a.cfg.API.BaseURL,
			Token:     a.cfg.API.Token,
			Timeout:   a.cfg.API.Timeout,
			RateLimit: a.cfg.API.RateLimit,
			Burst:     a.cfg.API.Burst,
			Logger:    a.logger,
		})
		if err != nil {
			return err
		}
		a.rest = client
	}

	if needMongo {
		client, err := mongoAdapter.NewMongoDBConnection(ctx, a.cfg.Mongo)
		if err != nil {
			return err
		}
		a.mongo = client
		a.closers = append(a.closers, func(ctx context.Context) { _ = client.Disconnect(ctx) })
	}
	return nil
}

// Close releases everything in reverse order of acquisition.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
	a.closers = nil
}

// NewFeed builds the synchronizer for a configured feed. onChange may be nil.
func (a *App) NewFeed(name string, onChange func(Snapshot)) (Feed, error) {
	fs, ok := a.cfg.Feeds[name]
	if !ok {
		return nil, fmt.Errorf("unknown feed %q (configured: %v)", name, a.cfg.FeedNames())
	}
	filters, err := fs.FilterMap()
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", name, err)
	}

	switch name {
	case "properties":
		var src feed.Source[entity.Listing]
		if fs.Source == config.SourceMongo {
			src = mongoAdapter.NewListingSource(a.mongo.Database(a.cfg.Mongo.Database), a.cfg.Mongo.Collection, a.logger)
		} else {
			src = rest.NewSource[entity.Listing](a.rest, name, fs.Path)
		}
		return newRunner(a, name, src, filters, renderListing, onChange), nil
	case "matches":
		return newRunner(a, name, rest.NewSource[entity.Match](a.rest, name, fs.Path), filters, renderMatch, onChange), nil
	case "offers":
		return newRunner(a, name, rest.NewSource[entity.Offer](a.rest, name, fs.Path), filters, renderOffer, onChange), nil
	default:
		return nil, fmt.Errorf("feed %q has no item type; known feeds are properties, matches, offers", name)
	}
}

func newRunner[T feed.Item](a *App, name string, src feed.Source[T], filters map[string]string, render func(T) string, onChange func(Snapshot)) *runner[T] {
	if a.cache != nil {
		src = feed.NewCachedSource[T](name, src, a.cache, a.cfg.Cache.TTL, a.freshness, a.logger)
	}
	r := &runner[T]{render: render}
	if a.cache != nil {
		r.fresh = func(q feed.Query) bool { return a.freshness.Fresh(feed.PageCacheKey(name, q)) }
	}
	if a.rest != nil {
		r.user = a.rest.Session().UserID
	}
	opts := feed.Options[T]{
		Name:           name,
		Filters:        filters,
		PageSize:       a.cfg.Feed.PageSize,
		RequestTimeout: a.cfg.Feed.RequestTimeout,
		Logger:         a.logger,
		Metrics:        a.metrics,
		Publisher:      a.publisher,
	}
	if onChange != nil {
		opts.OnChange = func(st feed.State[T]) { onChange(r.snapshot(st)) }
	}
	r.Synchronizer = feed.New[T](src, opts)
	return r
}
