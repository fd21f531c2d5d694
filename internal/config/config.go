package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/platform/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix     = "FEEDSYNC"
	EnvConfigFile = "FEEDSYNC_CONFIG"

	SourceREST  = "rest"
	SourceMongo = "mongo"

	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	ServiceName string                `mapstructure:"service_name"`
	API         APIConfig             `mapstructure:"api"`
	Feed        FeedConfig            `mapstructure:"feed"`
	Feeds       map[string]FeedSource `mapstructure:"feeds"`
	Cache       CacheConfig           `mapstructure:"cache"`
	Redis       RedisConfig           `mapstructure:"redis"`
	Mongo       MongoConfig           `mapstructure:"mongo"`
	NATS        NATSConfig            `mapstructure:"nats"`
	Metrics     MetricsConfig         `mapstructure:"metrics"`
	Tracing     TracingConfig         `mapstructure:"tracing"`
	Log         logger.LoggerConfig   `mapstructure:"log"`
}

type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Token     string        `mapstructure:"token"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	Burst     int           `mapstructure:"burst"`
}

type FeedConfig struct {
	PageSize        int           `mapstructure:"page_size"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// FeedSource binds a feed name to its backend. Filters are "key=value"
// pairs; viper lowercases map keys, so they are kept as a list.
type FeedSource struct {
	Path    string   `mapstructure:"path"`
	Source  string   `mapstructure:"source"`
	Filters []string `mapstructure:"filters"`
}

// FilterMap parses the initial filters.
func (f FeedSource) FilterMap() (map[string]string, error) {
	return ParseFilters(f.Filters)
}

// ParseFilters turns "key=value" pairs into a map. An empty value clears the
// key.
func ParseFilters(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("filter %q is not key=value", p)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

type CacheConfig struct {
	Backend         string        `mapstructure:"backend"`
	TTL             time.Duration `mapstructure:"ttl"`
	FreshnessWindow time.Duration `mapstructure:"freshness_window"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	Database       string        `mapstructure:"database"`
	Collection     string        `mapstructure:"collection"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	MinPoolSize    uint64        `mapstructure:"min_pool_size"`
	MaxPoolSize    uint64        `mapstructure:"max_pool_size"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type MetricsConfig struct {
	Port string `mapstructure:"port"`
}

type TracingConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "feed-sync")

	v.SetDefault("api.base_url", "http://localhost:8080/api")
	v.SetDefault("api.token", "")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.rate_limit", 10.0)
	v.SetDefault("api.burst", 5)

	v.SetDefault("feed.page_size", 20)
	v.SetDefault("feed.request_timeout", "15s")
	v.SetDefault("feed.refresh_interval", "1m")

	v.SetDefault("feeds.properties.path", "/properties/nearby")
	v.SetDefault("feeds.properties.source", SourceREST)
	v.SetDefault("feeds.matches.path", "/matches")
	v.SetDefault("feeds.matches.source", SourceREST)
	v.SetDefault("feeds.offers.path", "/offers")
	v.SetDefault("feeds.offers.source", SourceREST)

	v.SetDefault("cache.backend", CacheNone)
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.freshness_window", "10s")

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.username", "")
	v.SetDefault("mongo.password", "")
	v.SetDefault("mongo.database", "marketplace")
	v.SetDefault("mongo.collection", "listings")
	v.SetDefault("mongo.connect_timeout", "10s")
	v.SetDefault("mongo.min_pool_size", 0)
	v.SetDefault("mongo.max_pool_size", 100)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "feedsync")

	v.SetDefault("metrics.port", "9095")
	v.SetDefault("tracing.otlp_endpoint", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")
}

// LoadConfig reads defaults, then the YAML file at path (or FEEDSYNC_CONFIG,
// or ./config.yaml when present), then FEEDSYNC_* environment variables.
// A .env file in the working directory is loaded first.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if c.Feed.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("feed.page_size must be positive, got %d", c.Feed.PageSize))
	}
	if c.Feed.RequestTimeout <= 0 {
		errs = append(errs, errors.New("feed.request_timeout must be positive"))
	}
	switch c.Cache.Backend {
	case CacheNone, CacheMemory, CacheRedis, "":
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not one of none, memory, redis", c.Cache.Backend))
	}
	for _, name := range c.FeedNames() {
		fs := c.Feeds[name]
		if _, err := fs.FilterMap(); err != nil {
			errs = append(errs, fmt.Errorf("feeds.%s.filters: %w", name, err))
		}
		switch fs.Source {
		case SourceREST, "":
			if fs.Path == "" {
				errs = append(errs, fmt.Errorf("feeds.%s.path is required for rest sources", name))
			}
			if c.API.BaseURL == "" {
				errs = append(errs, fmt.Errorf("api.base_url is required by feed %s", name))
			}
		case SourceMongo:
			if name != "properties" {
				errs = append(errs, fmt.Errorf("feeds.%s: mongo source only serves listings", name))
			}
			if c.Mongo.URI == "" || c.Mongo.Database == "" {
				errs = append(errs, fmt.Errorf("mongo.uri and mongo.database are required by feed %s", name))
			}
		default:
			errs = append(errs, fmt.Errorf("feeds.%s.source %q is not one of rest, mongo", name, fs.Source))
		}
	}
	return errors.Join(errs...)
}

// FeedNames returns the configured feed names in sorted order.
func (c *Config) FeedNames() []string {
	names := make([]string, 0, len(c.Feeds))
	for name := range c.Feeds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
