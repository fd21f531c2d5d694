package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv(EnvConfigFile, "")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "feed-sync", cfg.ServiceName)
	assert.Equal(t, 20, cfg.Feed.PageSize)
	assert.Equal(t, 15*time.Second, cfg.Feed.RequestTimeout)
	assert.Equal(t, CacheNone, cfg.Cache.Backend)
	assert.Equal(t, 10*time.Second, cfg.Cache.FreshnessWindow)
	assert.Equal(t, []string{"matches", "offers", "properties"}, cfg.FeedNames())
	assert.Equal(t, "/properties/nearby", cfg.Feeds["properties"].Path)
	assert.Equal(t, SourceREST, cfg.Feeds["offers"].Source)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	t.Setenv("FEEDSYNC_FEED_PAGE_SIZE", "50")
	t.Setenv("FEEDSYNC_CACHE_BACKEND", "redis")
	t.Setenv("FEEDSYNC_API_BASE_URL", "https://rent.example.com/api")
	t.Setenv("FEEDSYNC_FEEDS_OFFERS_PATH", "/me/offers")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Feed.PageSize)
	assert.Equal(t, CacheRedis, cfg.Cache.Backend)
	assert.Equal(t, "https://rent.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, "/me/offers", cfg.Feeds["offers"].Path)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feedsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
feed:
  page_size: 10
  request_timeout: 3s
cache:
  backend: memory
  ttl: 30s
feeds:
  properties:
    source: mongo
    filters:
      - sortBy=distance
      - radius=5
log:
  level: debug
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Feed.PageSize)
	assert.Equal(t, 3*time.Second, cfg.Feed.RequestTimeout)
	assert.Equal(t, CacheMemory, cfg.Cache.Backend)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, SourceMongo, cfg.Feeds["properties"].Source)
	filters, err := cfg.Feeds["properties"].FilterMap()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"sortBy": "distance", "radius": "5"}, filters)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Feed:  FeedConfig{PageSize: 0, RequestTimeout: time.Second},
		Cache: CacheConfig{Backend: "memcached"},
		Feeds: map[string]FeedSource{
			"properties": {Source: "grpc"},
			"offers":     {Source: SourceREST},
		},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed.page_size")
	assert.Contains(t, err.Error(), "memcached")
	assert.Contains(t, err.Error(), "feeds.properties.source")
	assert.Contains(t, err.Error(), "feeds.offers.path")
}

func TestParseFilters(t *testing.T) {
	got, err := ParseFilters([]string{"location=52.52,13.40", "search=", " radius = 5 "})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"location": "52.52,13.40", "search": "", "radius": "5"}, got)

	_, err = ParseFilters([]string{"novalue"})
	assert.Error(t, err)
	_, err = ParseFilters([]string{"=x"})
	assert.Error(t, err)
}
