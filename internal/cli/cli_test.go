package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/adapter/rest"
	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/config"
	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/entity"
	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/feed"
	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/platform/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeFeed struct {
	mu      sync.Mutex
	calls   []string
	filters map[string]string
	snap    Snapshot
}

func (f *fakeFeed) record(c string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeFeed) Name() string { return "fake" }
func (f *fakeFeed) Start()       { f.record("start") }
func (f *fakeFeed) NearEnd()     { f.record("near_end") }
func (f *fakeFeed) Refresh()     { f.record("refresh") }
func (f *fakeFeed) Dismiss()     { f.record("dismiss") }
func (f *fakeFeed) Close()       { f.record("close") }

func (f *fakeFeed) SetFilters(filters map[string]string) bool {
	f.record("set_filters")
	if fmt.Sprint(filters) == fmt.Sprint(f.filters) {
		return false
	}
	f.filters = filters
	return true
}

func (f *fakeFeed) Snapshot() Snapshot {
	s := f.snap
	s.Filters = f.filters
	return s
}

func TestHandleCommand(t *testing.T) {
	f := &fakeFeed{filters: map[string]string{"city": "Almaty", "rooms": "2"}}
	var out bytes.Buffer

	for _, line := range []string{"", "n", "more", "r", "d"} {
		quit, err := handleCommand(f, line, &out)
		require.NoError(t, err)
		assert.False(t, quit)
	}
	assert.Equal(t, []string{"near_end", "near_end", "refresh", "dismiss"}, f.calls)

	_, err := handleCommand(f, "f rooms= sortBy=price", &out)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"city": "Almaty", "sortBy": "price"}, f.filters)

	_, err = handleCommand(f, "f sortBy=price", &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "filters unchanged")

	_, err = handleCommand(f, "f", &out)
	assert.Error(t, err)
	_, err = handleCommand(f, "f =x", &out)
	assert.Error(t, err)
	_, err = handleCommand(f, "jump", &out)
	assert.Error(t, err)

	quit, err := handleCommand(f, "q", &out)
	require.NoError(t, err)
	assert.True(t, quit)
}

func TestHandleCommand_Show(t *testing.T) {
	f := &fakeFeed{snap: Snapshot{Feed: "fake", Status: feed.StatusIdle, Page: 1, Items: 1, TotalCount: 1, Rows: []string{"Loft"}}}
	var out bytes.Buffer
	_, err := handleCommand(f, "s", &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "[fake] idle · page 1 · 1 of 1 items")
	assert.Contains(t, out.String(), "   1. Loft")
}

func TestMergeFilters(t *testing.T) {
	current := map[string]string{"a": "1", "b": "2"}
	got := mergeFilters(current, map[string]string{"b": "", "c": "3"})
	assert.Equal(t, map[string]string{"a": "1", "c": "3"}, got)
	assert.Equal(t, "2", current["b"], "input must not be modified")
}

func TestStartWithFilters(t *testing.T) {
	f := &fakeFeed{}
	require.NoError(t, startWithFilters(f, nil))
	assert.Equal(t, []string{"start"}, f.calls)

	f = &fakeFeed{}
	require.NoError(t, startWithFilters(f, []string{"city=Astana"}))
	assert.Equal(t, []string{"set_filters"}, f.calls, "a filter change already loads page 1")

	f = &fakeFeed{}
	assert.Error(t, startWithFilters(f, []string{"nonsense"}))
}

func TestRenderSnapshot(t *testing.T) {
	s := renderSnapshot(Snapshot{Feed: "offers", Status: feed.StatusError, Err: "Network error. Please check your connection."})
	assert.Contains(t, s, "! Network error. Please check your connection. (r = retry, d = dismiss)")

	s = renderSnapshot(Snapshot{Feed: "offers", Status: feed.StatusFetchingFirstPage})
	assert.Contains(t, s, "loading")

	s = renderSnapshot(Snapshot{Feed: "offers", Status: feed.StatusIdle, TotalCount: 12000, HasNextPage: true, Items: 0})
	assert.Contains(t, s, "12,000 items · more available")
	assert.Contains(t, s, "(empty)")
}

func TestRenderSnapshot_Header(t *testing.T) {
	s := renderSnapshot(Snapshot{Feed: "matches", Status: feed.StatusIdle, Page: 2, Items: 40, TotalCount: 90, Fresh: true, User: "tenant-7"})
	assert.Contains(t, s, "[matches] idle · page 2 · 40 of 90 items · fresh · as tenant-7\n")

	s = renderSnapshot(Snapshot{Feed: "matches", Status: feed.StatusIdle, Page: 2, Items: 40, TotalCount: 90})
	assert.NotContains(t, s, "fresh")
	assert.NotContains(t, s, " as ")
}

func sessionToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, rest.Claims{
		UserID:           userID,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestRenderItems(t *testing.T) {
	assert.Equal(t, "Loft · 2 rooms · 1,250.5 · Almaty · 3.2 km",
		renderListing(entity.Listing{Title: "Loft", Rooms: 2, Price: 1250.5, City: "Almaty", Distance: 3.2}))
	assert.Equal(t, "Loft · 87% match", renderMatch(entity.Match{Title: "Loft", Score: 0.87}))
	assert.Equal(t, "300 KZT · pending", renderOffer(entity.Offer{Amount: 300, Currency: "KZT", Status: entity.OfferStatusPending}))
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "feedsync dev (none)\n", out.String())
}

// listingBackend serves total listings, pageSize per page, in the marketplace
// envelope. Pages overlap by one item to exercise de-duplication.
func listingBackend(t *testing.T, total int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	hits := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/properties/nearby", r.URL.Path)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
		start := (page - 1) * size
		if start > 0 {
			start--
		}
		var data []string
		for i := start; i < page*size && i < total; i++ {
			data = append(data, fmt.Sprintf(`{"id":"l%d","title":"Flat %d","price":%d,"rooms":2,"status":"active"}`, i, i, 100+i))
		}
		pages := (total + size - 1) / size
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"isSuccess":true,"result":{"data":[%s],"totalCount":%d,"totalPages":%d,"hasNextPage":%t}}`,
			joinJSON(data), total, pages, page < pages)
	}))
	t.Cleanup(srv.Close)
	return srv, hits
}

func joinJSON(parts []string) string {
	var b bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p)
	}
	return b.String()
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		ServiceName: "feed-sync-test",
		API:         config.APIConfig{BaseURL: baseURL, Timeout: 5 * time.Second},
		Feed:        config.FeedConfig{PageSize: 3, RequestTimeout: 5 * time.Second},
		Feeds: map[string]config.FeedSource{
			"properties": {Path: "/properties/nearby", Source: config.SourceREST},
		},
		Cache: config.CacheConfig{Backend: config.CacheMemory, TTL: time.Minute, FreshnessWindow: time.Second},
	}
}

func TestLoadPages_RESTWithMemoryCache(t *testing.T) {
	srv, hits := listingBackend(t, 7)
	cfg := testConfig(srv.URL)
	cfg.API.Token = sessionToken(t, "tenant-7")
	app, err := newAppWithLogger(context.Background(), cfg, logger.Wrap(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(app.Close)

	changed := make(chan struct{}, 1)
	notify := func(Snapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	}

	f, err := app.NewFeed("properties", notify)
	require.NoError(t, err)
	snap, err := loadPages(context.Background(), f, 10, nil, changed)
	require.NoError(t, err)
	f.Close()

	assert.Equal(t, feed.StatusIdle, snap.Status)
	assert.Equal(t, 3, snap.Page)
	assert.Equal(t, 7, snap.Items, "overlapping items are merged once")
	assert.False(t, snap.HasNextPage)
	assert.True(t, snap.Fresh, "the last page was just requested")
	assert.Equal(t, "tenant-7", snap.User)
	st, ok := snap.State.(feed.State[entity.Listing])
	require.True(t, ok)
	assert.Equal(t, "l0", st.Items[0].ID)
	assert.Equal(t, "l6", st.Items[6].ID)
	assert.Equal(t, int32(3), hits.Load())

	// A second feed on the same app is served from the page cache.
	f2, err := app.NewFeed("properties", notify)
	require.NoError(t, err)
	snap, err = loadPages(context.Background(), f2, 2, nil, changed)
	require.NoError(t, err)
	f2.Close()
	assert.Equal(t, 2, snap.Page)
	assert.Equal(t, int32(3), hits.Load())

	var out bytes.Buffer
	require.NoError(t, app.purgeFeeds(context.Background(), []string{"properties"}, &out))
	assert.Equal(t, "properties: 3 cached pages dropped\n", out.String())
	assert.Error(t, app.purgeFeeds(context.Background(), []string{"reviews"}, &out))
}

func TestPurgeFeeds_NoCache(t *testing.T) {
	srv, _ := listingBackend(t, 0)
	cfg := testConfig(srv.URL)
	cfg.Cache.Backend = config.CacheNone
	app, err := newAppWithLogger(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	assert.ErrorIs(t, app.purgeFeeds(context.Background(), []string{"properties"}, &bytes.Buffer{}), errNoCache)
}

func TestNewFeed_Unknown(t *testing.T) {
	srv, _ := listingBackend(t, 0)
	app, err := newAppWithLogger(context.Background(), testConfig(srv.URL), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	_, err = app.NewFeed("reviews", nil)
	assert.Error(t, err)
}

func TestLookupFeeds(t *testing.T) {
	lookup := lookupFeeds(map[string]Feed{"fake": &fakeFeed{snap: Snapshot{State: "state"}}})
	got, ok := lookup("fake")
	assert.True(t, ok)
	assert.Equal(t, "state", got)
	_, ok = lookup("missing")
	assert.False(t, ok)
}

func TestRefreshLoop(t *testing.T) {
	f := &fakeFeed{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		refreshLoop(ctx, f, 5*time.Millisecond)
		close(done)
	}()
	assert.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.calls) >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
