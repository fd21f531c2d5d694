package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/feed"
	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/platform/logger"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsManager_RecordsFeedMetrics(t *testing.T) {
	m := NewMetricsManager("feedsync")

	m.ObserveFetch("properties", feed.FetchFirstPage, feed.OutcomeSuccess, 120*time.Millisecond)
	m.ObserveFetch("properties", feed.FetchNextPage, feed.OutcomeError, time.Second)
	m.ObserveFetch("properties", feed.FetchNextPage, feed.OutcomeError, time.Second)
	m.ResponseDiscarded("offers")
	m.SetItems("properties", 42)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchTotal.WithLabelValues("properties", "first_page", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FetchTotal.WithLabelValues("properties", "next_page", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LateResponses.WithLabelValues("offers")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.FeedItems.WithLabelValues("properties")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.FetchLatency))
}

func TestRouter(t *testing.T) {
	m := NewMetricsManager("feedsync")
	m.SetItems("properties", 3)

	lookup := func(name string) (any, bool) {
		if name != "properties" {
			return nil, false
		}
		return map[string]any{"status": "idle", "items": 3}, true
	}
	srv := httptest.NewServer(NewRouter(m.Registry, lookup, logger.NewNop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/feeds/properties")
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "idle", body["status"])

	resp, err = http.Get(srv.URL + "/feeds/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
