package metrics

import (
	"time"

	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/feed"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsManager holds the feed Prometheus metrics on its own registry.
type MetricsManager struct {
	Registry      *prometheus.Registry
	FetchTotal    *prometheus.CounterVec
	FetchLatency  *prometheus.HistogramVec
	LateResponses *prometheus.CounterVec
	FeedItems     *prometheus.GaugeVec
}

var _ feed.Metrics = (*MetricsManager)(nil)

// NewMetricsManager registers the feed metrics under namespace.
func NewMetricsManager(namespace string) *MetricsManager {
	registry := prometheus.NewRegistry()

	fetchTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_total",
		Help:      "Feed page fetches by outcome.",
	}, []string{"feed", "kind", "outcome"})

	fetchLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_latency_seconds",
		Help:      "Latency of feed page fetches.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"feed", "kind"})

	lateResponses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "late_responses_discarded_total",
		Help:      "Responses dropped because a newer request superseded them.",
	}, []string{"feed"})

	feedItems := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "feed_items",
		Help:      "Items currently accumulated per feed.",
	}, []string{"feed"})

	registry.MustRegister(
		fetchTotal,
		fetchLatency,
		lateResponses,
		feedItems,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return &MetricsManager{
		Registry:      registry,
		FetchTotal:    fetchTotal,
		FetchLatency:  fetchLatency,
		LateResponses: lateResponses,
		FeedItems:     feedItems,
	}
}

func (m *MetricsManager) ObserveFetch(feedName string, kind feed.FetchKind, outcome string, elapsed time.Duration) {
	m.FetchTotal.WithLabelValues(feedName, string(kind), outcome).Inc()
	m.FetchLatency.WithLabelValues(feedName, string(kind)).Observe(elapsed.Seconds())
}

func (m *MetricsManager) ResponseDiscarded(feedName string) {
	m.LateResponses.WithLabelValues(feedName).Inc()
}

func (m *MetricsManager) SetItems(feedName string, n int) {
	m.FeedItems.WithLabelValues(feedName).Set(float64(n))
}
