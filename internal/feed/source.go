package feed

import (
	"context"
	"time"
)

// Source is the data source a feed pulls pages from. Implementations return
// *NetworkError, *ServerError or *MalformedResponseError; anything else is
// treated as a network failure.
type Source[T any] interface {
	Fetch(ctx context.Context, q Query) (Page[T], error)
}

// SourceFunc adapts a function to Source.
type SourceFunc[T any] func(ctx context.Context, q Query) (Page[T], error)

func (f SourceFunc[T]) Fetch(ctx context.Context, q Query) (Page[T], error) {
	return f(ctx, q)
}

// FetchKind tells first-page loads from next-page loads.
type FetchKind string

const (
	FetchFirstPage FetchKind = "first_page"
	FetchNextPage  FetchKind = "next_page"
)

// EventType names a feed lifecycle event.
type EventType string

const (
	EventReset             EventType = "feed.reset"
	EventPageLoaded        EventType = "feed.page_loaded"
	EventFetchFailed       EventType = "feed.fetch_failed"
	EventResponseDiscarded EventType = "feed.response_discarded"
)

// Event describes one state transition of a feed.
type Event struct {
	Feed        string    `json:"feed"`
	Type        EventType `json:"type"`
	Kind        FetchKind `json:"kind,omitempty"`
	Generation  uint64    `json:"generation"`
	Page        int       `json:"page"`
	Items       int       `json:"items"`
	HasNextPage bool      `json:"hasNextPage"`
	Error       string    `json:"error,omitempty"`
	At          time.Time `json:"at"`
}

// Publisher receives feed events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Outcomes reported to Metrics.
const (
	OutcomeSuccess   = "success"
	OutcomeMalformed = "malformed"
	OutcomeError     = "error"
)

// Metrics receives fetch measurements.
type Metrics interface {
	ObserveFetch(feed string, kind FetchKind, outcome string, elapsed time.Duration)
	ResponseDiscarded(feed string)
	SetItems(feed string, n int)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }

type nopMetrics struct{}

func (nopMetrics) ObserveFetch(string, FetchKind, string, time.Duration) {}
func (nopMetrics) ResponseDiscarded(string)                              {}
func (nopMetrics) SetItems(string, int)                                  {}
