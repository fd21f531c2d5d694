package rest

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/feed"
)

// envelope is the marketplace response wrapper.
type envelope struct {
	IsSuccess *bool           `json:"isSuccess"`
	Result    json.RawMessage `json:"result"`
	Message   string          `json:"message"`
}

// Source fetches one feed from a backend path, e.g. /properties/nearby.
type Source[T any] struct {
	client *Client
	name   string
	path   string
}

var _ feed.Source[struct{}] = (*Source[struct{}])(nil)

func NewSource[T any](client *Client, name, path string) *Source[T] {
	return &Source[T]{client: client, name: name, path: path}
}

func (s *Source[T]) Name() string { return s.name }

func (s *Source[T]) Fetch(ctx context.Context, q feed.Query) (feed.Page[T], error) {
	status, body, err := s.client.get(ctx, s.path, q.Values())
	if err != nil {
		return feed.Page[T]{}, err
	}
	return DecodePage[T](status, body)
}

// DecodePage interprets a response. Non-2xx statuses and isSuccess=false are
// server errors; a body that is not an envelope, or lacks result.data, is a
// malformed response with an empty page.
func DecodePage[T any](status int, body []byte) (feed.Page[T], error) {
	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	if status < 200 || status > 299 {
		msg := ""
		if decodeErr == nil {
			msg = env.Message
		}
		return feed.Page[T]{}, &feed.ServerError{Status: status, Message: msg}
	}
	if decodeErr != nil {
		return feed.Page[T]{}, &feed.MalformedResponseError{Reason: "body is not a response envelope", Err: decodeErr}
	}
	if env.IsSuccess == nil {
		return feed.Page[T]{}, &feed.MalformedResponseError{Reason: "missing isSuccess"}
	}
	if !*env.IsSuccess {
		return feed.Page[T]{}, &feed.ServerError{Status: status, Message: env.Message}
	}
	if len(env.Result) == 0 || bytes.Equal(env.Result, []byte("null")) {
		return feed.Page[T]{}, &feed.MalformedResponseError{Reason: "missing result"}
	}

	var page feed.Page[T]
	if err := json.Unmarshal(env.Result, &page); err != nil {
		return feed.Page[T]{}, &feed.MalformedResponseError{Reason: "result is not a page", Err: err}
	}
	if page.Missing() {
		return feed.Page[T]{}, &feed.MalformedResponseError{Reason: "missing result.data"}
	}
	return page, nil
}
