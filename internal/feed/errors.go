package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// NetworkError means the request failed before a response was obtained.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("network error: %v", e.Err)
	}
	return fmt.Sprintf("network error: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError means a response arrived but was not a success: a non-2xx
// status or isSuccess=false.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error: status %d", e.Status)
	}
	return fmt.Sprintf("server error: status %d: %s", e.Status, e.Message)
}

// MalformedResponseError means the response did not have the page shape.
// Sources return it together with an empty page; the synchronizer applies
// empty-page semantics instead of entering the error state.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err == nil {
		return "malformed response: " + e.Reason
	}
	return fmt.Sprintf("malformed response: %s: %v", e.Reason, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// Classify maps any source error onto the taxonomy. Untyped errors, timeouts
// and cancellations are network errors.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var (
		netErr       *NetworkError
		serverErr    *ServerError
		malformedErr *MalformedResponseError
	)
	switch {
	case errors.As(err, &netErr), errors.As(err, &serverErr), errors.As(err, &malformedErr):
		return err
	default:
		return &NetworkError{Err: err}
	}
}

// UserMessage renders err for display next to the retry affordance.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		netErr    *NetworkError
		serverErr *ServerError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out. Pull to refresh to try again."
	case errors.As(err, &serverErr):
		if serverErr.Message != "" {
			return serverErr.Message
		}
		if text := http.StatusText(serverErr.Status); text != "" {
			return text
		}
		return "The server could not load this list."
	case errors.As(err, &netErr):
		return "Could not reach the server. Check your connection and pull to refresh."
	default:
		return "Something went wrong while loading this list."
	}
}
