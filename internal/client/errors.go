package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies a failed call. The kind decides whether the
// retry loop is allowed to attempt the call again.
type ErrorKind string

const (
	// KindValidation marks malformed input caught before any network
	// attempt. Never retried.
	KindValidation ErrorKind = "validation"
	// KindAPI marks a non-success HTTP response from the store.
	// Retried only when the status is a server error (>= 500).
	KindAPI ErrorKind = "api"
	// KindNetwork marks a transport-level failure (connection
	// refused, DNS, reset). Retried.
	KindNetwork ErrorKind = "network"
	// KindTimeout marks a call that exceeded its deadline. Retried,
	// against the same attempt budget as network errors.
	KindTimeout ErrorKind = "timeout"
)

// Error is the single failure type every client operation resolves
// to. Callers match on Kind rather than on error subtypes.
type Error struct {
	Kind       ErrorKind
	StatusCode int // set for KindAPI only
	Message    string
}

func (e *Error) Error() string {
	if e.Kind == KindAPI && e.StatusCode > 0 {
		return fmt.Sprintf("%s error (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// Retryable reports whether another attempt could plausibly succeed.
// Client-classified API errors (4xx) are terminal.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindAPI:
		return e.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}

// validationError builds a non-retryable pre-flight failure.
func validationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// classifyTransportError converts an http.Client failure into a
// timeout or network Error.
func classifyTransportError(err error) *Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: KindTimeout, Message: "request deadline exceeded"}
	}
	return &Error{Kind: KindNetwork, Message: err.Error()}
}

// errorMessage extracts a human-readable message from an error
// response body, falling back to the HTTP status line when the body
// carries no structured detail.
func errorMessage(body []byte, status string) string {
	var payload struct {
		Message string          `json:"message"`
		Detail  json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if len(payload.Detail) > 0 {
			var detail string
			if json.Unmarshal(payload.Detail, &detail) == nil && detail != "" {
				return detail
			}
			return string(payload.Detail)
		}
	}
	return status
}
