// Package simplenote is an HTTP client for the Simplenote note API with
// automatic retry, error classification, and session handling.
package simplenote

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, simplenote.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("simplenote: bad request")
	ErrUnauthorized = errors.New("simplenote: unauthorized")
	ErrForbidden    = errors.New("simplenote: forbidden")
	ErrNotFound     = errors.New("simplenote: not found")
	ErrThrottled    = errors.New("simplenote: throttled")
	ErrServerError  = errors.New("simplenote: server error")
	ErrUnexpected   = errors.New("simplenote: unexpected response")
	ErrNotLoggedIn  = errors.New("simplenote: not logged in")
)

// APIError is a failed API call: the operation, the HTTP status code and the
// response body.
type APIError struct {
	Op      string
	Code    int
	Message string
	Err     error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("simplenote: %s: HTTP %d", e.Op, e.Code)
	}

	return fmt.Sprintf("simplenote: %s: HTTP %d: %s", e.Op, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return ErrUnexpected
	}
}

// isRetryable reports whether the given HTTP status code should be retried.
func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
