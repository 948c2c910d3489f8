package coda

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the two API failure modes callers branch on.
// Use errors.Is against these; the concrete error is always an *APIError.
var (
	// ErrNotFound matches 404 responses (unknown doc, table or row).
	ErrNotFound = errors.New("not found")

	// ErrTooManyRequests matches 429 responses. The client handles these
	// internally (backoff gate + retry); callers only see this error when
	// retries are exhausted.
	ErrTooManyRequests = errors.New("too many requests")

	// ErrUnauthorized matches 401/403 responses (bad or expired token).
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError represents a non-2xx response from the Coda API.
type APIError struct {
	// StatusCode is the HTTP status code of the response.
	StatusCode int

	// Message is the error message from the response body, if the API
	// provided one.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("coda api: status code %d", e.StatusCode)
	}
	return fmt.Sprintf("coda api: status code %d: %s", e.StatusCode, e.Message)
}

// Is maps status codes onto the package sentinels so callers can use
// errors.Is(err, coda.ErrNotFound) without inspecting status codes.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrTooManyRequests:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	default:
		return false
	}
}
