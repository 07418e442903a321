package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRetrievalUnavailable means the document store could not be reached
	// or answered with something other than a search response.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrGenerationUnavailable means the generation backend could not be
	// reached or returned a non-success status.
	ErrGenerationUnavailable = errors.New("generation unavailable")

	// ErrUnauthorized means a backend rejected our credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMalformedResponse means a backend answered, but not in the shape we expect.
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusError is a non-2xx answer from an HTTP backend.
type StatusError struct {
	Backend    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Backend, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Backend, e.StatusCode, e.Body)
}

// Unwrap maps auth failures to ErrUnauthorized so callers can use errors.Is.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == 401 || e.StatusCode == 403 {
		return ErrUnauthorized
	}
	return nil
}
