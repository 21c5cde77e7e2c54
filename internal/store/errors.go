package store

import "errors"

var (
	ErrConflict = errors.New("conflict")
	ErrNotFound = errors.New("not found")

	// ErrUnavailable marks transient failures (timeouts, lost connections,
	// serialization failures). Callers may retry with backoff.
	ErrUnavailable = errors.New("store unavailable")
)
