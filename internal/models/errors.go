package models

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable is returned when a vector or metadata source cannot be opened or read.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrRecordMalformed marks a single record or line that failed to decode.
	ErrRecordMalformed = errors.New("record malformed")

	// ErrProviderFailure is returned when the embedding provider errors or times out.
	ErrProviderFailure = errors.New("embedding provider failure")

	// ErrInvalidEmbedding is returned when the provider answers with a structurally invalid vector.
	ErrInvalidEmbedding = fmt.Errorf("%w: invalid embedding", ErrProviderFailure)

	// ErrEmptyQuery is returned when a request carries no query text or vector.
	ErrEmptyQuery = errors.New("query cannot be empty")
)

// OpError wraps an error with the operation and location it happened at.
type OpError struct {
	Op       string
	Location string
	Err      error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Location, e.Err)
}

// Unwrap returns the underlying error.
func (e *OpError) Unwrap() error {
	return e.Err
}

// SourceError wraps err as an unavailable-source failure for location.
// The returned error matches both ErrSourceUnavailable and err.
func SourceError(op, location string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Location: location, Err: fmt.Errorf("%w: %w", ErrSourceUnavailable, err)}
}
