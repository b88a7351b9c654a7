package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ingestion and query paths.
var (
	// ErrMalformedInput marks a source unit that could not be parsed.
	// The unit is skipped; the run continues.
	ErrMalformedInput = errors.New("malformed input")
	// ErrEmptyCollection is returned when a query is attempted against a
	// collection with zero documents.
	ErrEmptyCollection = errors.New("collection is empty")
	// ErrGeneration marks a failed generative-model call. It propagates to
	// the caller; no fallback answer is fabricated.
	ErrGeneration = errors.New("generation failed")
)

// SkipError wraps a per-unit parse failure with the unit's identity.
type SkipError struct {
	Unit    string
	Wrapped error
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("skip %s: %s", e.Unit, e.Wrapped)
}

func (e *SkipError) Unwrap() error { return e.Wrapped }

// NewSkipError creates a SkipError.
func NewSkipError(unit string, wrapped error) *SkipError {
	return &SkipError{Unit: unit, Wrapped: wrapped}
}
