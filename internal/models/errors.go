package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for lookups and configuration.
var (
	// ErrNotFound is returned when a vertex lookup by id or by (content, type) misses.
	ErrNotFound = errors.New("vertex not found")

	// ErrInvalidConfig is returned when engine parameters are rejected before any traversal.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNegativeStrength is returned when an edge would carry a negative or
	// non-finite strength.
	ErrNegativeStrength = errors.New("edge strength must be a finite non-negative number")
)

// Sentinel errors for validation.
var (
	ErrMissingContent = errors.New("content is required")
	ErrMissingName    = errors.New("document name is required")
	ErrNoSeeds        = errors.New("no seed resolved")
)

// StorageError wraps a failure reported by the storage adapter. It is surfaced
// verbatim; the engine never retries.
type StorageError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying adapter error.
func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err as a StorageError unless it is nil, already a
// StorageError, or an ErrNotFound (which keeps its own identity).
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}

	var se *StorageError
	if errors.As(err, &se) || errors.Is(err, ErrNotFound) {
		return err
	}

	return &StorageError{Op: op, Err: err}
}

// InvalidConfigf returns an error wrapping ErrInvalidConfig with a formatted detail.
func InvalidConfigf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// ErrFieldTooLong returns an error indicating a field exceeds its maximum length.
func ErrFieldTooLong(field string, maxLen int) error {
	return fmt.Errorf("%s exceeds maximum length of %d", field, maxLen)
}
