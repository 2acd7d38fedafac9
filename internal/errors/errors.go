// Package errors holds the sentinel errors shared by every pipeline stage.
//
// Stages wrap these with fmt.Errorf("...: %w", err) so callers can branch
// with errors.Is regardless of which backend produced the failure.
package errors

import (
	"errors"
)

var (
	// Source errors
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrNoData            = errors.New("no data")
	ErrSourceNotFound    = errors.New("source not found")

	// Storage errors
	ErrNotFound = errors.New("not found")
	ErrStorage  = errors.New("storage error")

	// Data errors
	ErrSchemaMismatch   = errors.New("schema mismatch")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidPartition = errors.New("invalid partition")

	// Setup errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrUnknownJob    = errors.New("unknown job")
)

// IsNotFound reports whether err means a missing object or source.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrSourceNotFound)
}

// IsDataError reports whether err comes from malformed input data rather than
// from a transport failure.
func IsDataError(err error) bool {
	return errors.Is(err, ErrSchemaMismatch) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrNoData)
}

// Is and New mirror the standard library so packages importing this one
// under its default name do not need a second errors import.
func Is(err, target error) bool { return errors.Is(err, target) }

func New(text string) error { return errors.New(text) }
