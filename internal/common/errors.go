// Package common defines shared constants and sentinel errors used across
// venuetrace components. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Check-in lifecycle errors.
	ErrAlreadyCheckedIn = errors.New("already checked in")
	ErrNotCheckedIn     = errors.New("not checked in")
	ErrInvalidWindow    = errors.New("departure must be after arrival")

	// Transport-level errors (connection, timeout).
	ErrTransport = errors.New("transport failure")

	// Malformed response body or token claims. Surfaced to callers the same
	// way as a network error; they cannot act differently on it.
	ErrParse = errors.New("malformed response")

	// ErrInvalidCode is terminal for the given one-time code. It must never
	// be retried with the same code and must never be cached.
	ErrInvalidCode = errors.New("invalid authorization code")

	// ErrSignature means the feed payload failed signature verification.
	// Previously cached data remains authoritative.
	ErrSignature = errors.New("signature verification failed")
)

// StatusError reports a non-2xx/304 HTTP status from the backend.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d", e.Code)
}

// IsStatus reports whether err carries a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
