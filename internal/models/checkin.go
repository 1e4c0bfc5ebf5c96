// Package models defines the diary and exposure entities shared across the
// check-in, sync and reporting services.
package models

import (
	"time"

	"github.com/mkraev/venuetrace/internal/interval"
)

// VenueInfo is decoded venue metadata kept for display only. It plays no
// part in matching.
type VenueInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// CheckInRecord is a user-recorded presence at a venue. ID is assigned only
// after a successful checkout round-trip; Departure is nil while the user is
// still checked in. At most one record system-wide has a nil Departure.
type CheckInRecord struct {
	ID         string
	VenueToken []byte
	VenueInfo  VenueInfo
	Arrival    time.Time
	Departure  *time.Time
	Comment    *string
	Hidden     bool
}

// Window returns the closed check-in interval. ok is false while the record
// is still open.
func (r CheckInRecord) Window() (interval.Interval, bool) {
	if r.Departure == nil {
		return interval.Interval{}, false
	}
	return interval.Interval{Start: r.Arrival, End: *r.Departure}, true
}

// EqualForDedup compares records over (id, comment, arrival, departure).
// The venue payload is intentionally excluded: its encoding may differ
// across app versions while describing the same physical check-in.
func (r CheckInRecord) EqualForDedup(other CheckInRecord) bool {
	if r.ID != other.ID {
		return false
	}
	if !equalStringPtr(r.Comment, other.Comment) {
		return false
	}
	if !r.Arrival.Equal(other.Arrival) {
		return false
	}
	return equalTimePtr(r.Departure, other.Departure)
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
