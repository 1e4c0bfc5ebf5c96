// Package matching defines the presence-matching collaborator contract.
// The real implementation is a cryptographic primitive living outside this
// core; everything here talks to it through the Matcher interface only.
package matching

import (
	"context"
	"time"

	"github.com/mkraev/venuetrace/internal/models"
)

// Matcher is the privacy-preserving presence-matching capability.
type Matcher interface {
	// Match returns the subset of the diary that overlaps any of the given
	// problematic events. It is pure: the same inputs yield the same output.
	Match(ctx context.Context, diary []models.CheckInRecord, events []models.ProblematicEvent) ([]models.ExposureEvent, error)

	// SubmitCheckIn finalizes a check-in with the matching layer and returns
	// the identifier assigned to it.
	SubmitCheckIn(ctx context.Context, venueToken []byte, arrival, departure time.Time) (string, error)

	// RemoveExposure discards the matcher's state for a problematic event.
	RemoveExposure(ctx context.Context, eventID string) error

	// CleanUpOldData drops matcher state older than maxDays.
	CleanUpOldData(ctx context.Context, maxDays int) error
}
