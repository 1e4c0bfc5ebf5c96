// Package events persists the problematic-event feed and the exposure
// matches computed against it.
package events

import (
	"context"
	"time"

	"github.com/mkraev/venuetrace/internal/models"
)

// Repository stores problematic events keyed by their opaque event id, and
// the exposure-match set. Matches are replaced wholesale each sync pass:
// the matching result is recomputed from the full diary and the full event
// set, because either side can shrink through retention pruning.
type Repository interface {
	// UpsertBatch merges a fetched batch into the store by event id.
	UpsertBatch(ctx context.Context, batch []models.ProblematicEvent) error

	// All returns every stored problematic event.
	All(ctx context.Context) ([]models.ProblematicEvent, error)

	// PruneOlderThan removes events whose window ended more than daysToKeep
	// calendar days before now. daysToKeep <= 0 wipes the store.
	PruneOlderThan(ctx context.Context, now time.Time, daysToKeep int) error

	// ReplaceMatches swaps the entire exposure-match set in one transaction.
	ReplaceMatches(ctx context.Context, matches []models.ExposureEvent) error

	// Matches returns the current exposure-match set.
	Matches(ctx context.Context) ([]models.ExposureEvent, error)

	// RemoveMatchesForCheckIn deletes all matches referencing checkinID.
	RemoveMatchesForCheckIn(ctx context.Context, checkinID string) error
}
