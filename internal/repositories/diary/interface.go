// Package diary persists the check-in history and the single active
// check-in slot.
package diary

import (
	"context"
	"time"

	"github.com/mkraev/venuetrace/internal/models"
)

// Repository describes the durable check-in history plus the "currently
// checked in" slot. History records are immutable once written; edits go
// through Swap so the old and corrected record can never coexist.
type Repository interface {
	// Append adds a finalized record to the history.
	Append(ctx context.Context, rec *models.CheckInRecord) error

	// Remove deletes a history record by id.
	Remove(ctx context.Context, id string) error

	// All returns the full history ordered by arrival.
	All(ctx context.Context) ([]models.CheckInRecord, error)

	// ReplaceAll swaps the entire history for recs in one transaction.
	ReplaceAll(ctx context.Context, recs []models.CheckInRecord) error

	// Swap removes the record with removeID and appends rec atomically.
	Swap(ctx context.Context, removeID string, rec *models.CheckInRecord) error

	// UpdateAnnotations changes the user-facing comment/hidden fields of a
	// history record. Matching-relevant fields are never touched.
	UpdateAnnotations(ctx context.Context, id string, comment *string, hidden bool) error

	// PruneOlderThan removes records whose arrival day is older than
	// daysToKeep calendar days before now. daysToKeep <= 0 wipes the whole
	// history.
	PruneOlderThan(ctx context.Context, now time.Time, daysToKeep int) error

	// ActiveCheckIn returns the open check-in, or nil when idle.
	ActiveCheckIn(ctx context.Context) (*models.CheckInRecord, error)

	// SetActiveCheckIn stores rec as the open check-in. There is at most one.
	SetActiveCheckIn(ctx context.Context, rec *models.CheckInRecord) error

	// ClearActiveCheckIn empties the slot. Clearing an empty slot is a no-op.
	ClearActiveCheckIn(ctx context.Context) error
}
