// Package checkin owns the "currently checked in" state machine: check-in,
// manual checkout, automatic timeout checkout and record correction.
package checkin

import (
	"context"
	"fmt"
	"time"

	"github.com/mkraev/venuetrace/internal/common"
	"github.com/mkraev/venuetrace/internal/logging"
	"github.com/mkraev/venuetrace/internal/matching"
	"github.com/mkraev/venuetrace/internal/models"
	"github.com/mkraev/venuetrace/internal/notify"
	"github.com/mkraev/venuetrace/internal/repositories/diary"
)

// DefaultMaxDuration caps how long a check-in may stay open before the
// automatic checkout closes it.
const DefaultMaxDuration = 12 * time.Hour

// Manager governs the single active check-in slot and the diary behind it.
// All mutations are expected to run under one logical owner; the agent
// serializes them with the sync passes.
type Manager struct {
	diary       diary.Repository
	matcher     matching.Matcher
	notifier    notify.Notifier
	log         logging.Logger
	maxDuration time.Duration
}

// NewManager wires a Manager. maxDuration <= 0 selects DefaultMaxDuration.
func NewManager(d diary.Repository, m matching.Matcher, n notify.Notifier, log logging.Logger, maxDuration time.Duration) *Manager {
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}
	return &Manager{diary: d, matcher: m, notifier: n, log: log, maxDuration: maxDuration}
}

// CurrentCheckIn returns the open check-in, or nil when idle.
func (m *Manager) CurrentCheckIn(ctx context.Context) (*models.CheckInRecord, error) {
	return m.diary.ActiveCheckIn(ctx)
}

// CheckIn opens a new check-in slot. The caller must check out first if a
// slot is already open.
func (m *Manager) CheckIn(ctx context.Context, venueToken []byte, info models.VenueInfo, now time.Time) (*models.CheckInRecord, error) {
	cur, err := m.diary.ActiveCheckIn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read active check-in: %w", err)
	}
	if cur != nil {
		return nil, common.ErrAlreadyCheckedIn
	}

	rec := &models.CheckInRecord{
		VenueToken: venueToken,
		VenueInfo:  info,
		Arrival:    now,
	}
	if err := m.diary.SetActiveCheckIn(ctx, rec); err != nil {
		return nil, err
	}

	m.notifier.ScheduleCheckoutReminder(ctx, now.Add(m.maxDuration))
	m.log.Info(ctx, "checked in", "venue", info.Name)
	return rec, nil
}

// CheckOut finalizes the open check-in at the given departure time. The
// record is submitted to the matching layer first; only on success is the
// assigned id taken, the record appended to the diary, the slot cleared and
// the reminder cancelled. On failure the slot stays open for a retry.
func (m *Manager) CheckOut(ctx context.Context, departure time.Time) (*models.CheckInRecord, error) {
	cur, err := m.diary.ActiveCheckIn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read active check-in: %w", err)
	}
	if cur == nil {
		return nil, common.ErrNotCheckedIn
	}
	if !departure.After(cur.Arrival) {
		return nil, common.ErrInvalidWindow
	}

	id, err := m.matcher.SubmitCheckIn(ctx, cur.VenueToken, cur.Arrival, departure)
	if err != nil {
		return nil, fmt.Errorf("check-in submission failed: %w", err)
	}

	rec := *cur
	rec.ID = id
	d := departure
	rec.Departure = &d

	if err := m.diary.Append(ctx, &rec); err != nil {
		return nil, err
	}
	if err := m.diary.ClearActiveCheckIn(ctx); err != nil {
		return nil, err
	}

	m.notifier.CancelCheckoutReminder(ctx)
	m.log.Info(ctx, "checked out", "id", rec.ID, "duration", departure.Sub(rec.Arrival))
	return &rec, nil
}

// AutoCheckoutIfStale closes an open check-in whose age exceeds the maximum
// duration. The synthesized departure is arrival + maxDuration, not now:
// capping the window deterministically keeps downstream matching precise.
func (m *Manager) AutoCheckoutIfStale(ctx context.Context, now time.Time) (bool, error) {
	cur, err := m.diary.ActiveCheckIn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read active check-in: %w", err)
	}
	if cur == nil || now.Sub(cur.Arrival) <= m.maxDuration {
		return false, nil
	}

	if _, err := m.CheckOut(ctx, cur.Arrival.Add(m.maxDuration)); err != nil {
		return false, err
	}
	m.log.Info(ctx, "auto checkout of stale check-in", "arrival", cur.Arrival)
	return true, nil
}

// UpdateRecord corrects a historical record's times. The corrected window is
// re-submitted under the same venue/arrival semantics; on success the old
// diary entry is removed and the corrected one appended in one transaction,
// so the diary never holds both or neither.
func (m *Manager) UpdateRecord(ctx context.Context, updated models.CheckInRecord) (*models.CheckInRecord, error) {
	if updated.Departure == nil {
		return nil, common.ErrInvalidWindow
	}

	// An edit that changes nothing matching-relevant must not burn a
	// fresh submission round-trip.
	existing, err := m.diary.All(ctx)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if existing[i].ID == updated.ID && existing[i].EqualForDedup(updated) {
			return &existing[i], nil
		}
	}

	id, err := m.matcher.SubmitCheckIn(ctx, updated.VenueToken, updated.Arrival, *updated.Departure)
	if err != nil {
		return nil, fmt.Errorf("check-in submission failed: %w", err)
	}

	oldID := updated.ID
	updated.ID = id
	if err := m.diary.Swap(ctx, oldID, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}
