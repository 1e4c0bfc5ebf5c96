package matching

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mkraev/venuetrace/internal/common"
	"github.com/mkraev/venuetrace/internal/models"
)

// LocalMatcher is a reference Matcher that compares raw venue payloads for
// equality and check-in/event windows for overlap. It carries no state of
// its own. Deployments swap in the cryptographic matcher; this one exists
// for tests and local runs.
type LocalMatcher struct{}

// NewLocalMatcher returns a stateless LocalMatcher.
func NewLocalMatcher() *LocalMatcher {
	return &LocalMatcher{}
}

func (m *LocalMatcher) Match(ctx context.Context, diary []models.CheckInRecord, events []models.ProblematicEvent) ([]models.ExposureEvent, error) {
	var result []models.ExposureEvent
	for _, rec := range diary {
		window, ok := rec.Window()
		if !ok {
			continue
		}
		for _, ev := range events {
			if !bytes.Equal(rec.VenueToken, ev.VenuePayload) {
				continue
			}
			if window.Overlaps(ev.Window()) {
				result = append(result, models.ExposureEvent{CheckinID: rec.ID, MatchedEventID: ev.EventID})
			}
		}
	}
	return result, nil
}

func (m *LocalMatcher) SubmitCheckIn(ctx context.Context, venueToken []byte, arrival, departure time.Time) (string, error) {
	if !departure.After(arrival) {
		return "", common.ErrInvalidWindow
	}
	return uuid.NewString(), nil
}

func (m *LocalMatcher) RemoveExposure(ctx context.Context, eventID string) error {
	return nil
}

func (m *LocalMatcher) CleanUpOldData(ctx context.Context, maxDays int) error {
	return nil
}
