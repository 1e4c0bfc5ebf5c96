package matching

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mkraev/venuetrace/internal/models"
)

func closedRecord(id string, token []byte, arrival time.Time, stay time.Duration) models.CheckInRecord {
	departure := arrival.Add(stay)
	return models.CheckInRecord{ID: id, VenueToken: token, Arrival: arrival, Departure: &departure}
}

func TestLocalMatcher_Match(t *testing.T) {
	m := NewLocalMatcher()
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	diary := []models.CheckInRecord{
		closedRecord("a", []byte("venue-1"), base, 2*time.Hour),
		closedRecord("b", []byte("venue-2"), base, 2*time.Hour),
		{ID: "open", VenueToken: []byte("venue-1"), Arrival: base},
	}
	events := []models.ProblematicEvent{
		{EventID: "e1", VenuePayload: []byte("venue-1"), Start: base.Add(time.Hour), End: base.Add(3 * time.Hour)},
		{EventID: "e2", VenuePayload: []byte("venue-1"), Start: base.Add(3 * time.Hour), End: base.Add(4 * time.Hour)},
		{EventID: "e3", VenuePayload: []byte("venue-3"), Start: base, End: base.Add(time.Hour)},
	}

	got, err := m.Match(ctx, diary, events)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, models.ExposureEvent{CheckinID: "a", MatchedEventID: "e1"}, got[0])
}

func TestLocalMatcher_SubmitCheckIn(t *testing.T) {
	m := NewLocalMatcher()
	ctx := context.Background()
	arrival := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	id, err := m.SubmitCheckIn(ctx, []byte("v"), arrival, arrival.Add(time.Hour))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = m.SubmitCheckIn(ctx, []byte("v"), arrival, arrival)
	require.Error(t, err)
}
