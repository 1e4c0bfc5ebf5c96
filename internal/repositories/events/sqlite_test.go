package events

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mkraev/venuetrace/internal/migrate"
	"github.com/mkraev/venuetrace/internal/models"
)

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := sql.Open("sqlite", "file:events_tests?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrate.Up(db))
	for _, stmt := range []string{`DELETE FROM problematic_events`, `DELETE FROM exposure_matches`} {
		_, err = db.Exec(stmt)
		require.NoError(t, err)
	}

	return NewSQLiteRepository(db)
}

func event(id string, start time.Time, length time.Duration) models.ProblematicEvent {
	return models.ProblematicEvent{
		EventID:      id,
		VenuePayload: []byte("payload-" + id),
		Start:        start,
		End:          start.Add(length),
	}
}

func TestUpsertBatch_MergesByEventID(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 12, 18, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpsertBatch(ctx, []models.ProblematicEvent{
		event("e1", start, time.Hour),
		event("e2", start.Add(time.Hour), time.Hour),
	}))

	// A later batch republishing e1 with a widened window replaces it.
	widened := event("e1", start, 2*time.Hour)
	require.NoError(t, repo.UpsertBatch(ctx, []models.ProblematicEvent{widened}))

	got, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "e1", got[0].EventID)
	require.True(t, got[0].End.Equal(start.Add(2*time.Hour)))
}

func TestPruneOlderThan_ByEndDay(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 20, 15, 0, 0, 0, time.UTC)
	recent := event("recent", now.AddDate(0, 0, -14), time.Hour)
	stale := event("stale", now.AddDate(0, 0, -16), time.Hour)
	require.NoError(t, repo.UpsertBatch(ctx, []models.ProblematicEvent{recent, stale}))

	require.NoError(t, repo.PruneOlderThan(ctx, now, 14))
	got, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "recent", got[0].EventID)
}

func TestReplaceMatches_Wholesale(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceMatches(ctx, []models.ExposureEvent{
		{CheckinID: "a", MatchedEventID: "e1"},
		{CheckinID: "b", MatchedEventID: "e2"},
	}))

	// The next sync pass recomputes from scratch; old matches must not linger.
	require.NoError(t, repo.ReplaceMatches(ctx, []models.ExposureEvent{
		{CheckinID: "b", MatchedEventID: "e2"},
	}))

	got, err := repo.Matches(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "b", got[0].CheckinID)
}

func TestRemoveMatchesForCheckIn(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceMatches(ctx, []models.ExposureEvent{
		{CheckinID: "a", MatchedEventID: "e1"},
		{CheckinID: "a", MatchedEventID: "e2"},
		{CheckinID: "b", MatchedEventID: "e2"},
	}))

	require.NoError(t, repo.RemoveMatchesForCheckIn(ctx, "a"))
	got, err := repo.Matches(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "b", got[0].CheckinID)
}
