package diary

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
	db, err := sql.Open("sqlite", "file:diary_tests?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrate.Up(db))
	for _, stmt := range []string{`DELETE FROM diary`, `DELETE FROM active_checkin`} {
		_, err = db.Exec(stmt)
		require.NoError(t, err)
	}

	return NewSQLiteRepository(db)
}

func record(id string, arrival time.Time, stay time.Duration) models.CheckInRecord {
	departure := arrival.Add(stay)
	return models.CheckInRecord{
		ID:         id,
		VenueToken: []byte("token-" + id),
		VenueInfo:  models.VenueInfo{Name: "Cafe", Address: "Main St 1"},
		Arrival:    arrival,
		Departure:  &departure,
	}
}

func TestAppendAllRemove(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	arrival := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	a := record("a", arrival, time.Hour)
	b := record("b", arrival.Add(2*time.Hour), 30*time.Minute)
	comment := "late lunch"
	b.Comment = &comment

	require.NoError(t, repo.Append(ctx, &a))
	require.NoError(t, repo.Append(ctx, &b))

	got, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].ID, "ordered by arrival")
	require.True(t, got[1].EqualForDedup(b))
	require.Equal(t, models.VenueInfo{Name: "Cafe", Address: "Main St 1"}, got[0].VenueInfo)

	require.NoError(t, repo.Remove(ctx, "a"))
	got, err = repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "b", got[0].ID)
}

func TestAppend_RejectsOpenRecord(t *testing.T) {
	repo := setupRepo(t)

	open := models.CheckInRecord{ID: "x", VenueToken: []byte("t"), Arrival: time.Now()}
	require.Error(t, repo.Append(context.Background(), &open))
}

func TestReplaceAll(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	arrival := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	a := record("a", arrival, time.Hour)
	require.NoError(t, repo.Append(ctx, &a))

	c := record("c", arrival.Add(time.Hour), time.Hour)
	d := record("d", arrival.Add(3*time.Hour), time.Hour)
	require.NoError(t, repo.ReplaceAll(ctx, []models.CheckInRecord{c, d}))

	got, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "c", got[0].ID)
}

func TestSwap_AtomicCorrection(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	arrival := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	orig := record("old", arrival, time.Hour)
	require.NoError(t, repo.Append(ctx, &orig))

	corrected := record("new", arrival, 3*time.Hour)
	require.NoError(t, repo.Swap(ctx, "old", &corrected))

	got, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "new", got[0].ID)

	// A failed swap (missing original) must leave the diary untouched.
	another := record("another", arrival, time.Hour)
	require.Error(t, repo.Swap(ctx, "ghost", &another))
	got, err = repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "new", got[0].ID)
}

func TestUpdateAnnotations(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	arrival := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	a := record("a", arrival, time.Hour)
	require.NoError(t, repo.Append(ctx, &a))

	note := "visited with Sam"
	require.NoError(t, repo.UpdateAnnotations(ctx, "a", &note, true))

	got, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Comment)
	require.Equal(t, note, *got[0].Comment)
	require.True(t, got[0].Hidden)
	require.True(t, got[0].Arrival.Equal(arrival), "matching fields untouched")
}

func TestPruneOlderThan(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 20, 15, 0, 0, 0, time.UTC)
	exactly14 := record("keep", now.AddDate(0, 0, -14), time.Hour)
	days15 := record("drop", now.AddDate(0, 0, -15), time.Hour)
	require.NoError(t, repo.Append(ctx, &exactly14))
	require.NoError(t, repo.Append(ctx, &days15))

	require.NoError(t, repo.PruneOlderThan(ctx, now, 14))
	got, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "keep", got[0].ID)

	// daysToKeep <= 0 wipes unconditionally.
	require.NoError(t, repo.PruneOlderThan(ctx, now, 0))
	got, err = repo.All(ctx)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestActiveCheckInSlot(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	cur, err := repo.ActiveCheckIn(ctx)
	require.NoError(t, err)
	require.Nil(t, cur)

	arrival := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	open := models.CheckInRecord{
		VenueToken: []byte("qr-payload"),
		VenueInfo:  models.VenueInfo{Name: "Gym"},
		Arrival:    arrival,
	}
	require.NoError(t, repo.SetActiveCheckIn(ctx, &open))

	cur, err = repo.ActiveCheckIn(ctx)
	require.NoError(t, err)
	require.NotNil(t, cur)
	require.Nil(t, cur.Departure)
	require.True(t, cur.Arrival.Equal(arrival))
	require.Equal(t, "Gym", cur.VenueInfo.Name)

	require.NoError(t, repo.ClearActiveCheckIn(ctx))
	cur, err = repo.ActiveCheckIn(ctx)
	require.NoError(t, err)
	require.Nil(t, cur)

	require.NoError(t, repo.ClearActiveCheckIn(ctx), "clearing empty slot is a no-op")
}
