package kvstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mkraev/venuetrace/internal/migrate"
)

func setupStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", "file:kvstore_tests?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrate.Up(db))
	_, err = db.Exec(`DELETE FROM kv`)
	require.NoError(t, err)

	return NewSQLiteStore(db)
}

func TestStore_MissingKey(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "absent")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Delete(ctx, "absent"), "deleting an absent key is not an error")
}

func TestStore_SetReplacesValue(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("one")))
	require.NoError(t, s.Set(ctx, "k", []byte("two")))

	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("two"), v)
}

func TestGetJSON_TypedValues(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	firedAt := time.Date(2026, 4, 2, 11, 30, 0, 0, time.UTC)
	require.NoError(t, SetJSON(ctx, s, KeyDecoyNextFire, firedAt))
	require.NoError(t, SetJSON(ctx, s, KeySelfReported, true))

	got, ok, err := GetJSON[time.Time](ctx, s, KeyDecoyNextFire)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Equal(firedAt))

	flag, ok, err := GetJSON[bool](ctx, s, KeySelfReported)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, flag)

	_, ok, err = GetJSON[int64](ctx, s, KeyBundleTag)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetJSON_MalformedValue(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, KeyBundleTag, []byte("{not json")))
	_, _, err := GetJSON[int64](ctx, s, KeyBundleTag)
	require.Error(t, err)
}
