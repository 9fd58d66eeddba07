package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	created, err := store.Create(ctx, "tok", "Ada", "10")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.WithinDuration(t, time.Now().Add(TTL), created.ExpiresAt, time.Minute)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tok", got.Token)
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, "10", got.UserID)
}

func TestGetUnknownIDReturnsNil(t *testing.T) {
	store := openTestStore(t)

	got, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExpiredSessionIsGone(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	created, err := store.Create(ctx, "tok", "Ada", "10")
	require.NoError(t, err)

	// Backdate the expiry past the TTL.
	_, err = store.db.Exec("UPDATE sessions SET expires_at = ? WHERE id = ?",
		time.Now().Add(-time.Hour), created.ID)
	require.NoError(t, err)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteAndPurge(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	s1, err := store.Create(ctx, "t1", "a", "1")
	require.NoError(t, err)
	s2, err := store.Create(ctx, "t2", "b", "2")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, s1.ID))
	got, err := store.Get(ctx, s1.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = store.db.Exec("UPDATE sessions SET expires_at = ? WHERE id = ?",
		time.Now().Add(-time.Hour), s2.ID)
	require.NoError(t, err)

	purged, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)
}
