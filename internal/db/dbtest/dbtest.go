// Package dbtest holds the repository conformance suite every storage
// backend must pass, plus helpers for tests in other packages.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-spotify-history/internal/db"
	"github.com/justestif/go-spotify-history/internal/db/sqlite"
)

// NewSQLite returns a migrated store backed by a temporary SQLite file.
func NewSQLite(t *testing.T) *db.Store {
	t.Helper()

	ctx := context.Background()
	conn, err := sqlite.New(ctx, filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)

	store := conn.Store()
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate(ctx))
	return store
}

// SampleTrack returns a fully populated track for tests.
func SampleTrack(id string, durationMs int) *db.Track {
	return &db.Track{
		ID:          id,
		Name:        "Track " + id,
		ArtistName:  "Artist A",
		Album:       "Album",
		DurationMs:  durationMs,
		Popularity:  50,
		ReleaseDate: "2020-01-31",
		Explicit:    true,
		ArtistIDs:   []string{"artistA", "artistB"},
		Genres:      []string{"indie", "rock"},
	}
}

// Run exercises every repository of store. The store must be freshly migrated and empty.
func Run(t *testing.T, store *db.Store) {
	t.Run("Tokens", func(t *testing.T) { testTokens(t, store) })
	t.Run("Artists", func(t *testing.T) { testArtists(t, store) })
	t.Run("Tracks", func(t *testing.T) { testTracks(t, store) })
	t.Run("History", func(t *testing.T) { testHistory(t, store) })
}

func testTokens(t *testing.T, store *db.Store) {
	ctx := context.Background()

	_, err := store.Tokens.Get(ctx, "nobody")
	require.ErrorIs(t, err, db.ErrNotFound)

	require.NoError(t, store.Tokens.Upsert(ctx, &db.Token{
		UserID:       "user1",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    1000,
	}))
	require.NoError(t, store.Tokens.Upsert(ctx, &db.Token{
		UserID:       "user1",
		AccessToken:  "access-2",
		RefreshToken: "refresh-2",
		ExpiresAt:    2000,
	}))

	got, err := store.Tokens.Get(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, &db.Token{
		UserID:       "user1",
		AccessToken:  "access-2",
		RefreshToken: "refresh-2",
		ExpiresAt:    2000,
	}, got)
}

func testArtists(t *testing.T, store *db.Store) {
	ctx := context.Background()

	_, err := store.Artists.Get(ctx, "missing")
	require.ErrorIs(t, err, db.ErrNotFound)

	artists := []db.Artist{
		{ID: "a1", Name: "Small", Genres: []string{"folk"}, Popularity: 10, Followers: 100},
		{ID: "a2", Name: "Big", Genres: []string{"pop", "dance pop"}, Popularity: 90, Followers: 9000},
		{ID: "a3", Name: "No Genres", Genres: []string{}, Popularity: 0, Followers: 0},
	}
	for i := range artists {
		require.NoError(t, store.Artists.Upsert(ctx, &artists[i]))
	}
	// Upserting again must not duplicate.
	require.NoError(t, store.Artists.Upsert(ctx, &artists[0]))

	got, err := store.Artists.Get(ctx, "a2")
	require.NoError(t, err)
	assert.Equal(t, artists[1], *got)

	n, err := store.Artists.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	page, err := store.Artists.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "a2", page[0].ID)
	assert.Equal(t, "a1", page[1].ID)

	page, err = store.Artists.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a3", page[0].ID)
}

func testTracks(t *testing.T, store *db.Store) {
	ctx := context.Background()

	_, err := store.Tracks.Get(ctx, "missing")
	require.ErrorIs(t, err, db.ErrNotFound)

	popular := SampleTrack("t1", 200000)
	popular.Popularity = 80
	obscure := SampleTrack("t2", 180000)
	obscure.Popularity = 5
	obscure.Explicit = false
	obscure.ArtistIDs = []string{"artistB", "artistA"}

	require.NoError(t, store.Tracks.Upsert(ctx, obscure))
	require.NoError(t, store.Tracks.Upsert(ctx, popular))

	got, err := store.Tracks.Get(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, obscure, got)

	n, err := store.Tracks.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	page, err := store.Tracks.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "t1", page[0].ID)
	assert.Equal(t, "t2", page[1].ID)
}

func testHistory(t *testing.T, store *db.Store) {
	ctx := context.Background()

	_, err := store.History.Latest(ctx)
	require.ErrorIs(t, err, db.ErrNotFound)

	require.NoError(t, store.Tracks.Upsert(ctx, SampleTrack("h1", 1000)))

	for _, playedAt := range []int64{3000, 1000, 2000} {
		event := db.NewPlayEvent("h1", playedAt)
		require.NoError(t, store.History.Append(ctx, &event))
		assert.NotZero(t, event.ID)
	}

	// Timestamps are not unique.
	dup := db.NewPlayEvent("h1", 2000)
	require.NoError(t, store.History.Append(ctx, &dup))

	latest, err := store.History.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), latest.PlayedAt)
	assert.Equal(t, "h1", latest.TrackID)
	assert.Equal(t, "1970-01-01", latest.PlayedOn)

	n, err := store.History.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	page, err := store.History.List(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(2000), page[0].PlayedAt)
	assert.Equal(t, int64(2000), page[1].PlayedAt)
	assert.Greater(t, page[0].ID, page[1].ID)

	orphan := db.NewPlayEvent("not-cached", 4000)
	err = store.History.Append(ctx, &orphan)
	require.ErrorIs(t, err, db.ErrStorage)
}
