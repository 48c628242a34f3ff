package library

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-spotify-history/internal/auth"
	"github.com/justestif/go-spotify-history/internal/catalog"
	"github.com/justestif/go-spotify-history/internal/db"
	"github.com/justestif/go-spotify-history/internal/db/dbtest"
	"github.com/justestif/go-spotify-history/internal/history"
	"github.com/justestif/go-spotify-history/internal/spotify"
	"github.com/justestif/go-spotify-history/internal/spotify/spotifytest"
)

type fixture struct {
	lib    *Library
	store  *db.Store
	remote *spotifytest.Fake
	log    *history.Log
}

func setup(t *testing.T, tokens *spotifytest.Tokens) fixture {
	t.Helper()
	store := dbtest.NewSQLite(t)
	remote := spotifytest.New()
	remote.AddArtist(db.Artist{ID: "artistA", Name: "Artist A", Genres: []string{"indie"}, Followers: 10})
	remote.AddArtist(db.Artist{ID: "artistB", Name: "Artist B", Genres: []string{"rock"}, Followers: 20})

	cache := catalog.New(store, tokens, remote, "user1", zerolog.Nop())
	hist := history.New(store.History, zerolog.Nop())
	return fixture{
		lib:    New(tokens, remote, cache, hist, "user1", WithLoginURL("/login-here")),
		store:  store,
		remote: remote,
		log:    hist,
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, DefaultPageSize, 0},
		{-5, -1, DefaultPageSize, 0},
		{10, 20, 10, 20},
		{1000, 5, MaxPageSize, 5},
	}
	for _, tt := range tests {
		limit, offset := Normalize(tt.limit, tt.offset)
		assert.Equal(t, tt.wantLimit, limit)
		assert.Equal(t, tt.wantOffset, offset)
	}
}

func TestCurrentlyPlaying(t *testing.T) {
	t.Run("playing", func(t *testing.T) {
		f := setup(t, &spotifytest.Tokens{})
		f.remote.SetSnapshot(&spotify.Snapshot{
			Playing:    true,
			Timestamp:  1718282096000, // 2024-06-13T12:34:56Z
			ProgressMs: 42,
			Item:       dbtest.SampleTrack("T", 1000),
		})

		np := f.lib.CurrentlyPlaying(context.Background())
		assert.Equal(t, StatePlaying, np.State)
		require.NotNil(t, np.Track)
		assert.Equal(t, "T", np.Track.ID)
		assert.Equal(t, "Artist A", np.ArtistName)
		assert.Equal(t, "Album", np.Album)
		assert.Equal(t, "2024-06-13", np.Date)
		assert.Equal(t, "12:34:56", np.Time)
		assert.Equal(t, 42, np.ProgressMs)

		// Reads never write.
		n, err := f.store.History.Count(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
		n, err = f.store.Tracks.Count(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("not playing", func(t *testing.T) {
		f := setup(t, &spotifytest.Tokens{})
		np := f.lib.CurrentlyPlaying(context.Background())
		assert.Equal(t, StateNotPlaying, np.State)
	})

	t.Run("not authenticated", func(t *testing.T) {
		f := setup(t, &spotifytest.Tokens{Err: auth.ErrNotAuthenticated})
		np := f.lib.CurrentlyPlaying(context.Background())
		assert.Equal(t, StateAuthRequired, np.State)
		assert.Equal(t, "/login-here", np.LoginURL)
	})

	t.Run("refresh failed", func(t *testing.T) {
		f := setup(t, &spotifytest.Tokens{Err: auth.ErrRefreshFailed})
		np := f.lib.CurrentlyPlaying(context.Background())
		assert.Equal(t, StateUnavailable, np.State)
		assert.NotEmpty(t, np.Message)
	})

	t.Run("remote failure", func(t *testing.T) {
		f := setup(t, &spotifytest.Tokens{})
		f.remote.Fail("currently-playing", spotify.ErrRemote)
		np := f.lib.CurrentlyPlaying(context.Background())
		assert.Equal(t, StateUnavailable, np.State)
		assert.NotEmpty(t, np.Message)
	})
}

func TestHistoryPage(t *testing.T) {
	f := setup(t, &spotifytest.Tokens{})
	ctx := context.Background()

	// Tracks are cached, their artists are not yet and get fetched on read.
	require.NoError(t, f.store.Tracks.Upsert(ctx, dbtest.SampleTrack("T", 1000)))
	require.NoError(t, f.store.Tracks.Upsert(ctx, dbtest.SampleTrack("U", 1000)))

	for i, id := range []string{"T", "U", "T"} {
		_, err := f.log.RecordIfNew(ctx, history.Observation{TrackID: id, Timestamp: int64(i+1) * 10000, DurationMs: 1000})
		require.NoError(t, err)
	}

	page, err := f.lib.HistoryPage(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Limit)
	require.Len(t, page.Items, 2)

	first := page.Items[0]
	assert.Equal(t, int64(30000), first.Event.PlayedAt)
	assert.Equal(t, "T", first.Track.ID)
	require.Len(t, first.Artists, 2)
	assert.Equal(t, "artistA", first.Artists[0].ID)
	assert.Equal(t, "U", page.Items[1].Track.ID)
	assert.Equal(t, 1, f.remote.Calls("artistA"))

	page, err = f.lib.HistoryPage(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(10000), page.Items[0].Event.PlayedAt)
}

func TestHistoryPageEmpty(t *testing.T) {
	f := setup(t, &spotifytest.Tokens{})

	page, err := f.lib.HistoryPage(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
	assert.Equal(t, DefaultPageSize, page.Limit)
}

func TestTrackFetchesOnMiss(t *testing.T) {
	f := setup(t, &spotifytest.Tokens{})
	f.remote.AddTrack(*dbtest.SampleTrack("T", 1000))

	detail, err := f.lib.Track(context.Background(), "T")
	require.NoError(t, err)
	assert.Equal(t, "T", detail.Track.ID)
	assert.Len(t, detail.Artists, 2)
	assert.Equal(t, 1, f.remote.Calls("T"))

	_, err = f.lib.Track(context.Background(), "T")
	require.NoError(t, err)
	assert.Equal(t, 1, f.remote.Calls("T"))
}

func TestTrackUnknown(t *testing.T) {
	f := setup(t, &spotifytest.Tokens{})
	_, err := f.lib.Track(context.Background(), "missing")
	assert.ErrorIs(t, err, catalog.ErrFetchFailed)
}

func TestTrackNotAuthenticated(t *testing.T) {
	f := setup(t, &spotifytest.Tokens{Err: auth.ErrNotAuthenticated})
	_, err := f.lib.Track(context.Background(), "missing")
	assert.True(t, IsAuthError(err))
}

func TestListings(t *testing.T) {
	f := setup(t, &spotifytest.Tokens{})
	ctx := context.Background()

	tracks, err := f.lib.Tracks(ctx, 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, tracks.Items)
	assert.Zero(t, tracks.Total)

	_, err = f.lib.Artist(ctx, "artistA")
	require.NoError(t, err)
	_, err = f.lib.Artist(ctx, "artistB")
	require.NoError(t, err)

	artists, err := f.lib.Artists(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, artists.Total)
	require.Len(t, artists.Items, 2)
	assert.Equal(t, "artistB", artists.Items[0].ID, "most followed first")
}
