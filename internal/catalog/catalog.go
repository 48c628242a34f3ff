// Package catalog is a read-through cache of Spotify track and artist
// metadata. Lookups are served from the store; misses are fetched from
// Spotify, persisted and returned.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/justestif/go-spotify-history/internal/db"
	"github.com/justestif/go-spotify-history/internal/metrics"
)

// ErrFetchFailed is returned when a missing entry could not be fetched,
// either for lack of a token or because Spotify failed. Nothing is written
// in that case.
var ErrFetchFailed = errors.New("metadata fetch failed")

// TokenSource supplies access tokens.
type TokenSource interface {
	GetValidToken(ctx context.Context, userID string) (*db.Token, error)
}

// Remote fetches metadata from Spotify.
type Remote interface {
	Track(ctx context.Context, accessToken, id string) (*db.Track, error)
	Artist(ctx context.Context, accessToken, id string) (*db.Artist, error)
}

// Cache is the metadata cache. Concurrent misses for the same ID may fetch
// twice; both writes are identical upserts.
type Cache struct {
	tracks  db.TrackRepository
	artists db.ArtistRepository
	tokens  TokenSource
	remote  Remote
	userID  string
	log     zerolog.Logger
}

// New creates a Cache over store that fetches misses as userID.
func New(store *db.Store, tokens TokenSource, remote Remote, userID string, log zerolog.Logger) *Cache {
	return &Cache{
		tracks:  store.Tracks,
		artists: store.Artists,
		tokens:  tokens,
		remote:  remote,
		userID:  userID,
		log:     log,
	}
}

// GetTrack returns the track with the given ID, fetching it and all of its
// artists on a miss.
func (c *Cache) GetTrack(ctx context.Context, id string) (*db.Track, error) {
	track, err := c.tracks.Get(ctx, id)
	if err == nil {
		metrics.RecordCacheLookup("track", true)
		return track, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("getting track %s: %w", id, err)
	}
	metrics.RecordCacheLookup("track", false)

	accessToken, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	fetched, err := c.remote.Track(ctx, accessToken, id)
	if err != nil {
		return nil, fmt.Errorf("%w: track %s: %w", ErrFetchFailed, id, err)
	}
	return c.save(ctx, fetched)
}

// EnsureTrack caches item, a track taken from a now-playing snapshot, unless
// it is already present. Its artists are fetched as needed. The stored
// track is returned.
func (c *Cache) EnsureTrack(ctx context.Context, item *db.Track) (*db.Track, error) {
	track, err := c.tracks.Get(ctx, item.ID)
	if err == nil {
		metrics.RecordCacheLookup("track", true)
		return track, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("getting track %s: %w", item.ID, err)
	}
	metrics.RecordCacheLookup("track", false)

	cp := *item
	return c.save(ctx, &cp)
}

// save caches the track's artists, then the track itself with its genres
// derived from them. The track row is only written once every artist is
// present.
func (c *Cache) save(ctx context.Context, track *db.Track) (*db.Track, error) {
	artists, err := c.artistsByID(ctx, track.ArtistIDs)
	if err != nil {
		return nil, err
	}
	track.Genres = unionGenres(artists)
	if track.ArtistIDs == nil {
		track.ArtistIDs = []string{}
	}

	if err := c.tracks.Upsert(ctx, track); err != nil {
		return nil, fmt.Errorf("caching track %s: %w", track.ID, err)
	}
	c.log.Debug().Str("track_id", track.ID).Str("name", track.Name).Msg("track cached")
	return track, nil
}

// GetArtist returns the artist with the given ID, fetching it on a miss.
func (c *Cache) GetArtist(ctx context.Context, id string) (*db.Artist, error) {
	artist, err := c.artists.Get(ctx, id)
	if err == nil {
		metrics.RecordCacheLookup("artist", true)
		return artist, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("getting artist %s: %w", id, err)
	}
	metrics.RecordCacheLookup("artist", false)

	accessToken, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	fetched, err := c.remote.Artist(ctx, accessToken, id)
	if err != nil {
		return nil, fmt.Errorf("%w: artist %s: %w", ErrFetchFailed, id, err)
	}
	if fetched.Genres == nil {
		fetched.Genres = []string{}
	}

	if err := c.artists.Upsert(ctx, fetched); err != nil {
		return nil, fmt.Errorf("caching artist %s: %w", id, err)
	}
	c.log.Debug().Str("artist_id", id).Str("name", fetched.Name).Msg("artist cached")
	return fetched, nil
}

// TrackArtists returns the track's artists in credit order.
func (c *Cache) TrackArtists(ctx context.Context, track *db.Track) ([]db.Artist, error) {
	return c.artistsByID(ctx, track.ArtistIDs)
}

func (c *Cache) artistsByID(ctx context.Context, ids []string) ([]db.Artist, error) {
	artists := make([]db.Artist, 0, len(ids))
	for _, id := range ids {
		artist, err := c.GetArtist(ctx, id)
		if err != nil {
			return nil, err
		}
		artists = append(artists, *artist)
	}
	return artists, nil
}

// Tracks returns a page of cached tracks, most popular first, and the total.
func (c *Cache) Tracks(ctx context.Context, limit, offset int) ([]db.Track, int, error) {
	tracks, err := c.tracks.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing tracks: %w", err)
	}
	total, err := c.tracks.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("counting tracks: %w", err)
	}
	return tracks, total, nil
}

// Artists returns a page of cached artists, most followed first, and the total.
func (c *Cache) Artists(ctx context.Context, limit, offset int) ([]db.Artist, int, error) {
	artists, err := c.artists.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing artists: %w", err)
	}
	total, err := c.artists.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("counting artists: %w", err)
	}
	return artists, total, nil
}

func (c *Cache) accessToken(ctx context.Context) (string, error) {
	token, err := c.tokens.GetValidToken(ctx, c.userID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return token.AccessToken, nil
}

// unionGenres merges the artists' genres, keeping first-seen order.
func unionGenres(artists []db.Artist) []string {
	seen := make(map[string]bool)
	genres := []string{}
	for _, a := range artists {
		for _, g := range a.Genres {
			if !seen[g] {
				seen[g] = true
				genres = append(genres, g)
			}
		}
	}
	return genres
}
