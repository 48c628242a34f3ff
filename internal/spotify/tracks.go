package spotify

import (
	"context"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-spotify-history/internal/db"
)

// CurrentlyPlaying returns what the user is playing right now. A user with no
// active device yields a snapshot with Playing false and no Item.
func (c *Client) CurrentlyPlaying(ctx context.Context, accessToken string) (*Snapshot, error) {
	res, err := c.do(ctx, "currently-playing", func() (any, error) {
		return c.api(accessToken).PlayerCurrentlyPlaying(ctx)
	})
	if err != nil {
		return nil, err
	}
	return convertSnapshot(res.(*spotify.CurrentlyPlaying)), nil
}

// Track fetches a track. Genres are left empty; Spotify only tags artists.
func (c *Client) Track(ctx context.Context, accessToken, id string) (*db.Track, error) {
	res, err := c.do(ctx, "track", func() (any, error) {
		return c.api(accessToken).GetTrack(ctx, spotify.ID(id))
	})
	if err != nil {
		return nil, err
	}
	return convertTrack(res.(*spotify.FullTrack)), nil
}

// Artist fetches an artist.
func (c *Client) Artist(ctx context.Context, accessToken, id string) (*db.Artist, error) {
	res, err := c.do(ctx, "artist", func() (any, error) {
		return c.api(accessToken).GetArtist(ctx, spotify.ID(id))
	})
	if err != nil {
		return nil, err
	}
	return convertArtist(res.(*spotify.FullArtist)), nil
}

func convertSnapshot(cp *spotify.CurrentlyPlaying) *Snapshot {
	if cp == nil {
		return &Snapshot{}
	}
	snap := &Snapshot{
		Playing:    cp.Playing,
		Timestamp:  cp.Timestamp,
		ProgressMs: int(cp.Progress),
	}
	if cp.Item != nil && cp.Item.ID != "" {
		snap.Item = convertTrack(cp.Item)
	}
	return snap
}

// convertTrack converts a Spotify FullTrack to db.Track.
func convertTrack(t *spotify.FullTrack) *db.Track {
	artistIDs := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artistIDs[i] = a.ID.String()
	}

	var primary string
	if len(t.Artists) > 0 {
		primary = t.Artists[0].Name
	}

	return &db.Track{
		ID:          t.ID.String(),
		Name:        t.Name,
		ArtistName:  primary,
		Album:       t.Album.Name,
		DurationMs:  int(t.Duration),
		Popularity:  int(t.Popularity),
		ReleaseDate: t.Album.ReleaseDate,
		Explicit:    t.Explicit,
		ArtistIDs:   artistIDs,
		Genres:      []string{},
	}
}

// convertArtist converts a Spotify FullArtist to db.Artist.
func convertArtist(a *spotify.FullArtist) *db.Artist {
	genres := a.Genres
	if genres == nil {
		genres = []string{}
	}
	return &db.Artist{
		ID:         a.ID.String(),
		Name:       a.Name,
		Genres:     genres,
		Popularity: int(a.Popularity),
		Followers:  int(a.Followers.Count),
	}
}
