package db

import "time"

// Token is the stored OAuth token for a Spotify user.
// ExpiresAt is epoch milliseconds.
type Token struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
}

// Expired reports whether the token is no longer valid at now.
func (t *Token) Expired(now time.Time) bool {
	return t.ExpiresAt <= now.UnixMilli()
}

// Artist represents a cached Spotify artist.
type Artist struct {
	ID         string
	Name       string
	Genres     []string
	Popularity int
	Followers  int
}

// Track represents a cached Spotify track.
type Track struct {
	ID          string
	Name        string
	ArtistName  string // primary artist
	Album       string
	DurationMs  int
	Popularity  int
	ReleaseDate string
	Explicit    bool
	ArtistIDs   []string // ordered as returned by Spotify
	Genres      []string // union of the artists' genres
}

// PlayEvent is a single entry in the play history.
type PlayEvent struct {
	ID       int64
	PlayedAt int64 // epoch milliseconds
	TrackID  string
	PlayedOn string // YYYY-MM-DD (UTC)
}

// Time returns PlayedAt as a UTC time.
func (e PlayEvent) Time() time.Time {
	return time.UnixMilli(e.PlayedAt).UTC()
}

// NewPlayEvent builds a PlayEvent for a track observed at playedAt (epoch ms).
func NewPlayEvent(trackID string, playedAt int64) PlayEvent {
	return PlayEvent{
		PlayedAt: playedAt,
		TrackID:  trackID,
		PlayedOn: time.UnixMilli(playedAt).UTC().Format(time.DateOnly),
	}
}
