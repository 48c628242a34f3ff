// Package library is the read side of the application: what is playing now,
// the play history joined with track and artist metadata, and the cached
// catalog. Reads never poll or record plays; missing metadata is fetched
// through the catalog.
package library

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/justestif/go-spotify-history/internal/auth"
	"github.com/justestif/go-spotify-history/internal/db"
	"github.com/justestif/go-spotify-history/internal/spotify"
)

const (
	// DefaultPageSize applies when a caller asks for no particular size.
	DefaultPageSize = 25
	// MaxPageSize caps every page.
	MaxPageSize = 100
)

// TokenSource supplies access tokens.
type TokenSource interface {
	GetValidToken(ctx context.Context, userID string) (*db.Token, error)
}

// Remote reads the now-playing state.
type Remote interface {
	CurrentlyPlaying(ctx context.Context, accessToken string) (*spotify.Snapshot, error)
}

// Catalog is the metadata cache.
type Catalog interface {
	GetTrack(ctx context.Context, id string) (*db.Track, error)
	GetArtist(ctx context.Context, id string) (*db.Artist, error)
	TrackArtists(ctx context.Context, track *db.Track) ([]db.Artist, error)
	Tracks(ctx context.Context, limit, offset int) ([]db.Track, int, error)
	Artists(ctx context.Context, limit, offset int) ([]db.Artist, int, error)
}

// History is the play log.
type History interface {
	Page(ctx context.Context, limit, offset int) ([]db.PlayEvent, error)
	Count(ctx context.Context) (int, error)
}

// Library serves read requests.
type Library struct {
	tokens   TokenSource
	remote   Remote
	catalog  Catalog
	history  History
	userID   string
	loginURL string
	log      zerolog.Logger
}

// Option configures a Library.
type Option func(*Library)

// WithLoginURL sets the URL offered when the user has to log in.
func WithLoginURL(url string) Option {
	return func(l *Library) {
		l.loginURL = url
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Library) {
		l.log = log
	}
}

// New creates a Library for userID.
func New(tokens TokenSource, remote Remote, catalog Catalog, history History, userID string, opts ...Option) *Library {
	l := &Library{
		tokens:   tokens,
		remote:   remote,
		catalog:  catalog,
		history:  history,
		userID:   userID,
		loginURL: "/auth/login",
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Page is one page of a listing.
type Page[T any] struct {
	Items  []T
	Total  int
	Limit  int
	Offset int
}

// HistoryEntry is a play with the metadata needed to display it.
type HistoryEntry struct {
	Event   db.PlayEvent
	Track   db.Track
	Artists []db.Artist
}

// TrackDetail is a track with its artists in credit order.
type TrackDetail struct {
	Track   db.Track
	Artists []db.Artist
}

// Normalize clamps paging parameters to sane values.
func Normalize(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// HistoryPage returns plays newest first, each joined with its track and
// artists.
func (l *Library) HistoryPage(ctx context.Context, limit, offset int) (Page[HistoryEntry], error) {
	limit, offset = Normalize(limit, offset)

	events, err := l.history.Page(ctx, limit, offset)
	if err != nil {
		return Page[HistoryEntry]{}, err
	}
	total, err := l.history.Count(ctx)
	if err != nil {
		return Page[HistoryEntry]{}, err
	}

	entries := make([]HistoryEntry, 0, len(events))
	for _, event := range events {
		detail, err := l.Track(ctx, event.TrackID)
		if err != nil {
			return Page[HistoryEntry]{}, fmt.Errorf("loading play %d: %w", event.ID, err)
		}
		entries = append(entries, HistoryEntry{
			Event:   event,
			Track:   detail.Track,
			Artists: detail.Artists,
		})
	}

	return Page[HistoryEntry]{Items: entries, Total: total, Limit: limit, Offset: offset}, nil
}

// Track returns a track and its artists.
func (l *Library) Track(ctx context.Context, id string) (*TrackDetail, error) {
	track, err := l.catalog.GetTrack(ctx, id)
	if err != nil {
		return nil, err
	}
	artists, err := l.catalog.TrackArtists(ctx, track)
	if err != nil {
		return nil, err
	}
	return &TrackDetail{Track: *track, Artists: artists}, nil
}

// Artist returns an artist.
func (l *Library) Artist(ctx context.Context, id string) (*db.Artist, error) {
	return l.catalog.GetArtist(ctx, id)
}

// Tracks returns cached tracks, most popular first.
func (l *Library) Tracks(ctx context.Context, limit, offset int) (Page[db.Track], error) {
	limit, offset = Normalize(limit, offset)
	tracks, total, err := l.catalog.Tracks(ctx, limit, offset)
	if err != nil {
		return Page[db.Track]{}, err
	}
	return Page[db.Track]{Items: nonNil(tracks), Total: total, Limit: limit, Offset: offset}, nil
}

// Artists returns cached artists, most followed first.
func (l *Library) Artists(ctx context.Context, limit, offset int) (Page[db.Artist], error) {
	limit, offset = Normalize(limit, offset)
	artists, total, err := l.catalog.Artists(ctx, limit, offset)
	if err != nil {
		return Page[db.Artist]{}, err
	}
	return Page[db.Artist]{Items: nonNil(artists), Total: total, Limit: limit, Offset: offset}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// IsAuthError reports whether err means the user has to log in.
func IsAuthError(err error) bool {
	return errors.Is(err, auth.ErrNotAuthenticated)
}
