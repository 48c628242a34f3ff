// Package spotifytest provides in-memory stand-ins for the Spotify client and
// the token manager.
package spotifytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/justestif/go-spotify-history/internal/db"
	"github.com/justestif/go-spotify-history/internal/spotify"
)

// Fake serves tracks, artists and now-playing snapshots from memory and
// counts calls per ID.
type Fake struct {
	mu         sync.Mutex
	tracks     map[string]db.Track
	artists    map[string]db.Artist
	snapshot   *spotify.Snapshot
	failing    map[string]error
	calls      map[string]int
	panicOnGet bool
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		tracks:  make(map[string]db.Track),
		artists: make(map[string]db.Artist),
		failing: make(map[string]error),
		calls:   make(map[string]int),
	}
}

// AddTrack registers a track. Its Genres are dropped, as Spotify does not
// report genres on tracks.
func (f *Fake) AddTrack(t db.Track) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.Genres = []string{}
	f.tracks[t.ID] = t
}

// AddArtist registers an artist.
func (f *Fake) AddArtist(a db.Artist) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artists[a.ID] = a
}

// SetSnapshot sets the now-playing response. nil means an empty 204 reply.
func (f *Fake) SetSnapshot(s *spotify.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = s
}

// Fail makes calls for key (an ID, or "currently-playing") return err.
func (f *Fake) Fail(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[key] = err
}

// Panic makes CurrentlyPlaying panic.
func (f *Fake) Panic() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panicOnGet = true
}

// Calls returns how many times key was requested.
func (f *Fake) Calls(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

// CurrentlyPlaying implements the poller's remote.
func (f *Fake) CurrentlyPlaying(_ context.Context, _ string) (*spotify.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["currently-playing"]++
	if f.panicOnGet {
		panic("spotifytest: forced panic")
	}
	if err := f.failing["currently-playing"]; err != nil {
		return nil, err
	}
	if f.snapshot == nil {
		return &spotify.Snapshot{}, nil
	}
	snap := *f.snapshot
	if snap.Item != nil {
		item := *snap.Item
		snap.Item = &item
	}
	return &snap, nil
}

// Track implements catalog.Remote.
func (f *Fake) Track(_ context.Context, _, id string) (*db.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id]++
	if err := f.failing[id]; err != nil {
		return nil, err
	}
	t, ok := f.tracks[id]
	if !ok {
		return nil, fmt.Errorf("%w: track %s: %w", spotify.ErrRemote, id, spotify.ErrUnknownID)
	}
	t.ArtistIDs = append([]string{}, t.ArtistIDs...)
	return &t, nil
}

// Artist implements catalog.Remote.
func (f *Fake) Artist(_ context.Context, _, id string) (*db.Artist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id]++
	if err := f.failing[id]; err != nil {
		return nil, err
	}
	a, ok := f.artists[id]
	if !ok {
		return nil, fmt.Errorf("%w: artist %s: %w", spotify.ErrRemote, id, spotify.ErrUnknownID)
	}
	a.Genres = append([]string{}, a.Genres...)
	return &a, nil
}

// Tokens is a token source that always returns the same token or error.
type Tokens struct {
	Token *db.Token
	Err   error
}

// GetValidToken implements the token source used by the catalog and poller.
func (t *Tokens) GetValidToken(_ context.Context, userID string) (*db.Token, error) {
	if t.Err != nil {
		return nil, t.Err
	}
	if t.Token != nil {
		return t.Token, nil
	}
	return &db.Token{UserID: userID, AccessToken: "test-access", ExpiresAt: 1 << 62}, nil
}
