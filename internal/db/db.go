// Package db defines the persisted data model and the repository contracts
// shared by the PostgreSQL and SQLite backends.
package db

import (
	"context"
	"errors"
)

// Common errors.
var (
	ErrNotFound = errors.New("not found")

	// ErrStorage marks failures of the persistence layer itself
	// (connection lost, constraint violation, bad schema).
	ErrStorage = errors.New("storage fault")
)

// TokenRepository persists OAuth tokens, one row per user.
type TokenRepository interface {
	Get(ctx context.Context, userID string) (*Token, error)
	// Upsert inserts the token or overwrites the existing row for the user.
	Upsert(ctx context.Context, token *Token) error
}

// ArtistRepository persists cached artists.
type ArtistRepository interface {
	Get(ctx context.Context, id string) (*Artist, error)
	Upsert(ctx context.Context, artist *Artist) error
	// List returns artists ordered by follower count, most followed first.
	List(ctx context.Context, limit, offset int) ([]Artist, error)
	Count(ctx context.Context) (int, error)
}

// TrackRepository persists cached tracks.
type TrackRepository interface {
	Get(ctx context.Context, id string) (*Track, error)
	Upsert(ctx context.Context, track *Track) error
	// List returns tracks ordered by popularity, most popular first.
	List(ctx context.Context, limit, offset int) ([]Track, error)
	Count(ctx context.Context) (int, error)
}

// HistoryRepository persists the append-only play history.
type HistoryRepository interface {
	// Latest returns the most recent event by PlayedAt, or ErrNotFound.
	Latest(ctx context.Context) (*PlayEvent, error)
	Append(ctx context.Context, event *PlayEvent) error
	// List returns events newest first.
	List(ctx context.Context, limit, offset int) ([]PlayEvent, error)
	Count(ctx context.Context) (int, error)
}

// Store bundles the repositories of one backend.
type Store struct {
	Tokens  TokenRepository
	Artists ArtistRepository
	Tracks  TrackRepository
	History HistoryRepository

	// Migrate creates any missing tables and indexes.
	Migrate func(ctx context.Context) error
	// Close releases the underlying connections.
	Close func()
}
