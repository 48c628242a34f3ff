// Package postgres implements the db repositories on PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/go-spotify-history/internal/db"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tokens (
		user_id       TEXT PRIMARY KEY,
		access_token  TEXT NOT NULL,
		refresh_token TEXT NOT NULL DEFAULT '',
		expires_at    BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS artists (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		genres     TEXT[] NOT NULL DEFAULT '{}',
		popularity INTEGER NOT NULL DEFAULT 0,
		followers  INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS tracks (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		artist_name  TEXT NOT NULL DEFAULT '',
		album        TEXT NOT NULL DEFAULT '',
		duration_ms  INTEGER NOT NULL,
		popularity   INTEGER NOT NULL DEFAULT 0,
		release_date TEXT NOT NULL DEFAULT '',
		explicit     BOOLEAN NOT NULL DEFAULT FALSE,
		artist_ids   TEXT[] NOT NULL DEFAULT '{}',
		genres       TEXT[] NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS history (
		id        BIGSERIAL PRIMARY KEY,
		played_at BIGINT NOT NULL,
		track_id  TEXT NOT NULL REFERENCES tracks(id),
		played_on TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS history_played_at_idx ON history (played_at DESC, id DESC)`,
}

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the database connection pool.
func (d *DB) Close() {
	d.pool.Close()
}

// Pool returns the underlying connection pool.
func (d *DB) Pool() *pgxpool.Pool {
	return d.pool
}

// Migrate creates the schema if it does not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.pool.Exec(ctx, stmt); err != nil {
			return storageErr("creating schema", err)
		}
	}
	return nil
}

// Tokens returns a TokenRepository.
func (d *DB) Tokens() *TokenRepository {
	return &TokenRepository{pool: d.pool}
}

// Artists returns an ArtistRepository.
func (d *DB) Artists() *ArtistRepository {
	return &ArtistRepository{pool: d.pool}
}

// Tracks returns a TrackRepository.
func (d *DB) Tracks() *TrackRepository {
	return &TrackRepository{pool: d.pool}
}

// History returns a HistoryRepository.
func (d *DB) History() *HistoryRepository {
	return &HistoryRepository{pool: d.pool}
}

// Store returns the repositories bundled for backend-agnostic callers.
func (d *DB) Store() *db.Store {
	return &db.Store{
		Tokens:  d.Tokens(),
		Artists: d.Artists(),
		Tracks:  d.Tracks(),
		History: d.History(),
		Migrate: d.Migrate,
		Close:   d.Close,
	}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, db.ErrStorage, err)
}

// nonNil keeps NOT NULL array columns from receiving SQL NULL and
// gives callers an empty slice for an empty array.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
