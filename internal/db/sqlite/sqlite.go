// Package sqlite implements the db repositories on an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/justestif/go-spotify-history/internal/db"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tokens (
		user_id       TEXT PRIMARY KEY,
		access_token  TEXT NOT NULL,
		refresh_token TEXT NOT NULL DEFAULT '',
		expires_at    INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS artists (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		genres     TEXT NOT NULL DEFAULT '[]',
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
		explicit     INTEGER NOT NULL DEFAULT 0,
		artist_ids   TEXT NOT NULL DEFAULT '[]',
		genres       TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS history (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		played_at INTEGER NOT NULL,
		track_id  TEXT NOT NULL REFERENCES tracks(id),
		played_on TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS history_played_at_idx ON history (played_at DESC, id DESC)`,
}

// DB wraps a SQLite database handle.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at path, creating the file if needed.
func New(ctx context.Context, path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection serialises writers; SQLite allows only one at a time anyway.
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database.
func (d *DB) Close() {
	_ = d.conn.Close()
}

// Migrate creates the schema if it does not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.conn.ExecContext(ctx, stmt); err != nil {
			return storageErr("creating schema", err)
		}
	}
	return nil
}

// Tokens returns a TokenRepository.
func (d *DB) Tokens() *TokenRepository {
	return &TokenRepository{conn: d.conn}
}

// Artists returns an ArtistRepository.
func (d *DB) Artists() *ArtistRepository {
	return &ArtistRepository{conn: d.conn}
}

// Tracks returns a TrackRepository.
func (d *DB) Tracks() *TrackRepository {
	return &TrackRepository{conn: d.conn}
}

// History returns a HistoryRepository.
func (d *DB) History() *HistoryRepository {
	return &HistoryRepository{conn: d.conn}
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

// encodeList stores a string list as a JSON array column.
func encodeList(s []string) (string, error) {
	if s == nil {
		s = []string{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeList(raw string) ([]string, error) {
	var s []string
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, err
	}
	return s, nil
}
