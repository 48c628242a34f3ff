package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/justestif/go-spotify-history/internal/db"
)

// TrackRepository handles track database operations.
type TrackRepository struct {
	conn *sql.DB
}

const trackColumns = `id, name, artist_name, album, duration_ms, popularity, release_date, explicit, artist_ids, genres`

// Upsert creates or updates a track.
func (r *TrackRepository) Upsert(ctx context.Context, track *db.Track) error {
	artistIDs, err := encodeList(track.ArtistIDs)
	if err != nil {
		return storageErr("encoding artist ids", err)
	}
	genres, err := encodeList(track.Genres)
	if err != nil {
		return storageErr("encoding genres", err)
	}

	query := `
		INSERT INTO tracks (` + trackColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			artist_name = excluded.artist_name,
			album = excluded.album,
			duration_ms = excluded.duration_ms,
			popularity = excluded.popularity,
			release_date = excluded.release_date,
			explicit = excluded.explicit,
			artist_ids = excluded.artist_ids,
			genres = excluded.genres
	`
	_, err = r.conn.ExecContext(ctx, query,
		track.ID,
		track.Name,
		track.ArtistName,
		track.Album,
		track.DurationMs,
		track.Popularity,
		track.ReleaseDate,
		track.Explicit,
		artistIDs,
		genres,
	)
	if err != nil {
		return storageErr("upserting track", err)
	}
	return nil
}

// Get retrieves a track by ID.
func (r *TrackRepository) Get(ctx context.Context, id string) (*db.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ?`

	track, err := scanTrack(r.conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("querying track", err)
	}
	return track, nil
}

// List returns a page of tracks, most popular first.
func (r *TrackRepository) List(ctx context.Context, limit, offset int) ([]db.Track, error) {
	query := `
		SELECT ` + trackColumns + `
		FROM tracks
		ORDER BY popularity DESC, id
		LIMIT ? OFFSET ?
	`
	rows, err := r.conn.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, storageErr("querying tracks", err)
	}
	defer rows.Close()

	var tracks []db.Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, storageErr("scanning track", err)
		}
		tracks = append(tracks, *track)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterating tracks", err)
	}
	return tracks, nil
}

// Count returns the number of cached tracks.
func (r *TrackRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks`).Scan(&n); err != nil {
		return 0, storageErr("counting tracks", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row rowScanner) (*db.Track, error) {
	var (
		track     db.Track
		artistIDs string
		genres    string
	)
	err := row.Scan(
		&track.ID,
		&track.Name,
		&track.ArtistName,
		&track.Album,
		&track.DurationMs,
		&track.Popularity,
		&track.ReleaseDate,
		&track.Explicit,
		&artistIDs,
		&genres,
	)
	if err != nil {
		return nil, err
	}
	if track.ArtistIDs, err = decodeList(artistIDs); err != nil {
		return nil, err
	}
	if track.Genres, err = decodeList(genres); err != nil {
		return nil, err
	}
	return &track, nil
}
