package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/go-spotify-history/internal/db"
)

// TrackRepository handles track database operations.
type TrackRepository struct {
	pool *pgxpool.Pool
}

const trackColumns = `id, name, artist_name, album, duration_ms, popularity, release_date, explicit, artist_ids, genres`

// Upsert creates or updates a track.
func (r *TrackRepository) Upsert(ctx context.Context, track *db.Track) error {
	query := `
		INSERT INTO tracks (` + trackColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			artist_name = EXCLUDED.artist_name,
			album = EXCLUDED.album,
			duration_ms = EXCLUDED.duration_ms,
			popularity = EXCLUDED.popularity,
			release_date = EXCLUDED.release_date,
			explicit = EXCLUDED.explicit,
			artist_ids = EXCLUDED.artist_ids,
			genres = EXCLUDED.genres
	`
	_, err := r.pool.Exec(ctx, query,
		track.ID,
		track.Name,
		track.ArtistName,
		track.Album,
		track.DurationMs,
		track.Popularity,
		track.ReleaseDate,
		track.Explicit,
		nonNil(track.ArtistIDs),
		nonNil(track.Genres),
	)
	if err != nil {
		return storageErr("upserting track", err)
	}
	return nil
}

// Get retrieves a track by ID.
func (r *TrackRepository) Get(ctx context.Context, id string) (*db.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = $1`

	track, err := scanTrack(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
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
		LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, limit, offset)
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
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tracks`).Scan(&n); err != nil {
		return 0, storageErr("counting tracks", err)
	}
	return n, nil
}

func scanTrack(row pgx.Row) (*db.Track, error) {
	var track db.Track
	err := row.Scan(
		&track.ID,
		&track.Name,
		&track.ArtistName,
		&track.Album,
		&track.DurationMs,
		&track.Popularity,
		&track.ReleaseDate,
		&track.Explicit,
		&track.ArtistIDs,
		&track.Genres,
	)
	if err != nil {
		return nil, err
	}
	track.ArtistIDs = nonNil(track.ArtistIDs)
	track.Genres = nonNil(track.Genres)
	return &track, nil
}
