package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/go-spotify-history/internal/db"
)

// ArtistRepository handles artist database operations.
type ArtistRepository struct {
	pool *pgxpool.Pool
}

// Upsert creates or updates an artist.
func (r *ArtistRepository) Upsert(ctx context.Context, artist *db.Artist) error {
	query := `
		INSERT INTO artists (id, name, genres, popularity, followers)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			genres = EXCLUDED.genres,
			popularity = EXCLUDED.popularity,
			followers = EXCLUDED.followers
	`
	_, err := r.pool.Exec(ctx, query,
		artist.ID,
		artist.Name,
		nonNil(artist.Genres),
		artist.Popularity,
		artist.Followers,
	)
	if err != nil {
		return storageErr("upserting artist", err)
	}
	return nil
}

// Get retrieves an artist by ID.
func (r *ArtistRepository) Get(ctx context.Context, id string) (*db.Artist, error) {
	query := `
		SELECT id, name, genres, popularity, followers
		FROM artists
		WHERE id = $1
	`
	var artist db.Artist
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&artist.ID,
		&artist.Name,
		&artist.Genres,
		&artist.Popularity,
		&artist.Followers,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("querying artist", err)
	}
	artist.Genres = nonNil(artist.Genres)
	return &artist, nil
}

// List returns a page of artists, most followed first.
func (r *ArtistRepository) List(ctx context.Context, limit, offset int) ([]db.Artist, error) {
	query := `
		SELECT id, name, genres, popularity, followers
		FROM artists
		ORDER BY followers DESC, id
		LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, storageErr("querying artists", err)
	}
	defer rows.Close()

	var artists []db.Artist
	for rows.Next() {
		var artist db.Artist
		if err := rows.Scan(
			&artist.ID,
			&artist.Name,
			&artist.Genres,
			&artist.Popularity,
			&artist.Followers,
		); err != nil {
			return nil, storageErr("scanning artist", err)
		}
		artist.Genres = nonNil(artist.Genres)
		artists = append(artists, artist)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterating artists", err)
	}
	return artists, nil
}

// Count returns the number of cached artists.
func (r *ArtistRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM artists`).Scan(&n); err != nil {
		return 0, storageErr("counting artists", err)
	}
	return n, nil
}
