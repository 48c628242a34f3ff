package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/justestif/go-spotify-history/internal/db"
)

// ArtistRepository handles artist database operations.
type ArtistRepository struct {
	conn *sql.DB
}

// Upsert creates or updates an artist.
func (r *ArtistRepository) Upsert(ctx context.Context, artist *db.Artist) error {
	genres, err := encodeList(artist.Genres)
	if err != nil {
		return storageErr("encoding genres", err)
	}

	query := `
		INSERT INTO artists (id, name, genres, popularity, followers)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			genres = excluded.genres,
			popularity = excluded.popularity,
			followers = excluded.followers
	`
	_, err = r.conn.ExecContext(ctx, query,
		artist.ID,
		artist.Name,
		genres,
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
		WHERE id = ?
	`
	artist, err := scanArtist(r.conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("querying artist", err)
	}
	return artist, nil
}

// List returns a page of artists, most followed first.
func (r *ArtistRepository) List(ctx context.Context, limit, offset int) ([]db.Artist, error) {
	query := `
		SELECT id, name, genres, popularity, followers
		FROM artists
		ORDER BY followers DESC, id
		LIMIT ? OFFSET ?
	`
	rows, err := r.conn.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, storageErr("querying artists", err)
	}
	defer rows.Close()

	var artists []db.Artist
	for rows.Next() {
		artist, err := scanArtist(rows)
		if err != nil {
			return nil, storageErr("scanning artist", err)
		}
		artists = append(artists, *artist)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterating artists", err)
	}
	return artists, nil
}

// Count returns the number of cached artists.
func (r *ArtistRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM artists`).Scan(&n); err != nil {
		return 0, storageErr("counting artists", err)
	}
	return n, nil
}

func scanArtist(row rowScanner) (*db.Artist, error) {
	var (
		artist db.Artist
		genres string
	)
	if err := row.Scan(
		&artist.ID,
		&artist.Name,
		&genres,
		&artist.Popularity,
		&artist.Followers,
	); err != nil {
		return nil, err
	}
	var err error
	if artist.Genres, err = decodeList(genres); err != nil {
		return nil, err
	}
	return &artist, nil
}
