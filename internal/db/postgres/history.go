package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/go-spotify-history/internal/db"
)

// HistoryRepository handles play history database operations.
type HistoryRepository struct {
	pool *pgxpool.Pool
}

// Latest returns the most recently played event.
func (r *HistoryRepository) Latest(ctx context.Context) (*db.PlayEvent, error) {
	query := `
		SELECT id, played_at, track_id, played_on
		FROM history
		ORDER BY played_at DESC, id DESC
		LIMIT 1
	`
	var event db.PlayEvent
	err := r.pool.QueryRow(ctx, query).Scan(
		&event.ID,
		&event.PlayedAt,
		&event.TrackID,
		&event.PlayedOn,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("querying latest play", err)
	}
	return &event, nil
}

// Append inserts a play event and sets its ID.
func (r *HistoryRepository) Append(ctx context.Context, event *db.PlayEvent) error {
	query := `
		INSERT INTO history (played_at, track_id, played_on)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		event.PlayedAt,
		event.TrackID,
		event.PlayedOn,
	).Scan(&event.ID)
	if err != nil {
		return storageErr("inserting play", err)
	}
	return nil
}

// List returns a page of events, newest first.
func (r *HistoryRepository) List(ctx context.Context, limit, offset int) ([]db.PlayEvent, error) {
	query := `
		SELECT id, played_at, track_id, played_on
		FROM history
		ORDER BY played_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, storageErr("querying history", err)
	}
	defer rows.Close()

	var events []db.PlayEvent
	for rows.Next() {
		var event db.PlayEvent
		if err := rows.Scan(
			&event.ID,
			&event.PlayedAt,
			&event.TrackID,
			&event.PlayedOn,
		); err != nil {
			return nil, storageErr("scanning play", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterating history", err)
	}
	return events, nil
}

// Count returns the number of recorded plays.
func (r *HistoryRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM history`).Scan(&n); err != nil {
		return 0, storageErr("counting history", err)
	}
	return n, nil
}
