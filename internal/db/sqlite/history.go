package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/justestif/go-spotify-history/internal/db"
)

// HistoryRepository handles play history database operations.
type HistoryRepository struct {
	conn *sql.DB
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
	err := r.conn.QueryRowContext(ctx, query).Scan(
		&event.ID,
		&event.PlayedAt,
		&event.TrackID,
		&event.PlayedOn,
	)
	if errors.Is(err, sql.ErrNoRows) {
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
		VALUES (?, ?, ?)
	`
	result, err := r.conn.ExecContext(ctx, query,
		event.PlayedAt,
		event.TrackID,
		event.PlayedOn,
	)
	if err != nil {
		return storageErr("inserting play", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return storageErr("reading play id", err)
	}
	event.ID = id
	return nil
}

// List returns a page of events, newest first.
func (r *HistoryRepository) List(ctx context.Context, limit, offset int) ([]db.PlayEvent, error) {
	query := `
		SELECT id, played_at, track_id, played_on
		FROM history
		ORDER BY played_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := r.conn.QueryContext(ctx, query, limit, offset)
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
	if err := r.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM history`).Scan(&n); err != nil {
		return 0, storageErr("counting history", err)
	}
	return n, nil
}
