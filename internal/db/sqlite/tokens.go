package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/justestif/go-spotify-history/internal/db"
)

// TokenRepository handles OAuth token database operations.
type TokenRepository struct {
	conn *sql.DB
}

// Get retrieves the token stored for a user.
func (r *TokenRepository) Get(ctx context.Context, userID string) (*db.Token, error) {
	query := `
		SELECT user_id, access_token, refresh_token, expires_at
		FROM tokens
		WHERE user_id = ?
	`
	var token db.Token
	err := r.conn.QueryRowContext(ctx, query, userID).Scan(
		&token.UserID,
		&token.AccessToken,
		&token.RefreshToken,
		&token.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("querying token", err)
	}
	return &token, nil
}

// Upsert stores the token, replacing any existing row for the user.
func (r *TokenRepository) Upsert(ctx context.Context, token *db.Token) error {
	query := `
		INSERT INTO tokens (user_id, access_token, refresh_token, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at
	`
	_, err := r.conn.ExecContext(ctx, query,
		token.UserID,
		token.AccessToken,
		token.RefreshToken,
		token.ExpiresAt,
	)
	if err != nil {
		return storageErr("upserting token", err)
	}
	return nil
}
