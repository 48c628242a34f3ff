package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/go-spotify-history/internal/db"
)

// TokenRepository handles OAuth token database operations.
type TokenRepository struct {
	pool *pgxpool.Pool
}

// Get retrieves the token stored for a user.
func (r *TokenRepository) Get(ctx context.Context, userID string) (*db.Token, error) {
	query := `
		SELECT user_id, access_token, refresh_token, expires_at
		FROM tokens
		WHERE user_id = $1
	`
	var token db.Token
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&token.UserID,
		&token.AccessToken,
		&token.RefreshToken,
		&token.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
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
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at
	`
	_, err := r.pool.Exec(ctx, query,
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
