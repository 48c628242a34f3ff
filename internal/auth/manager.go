package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/justestif/go-spotify-history/internal/db"
	"github.com/justestif/go-spotify-history/internal/metrics"
)

var (
	// ErrNotAuthenticated is returned when no usable token exists for the user.
	// The user has to log in again.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrRefreshFailed is returned when the token endpoint rejects a refresh or
	// cannot be reached. The stored token is left as it was.
	ErrRefreshFailed = errors.New("token refresh failed")
)

// defaultLifetime applies when the token endpoint omits expires_in.
const defaultLifetime = time.Hour

// Refresher exchanges a refresh token for a new token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Manager owns the stored OAuth token of each user: it hands out valid access
// tokens, refreshing expired ones, and records tokens from new logins.
type Manager struct {
	tokens    db.TokenRepository
	refresher Refresher
	seed      *TokenCache
	now       func() time.Time
	log       zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithTokenCache seeds the store from a token file when a user has no row yet.
func WithTokenCache(cache *TokenCache) Option {
	return func(m *Manager) {
		m.seed = cache
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// NewManager creates a token manager.
func NewManager(tokens db.TokenRepository, refresher Refresher, opts ...Option) *Manager {
	m := &Manager{
		tokens:    tokens,
		refresher: refresher,
		now:       time.Now,
		log:       zerolog.Nop(),
		locks:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// lock serialises token reads, refreshes and writes for one user.
func (m *Manager) lock(userID string) func() {
	m.mu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[userID] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// GetValidToken returns an unexpired token for userID, refreshing the stored
// one if it has expired. It returns ErrNotAuthenticated when there is nothing
// to refresh and ErrRefreshFailed when the refresh itself fails.
func (m *Manager) GetValidToken(ctx context.Context, userID string) (*db.Token, error) {
	unlock := m.lock(userID)
	defer unlock()

	token, err := m.tokens.Get(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		token, err = m.seedToken(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	now := m.now()
	if !token.Expired(now) {
		return token, nil
	}

	if token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: token for %s expired and has no refresh token", ErrNotAuthenticated, userID)
	}

	fresh, err := m.refresher.Refresh(ctx, token.RefreshToken)
	metrics.RecordTokenRefresh(err)
	if err != nil {
		m.log.Warn().Err(err).Str("user_id", userID).Msg("token refresh failed")
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	refreshed := fromOAuth(userID, fresh, now)
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = token.RefreshToken
	}
	if err := m.tokens.Upsert(ctx, refreshed); err != nil {
		return nil, fmt.Errorf("saving refreshed token: %w", err)
	}

	m.log.Info().
		Str("user_id", userID).
		Time("expires_at", time.UnixMilli(refreshed.ExpiresAt)).
		Msg("token refreshed")
	return refreshed, nil
}

// seedToken imports a token from the token cache file, if one is configured
// and present.
func (m *Manager) seedToken(ctx context.Context, userID string) (*db.Token, error) {
	if m.seed == nil {
		return nil, fmt.Errorf("%w: no token stored for %s", ErrNotAuthenticated, userID)
	}

	cached, err := m.seed.Load()
	if err != nil {
		m.log.Warn().Err(err).Str("path", m.seed.Path()).Msg("ignoring unreadable token cache")
		return nil, fmt.Errorf("%w: no token stored for %s", ErrNotAuthenticated, userID)
	}
	if cached == nil || cached.AccessToken == "" {
		return nil, fmt.Errorf("%w: no token stored for %s", ErrNotAuthenticated, userID)
	}

	token := fromOAuth(userID, cached, m.now())
	if cached.Expiry.IsZero() {
		// Unknown expiry: treat as expired so the first use refreshes it.
		token.ExpiresAt = 0
	}
	if err := m.tokens.Upsert(ctx, token); err != nil {
		return nil, fmt.Errorf("saving seeded token: %w", err)
	}

	m.log.Info().Str("user_id", userID).Str("path", m.seed.Path()).Msg("token seeded from cache file")
	return token, nil
}

// StoreToken inserts or replaces the stored token for userID.
func (m *Manager) StoreToken(ctx context.Context, userID, accessToken, refreshToken string, expiresAt int64) error {
	unlock := m.lock(userID)
	defer unlock()

	token := &db.Token{
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}
	if err := m.tokens.Upsert(ctx, token); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	return nil
}

// StoreOAuthToken stores the result of an authorization-code exchange.
func (m *Manager) StoreOAuthToken(ctx context.Context, userID string, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return errors.New("cannot store empty token")
	}
	t := fromOAuth(userID, token, m.now())
	return m.StoreToken(ctx, userID, t.AccessToken, t.RefreshToken, t.ExpiresAt)
}

func fromOAuth(userID string, token *oauth2.Token, now time.Time) *db.Token {
	expiry := token.Expiry
	if expiry.IsZero() {
		expiry = now.Add(defaultLifetime)
	}
	return &db.Token{
		UserID:       userID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    expiry.UnixMilli(),
	}
}
