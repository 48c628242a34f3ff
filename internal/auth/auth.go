package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

const callbackTimeout = 2 * time.Minute

var (
	// ErrAuthTimeout is returned when the OAuth callback is not received in time.
	ErrAuthTimeout = errors.New("authentication timed out waiting for callback")

	// ErrStateMismatch is returned when the OAuth state parameter doesn't match.
	ErrStateMismatch = errors.New("OAuth state mismatch")
)

// Scopes requested at login.
var Scopes = []string{
	spotifyauth.ScopeUserReadCurrentlyPlaying,
	spotifyauth.ScopeUserReadPlaybackState,
}

// Authenticator runs the Spotify authorization-code flow.
type Authenticator struct {
	auth        *spotifyauth.Authenticator
	redirectURI string
}

// NewAuthenticator creates an Authenticator for the given app credentials.
func NewAuthenticator(clientID, clientSecret, redirectURI string) *Authenticator {
	return &Authenticator{
		auth: spotifyauth.New(
			spotifyauth.WithClientID(clientID),
			spotifyauth.WithClientSecret(clientSecret),
			spotifyauth.WithRedirectURL(redirectURI),
			spotifyauth.WithScopes(Scopes...),
		),
		redirectURI: redirectURI,
	}
}

// NewState returns a random OAuth state value.
func NewState() string {
	return uuid.NewString()
}

// AuthURL returns the URL the user must visit to grant access.
func (a *Authenticator) AuthURL(state string) string {
	return a.auth.AuthURL(state)
}

// Exchange validates the callback request and trades its code for a token.
func (a *Authenticator) Exchange(ctx context.Context, state string, r *http.Request) (*oauth2.Token, error) {
	if r.URL.Query().Get("state") != state {
		return nil, ErrStateMismatch
	}
	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		return nil, fmt.Errorf("spotify auth error: %s", errMsg)
	}

	token, err := a.auth.Token(ctx, state, r)
	if err != nil {
		return nil, fmt.Errorf("exchanging code for token: %w", err)
	}
	return token, nil
}

// TokenStore receives the token of a completed login.
type TokenStore interface {
	StoreOAuthToken(ctx context.Context, userID string, token *oauth2.Token) error
}

// Login performs the authorization-code flow from a terminal: it prints the
// authorization URL to out, serves the redirect URI on the loopback address
// until the callback arrives, and stores the resulting token for userID.
// When cache is non-nil the token is also written there.
func (a *Authenticator) Login(ctx context.Context, store TokenStore, userID string, cache *TokenCache, out io.Writer, log zerolog.Logger) error {
	redirect, err := url.Parse(a.redirectURI)
	if err != nil {
		return fmt.Errorf("parsing redirect URI: %w", err)
	}

	state := NewState()

	// Channel to receive the token from callback
	tokenCh := make(chan *oauth2.Token, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		a.handleCallback(w, r, state, tokenCh, errCh)
	})

	server := &http.Server{
		Addr:              redirect.Host,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("callback server error: %w", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	fmt.Fprintln(out, "\nTo authenticate, open this URL in your browser:")
	fmt.Fprintln(out, a.AuthURL(state))
	fmt.Fprintln(out, "\nWaiting for authentication...")

	var token *oauth2.Token
	select {
	case token = <-tokenCh:
	case err := <-errCh:
		return err
	case <-time.After(callbackTimeout):
		return ErrAuthTimeout
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := store.StoreOAuthToken(ctx, userID, token); err != nil {
		return err
	}
	if cache != nil {
		if err := cache.Save(token); err != nil {
			// The token is stored; the file copy is only a convenience.
			log.Warn().Err(err).Str("path", cache.Path()).Msg("failed to write token cache")
		}
	}

	log.Info().Str("user_id", userID).Msg("login complete")
	return nil
}

// handleCallback processes the OAuth callback from Spotify.
func (a *Authenticator) handleCallback(w http.ResponseWriter, r *http.Request, expectedState string, tokenCh chan<- *oauth2.Token, errCh chan<- error) {
	token, err := a.Exchange(r.Context(), expectedState, r)
	if err != nil {
		http.Error(w, "Authentication failed", http.StatusBadRequest)
		select {
		case errCh <- err:
		default:
		}
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "Authentication successful. You can close this window and return to the terminal.")

	tokenCh <- token
}
