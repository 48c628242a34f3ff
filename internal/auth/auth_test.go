package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestTokenCache_SaveAndLoad(t *testing.T) {
	tests := []struct {
		name  string
		token *oauth2.Token
	}{
		{
			name: "basic token",
			token: &oauth2.Token{
				AccessToken:  "test-access-token",
				TokenType:    "Bearer",
				RefreshToken: "test-refresh-token",
				Expiry:       time.Now().Add(time.Hour),
			},
		},
		{
			name: "token without refresh",
			token: &oauth2.Token{
				AccessToken: "access-only",
				TokenType:   "Bearer",
				Expiry:      time.Now().Add(30 * time.Minute),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "token.json")
			cache := NewTokenCache(path)

			// Save token
			if err := cache.Save(tt.token); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			// Load token
			loaded, err := cache.Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			if loaded == nil {
				t.Fatal("Load() returned nil token")
			}

			if loaded.AccessToken != tt.token.AccessToken {
				t.Errorf("AccessToken = %q, want %q", loaded.AccessToken, tt.token.AccessToken)
			}

			if loaded.RefreshToken != tt.token.RefreshToken {
				t.Errorf("RefreshToken = %q, want %q", loaded.RefreshToken, tt.token.RefreshToken)
			}

			if loaded.TokenType != tt.token.TokenType {
				t.Errorf("TokenType = %q, want %q", loaded.TokenType, tt.token.TokenType)
			}
		})
	}
}

func TestTokenCache_LoadNonExistent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent", "token.json")
	cache := NewTokenCache(path)

	token, err := cache.Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if token != nil {
		t.Errorf("Load() = %v, want nil for non-existent file", token)
	}
}

func TestTokenCache_SaveCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeply", "token.json")
	cache := NewTokenCache(path)

	token := &oauth2.Token{
		AccessToken: "test-token",
		TokenType:   "Bearer",
	}

	if err := cache.Save(token); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Verify directory was created
	parentDir := filepath.Dir(path)
	if _, err := os.Stat(parentDir); os.IsNotExist(err) {
		t.Error("Save() did not create parent directory")
	}

	// Verify file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("Save() did not create token file")
	}
}

func TestTokenCache_SaveNilToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")
	cache := NewTokenCache(path)

	err := cache.Save(nil)
	if err == nil {
		t.Error("Save(nil) should return error")
	}
}

func TestTokenCache_Path(t *testing.T) {
	path := "/custom/path/token.json"
	cache := NewTokenCache(path)

	if cache.Path() != path {
		t.Errorf("Path() = %q, want %q", cache.Path(), path)
	}
}

func TestTokenCache_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")
	cache := NewTokenCache(path)

	token := &oauth2.Token{
		AccessToken: "secret-token",
		TokenType:   "Bearer",
	}

	if err := cache.Save(token); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}

	// Check file is not world-readable (0600)
	mode := info.Mode().Perm()
	if mode&0077 != 0 {
		t.Errorf("File permissions = %o, want 0600 (no group/other access)", mode)
	}
}

func TestNewState(t *testing.T) {
	state1 := NewState()
	state2 := NewState()

	if state1 == "" {
		t.Fatal("NewState() returned empty string")
	}
	if state1 == state2 {
		t.Error("NewState() returned same value twice")
	}
}

func TestAuthenticator_AuthURL(t *testing.T) {
	a := NewAuthenticator("client-id", "client-secret", "http://127.0.0.1:8080/callback")

	u, err := url.Parse(a.AuthURL("state-123"))
	if err != nil {
		t.Fatalf("parsing auth URL: %v", err)
	}

	q := u.Query()
	if got := q.Get("client_id"); got != "client-id" {
		t.Errorf("client_id = %q, want client-id", got)
	}
	if got := q.Get("state"); got != "state-123" {
		t.Errorf("state = %q, want state-123", got)
	}
	if got := q.Get("redirect_uri"); got != "http://127.0.0.1:8080/callback" {
		t.Errorf("redirect_uri = %q", got)
	}
	if got := q.Get("scope"); !strings.Contains(got, "user-read-currently-playing") {
		t.Errorf("scope = %q, want user-read-currently-playing", got)
	}
}

func TestAuthenticator_Exchange(t *testing.T) {
	a := NewAuthenticator("client-id", "client-secret", "http://127.0.0.1:8080/callback")

	tests := []struct {
		name    string
		query   string
		wantErr error
	}{
		{"state mismatch", "?state=other&code=abc", ErrStateMismatch},
		{"missing state", "?code=abc", ErrStateMismatch},
		{"user denied", "?state=expected&error=access_denied", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/callback"+tt.query, nil)
			_, err := a.Exchange(r.Context(), "expected", r)
			if err == nil {
				t.Fatal("Exchange() error = nil, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Exchange() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAuthenticator_HandleCallbackRejectsBadState(t *testing.T) {
	a := NewAuthenticator("client-id", "client-secret", "http://127.0.0.1:8080/callback")
	tokenCh := make(chan *oauth2.Token, 1)
	errCh := make(chan error, 1)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/callback?state=wrong&code=abc", nil)
	a.handleCallback(w, r, "expected", tokenCh, errCh)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrStateMismatch) {
			t.Errorf("error = %v, want ErrStateMismatch", err)
		}
	default:
		t.Error("no error reported")
	}
}
