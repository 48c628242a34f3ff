package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOAuthRefresher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))

		id, secret, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client-id", id)
		assert.Equal(t, "client-secret", secret)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "new-access", "token_type": "Bearer", "expires_in": 3600}`))
	}))
	defer srv.Close()

	r := NewOAuthRefresher("client-id", "client-secret", srv.URL, time.Second)
	before := time.Now()
	token, err := r.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)

	assert.Equal(t, "new-access", token.AccessToken)
	// Spotify may omit the refresh token; the old one carries over.
	assert.Equal(t, "old-refresh", token.RefreshToken)
	assert.WithinDuration(t, before.Add(time.Hour), token.Expiry, 10*time.Second)
}

func TestOAuthRefresher_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "invalid_grant", "error_description": "Refresh token revoked"}`))
	}))
	defer srv.Close()

	r := NewOAuthRefresher("client-id", "client-secret", srv.URL, time.Second)
	_, err := r.Refresh(context.Background(), "revoked")
	assert.Error(t, err)
}
