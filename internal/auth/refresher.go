package auth

import (
	"context"
	"net/http"
	"time"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// OAuthRefresher refreshes tokens against an OAuth2 token endpoint.
type OAuthRefresher struct {
	config *oauth2.Config
	client *http.Client
}

// NewOAuthRefresher creates a refresher for the given client credentials.
// An empty tokenURL means Spotify's accounts service.
func NewOAuthRefresher(clientID, clientSecret, tokenURL string, timeout time.Duration) *OAuthRefresher {
	if tokenURL == "" {
		tokenURL = spotifyauth.TokenURL
	}
	return &OAuthRefresher{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   spotifyauth.AuthURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		client: &http.Client{Timeout: timeout},
	}
}

// Refresh performs a refresh_token grant.
func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.client)
	// An empty access token forces the source to refresh immediately.
	return r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
}
