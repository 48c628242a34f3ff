package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/justestif/go-spotify-history/internal/db"
	"github.com/justestif/go-spotify-history/internal/library"
)

const loginPath = "/auth/login"

// Library is the read side the API serves.
type Library interface {
	CurrentlyPlaying(ctx context.Context) library.NowPlaying
	HistoryPage(ctx context.Context, limit, offset int) (library.Page[library.HistoryEntry], error)
	Track(ctx context.Context, id string) (*library.TrackDetail, error)
	Artist(ctx context.Context, id string) (*db.Artist, error)
	Tracks(ctx context.Context, limit, offset int) (library.Page[db.Track], error)
	Artists(ctx context.Context, limit, offset int) (library.Page[db.Artist], error)
}

// Authenticator runs the authorization code flow.
type Authenticator interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, state string, r *http.Request) (*oauth2.Token, error)
}

// TokenStore persists the token obtained by the callback.
type TokenStore interface {
	StoreOAuthToken(ctx context.Context, userID string, token *oauth2.Token) error
}

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	library Library
	auth    Authenticator
	tokens  TokenStore
	states  *StateStore
	userID  string
	log     zerolog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(lib Library, authn Authenticator, tokens TokenStore, userID string, log zerolog.Logger) *Handlers {
	return &Handlers{
		library: lib,
		auth:    authn,
		tokens:  tokens,
		states:  NewStateStore(),
		userID:  userID,
		log:     log,
	}
}

// Health reports liveness (GET /healthz).
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NowPlaying reports the current playback (GET /api/now-playing). The state
// field carries auth and upstream problems, so the status is always 200.
func (h *Handlers) NowPlaying(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toNowPlayingJSON(h.library.CurrentlyPlaying(r.Context())))
}

// History lists recorded plays, newest first (GET /api/history).
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := paging(w, r)
	if !ok {
		return
	}
	page, err := h.library.HistoryPage(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapPage(page, toHistoryEntryJSON))
}

// Tracks lists cached tracks (GET /api/tracks).
func (h *Handlers) Tracks(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := paging(w, r)
	if !ok {
		return
	}
	page, err := h.library.Tracks(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapPage(page, toTrackJSON))
}

// Track returns one track, fetching it on a miss (GET /api/tracks/{id}).
func (h *Handlers) Track(w http.ResponseWriter, r *http.Request) {
	detail, err := h.library.Track(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trackDetailJSON{
		trackJSON: toTrackJSON(detail.Track),
		Artists:   toArtistsJSON(detail.Artists),
	})
}

// Artists lists cached artists (GET /api/artists).
func (h *Handlers) Artists(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := paging(w, r)
	if !ok {
		return
	}
	page, err := h.library.Artists(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapPage(page, toArtistJSON))
}

// Artist returns one artist, fetching it on a miss (GET /api/artists/{id}).
func (h *Handlers) Artist(w http.ResponseWriter, r *http.Request) {
	artist, err := h.library.Artist(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toArtistJSON(*artist))
}

// Login initiates the Spotify OAuth flow (GET /auth/login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	state := h.states.Issue()

	// Bind the state to this browser as well as to the server.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(stateTTL.Seconds()),
	})

	http.Redirect(w, r, h.auth.AuthURL(state), http.StatusTemporaryRedirect)
}

// Callback handles the OAuth callback from Spotify (GET /callback).
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil {
		http.Error(w, "Missing state cookie", http.StatusBadRequest)
		return
	}

	state := r.URL.Query().Get("state")
	if state != stateCookie.Value || !h.states.Consume(state) {
		http.Error(w, "State mismatch", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	token, err := h.auth.Exchange(r.Context(), state, r)
	if err != nil {
		h.log.Warn().Err(err).Msg("authorization failed")
		http.Error(w, fmt.Sprintf("Authorization failed: %v", err), http.StatusBadRequest)
		return
	}

	if err := h.tokens.StoreOAuthToken(r.Context(), h.userID, token); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.log.Info().Str("user_id", h.userID).Msg("user authenticated")
	http.Redirect(w, r, "/api/now-playing", http.StatusSeeOther)
}

// paging reads limit and offset query parameters. Absent values are zero and
// are normalized by the library. It writes a 400 and returns false on garbage.
func paging(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &limit}, {"offset", &offset}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid " + p.name})
			return 0, 0, false
		}
		*p.dst = n
	}
	return limit, offset, true
}
