package web

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/justestif/go-spotify-history/internal/auth"
	"github.com/justestif/go-spotify-history/internal/catalog"
	"github.com/justestif/go-spotify-history/internal/db"
	"github.com/justestif/go-spotify-history/internal/library"
	"github.com/justestif/go-spotify-history/internal/spotify"
)

type trackJSON struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	ArtistName  string   `json:"artist_name"`
	Album       string   `json:"album"`
	DurationMs  int      `json:"duration_ms"`
	Popularity  int      `json:"popularity"`
	ReleaseDate string   `json:"release_date"`
	Explicit    bool     `json:"explicit"`
	ArtistIDs   []string `json:"artist_ids"`
	Genres      []string `json:"genres"`
}

type artistJSON struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
	Followers  int      `json:"followers"`
}

type historyEntryJSON struct {
	ID       int64        `json:"id"`
	PlayedAt int64        `json:"played_at"`
	PlayedOn string       `json:"played_on"`
	Track    trackJSON    `json:"track"`
	Artists  []artistJSON `json:"artists"`
}

type trackDetailJSON struct {
	trackJSON
	Artists []artistJSON `json:"artists"`
}

type pageJSON[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type nowPlayingJSON struct {
	State      string     `json:"state"`
	Track      *trackJSON `json:"track,omitempty"`
	ArtistName string     `json:"artist_name,omitempty"`
	Album      string     `json:"album,omitempty"`
	Date       string     `json:"date,omitempty"`
	Time       string     `json:"time,omitempty"`
	ProgressMs int        `json:"progress_ms,omitempty"`
	LoginURL   string     `json:"login_url,omitempty"`
	Message    string     `json:"message,omitempty"`
}

type errorJSON struct {
	Error    string `json:"error"`
	LoginURL string `json:"login_url,omitempty"`
}

func toTrackJSON(t db.Track) trackJSON {
	return trackJSON{
		ID:          t.ID,
		Name:        t.Name,
		ArtistName:  t.ArtistName,
		Album:       t.Album,
		DurationMs:  t.DurationMs,
		Popularity:  t.Popularity,
		ReleaseDate: t.ReleaseDate,
		Explicit:    t.Explicit,
		ArtistIDs:   orEmpty(t.ArtistIDs),
		Genres:      orEmpty(t.Genres),
	}
}

func toArtistJSON(a db.Artist) artistJSON {
	return artistJSON{
		ID:         a.ID,
		Name:       a.Name,
		Genres:     orEmpty(a.Genres),
		Popularity: a.Popularity,
		Followers:  a.Followers,
	}
}

func toArtistsJSON(artists []db.Artist) []artistJSON {
	out := make([]artistJSON, 0, len(artists))
	for _, a := range artists {
		out = append(out, toArtistJSON(a))
	}
	return out
}

func toHistoryEntryJSON(e library.HistoryEntry) historyEntryJSON {
	return historyEntryJSON{
		ID:       e.Event.ID,
		PlayedAt: e.Event.PlayedAt,
		PlayedOn: e.Event.PlayedOn,
		Track:    toTrackJSON(e.Track),
		Artists:  toArtistsJSON(e.Artists),
	}
}

func toNowPlayingJSON(np library.NowPlaying) nowPlayingJSON {
	out := nowPlayingJSON{
		State:      np.State.String(),
		ArtistName: np.ArtistName,
		Album:      np.Album,
		Date:       np.Date,
		Time:       np.Time,
		ProgressMs: np.ProgressMs,
		LoginURL:   np.LoginURL,
		Message:    np.Message,
	}
	if np.Track != nil {
		t := toTrackJSON(*np.Track)
		out.Track = &t
	}
	return out
}

func mapPage[T, U any](p library.Page[T], f func(T) U) pageJSON[U] {
	items := make([]U, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, f(item))
	}
	return pageJSON[U]{Items: items, Total: p.Total, Limit: p.Limit, Offset: p.Offset}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// statusFor maps a domain error to an HTTP status.
func statusFor(err error) int {
	switch {
	case library.IsAuthError(err):
		return http.StatusUnauthorized
	case errors.Is(err, db.ErrNotFound), errors.Is(err, spotify.ErrUnknownID):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrFetchFailed), errors.Is(err, auth.ErrRefreshFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorJSON{Error: http.StatusText(status)}
	if status == http.StatusUnauthorized {
		body.LoginURL = loginPath
	}

	level := zerolog.WarnLevel
	if status >= http.StatusInternalServerError {
		level = zerolog.ErrorLevel
	}
	h.log.WithLevel(level).Err(err).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("request failed")

	writeJSON(w, status, body)
}
