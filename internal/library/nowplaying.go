package library

import (
	"context"
	"errors"
	"time"

	"github.com/justestif/go-spotify-history/internal/auth"
	"github.com/justestif/go-spotify-history/internal/db"
)

// State says what a NowPlaying result holds.
type State int

const (
	StateUnavailable State = iota
	StateNotPlaying
	StatePlaying
	StateAuthRequired
)

func (s State) String() string {
	switch s {
	case StateNotPlaying:
		return "not_playing"
	case StatePlaying:
		return "playing"
	case StateAuthRequired:
		return "auth_required"
	default:
		return "unavailable"
	}
}

// NowPlaying is the answer to "what is playing right now".
type NowPlaying struct {
	State State

	// Set when State is StatePlaying.
	Track      *db.Track
	ArtistName string
	Album      string
	Date       string // YYYY-MM-DD, UTC
	Time       string // HH:MM:SS, UTC
	ProgressMs int

	// LoginURL is set when State is StateAuthRequired.
	LoginURL string
	// Message describes the problem when State is StateUnavailable.
	Message string
}

// CurrentlyPlaying asks Spotify what the user is playing. Failures are folded
// into the result's State; nothing is written.
func (l *Library) CurrentlyPlaying(ctx context.Context) NowPlaying {
	token, err := l.tokens.GetValidToken(ctx, l.userID)
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated):
		return NowPlaying{State: StateAuthRequired, LoginURL: l.loginURL}
	case err != nil:
		l.log.Warn().Err(err).Msg("now playing: token unavailable")
		return NowPlaying{State: StateUnavailable, Message: "could not obtain a Spotify token, try again shortly"}
	}

	snap, err := l.remote.CurrentlyPlaying(ctx, token.AccessToken)
	if err != nil {
		l.log.Warn().Err(err).Msg("now playing: request failed")
		return NowPlaying{State: StateUnavailable, Message: "Spotify did not answer, try again shortly"}
	}
	if !snap.Active() {
		return NowPlaying{State: StateNotPlaying}
	}

	at := time.UnixMilli(snap.Timestamp).UTC()
	return NowPlaying{
		State:      StatePlaying,
		Track:      snap.Item,
		ArtistName: snap.Item.ArtistName,
		Album:      snap.Item.Album,
		Date:       at.Format(time.DateOnly),
		Time:       at.Format(time.TimeOnly),
		ProgressMs: snap.ProgressMs,
	}
}
