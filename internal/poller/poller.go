// Package poller records the user's listening by polling Spotify's
// now-playing endpoint on a fixed interval.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/justestif/go-spotify-history/internal/auth"
	"github.com/justestif/go-spotify-history/internal/db"
	"github.com/justestif/go-spotify-history/internal/history"
	"github.com/justestif/go-spotify-history/internal/metrics"
	"github.com/justestif/go-spotify-history/internal/spotify"
)

const (
	// DefaultInterval is the time between ticks.
	DefaultInterval = 60 * time.Second
	// DefaultTickTimeout bounds a single tick.
	DefaultTickTimeout = 30 * time.Second
)

// ErrPanic wraps a panic recovered during a tick.
var ErrPanic = errors.New("tick panicked")

// Outcome is how a tick ended.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeIdle
	OutcomeUnauthenticated
	OutcomeDuplicate
	OutcomeRecorded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIdle:
		return "idle"
	case OutcomeUnauthenticated:
		return "unauthenticated"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeRecorded:
		return "recorded"
	default:
		return "failed"
	}
}

// TokenSource supplies access tokens.
type TokenSource interface {
	GetValidToken(ctx context.Context, userID string) (*db.Token, error)
}

// Remote reads the now-playing state.
type Remote interface {
	CurrentlyPlaying(ctx context.Context, accessToken string) (*spotify.Snapshot, error)
}

// Cache stores the metadata of observed tracks.
type Cache interface {
	EnsureTrack(ctx context.Context, item *db.Track) (*db.Track, error)
}

// Recorder appends plays to the history.
type Recorder interface {
	RecordIfNew(ctx context.Context, obs history.Observation) (history.Result, error)
}

// Poller ties the token manager, Spotify, the metadata cache and the history
// log together, once per tick.
type Poller struct {
	tokens   TokenSource
	remote   Remote
	cache    Cache
	history  Recorder
	userID   string
	interval time.Duration
	timeout  time.Duration
	log      zerolog.Logger
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the time between ticks.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		p.interval = d
	}
}

// WithTickTimeout bounds each tick.
func WithTickTimeout(d time.Duration) Option {
	return func(p *Poller) {
		p.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Poller) {
		p.log = log
	}
}

// New creates a poller for userID.
func New(tokens TokenSource, remote Remote, cache Cache, recorder Recorder, userID string, opts ...Option) *Poller {
	p := &Poller{
		tokens:   tokens,
		remote:   remote,
		cache:    cache,
		history:  recorder,
		userID:   userID,
		interval: DefaultInterval,
		timeout:  DefaultTickTimeout,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tick runs one poll. Errors and panics are returned, never propagated
// further; the outcome is always set.
func (p *Poller) Tick(ctx context.Context) (outcome Outcome, err error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomeFailed
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
		metrics.RecordTick(outcome.String(), time.Since(start))
	}()

	return p.tick(ctx)
}

func (p *Poller) tick(ctx context.Context) (Outcome, error) {
	token, err := p.tokens.GetValidToken(ctx, p.userID)
	if errors.Is(err, auth.ErrNotAuthenticated) {
		return OutcomeUnauthenticated, err
	}
	if err != nil {
		return OutcomeFailed, fmt.Errorf("getting token: %w", err)
	}

	snap, err := p.remote.CurrentlyPlaying(ctx, token.AccessToken)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("fetching now playing: %w", err)
	}
	if !snap.Active() {
		return OutcomeIdle, nil
	}

	track, err := p.cache.EnsureTrack(ctx, snap.Item)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("caching track %s: %w", snap.Item.ID, err)
	}

	res, err := p.history.RecordIfNew(ctx, history.Observation{
		TrackID:    track.ID,
		Timestamp:  snap.Timestamp,
		DurationMs: snap.Item.DurationMs,
	})
	if err != nil {
		return OutcomeFailed, fmt.Errorf("recording play: %w", err)
	}
	if !res.Recorded {
		return OutcomeDuplicate, nil
	}
	return OutcomeRecorded, nil
}

// Run ticks immediately and then every interval until ctx is cancelled.
// A failed tick never stops the loop.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info().Dur("interval", p.interval).Str("user_id", p.userID).Msg("poller started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.runTick(ctx)

		select {
		case <-ctx.Done():
			p.log.Info().Msg("poller stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Poller) runTick(ctx context.Context) {
	outcome, err := p.Tick(ctx)
	switch outcome {
	case OutcomeUnauthenticated:
		p.log.Warn().Err(err).Msg("not authenticated, run the login command")
	case OutcomeFailed:
		if ctx.Err() != nil {
			return
		}
		p.log.Error().Err(err).Msg("poll tick failed")
	default:
		p.log.Debug().Stringer("outcome", outcome).Msg("poll tick")
	}
}

// Serve implements suture.Service.
func (p *Poller) Serve(ctx context.Context) error {
	return p.Run(ctx)
}

// String implements fmt.Stringer for suture logs.
func (p *Poller) String() string {
	return "poller"
}
