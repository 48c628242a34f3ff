// Package history keeps the deduplicated log of played tracks.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/justestif/go-spotify-history/internal/db"
	"github.com/justestif/go-spotify-history/internal/metrics"
)

// Observation is a track seen playing at a point in time.
type Observation struct {
	TrackID    string
	Timestamp  int64 // epoch ms
	DurationMs int
}

// Result reports what RecordIfNew did.
type Result struct {
	Recorded bool
	// Event is the appended event, or the existing one it duplicated.
	Event db.PlayEvent
}

// Log appends play events, skipping repeats of the same playthrough.
type Log struct {
	repo db.HistoryRepository
	log  zerolog.Logger

	// mu makes check-then-append atomic for every writer sharing the Log.
	mu sync.Mutex
}

// New creates a Log.
func New(repo db.HistoryRepository, log zerolog.Logger) *Log {
	return &Log{repo: repo, log: log}
}

// RecordIfNew appends a play event for obs unless it duplicates the most
// recent event: same track, and less than one track duration apart. Only the
// latest event is compared, so a replay after an interruption by another
// track is recorded again.
func (l *Log) RecordIfNew(ctx context.Context, obs Observation) (Result, error) {
	event := db.NewPlayEvent(obs.TrackID, obs.Timestamp)

	l.mu.Lock()
	defer l.mu.Unlock()

	latest, err := l.repo.Latest(ctx)
	switch {
	case errors.Is(err, db.ErrNotFound):
	case err != nil:
		return Result{}, fmt.Errorf("reading latest play: %w", err)
	case IsDuplicate(*latest, event, obs.DurationMs):
		l.log.Debug().
			Str("track_id", obs.TrackID).
			Int64("played_at", latest.PlayedAt).
			Msg("play already recorded")
		return Result{Recorded: false, Event: *latest}, nil
	}

	if err := l.repo.Append(ctx, &event); err != nil {
		return Result{}, fmt.Errorf("recording play: %w", err)
	}
	metrics.RecordPlay()
	l.log.Info().
		Str("track_id", event.TrackID).
		Time("played_at", event.Time()).
		Msg("play recorded")
	return Result{Recorded: true, Event: event}, nil
}

// IsDuplicate reports whether next is the same playthrough as latest.
func IsDuplicate(latest, next db.PlayEvent, durationMs int) bool {
	if latest.TrackID != next.TrackID {
		return false
	}
	delta := next.PlayedAt - latest.PlayedAt
	if delta < 0 {
		delta = -delta
	}
	return delta < int64(durationMs)
}

// Page returns events newest first.
func (l *Log) Page(ctx context.Context, limit, offset int) ([]db.PlayEvent, error) {
	events, err := l.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing plays: %w", err)
	}
	return events, nil
}

// Count returns the number of recorded plays.
func (l *Log) Count(ctx context.Context) (int, error) {
	n, err := l.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting plays: %w", err)
	}
	return n, nil
}
