// Package supervisor runs the long-lived services (poller, HTTP server) under
// a suture supervisor that restarts them when they fail.
package supervisor

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

// Config holds supervisor tuning. Zero values take suture's defaults.
type Config struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultConfig returns suture's own defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the root supervisor.
type Tree struct {
	root *suture.Supervisor
	log  zerolog.Logger
}

// New creates a supervisor named name that logs its events to log.
func New(name string, cfg Config, log zerolog.Logger) *Tree {
	def := DefaultConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	root := suture.New(name, suture.Spec{
		EventHook:        EventHook(log),
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})
	return &Tree{root: root, log: log}
}

// Add registers a service. It is started when the tree is served, or
// immediately if the tree is already running.
func (t *Tree) Add(svc suture.Service) suture.ServiceToken {
	t.log.Debug().Str("service", serviceName(svc)).Msg("adding service")
	return t.root.Add(svc)
}

// Serve runs every service until ctx is cancelled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// EventHook turns suture events into log lines.
func EventHook(log zerolog.Logger) suture.EventHook {
	return func(ev suture.Event) {
		switch e := ev.(type) {
		case suture.EventServicePanic:
			log.Error().
				Str("supervisor", e.SupervisorName).
				Str("service", e.ServiceName).
				Str("panic", e.PanicMsg).
				Bool("restarting", e.Restarting).
				Msg("service panicked")
		case suture.EventServiceTerminate:
			log.Warn().
				Str("supervisor", e.SupervisorName).
				Str("service", e.ServiceName).
				Interface("error", e.Err).
				Float64("failures", e.CurrentFailures).
				Bool("restarting", e.Restarting).
				Msg("service terminated")
		case suture.EventBackoff:
			log.Warn().Str("supervisor", e.SupervisorName).Msg("too many failures, backing off")
		case suture.EventResume:
			log.Info().Str("supervisor", e.SupervisorName).Msg("resuming after backoff")
		case suture.EventStopTimeout:
			log.Error().
				Str("supervisor", e.SupervisorName).
				Str("service", e.ServiceName).
				Msg("service did not stop in time")
		default:
			log.Info().Msg(ev.String())
		}
	}
}

func serviceName(svc suture.Service) string {
	if s, ok := svc.(interface{ String() string }); ok {
		return s.String()
	}
	return "unnamed"
}
