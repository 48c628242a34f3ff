// Package spotify provides a wrapper around the Spotify Web API.
//
// Every call takes the access token to use, so the caller owns the token
// lifecycle. Calls are paced by a rate limiter and guarded by a circuit
// breaker; all failures wrap ErrRemote.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/justestif/go-spotify-history/internal/metrics"
)

var (
	// ErrRemote is returned when a Spotify API call fails or is short-circuited.
	ErrRemote = errors.New("spotify request failed")

	// ErrUnknownID accompanies ErrRemote when Spotify has no entity with the requested ID.
	ErrUnknownID = errors.New("unknown spotify id")
)

const (
	// DefaultTimeout bounds every HTTP request to Spotify.
	DefaultTimeout = 10 * time.Second
	// DefaultRateLimit is the sustained request rate, per second.
	DefaultRateLimit = 5.0
	// DefaultBreakerFailures is the number of consecutive failures that opens the breaker.
	DefaultBreakerFailures = 5

	breakerName = "spotify"
)

// Client calls the Spotify Web API.
type Client struct {
	baseURL         string
	transport       http.RoundTripper
	timeout         time.Duration
	limiter         *rate.Limiter
	breaker         *gobreaker.CircuitBreaker[any]
	breakerFailures uint32
	breakerTimeout  time.Duration
	log             zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root (must end in "/").
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRateLimit sets the sustained request rate per second.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithBreaker sets how many consecutive failures open the breaker and how
// long it stays open before probing again.
func WithBreaker(failures uint32, openFor time.Duration) Option {
	return func(c *Client) {
		c.breakerFailures = failures
		c.breakerTimeout = openFor
	}
}

// WithTransport sets the underlying HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New creates a Spotify client.
func New(opts ...Option) *Client {
	c := &Client{
		transport:       http.DefaultTransport,
		timeout:         DefaultTimeout,
		limiter:         rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		breakerFailures: DefaultBreakerFailures,
		breakerTimeout:  30 * time.Second,
		log:             zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	metrics.SetCircuitBreakerState(breakerName, int(gobreaker.StateClosed))
	c.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    breakerName,
		Timeout: c.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.breakerFailures
		},
		IsSuccessful: func(err error) bool {
			// Client errors say nothing about Spotify's health.
			var apiErr spotify.Error
			if errors.As(err, &apiErr) {
				return apiErr.Status < 500 && apiErr.Status != http.StatusTooManyRequests
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
			metrics.SetCircuitBreakerState(name, int(to))
		},
	})
	return c
}

// api returns a zmb3 client that authenticates with accessToken.
func (c *Client) api(accessToken string) *spotify.Client {
	httpClient := &http.Client{
		Timeout: c.timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   c.transport,
		},
	}
	var opts []spotify.ClientOption
	if c.baseURL != "" {
		opts = append(opts, spotify.WithBaseURL(c.baseURL))
	}
	return spotify.New(httpClient, opts...)
}

// do runs fn behind the rate limiter and the circuit breaker.
func (c *Client) do(ctx context.Context, endpoint string, fn func() (any, error)) (any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: waiting for rate limiter: %w", ErrRemote, endpoint, err)
	}

	start := time.Now()
	result, err := c.breaker.Execute(fn)
	metrics.RecordRemoteRequest(endpoint, time.Since(start), err)
	if err != nil {
		var apiErr spotify.Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s: %w: %w", ErrRemote, endpoint, ErrUnknownID, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrRemote, endpoint, err)
	}
	return result, nil
}
