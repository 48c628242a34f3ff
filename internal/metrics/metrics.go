// Package metrics exposes Prometheus instrumentation for the poller, the
// token manager, the metadata cache and the HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "spotify_history"

var (
	// Poller
	PollTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "Poll ticks by outcome",
		},
		[]string{"outcome"}, // recorded, duplicate, idle, unauthenticated, failed
	)

	PollTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_tick_duration_seconds",
			Help:      "Duration of a poll tick",
			Buckets:   prometheus.DefBuckets,
		},
	)

	PlaysRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plays_recorded_total",
			Help:      "Play events appended to the history",
		},
	)

	// Token manager
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "OAuth token refresh attempts",
		},
		[]string{"result"}, // success, error
	)

	// Metadata cache
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Metadata cache lookups",
		},
		[]string{"kind", "result"}, // kind: track, artist; result: hit, miss
	)

	// Spotify API
	RemoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_requests_total",
			Help:      "Requests made to the Spotify Web API",
		},
		[]string{"endpoint", "result"},
	)

	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_request_duration_seconds",
			Help:      "Latency of Spotify Web API requests",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// HTTP API
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordTick records a finished poll tick.
func RecordTick(outcome string, duration time.Duration) {
	PollTicks.WithLabelValues(outcome).Inc()
	PollTickDuration.Observe(duration.Seconds())
}

// RecordPlay counts an appended play event.
func RecordPlay() {
	PlaysRecorded.Inc()
}

// RecordTokenRefresh records a refresh attempt.
func RecordTokenRefresh(err error) {
	TokenRefreshes.WithLabelValues(result(err)).Inc()
}

// RecordCacheLookup records a metadata cache hit or miss.
func RecordCacheLookup(kind string, hit bool) {
	res := "miss"
	if hit {
		res = "hit"
	}
	CacheLookups.WithLabelValues(kind, res).Inc()
}

// RecordRemoteRequest records one Spotify API call.
func RecordRemoteRequest(endpoint string, duration time.Duration, err error) {
	RemoteRequests.WithLabelValues(endpoint, result(err)).Inc()
	RemoteRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// SetCircuitBreakerState publishes a breaker state. Values follow gobreaker's State ordering.
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordHTTPRequest records a served request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
