package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordTick(t *testing.T) {
	before := testutil.ToFloat64(PollTicks.WithLabelValues("idle"))
	RecordTick("idle", 10*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(PollTicks.WithLabelValues("idle")))
}

func TestRecordTokenRefresh(t *testing.T) {
	ok := testutil.ToFloat64(TokenRefreshes.WithLabelValues("success"))
	failed := testutil.ToFloat64(TokenRefreshes.WithLabelValues("error"))

	RecordTokenRefresh(nil)
	RecordTokenRefresh(errors.New("boom"))
	RecordTokenRefresh(errors.New("boom"))

	assert.Equal(t, ok+1, testutil.ToFloat64(TokenRefreshes.WithLabelValues("success")))
	assert.Equal(t, failed+2, testutil.ToFloat64(TokenRefreshes.WithLabelValues("error")))
}

func TestRecordCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(CacheLookups.WithLabelValues("track", "hit"))
	misses := testutil.ToFloat64(CacheLookups.WithLabelValues("track", "miss"))

	RecordCacheLookup("track", true)
	RecordCacheLookup("track", false)

	assert.Equal(t, hits+1, testutil.ToFloat64(CacheLookups.WithLabelValues("track", "hit")))
	assert.Equal(t, misses+1, testutil.ToFloat64(CacheLookups.WithLabelValues("track", "miss")))
}

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/api/history", "200"))
	RecordHTTPRequest("GET", "/api/history", 200, time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/api/history", "200")))
}

func TestSetCircuitBreakerState(t *testing.T) {
	SetCircuitBreakerState("spotify", 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(CircuitBreakerState.WithLabelValues("spotify")))
}
