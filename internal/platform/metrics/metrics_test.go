package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandler_exposes_live_metrics(t *testing.T) {
	m := New()
	m.IncBroadcastsStarted()
	m.ObserveSegmentCache(true)
	m.ObserveSegmentCache(false)
	m.IncUpstreamErrors("autodj")

	refreshed := false
	rec := httptest.NewRecorder()
	m.Handler(func() {
		refreshed = true
		m.SetSessions(3)
	}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/internal/metrics", nil))

	body := rec.Body.String()
	assert.True(t, refreshed)
	assert.Contains(t, body, "live_broadcasts_started_total 1")
	assert.Contains(t, body, "live_segment_cache_hits_total 1")
	assert.Contains(t, body, "live_segment_cache_misses_total 1")
	assert.Contains(t, body, `live_upstream_errors_total{source="autodj"} 1`)
	assert.Contains(t, body, "live_sessions 3")
}

func TestNilMetrics_is_noop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncRequests()
		m.IncErrors()
		m.SetSessions(1)
		m.IncFanoutDropped()
		m.ObserveSegmentCache(true)
		m.IncUpstreamErrors("relay")
	})
}

func TestRequestMiddleware_counts_errors(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/segment/a/b.ts", nil))

	rec := httptest.NewRecorder()
	m.Handler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Body.String(), "live_http_requests_total 1")
	assert.Contains(t, rec.Body.String(), "live_http_errors_total 1")
}
