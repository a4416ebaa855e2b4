package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the live relay.
// All methods are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	registry           *prometheus.Registry
	requestsTotal      prometheus.Counter
	errorsTotal        prometheus.Counter
	sessions           prometheus.Gauge
	broadcastsStarted  prometheus.Counter
	fanoutDropped      prometheus.Counter
	chatMessagesTotal  prometheus.Counter
	segmentCacheHits   prometheus.Counter
	segmentCacheMisses prometheus.Counter
	upstreamErrors     *prometheus.CounterVec
}

// New creates and registers Prometheus metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "live_http_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "live_http_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "live_sessions",
			Help: "Number of connected realtime sessions",
		}),
		broadcastsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "live_broadcasts_started_total",
			Help: "Total number of manual broadcasts started",
		}),
		fanoutDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "live_fanout_dropped_total",
			Help: "Sessions dropped because an event could not be delivered",
		}),
		chatMessagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "live_chat_messages_total",
			Help: "Total number of chat messages relayed",
		}),
		segmentCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "live_segment_cache_hits_total",
			Help: "Segment requests served from the cache",
		}),
		segmentCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "live_segment_cache_misses_total",
			Help: "Segment requests that went upstream",
		}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "live_upstream_errors_total",
			Help: "Failed upstream calls by source",
		}, []string{"source"}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.sessions,
		m.broadcastsStarted,
		m.fanoutDropped,
		m.chatMessagesTotal,
		m.segmentCacheHits,
		m.segmentCacheMisses,
		m.upstreamErrors,
	)

	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	if m != nil {
		m.requestsTotal.Inc()
	}
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	if m != nil {
		m.errorsTotal.Inc()
	}
}

// SetSessions sets the connected sessions gauge.
func (m *Metrics) SetSessions(n int) {
	if m != nil {
		m.sessions.Set(float64(n))
	}
}

// IncBroadcastsStarted counts a broadcast going live.
func (m *Metrics) IncBroadcastsStarted() {
	if m != nil {
		m.broadcastsStarted.Inc()
	}
}

// IncFanoutDropped counts a session dropped because it could not take an event.
func (m *Metrics) IncFanoutDropped() {
	if m != nil {
		m.fanoutDropped.Inc()
	}
}

// IncChatMessages counts a relayed chat message.
func (m *Metrics) IncChatMessages() {
	if m != nil {
		m.chatMessagesTotal.Inc()
	}
}

// ObserveSegmentCache counts a segment lookup as a hit or a miss.
func (m *Metrics) ObserveSegmentCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.segmentCacheHits.Inc()
	} else {
		m.segmentCacheMisses.Inc()
	}
}

// IncUpstreamErrors counts a failed call to the named upstream source.
func (m *Metrics) IncUpstreamErrors(source string) {
	if m != nil {
		m.upstreamErrors.WithLabelValues(source).Inc()
	}
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. sessions).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
