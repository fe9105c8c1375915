// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Stream metrics
	StreamMessages   prometheus.Counter
	StreamReconnects prometheus.Counter
	FilterUpdates    prometheus.Counter
	FilterSize       prometheus.Gauge

	// Session metrics
	SessionsStarted prometheus.Counter
	SessionsStopped *prometheus.CounterVec
	ActiveSessions  prometheus.Gauge
	SubscribedMints prometheus.Gauge

	// Dispatch metrics
	EventsDispatched prometheus.Counter
	DuplicateEvents  prometheus.Counter
	StaleEvents      prometheus.Counter

	// Flush metrics
	SessionsFlushed prometheus.Counter
	FlushErrors     *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_wallet_monitor"
	}

	return &Metrics{
		// Stream metrics
		StreamMessages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_total",
			Help:      "Total number of transaction notifications received",
		}),
		StreamReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Total number of WebSocket reconnections",
		}),
		FilterUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "filter_updates_total",
			Help:      "Total number of subscription filter replacements",
		}),
		FilterSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "filter_size",
			Help:      "Current number of token mints in the subscription filter",
		}),

		// Session metrics
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "started_total",
			Help:      "Total number of monitoring sessions started",
		}),
		SessionsStopped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "stopped_total",
			Help:      "Total number of monitoring sessions stopped by reason",
		}, []string{"reason"}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Current number of active monitoring sessions",
		}),
		SubscribedMints: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "subscribed_mints",
			Help:      "Current number of token mints with at least one session",
		}),

		// Dispatch metrics
		EventsDispatched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "events_total",
			Help:      "Total number of trade events dispatched to sessions",
		}),
		DuplicateEvents: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "duplicate_events_total",
			Help:      "Total number of events dropped as duplicate signatures",
		}),
		StaleEvents: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "stale_events_total",
			Help:      "Total number of events dropped as older than session start",
		}),

		// Flush metrics
		SessionsFlushed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "flush",
			Name:      "sessions_total",
			Help:      "Total number of session results flushed to storage",
		}),
		FlushErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "flush",
			Name:      "errors_total",
			Help:      "Total number of flush errors by store",
		}, []string{"store"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordStreamMessage increments the stream messages counter.
func RecordStreamMessage() {
	DefaultMetrics.StreamMessages.Inc()
}

// RecordStreamReconnect increments the reconnects counter.
func RecordStreamReconnect() {
	DefaultMetrics.StreamReconnects.Inc()
}

// RecordFilterUpdate records a filter replacement and its new size.
func RecordFilterUpdate(size int) {
	DefaultMetrics.FilterUpdates.Inc()
	DefaultMetrics.FilterSize.Set(float64(size))
}

// RecordSessionStarted increments the sessions started counter.
func RecordSessionStarted() {
	DefaultMetrics.SessionsStarted.Inc()
}

// RecordSessionStopped records a session stop by reason.
func RecordSessionStopped(reason string) {
	DefaultMetrics.SessionsStopped.WithLabelValues(reason).Inc()
}

// UpdateSessionGauges updates the active session and subscribed mint gauges.
func UpdateSessionGauges(active, mints int) {
	DefaultMetrics.ActiveSessions.Set(float64(active))
	DefaultMetrics.SubscribedMints.Set(float64(mints))
}

// RecordEventDispatched increments the dispatched events counter.
func RecordEventDispatched() {
	DefaultMetrics.EventsDispatched.Inc()
}

// RecordDuplicateEvent increments the duplicate events counter.
func RecordDuplicateEvent() {
	DefaultMetrics.DuplicateEvents.Inc()
}

// RecordStaleEvent increments the stale events counter.
func RecordStaleEvent() {
	DefaultMetrics.StaleEvents.Inc()
}

// RecordSessionFlushed increments the flushed sessions counter.
func RecordSessionFlushed() {
	DefaultMetrics.SessionsFlushed.Inc()
}

// RecordFlushError records a flush error for the given store.
func RecordFlushError(store string) {
	DefaultMetrics.FlushErrors.WithLabelValues(store).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
