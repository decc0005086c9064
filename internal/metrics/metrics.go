// Package metrics provides Prometheus metrics for applydesk
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for applydesk. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Version history metrics
	SnapshotCommitsTotal   *prometheus.CounterVec
	SnapshotEvictionsTotal prometheus.Counter
	HistoryMovesTotal      *prometheus.CounterVec

	// Persistence metrics
	PersistOperationsTotal   *prometheus.CounterVec
	PersistOperationDuration *prometheus.HistogramVec
	StoreSizeBytes           prometheus.Gauge

	// Backend metrics
	BackendRequestsTotal    *prometheus.CounterVec
	BackendRequestDuration  *prometheus.HistogramVec
	SupersededRequestsTotal *prometheus.CounterVec

	// Session metrics
	ActiveSessions prometheus.Gauge

	// Daemon metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// NewMetrics creates all metrics and registers them with reg. A nil reg
// selects the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	m.SnapshotCommitsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applydesk_snapshot_commits_total",
			Help: "Total number of snapshots committed",
		},
		[]string{"kind", "trigger"},
	)

	m.SnapshotEvictionsTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "applydesk_snapshot_evictions_total",
			Help: "Total number of snapshots evicted by the retention cap",
		},
	)

	m.HistoryMovesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applydesk_history_moves_total",
			Help: "Total number of undo, redo and restore operations",
		},
		[]string{"direction"},
	)

	m.PersistOperationsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applydesk_persist_operations_total",
			Help: "Total number of local persistence operations",
		},
		[]string{"operation", "status"},
	)

	m.PersistOperationDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "applydesk_persist_operation_duration_seconds",
			Help:    "Duration of local persistence operations in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	m.StoreSizeBytes = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "applydesk_store_size_bytes",
			Help: "Current local store log size in bytes",
		},
	)

	m.BackendRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applydesk_backend_requests_total",
			Help: "Total number of backend requests",
		},
		[]string{"endpoint", "status"},
	)

	m.BackendRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "applydesk_backend_request_duration_seconds",
			Help:    "Duration of backend requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	m.SupersededRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applydesk_superseded_requests_total",
			Help: "Total number of in-flight requests dropped for a newer one",
		},
		[]string{"kind"},
	)

	m.ActiveSessions = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "applydesk_active_sessions",
			Help: "Number of open editor sessions",
		},
	)

	m.HTTPRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applydesk_http_requests_total",
			Help: "Total number of daemon HTTP requests",
		},
		[]string{"route", "status"},
	)

	m.HTTPRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "applydesk_http_request_duration_seconds",
			Help:    "Duration of daemon HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	m.HTTPRequestsInFlight = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "applydesk_http_requests_in_flight",
			Help: "Number of daemon HTTP requests currently being processed",
		},
	)

	m.ServerUptimeSeconds = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "applydesk_server_uptime_seconds",
			Help: "Daemon uptime in seconds",
		},
	)

	return m
}

// RunUptime updates the uptime gauge until stop is closed
func (m *Metrics) RunUptime(stop <-chan struct{}) {
	if m == nil {
		return
	}
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
		case <-stop:
			return
		}
	}
}

// RecordCommit records a snapshot commit and any evictions it caused
func (m *Metrics) RecordCommit(kind, trigger string, evicted int) {
	if m == nil {
		return
	}
	m.SnapshotCommitsTotal.WithLabelValues(kind, trigger).Inc()
	if evicted > 0 {
		m.SnapshotEvictionsTotal.Add(float64(evicted))
	}
}

// RecordMove records an undo, redo or restore
func (m *Metrics) RecordMove(direction string) {
	if m == nil {
		return
	}
	m.HistoryMovesTotal.WithLabelValues(direction).Inc()
}

// RecordPersist records a persistence operation
func (m *Metrics) RecordPersist(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.PersistOperationsTotal.WithLabelValues(operation, status(err)).Inc()
	m.PersistOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetStoreSize updates the local store size gauge
func (m *Metrics) SetStoreSize(bytes int64) {
	if m == nil {
		return
	}
	m.StoreSizeBytes.Set(float64(bytes))
}

// RecordBackend records a backend request. A zero code means no response
// was received.
func (m *Metrics) RecordBackend(endpoint string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	label := "transport_error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	m.BackendRequestsTotal.WithLabelValues(endpoint, label).Inc()
	m.BackendRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordSuperseded records a dropped in-flight request
func (m *Metrics) RecordSuperseded(kind string) {
	if m == nil {
		return
	}
	m.SupersededRequestsTotal.WithLabelValues(kind).Inc()
}

// SessionOpened increments the active session gauge
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

// SessionClosed decrements the active session gauge
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

// RecordHTTPRequest records a daemon request
func (m *Metrics) RecordHTTPRequest(route string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
