package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application. The Record*
// helpers are safe to call on a nil *Metrics so components can run without
// a registry in tests.
type Metrics struct {
	registry *prometheus.Registry

	// Location metrics
	LocationUpdatesTotal      *prometheus.CounterVec
	LocationUpdateErrorsTotal *prometheus.CounterVec

	// Fan-out metrics
	FanoutDeliveriesTotal *prometheus.CounterVec

	// Session metrics
	SessionsActive    prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
	AuthFailuresTotal *prometheus.CounterVec

	// Snapshot metrics
	SnapshotWritesTotal   *prometheus.CounterVec
	SnapshotWriteDuration prometheus.Histogram
	SnapshotRecords       prometheus.Gauge

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		// Location metrics
		LocationUpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "location_updates_total",
				Help: "Total number of accepted location updates",
			},
			[]string{"surface"},
		),
		LocationUpdateErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "location_update_errors_total",
				Help: "Total number of rejected location updates",
			},
			[]string{"surface"},
		),

		// Fan-out metrics
		FanoutDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fanout_deliveries_total",
				Help: "Total number of fan-out deliveries by result",
			},
			[]string{"result"},
		),

		// Session metrics
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessions_active",
				Help: "Number of currently open push connections",
			},
		),
		ConnectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "connections_total",
				Help: "Total number of push connections accepted",
			},
		),
		AuthFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_failures_total",
				Help: "Total number of failed authentications",
			},
			[]string{"surface"},
		),

		// Snapshot metrics
		SnapshotWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapshot_writes_total",
				Help: "Total number of snapshot writes",
			},
			[]string{"status"},
		),
		SnapshotWriteDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "snapshot_write_duration_seconds",
				Help:    "Duration of snapshot writes in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		SnapshotRecords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "snapshot_records",
				Help: "Number of records in the last successful snapshot",
			},
		),

		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP API requests",
			},
			[]string{"route", "code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP API requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	// Register all metrics
	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.LocationUpdatesTotal)
	m.registry.MustRegister(m.LocationUpdateErrorsTotal)

	m.registry.MustRegister(m.FanoutDeliveriesTotal)

	m.registry.MustRegister(m.SessionsActive)
	m.registry.MustRegister(m.ConnectionsTotal)
	m.registry.MustRegister(m.AuthFailuresTotal)

	m.registry.MustRegister(m.SnapshotWritesTotal)
	m.registry.MustRegister(m.SnapshotWriteDuration)
	m.registry.MustRegister(m.SnapshotRecords)

	m.registry.MustRegister(m.HTTPRequestsTotal)
	m.registry.MustRegister(m.HTTPRequestDuration)
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordLocationUpdate counts an update attempt from surface ("http" or "ws")
func (m *Metrics) RecordLocationUpdate(surface string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.LocationUpdateErrorsTotal.WithLabelValues(surface).Inc()
		return
	}
	m.LocationUpdatesTotal.WithLabelValues(surface).Inc()
}

// RecordDelivery counts one fan-out outcome: delivered, dropped or closed
func (m *Metrics) RecordDelivery(result string) {
	if m == nil {
		return
	}
	m.FanoutDeliveriesTotal.WithLabelValues(result).Inc()
}

// SessionOpened tracks a new push connection
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ConnectionsTotal.Inc()
	m.SessionsActive.Inc()
}

// SessionClosed tracks a closed push connection
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

// RecordAuthFailure counts a failed authentication on surface
func (m *Metrics) RecordAuthFailure(surface string) {
	if m == nil {
		return
	}
	m.AuthFailuresTotal.WithLabelValues(surface).Inc()
}

// RecordSnapshot counts a snapshot write
func (m *Metrics) RecordSnapshot(duration time.Duration, records int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SnapshotWritesTotal.WithLabelValues("error").Inc()
		return
	}
	m.SnapshotWritesTotal.WithLabelValues("success").Inc()
	m.SnapshotWriteDuration.Observe(duration.Seconds())
	m.SnapshotRecords.Set(float64(records))
}

// RecordHTTPRequest counts an API request
func (m *Metrics) RecordHTTPRequest(route string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}
