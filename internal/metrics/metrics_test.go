package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}

	if m.registry == nil {
		t.Error("Registry is nil")
	}

	if m.LocationUpdatesTotal == nil {
		t.Error("LocationUpdatesTotal is nil")
	}
	if m.FanoutDeliveriesTotal == nil {
		t.Error("FanoutDeliveriesTotal is nil")
	}
	if m.SessionsActive == nil {
		t.Error("SessionsActive is nil")
	}
	if m.SnapshotWritesTotal == nil {
		t.Error("SnapshotWritesTotal is nil")
	}
	if m.HTTPRequestsTotal == nil {
		t.Error("HTTPRequestsTotal is nil")
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()

	// Record some sample metrics so they appear in output
	m.RecordLocationUpdate("http", nil)
	m.RecordLocationUpdate("ws", errors.New("bad"))
	m.RecordDelivery("delivered")
	m.SessionOpened()
	m.RecordAuthFailure("ws")
	m.RecordSnapshot(10*time.Millisecond, 3, nil)
	m.RecordSnapshot(0, 0, errors.New("disk full"))
	m.RecordHTTPRequest("/api/location/current", http.StatusOK, time.Millisecond)

	handler := m.Handler()
	if handler == nil {
		t.Fatal("Handler returned nil")
	}

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()

	expectedMetrics := []string{
		"location_updates_total",
		"location_update_errors_total",
		"fanout_deliveries_total",
		"sessions_active",
		"connections_total",
		"auth_failures_total",
		"snapshot_writes_total",
		"snapshot_write_duration_seconds",
		"snapshot_records",
		"http_requests_total",
		"http_request_duration_seconds",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(body, metric) {
			t.Errorf("Metrics output missing: %s", metric)
		}
	}
}

func TestMetricsRegistry(t *testing.T) {
	m := NewMetrics()

	m.RecordLocationUpdate("http", nil)
	m.RecordLocationUpdate("http", errors.New("bad"))
	m.RecordDelivery("dropped")
	m.SessionOpened()
	m.RecordAuthFailure("http")
	m.RecordSnapshot(time.Millisecond, 1, nil)
	m.RecordSnapshot(0, 0, errors.New("x"))
	m.RecordHTTPRequest("/healthz", http.StatusOK, time.Millisecond)

	metricFamilies, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	metricNames := make(map[string]bool)
	for _, mf := range metricFamilies {
		metricNames[*mf.Name] = true
	}

	expectedCount := 11 // Total number of metrics
	if len(metricNames) != expectedCount {
		t.Errorf("Expected %d metrics, got %d", expectedCount, len(metricNames))
	}
}

func TestSessionGauge(t *testing.T) {
	m := NewMetrics()

	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	metricFamilies, _ := m.registry.Gather()
	for _, mf := range metricFamilies {
		if *mf.Name == "sessions_active" {
			if got := mf.Metric[0].GetGauge().GetValue(); got != 1 {
				t.Errorf("Expected 1 active session, got %v", got)
			}
			return
		}
	}
	t.Error("sessions_active metric not found")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	// none of these may panic
	m.RecordLocationUpdate("http", nil)
	m.RecordDelivery("delivered")
	m.SessionOpened()
	m.SessionClosed()
	m.RecordAuthFailure("ws")
	m.RecordSnapshot(time.Second, 1, nil)
	m.RecordHTTPRequest("/", 200, time.Second)
}
