package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPortalMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPortalMetrics(reg)

	m.AppointmentEvent("booked")
	m.AppointmentEvent("booked")
	m.AppointmentEvent("cancelled")
	m.Conflict()
	m.EmergencyRaised()
	m.FeedbackSubmitted("5")
	m.NotificationFailed("email")

	if got := testutil.ToFloat64(m.appointments.WithLabelValues("booked")); got != 2 {
		t.Errorf("expected 2 booked, got %v", got)
	}
	if got := testutil.ToFloat64(m.conflicts); got != 1 {
		t.Errorf("expected 1 conflict, got %v", got)
	}
}

func TestHTTPMetrics_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.ObserveRequest("GET", "/api/v1/cart", "200", 0.01)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ayursutra_http_requests_total") {
		t.Error("expected request counter in exposition output")
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var h *HTTPMetrics
	h.ObserveRequest("GET", "/", "200", 0.1)

	var p *PortalMetrics
	p.AppointmentEvent("booked")
	p.Conflict()
	p.EmergencyRaised()
	p.FeedbackSubmitted("3")
	p.NotificationFailed("email")
}
