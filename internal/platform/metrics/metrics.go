package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ayursutra"

// HTTPMetrics exposes request counters/latency for the API.
type HTTPMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.requestDuration)
	return m
}

func (m *HTTPMetrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, route, status).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(seconds)
}

// PortalMetrics counts booking and clinic events.
type PortalMetrics struct {
	appointments *prometheus.CounterVec
	conflicts    prometheus.Counter
	emergencies  prometheus.Counter
	feedback     *prometheus.CounterVec
	notifyFailed *prometheus.CounterVec
}

func NewPortalMetrics(reg prometheus.Registerer) *PortalMetrics {
	m := &PortalMetrics{
		appointments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "appointment_events_total",
			Help:      "Appointment lifecycle events",
		}, []string{"event"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "conflicts_total",
			Help:      "Bookings and reschedules rejected for overlapping a practitioner's slot",
		}),
		emergencies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "emergency",
			Name:      "raised_total",
			Help:      "Emergency requests raised by patients",
		}),
		feedback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feedback",
			Name:      "submitted_total",
			Help:      "Feedback submissions by rating",
		}, []string{"rating"}),
		notifyFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "failures_total",
			Help:      "Staff notifications that could not be delivered",
		}, []string{"channel"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.appointments, m.conflicts, m.emergencies, m.feedback, m.notifyFailed)
	return m
}

// AppointmentEvent records booked, cancelled, rescheduled, started or completed.
func (m *PortalMetrics) AppointmentEvent(event string) {
	if m == nil {
		return
	}
	m.appointments.WithLabelValues(event).Inc()
}

func (m *PortalMetrics) Conflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

func (m *PortalMetrics) EmergencyRaised() {
	if m == nil {
		return
	}
	m.emergencies.Inc()
}

func (m *PortalMetrics) FeedbackSubmitted(rating string) {
	if m == nil {
		return
	}
	m.feedback.WithLabelValues(rating).Inc()
}

func (m *PortalMetrics) NotificationFailed(channel string) {
	if m == nil {
		return
	}
	m.notifyFailed.WithLabelValues(channel).Inc()
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
