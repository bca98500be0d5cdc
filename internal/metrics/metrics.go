package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks sign-ups, swipes, matches and chat traffic plus HTTP latency.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	UsersRegistered prometheus.Counter
	Interactions    *prometheus.CounterVec
	Matches         prometheus.Counter
	MessagesSent    prometheus.Counter
	PhotoUploads    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	WSConnections   prometheus.Gauge
}

// New registers all collectors on reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UsersRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "spokies_users_registered_total",
			Help: "Total number of completed registrations",
		}),
		Interactions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spokies_interactions_total",
			Help: "Recorded interactions by action",
		}, []string{"action"}),
		Matches: f.NewCounter(prometheus.CounterOpts{
			Name: "spokies_matches_total",
			Help: "Mutual likes that produced a chat room",
		}),
		MessagesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "spokies_messages_sent_total",
			Help: "Chat messages accepted",
		}),
		PhotoUploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spokies_photo_uploads_total",
			Help: "Photo uploads by outcome",
		}, []string{"outcome"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spokies_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route", "status"}),
		WSConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "spokies_ws_connections",
			Help: "Open chat websocket connections",
		}),
	}
}

func (m *Metrics) IncUsersRegistered() {
	if m == nil {
		return
	}
	m.UsersRegistered.Inc()
}

func (m *Metrics) IncInteraction(action string) {
	if m == nil {
		return
	}
	m.Interactions.WithLabelValues(action).Inc()
}

func (m *Metrics) IncMatches() {
	if m == nil {
		return
	}
	m.Matches.Inc()
}

func (m *Metrics) IncMessagesSent() {
	if m == nil {
		return
	}
	m.MessagesSent.Inc()
}

// IncPhotoUpload records one stored ("ok") or failed ("error") photo.
func (m *Metrics) IncPhotoUpload(outcome string) {
	if m == nil {
		return
	}
	m.PhotoUploads.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records a finished request. Call with time.Now() taken at the start.
func (m *Metrics) ObserveHTTP(method, route string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPDuration.WithLabelValues(method, route, statusClass(status)).Observe(time.Since(start).Seconds())
}

func (m *Metrics) WSConnected() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

func (m *Metrics) WSDisconnected() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
