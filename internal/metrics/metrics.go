// Package metrics holds the Prometheus collectors of the development backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the backend.
type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	SessionsIssued  prometheus.Counter
	SessionsRevoked prometheus.Counter
	UsersCreated    prometheus.Counter
	RateLimited     prometheus.Counter
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "observer_http_requests_total",
			Help: "Total number of HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "observer_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		SessionsIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "observer_sessions_issued_total",
			Help: "Total number of sessions issued by login, sign-in and refresh",
		}),
		SessionsRevoked: f.NewCounter(prometheus.CounterOpts{
			Name: "observer_sessions_revoked_total",
			Help: "Total number of sessions revoked by logout and refresh",
		}),
		UsersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "observer_users_created_total",
			Help: "Total number of users created",
		}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "observer_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		}),
	}
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(route, method, status string, seconds float64) {
	m.Requests.WithLabelValues(route, method, status).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(seconds)
}

// IncrementSessionsIssued increments the issued sessions counter by 1.
func (m *Metrics) IncrementSessionsIssued() {
	m.SessionsIssued.Inc()
}

// IncrementSessionsRevoked increments the revoked sessions counter by 1.
func (m *Metrics) IncrementSessionsRevoked() {
	m.SessionsRevoked.Inc()
}

// IncrementUsersCreated increments the users created counter by 1.
func (m *Metrics) IncrementUsersCreated() {
	m.UsersCreated.Inc()
}

// IncrementRateLimited increments the rejected requests counter by 1.
func (m *Metrics) IncrementRateLimited() {
	m.RateLimited.Inc()
}
