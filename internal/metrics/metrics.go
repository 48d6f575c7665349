// Package metrics provides Prometheus metric collection and exposure.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector gathers service metrics into a Prometheus registry.
type Collector struct {
	logins          *prometheus.CounterVec
	registrations   prometheus.Counter
	tokenFailures   *prometheus.CounterVec
	sessionsRevoked prometheus.Counter
	httpDuration    *prometheus.HistogramVec
	httpStatus      *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "users_logins_total",
			Help: "Login attempts by credential method and outcome.",
		}, []string{"method", "outcome"}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "users_registrations_total",
			Help: "Total user registrations.",
		}),
		tokenFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "users_token_validation_failures_total",
			Help: "Credential validation failures by reason.",
		}, []string{"reason"}),
		sessionsRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "users_sessions_revoked_total",
			Help: "Total opaque sessions revoked.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "users_http_request_duration_seconds",
			Help:    "HTTP request latency by method and path pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "users_http_status_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.logins,
		c.registrations,
		c.tokenFailures,
		c.sessionsRevoked,
		c.httpDuration,
		c.httpStatus,
	)

	return c
}

// RecordLogin records a login attempt.
func (c *Collector) RecordLogin(method, outcome string) {
	c.logins.WithLabelValues(method, outcome).Inc()
}

// RecordRegistration records a completed user registration.
func (c *Collector) RecordRegistration() {
	c.registrations.Inc()
}

// RecordTokenFailure records a credential validation failure.
func (c *Collector) RecordTokenFailure(reason string) {
	c.tokenFailures.WithLabelValues(reason).Inc()
}

// RecordSessionsRevoked records revoked sessions.
func (c *Collector) RecordSessionsRevoked(count int64) {
	c.sessionsRevoked.Add(float64(count))
}

// RecordHTTPRequest records the latency and status of a handled request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpStatus.WithLabelValues(strconv.Itoa(status)).Inc()
}

// Handler returns an HTTP handler serving the Prometheus scrape format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
