package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all gateway-level metrics (not package-specific)
type Metrics struct {
	// Upstream OSDU call metrics
	UpstreamRequests  *prometheus.CounterVec
	UpstreamDuration  *prometheus.HistogramVec
	UpstreamFallbacks *prometheus.CounterVec
	UpstreamRetries   *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec

	// HTTP surface metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Auth metrics
	TokenRefreshes prometheus.Counter
	TokenFailures  prometheus.Counter

	// Health
	HealthCheckStatus *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance with all gateway metrics
func NewMetrics() *Metrics {
	return &Metrics{
		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "osdugate",
				Subsystem: "upstream",
				Name:      "requests_total",
				Help:      "Total number of GraphQL requests issued to OSDU services",
			},
			[]string{"service", "operation", "status"},
		),

		UpstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "osdugate",
				Subsystem: "upstream",
				Name:      "duration_seconds",
				Help:      "Upstream request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "operation"},
		),

		UpstreamFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "osdugate",
				Subsystem: "upstream",
				Name:      "fallbacks_total",
				Help:      "Total number of fallback query shapes attempted",
			},
			[]string{"service", "operation"},
		),

		UpstreamRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "osdugate",
				Subsystem: "upstream",
				Name:      "retries_total",
				Help:      "Total number of transient-error retries against OSDU services",
			},
			[]string{"service"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "osdugate",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"component", "class"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "osdugate",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests served by the gateway",
			},
			[]string{"route", "method", "code"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "osdugate",
				Subsystem: "http",
				Name:      "duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),

		TokenRefreshes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "osdugate",
				Subsystem: "auth",
				Name:      "token_refreshes_total",
				Help:      "Total number of access token refreshes",
			},
		),

		TokenFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "osdugate",
				Subsystem: "auth",
				Name:      "token_failures_total",
				Help:      "Total number of failed token refresh attempts",
			},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "osdugate",
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"component"},
		),
	}
}

// RecordUpstreamRequest increments the upstream request counter
func (c *Metrics) RecordUpstreamRequest(service, operation, status string) {
	c.UpstreamRequests.WithLabelValues(service, operation, status).Inc()
}

// RecordUpstreamDuration records upstream call time
func (c *Metrics) RecordUpstreamDuration(service, operation string, duration time.Duration) {
	c.UpstreamDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordFallback increments the fallback attempt counter
func (c *Metrics) RecordFallback(service, operation string) {
	c.UpstreamFallbacks.WithLabelValues(service, operation).Inc()
}

// RecordRetry increments the retry counter
func (c *Metrics) RecordRetry(service string) {
	c.UpstreamRetries.WithLabelValues(service).Inc()
}

// RecordError increments error counter
func (c *Metrics) RecordError(component, class string) {
	c.ErrorsTotal.WithLabelValues(component, class).Inc()
}

// RecordHTTPRequest increments the HTTP request counter
func (c *Metrics) RecordHTTPRequest(route, method, code string) {
	c.HTTPRequests.WithLabelValues(route, method, code).Inc()
}

// RecordHTTPDuration records HTTP handling time
func (c *Metrics) RecordHTTPDuration(route string, duration time.Duration) {
	c.HTTPDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordTokenRefresh increments the token refresh counter
func (c *Metrics) RecordTokenRefresh() {
	c.TokenRefreshes.Inc()
}

// RecordTokenFailure increments the token failure counter
func (c *Metrics) RecordTokenFailure() {
	c.TokenFailures.Inc()
}

// RecordHealthStatus updates health check status
func (c *Metrics) RecordHealthStatus(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(component).Set(value)
}
