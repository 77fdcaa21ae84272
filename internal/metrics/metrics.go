// Package metrics expone contadores Prometheus del marketplace.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"artmarket/internal/domain"
)

// Collector agrupa las métricas de auth, guard, perfiles y archivos.
type Collector struct {
	authEvents      *prometheus.CounterVec
	guardDecisions  *prometheus.CounterVec
	profileAttempts prometheus.Histogram
	profileFailures *prometheus.CounterVec
	uploads         *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artmarket_auth_events_total",
			Help: "Auth operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artmarket_guard_decisions_total",
			Help: "Route guard decisions by kind.",
		}, []string{"decision"}),
		profileAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "artmarket_profile_fetch_attempts",
			Help:    "Lookups needed to resolve a profile.",
			Buckets: []float64{1, 2, 3, 4, 5},
		}),
		profileFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artmarket_profile_fetch_failures_total",
			Help: "Profile resolutions that ended without a profile.",
		}, []string{"reason"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artmarket_uploads_total",
			Help: "File uploads by bucket and outcome.",
		}, []string{"bucket", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artmarket_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "artmarket_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.authEvents,
		c.guardDecisions,
		c.profileAttempts,
		c.profileFailures,
		c.uploads,
		c.httpRequests,
		c.httpLatency,
	)
	return c
}

// ObserveAuth cuenta una operación de auth.
func (c *Collector) ObserveAuth(operation, outcome string) {
	c.authEvents.WithLabelValues(operation, outcome).Inc()
}

// RecordGuardDecision cuenta una decisión del guard.
func (c *Collector) RecordGuardDecision(decision string) {
	c.guardDecisions.WithLabelValues(decision).Inc()
}

// ObserveProfileFetch registra cuántos intentos llevó resolver un perfil.
func (c *Collector) ObserveProfileFetch(attempts int, err error) {
	c.profileAttempts.Observe(float64(attempts))
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrProfileNotFound):
		c.profileFailures.WithLabelValues("not_found").Inc()
	default:
		c.profileFailures.WithLabelValues("error").Inc()
	}
}

func (c *Collector) RecordUpload(bucket string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.uploads.WithLabelValues(bucket, outcome).Inc()
}

func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// SetupMetricsRoute devuelve el handler de /metrics para la registry dada.
func SetupMetricsRoute(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
