// Package metrics exposes the Prometheus collectors of the service on a
// dedicated registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mdfe"

// Registry holds every collector the service exports
type Registry struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	sefazRequests *prometheus.CounterVec
	sefazDuration *prometheus.HistogramVec

	manifestTransitions *prometheus.CounterVec
	domainEvents        *prometheus.CounterVec
	openManifests       *prometheus.GaugeVec
	expiringCerts       prometheus.Gauge
	jobRuns             *prometheus.CounterVec
}

// New creates a registry with the Go and process collectors plus the
// service metrics
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		sefazRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sefaz",
			Name:      "requests_total",
			Help:      "SEFAZ gateway calls by operation, UF and status code.",
		}, []string{"operation", "uf", "code"}),
		sefazDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sefaz",
			Name:      "request_duration_seconds",
			Help:      "SEFAZ gateway call latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
		manifestTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "manifest",
			Name:      "transitions_total",
			Help:      "Manifest lifecycle transitions by resulting status.",
		}, []string{"status"}),
		domainEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Domain events seen on the bus by type.",
		}, []string{"type"}),
		openManifests: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "manifest",
			Name:      "stale_open",
			Help:      "Authorized manifests past the closing threshold, by tenant.",
		}, []string{"tenant"}),
		expiringCerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tenant",
			Name:      "certificates_expiring",
			Help:      "Active tenants whose certificate expires within the warning window.",
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Background job executions by job and outcome.",
		}, []string{"job", "outcome"}),
	}

	reg.MustRegister(
		r.httpRequests, r.httpDuration,
		r.sefazRequests, r.sefazDuration,
		r.manifestTransitions, r.domainEvents,
		r.openManifests, r.expiringCerts, r.jobRuns,
	)
	return r
}

// Gatherer exposes the underlying registry, for tests
func (r *Registry) Gatherer() prometheus.Gatherer { return r.registry }

// Handler serves the metrics in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		Registry:          r.registry,
		EnableOpenMetrics: true,
	})
}

// GinMiddleware records request count and latency keyed by route template
func (r *Registry) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		r.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		r.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveSefaz records one gateway call
func (r *Registry) ObserveSefaz(operation, uf, code string, elapsed time.Duration) {
	r.sefazRequests.WithLabelValues(operation, uf, code).Inc()
	r.sefazDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ManifestTransition counts a manifest reaching status
func (r *Registry) ManifestTransition(status string) {
	r.manifestTransitions.WithLabelValues(status).Inc()
}

// DomainEvent counts an event seen on the bus
func (r *Registry) DomainEvent(eventType string) {
	r.domainEvents.WithLabelValues(eventType).Inc()
}

// SetStaleOpenManifests replaces the per-tenant gauge values
func (r *Registry) SetStaleOpenManifests(byTenant map[string]int) {
	r.openManifests.Reset()
	for tenant, n := range byTenant {
		r.openManifests.WithLabelValues(tenant).Set(float64(n))
	}
}

// SetExpiringCertificates sets the expiring certificate gauge
func (r *Registry) SetExpiringCertificates(n int) {
	r.expiringCerts.Set(float64(n))
}

// JobRun counts a scheduler execution
func (r *Registry) JobRun(job string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	r.jobRuns.WithLabelValues(job, outcome).Inc()
}
