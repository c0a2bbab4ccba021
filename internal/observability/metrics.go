package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the proxy.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokenRefreshes  *prometheus.CounterVec
	tokenCacheHits  prometheus.Counter
	tokenCacheMiss  prometheus.Counter
	authzDenials    *prometheus.CounterVec
	poolTargets     *prometheus.GaugeVec
	buildInfo       *prometheus.GaugeVec
	registry        *prometheus.Registry
}

// NewMetrics creates a new Metrics instance backed by its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "passage"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of proxied requests",
		},
		[]string{"tenant", "class", "method", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Proxied request duration in seconds",
			Buckets: []float64{
				.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
			},
		},
		[]string{"tenant", "class", "method"},
	)

	m.tokenRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_total",
			Help:      "Total number of OAuth2 token exchanges",
		},
		[]string{"tenant", "result"},
	)

	m.tokenCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_cache_hits_total",
			Help:      "Total number of token cache hits",
		},
	)

	m.tokenCacheMiss = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_cache_misses_total",
			Help:      "Total number of token cache misses",
		},
	)

	m.authzDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authorization_denials_total",
			Help:      "Total number of requests denied by the authorization gate",
		},
		[]string{"tenant", "group"},
	)

	m.poolTargets = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_targets",
			Help:      "Number of registered backend targets per tenant and class",
		},
		[]string{"tenant", "class"},
	)

	m.buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "commit"},
	)

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.tokenRefreshes,
		m.tokenCacheHits,
		m.tokenCacheMiss,
		m.authzDenials,
		m.poolTargets,
		m.buildInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetBuildInfo records build metadata.
func (m *Metrics) SetBuildInfo(version, commit string) {
	m.buildInfo.WithLabelValues(version, commit).Set(1)
}

// RecordRequest records one completed proxied request.
func (m *Metrics) RecordRequest(tenant, class, method string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(tenant, class, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(tenant, class, method).Observe(duration.Seconds())
}

// RecordTokenRefresh records one token exchange attempt.
func (m *Metrics) RecordTokenRefresh(tenant, result string) {
	m.tokenRefreshes.WithLabelValues(tenant, result).Inc()
}

// RecordTokenCacheHit records a token served from cache.
func (m *Metrics) RecordTokenCacheHit() {
	m.tokenCacheHits.Inc()
}

// RecordTokenCacheMiss records a token cache miss.
func (m *Metrics) RecordTokenCacheMiss() {
	m.tokenCacheMiss.Inc()
}

// RecordAuthzDenial records a request denied by the authorization gate.
func (m *Metrics) RecordAuthzDenial(tenant, group string) {
	m.authzDenials.WithLabelValues(tenant, group).Inc()
}

// SetPoolTargets records the registered target count for a tenant class.
func (m *Metrics) SetPoolTargets(tenant, class string, n int) {
	m.poolTargets.WithLabelValues(tenant, class).Set(float64(n))
}
