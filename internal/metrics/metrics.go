// Package metrics exposes the gateway's Prometheus collectors: request
// counts/latency, live registry size, open tunnel count, and permission-fetch
// latency, all served on /metrics via promhttp the way the rest of the
// ambient stack wires gin middleware ahead of the single dispatch handler.
package metrics

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns every metric the gateway reports. A single instance is
// built at startup and threaded through the components that move it.
type Collector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	registrySize  prometheus.Gauge
	activeTunnels prometheus.Gauge

	permissionFetchDuration *prometheus.HistogramVec
}

// New registers every collector against a fresh prometheus.Registry and
// returns the Collector alongside an http.Handler for /metrics.
func New() (*Collector, http.Handler) {
	registry := prometheus.NewRegistry()

	c := &Collector{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total HTTP requests handled, by method and status class.",
		}, []string{"method", "status"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Request handling latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),

		registrySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_registry_sessions",
			Help: "Number of sessions currently held in the in-memory registry.",
		}),

		activeTunnels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_active_tunnels",
			Help: "Number of WebSocket tunnels currently relaying frames.",
		}),

		permissionFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_permission_fetch_duration_seconds",
			Help:    "Latency of permission-service fetches, by outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.registrySize,
		c.activeTunnels,
		c.permissionFetchDuration,
	)

	return c, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Middleware records a request's method, status, and latency. It should sit
// ahead of the dispatch handler but wraps WebSocket upgrades too, since those
// requests still have a meaningful "time to upgrade" even though the
// resulting tunnel's lifetime is tracked separately via TunnelOpened/Closed.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if c == nil {
			ctx.Next()
			return
		}
		start := time.Now()
		ctx.Next()

		status := statusClass(ctx.Writer.Status())
		c.requestsTotal.WithLabelValues(ctx.Request.Method, status).Inc()
		c.requestDuration.WithLabelValues(ctx.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// SetRegistrySize reports the registry's current live session count. A nil
// Collector is a no-op, so callers holding an optional metrics field never
// need to branch on whether metrics are enabled (mirrors the teacher's own
// disabled-port early return in its metrics server).
func (c *Collector) SetRegistrySize(n int) {
	if c == nil {
		return
	}
	c.registrySize.Set(float64(n))
}

// TunnelOpened marks the start of a relayed WebSocket tunnel.
func (c *Collector) TunnelOpened() {
	if c == nil {
		return
	}
	c.activeTunnels.Inc()
}

// TunnelClosed marks a tunnel's teardown, pairing with TunnelOpened.
func (c *Collector) TunnelClosed() {
	if c == nil {
		return
	}
	c.activeTunnels.Dec()
}

// ObservePermissionFetch records a FetchTags call's latency and outcome
// ("ok" or "error").
func (c *Collector) ObservePermissionFetch(d time.Duration, outcome string) {
	if c == nil {
		return
	}
	c.permissionFetchDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
