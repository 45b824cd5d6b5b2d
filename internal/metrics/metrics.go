// Package metrics exposes Prometheus collectors for the HTTP layer and the
// provider client.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "console_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	upstreamCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_upstream_calls_total",
			Help: "Provider calls by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	upstreamCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "console_upstream_call_duration_seconds",
			Help:    "Provider call latency by operation.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
		},
		[]string{"op"},
	)
)

// Middleware records one sample per request. The route label is the gin
// route template, so path parameters do not blow up cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Upstream implements upstream.Observer.
type Upstream struct{}

func (Upstream) ObserveUpstream(op, outcome string, d time.Duration) {
	upstreamCallsTotal.WithLabelValues(op, outcome).Inc()
	upstreamCallDuration.WithLabelValues(op).Observe(d.Seconds())
}
