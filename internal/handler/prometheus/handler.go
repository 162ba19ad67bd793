package prometheus

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwalitptl/dental-verify/pkg/metrics"
)

// Handler exposes a registry on /metrics and records request metrics into
// it.
type Handler struct {
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

// New creates a registry with the Go and process collectors and the
// application metrics under namespace.
func New(namespace string) *Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Handler{
		registry: registry,
		metrics:  metrics.NewMetrics(registry, namespace),
	}
}

func (h *Handler) Metrics() *metrics.Metrics { return h.metrics }

func (h *Handler) Registry() *prometheus.Registry { return h.registry }

// Middleware counts requests by matched route so path parameters do not
// blow up label cardinality. Unmatched requests share one label.
func (h *Handler) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		h.metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, status).Inc()
		h.metrics.HTTPLatency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func (h *Handler) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
}
