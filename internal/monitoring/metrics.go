package monitoring

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Render metrics
	RendersTotal   *prometheus.CounterVec
	RenderDuration *prometheus.HistogramVec
	RenderTimeouts prometheus.Counter

	// Manipulation metrics
	ManipulationsTotal *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	// Auth metrics
	AuthFailures *prometheus.CounterVec

	// Identity cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

var metrics *Metrics

// Init initializes all Prometheus metrics
func Init() *Metrics {
	if metrics != nil {
		return metrics
	}

	metrics = &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being served",
			},
		),
		RendersTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdf_renders_total",
				Help: "Total number of PDF render attempts",
			},
			[]string{"kind", "outcome"},
		),
		RenderDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pdf_render_duration_seconds",
				Help:    "PDF render duration in seconds",
				Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30, 60, 90},
			},
			[]string{"kind"},
		),
		RenderTimeouts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pdf_render_timeouts_total",
				Help: "Total number of renders aborted by deadline",
			},
		),
		ManipulationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdf_manipulations_total",
				Help: "Total number of PDF manipulation operations",
			},
			[]string{"operation", "outcome"},
		),
		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limit_hits_total",
				Help: "Total number of requests denied by the rate limiter",
			},
			[]string{"endpoint"},
		),
		AuthFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_failures_total",
				Help: "Total number of failed API key authentications",
			},
			[]string{"reason"},
		),
		CacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "identity_cache_hits_total",
				Help: "Identity cache hits",
			},
		),
		CacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "identity_cache_misses_total",
				Help: "Identity cache misses",
			},
		),
	}

	return metrics
}

// Get returns the initialized metrics, initializing on first use.
func Get() *Metrics {
	return Init()
}

// MetricsMiddleware records HTTP metrics for each request
func MetricsMiddleware() gin.HandlerFunc {
	m := Init()
	return func(c *gin.Context) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()

		c.Next()

		m.HTTPRequestsInFlight.Dec()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status()),
		).Inc()
		m.HTTPRequestDuration.WithLabelValues(
			c.Request.Method, path,
		).Observe(time.Since(start).Seconds())
	}
}

// StartMetricsServer serves /metrics on its own port.
func StartMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	log.Info().Str("addr", addr).Msg("Metrics server listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("Metrics server stopped")
	}
}
