package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	TeachInteractions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teach_interactions_total",
			Help: "Processed teach mode interactions by response type and outcome",
		},
		[]string{"type", "outcome"},
	)

	CheckpointVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teach_checkpoint_verdicts_total",
			Help: "Checkpoint evaluation verdicts by method",
		},
		[]string{"verdict", "method"},
	)

	ElaborationFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "teach_elaboration_fallbacks_total",
			Help: "Elaboration requests degraded to static content",
		},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "teach_active_sessions",
			Help: "Teaching sessions without a terminal state",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(TeachInteractions)
	prometheus.MustRegister(CheckpointVerdicts)
	prometheus.MustRegister(ElaborationFallbacks)
	prometheus.MustRegister(ActiveSessions)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
