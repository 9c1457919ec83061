package monitoring

import (
	"strconv"
	"sync"
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

	EvidenceRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kg_evidence_recorded_total",
			Help: "Evidence points appended to user mastery records",
		},
		[]string{"type"},
	)

	CycleRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kg_relationship_cycle_rejections_total",
			Help: "Prerequisite relationships refused because they would close a cycle",
		},
	)

	RecommendationsServed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kg_recommendations_served_total",
			Help: "Recommendations returned to callers",
		},
		[]string{"kind"},
	)

	SuggestionItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kg_suggestion_items_total",
			Help: "AI suggestion items by kind and final review status",
		},
		[]string{"kind", "status"},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(EvidenceRecorded)
		prometheus.MustRegister(CycleRejections)
		prometheus.MustRegister(RecommendationsServed)
		prometheus.MustRegister(SuggestionItems)
	})
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
