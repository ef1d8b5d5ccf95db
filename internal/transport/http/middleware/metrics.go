package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpReqTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Count of HTTP requests"},
		[]string{"path", "method", "status"},
	)
	httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"},
	)
	searchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "shelf_search_requests_total", Help: "Search requests by mode"},
		[]string{"mode"},
	)
	searchResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelf_search_results",
			Help:    "Result count per search",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}, []string{"mode"},
	)
)

func init() { prometheus.MustRegister(httpReqTotal, httpLatency, searchTotal, searchResults) }

func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpReqTotal.WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		httpLatency.WithLabelValues(path, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// ObserveSearch mode: search / suggest
func ObserveSearch(mode string, results int64) {
	searchTotal.WithLabelValues(mode).Inc()
	searchResults.WithLabelValues(mode).Observe(float64(results))
}

func MetricsHandler() gin.HandlerFunc { return gin.WrapH(promhttp.Handler()) }
