// Package metrics exposes Prometheus collectors for the HTTP layer and the
// claim workflow. This is part of the platform layer and contains no business logic.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claims_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "claims_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	workflowOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claims_workflow_operations_total",
		Help: "Workflow operations by operation and outcome (ok, denied, illegal, conflict, error)",
	}, []string{"operation", "outcome"})

	sessionLogins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claims_session_logins_total",
		Help: "Login attempts by result",
	}, []string{"result"})

	overdueClaims = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "claims_overdue",
		Help: "Number of non-terminal claims with an overdue deadline at the last scan",
	})

	dashboardCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claims_dashboard_cache_total",
		Help: "Dashboard summary cache lookups by result (hit, miss)",
	}, []string{"result"})
)

// ObserveHTTPRequest records an HTTP request metric.
func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// ObserveWorkflow counts one workflow operation outcome.
func ObserveWorkflow(operation, outcome string) {
	workflowOperations.WithLabelValues(operation, outcome).Inc()
}

// ObserveLogin counts one login attempt.
func ObserveLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	sessionLogins.WithLabelValues(result).Inc()
}

// SetOverdue sets the overdue claim gauge.
func SetOverdue(count int) {
	if count < 0 {
		count = 0
	}
	overdueClaims.Set(float64(count))
}

// ObserveDashboardCache counts a cache hit or miss.
func ObserveDashboardCache(hit bool) {
	if hit {
		dashboardCache.WithLabelValues("hit").Inc()
		return
	}
	dashboardCache.WithLabelValues("miss").Inc()
}

// Middleware records request count and latency labelled by the matched route
// template, so path parameters do not explode label cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ObserveHTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Handler serves the Prometheus scrape endpoint.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
