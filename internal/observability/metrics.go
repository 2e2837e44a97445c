// Package observability holds the Prometheus metrics served on /metrics and
// the OpenTelemetry tracer setup.
package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// requests counts HTTP requests.
	// Labels: method, route (gin route pattern), status
	requests *prometheus.CounterVec

	// latency measures HTTP handling time.
	// Labels: method, route
	latency *prometheus.HistogramVec

	// mutations counts settled log mutations.
	// Labels: op (add, delete, restore), outcome (committed, rolled_back, failed)
	mutations *prometheus.CounterVec

	// sessions tracks signed-in users with live sync state.
	sessions prometheus.Gauge
}

// NewMetrics registers the collectors on reg. Pass prometheus.DefaultRegisterer
// in the server and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poop_tracker",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "poop_tracker",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		mutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poop_tracker",
			Subsystem: "logs",
			Name:      "mutations_total",
			Help:      "Settled log mutations by operation and outcome",
		}, []string{"op", "outcome"}),
		sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "poop_tracker",
			Subsystem: "session",
			Name:      "active",
			Help:      "Signed-in users with loaded state",
		}),
	}
}

// LogMutation satisfies logsync.Observer.
func (m *Metrics) LogMutation(op, outcome string) {
	m.mutations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	m.sessions.Set(float64(n))
}

// Middleware records every request under its route pattern, or "unmatched".
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
