// Package metrics exposes the service counters on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	Registrations *prometheus.CounterVec // stage: signup|verify|resend, result
	Notifications *prometheus.CounterVec // kind: saved|top, result: sent|failed|skipped
	JobsDropped   prometheus.Counter
	TempPurged    prometheus.Counter

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// New registers everything on its own registry so tests can build many instances.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cookbook",
			Name:      "registration_events_total",
			Help:      "Sign-up flow events by stage and result.",
		}, []string{"stage", "result"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cookbook",
			Name:      "milestone_notifications_total",
			Help:      "Author milestone notifications by kind and result.",
		}, []string{"kind", "result"}),
		JobsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cookbook",
			Name:      "worker_jobs_dropped_total",
			Help:      "Background jobs dropped because the queue was full.",
		}),
		TempPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cookbook",
			Name:      "temp_files_purged_total",
			Help:      "Abandoned temporary uploads removed by the janitor.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cookbook",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cookbook",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		m.Registrations, m.Notifications, m.JobsDropped, m.TempPurged, m.requests, m.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware считает запросы по шаблону маршрута, а не по сырому URL.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
