package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application. Each collector
// owns its registry so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Business metrics
	Edits          *prometheus.CounterVec
	HistoryMoves   *prometheus.CounterVec
	ActiveSessions prometheus.Gauge
	ConfigReloads  prometheus.Counter

	// Generator metrics
	AICalls    *prometheus.CounterVec
	AIDuration *prometheus.HistogramVec
}

// NewCollector creates a collector with the given namespace
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Edits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "map_edits_total",
				Help:      "Map edits by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		HistoryMoves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "history_moves_total",
				Help:      "Undo and redo requests by whether the cursor moved",
			},
			[]string{"operation", "moved"},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Planning sessions held in memory",
			},
		),
		ConfigReloads: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Dynamic configuration reloads that changed a value",
			},
		),
		AICalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ai_calls_total",
				Help:      "Generator calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		AIDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ai_call_duration_seconds",
				Help:      "Generator call duration in seconds",
				Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
			},
			[]string{"operation"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Edits,
		c.HistoryMoves,
		c.ActiveSessions,
		c.ConfigReloads,
		c.AICalls,
		c.AIDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// RecordEdit counts one map edit
func (c *Collector) RecordEdit(operation, outcome string) {
	c.Edits.WithLabelValues(operation, outcome).Inc()
}

// RecordHistory counts one undo or redo request
func (c *Collector) RecordHistory(operation string, moved bool) {
	label := "false"
	if moved {
		label = "true"
	}
	c.HistoryMoves.WithLabelValues(operation, label).Inc()
}

// SetActiveSessions reports the live session count
func (c *Collector) SetActiveSessions(n int) {
	c.ActiveSessions.Set(float64(n))
}

// RecordConfigReload counts one effective configuration reload
func (c *Collector) RecordConfigReload() {
	c.ConfigReloads.Inc()
}

// RecordAICall counts one generator call and its latency
func (c *Collector) RecordAICall(operation, outcome string, duration time.Duration) {
	c.AICalls.WithLabelValues(operation, outcome).Inc()
	c.AIDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTP counts one served request
func (c *Collector) RecordHTTP(method, route string, status int, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
