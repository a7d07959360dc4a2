// Package metrics exposes Prometheus metrics for the HTTP surface and the
// receiving and delivery operations.
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

const namespace = "stockflow"

// Receipt results.
const (
	ResultSuccess     = "success"
	ResultOverReceipt = "over_receipt"
	ResultAborted     = "aborted"
	ResultError       = "error"
)

// Metrics holds the application collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ReceiptsTotal       *prometheus.CounterVec
	OverReceiptsTotal   prometheus.Counter
	ShipmentIssuesTotal *prometheus.CounterVec
	CacheUpdateFailures prometheus.Counter

	OutboxRelayed *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	m.HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "route"})

	m.ReceiptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "receipts_total",
		Help:      "Receipts processed by result",
	}, []string{"result"})

	m.OverReceiptsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "over_receipts_total",
		Help:      "Receipts rejected because a line would exceed its ordered quantity",
	})

	m.ShipmentIssuesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "shipment_issues_total",
		Help:      "Shipment issues opened by type",
	}, []string{"type"})

	m.CacheUpdateFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_update_failures_total",
		Help:      "Material quantity cache adjustments skipped after a delivery",
	})

	m.OutboxRelayed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_messages_total",
		Help:      "Outbox messages handled by the relay by outcome",
	}, []string{"outcome"})

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReceiptsTotal,
		m.OverReceiptsTotal,
		m.ShipmentIssuesTotal,
		m.CacheUpdateFailures,
		m.OutboxRelayed,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request count and latency per route template.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordReceipt counts one receipt attempt by result. The Record methods
// are no-ops on a nil *Metrics.
func (m *Metrics) RecordReceipt(result string) {
	if m == nil {
		return
	}
	m.ReceiptsTotal.WithLabelValues(result).Inc()
	if result == ResultOverReceipt {
		m.OverReceiptsTotal.Inc()
	}
}

// RecordIssue counts one opened shipment issue.
func (m *Metrics) RecordIssue(issueType string) {
	if m == nil {
		return
	}
	m.ShipmentIssuesTotal.WithLabelValues(issueType).Inc()
}

// RecordCacheFailures counts skipped cache adjustments.
func (m *Metrics) RecordCacheFailures(n int) {
	if m == nil {
		return
	}
	if n > 0 {
		m.CacheUpdateFailures.Add(float64(n))
	}
}

// RecordRelay counts relay outcomes.
func (m *Metrics) RecordRelay(published, failed int) {
	if m == nil {
		return
	}
	m.OutboxRelayed.WithLabelValues("published").Add(float64(published))
	m.OutboxRelayed.WithLabelValues("failed").Add(float64(failed))
}
