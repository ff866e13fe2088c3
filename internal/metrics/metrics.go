package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tipwall"

// Metrics holds the service's Prometheus collectors. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	webhookEvents *prometheus.CounterVec
	sweepItems    *prometheus.CounterVec
	transfers     *prometheus.CounterVec
	settleLatency *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Payment webhook events by outcome.",
		}, []string{"outcome"}),
		sweepItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "items_total",
			Help:      "Expiry sweep items by action and result.",
		}, []string{"action", "result"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "transfers_total",
			Help:      "Outbound vault transfers by kind and result.",
		}, []string{"kind", "result"}),
		settleLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "duration_seconds",
			Help:      "Time to settle a claimed tip, from claim to final status.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.webhookEvents,
		m.sweepItems,
		m.transfers,
		m.settleLatency,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Instrument records request counts and latency per matched route.
func (m *Metrics) Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) WebhookEvent(outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SweepItem(action string, ok bool) {
	if m == nil {
		return
	}
	m.sweepItems.WithLabelValues(action, result(ok)).Inc()
}

func (m *Metrics) Transfer(kind string, ok bool) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(kind, result(ok)).Inc()
}

func (m *Metrics) Settled(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.settleLatency.WithLabelValues(kind).Observe(d.Seconds())
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
