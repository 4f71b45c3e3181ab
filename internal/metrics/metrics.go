// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Turn outcomes
const (
	OutcomeDone      = "done"
	OutcomeTruncated = "truncated"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// Metrics groups the collectors. A nil *Metrics records nothing, so
// components can be built without one in tests.
type Metrics struct {
	turns           *prometheus.CounterVec
	turnDuration    prometheus.Histogram
	toolCalls       *prometheus.CounterVec
	usageRejections *prometheus.CounterVec
	activeStreams   prometheus.Gauge
	httpRequests    *prometheus.CounterVec
	gatherer        prometheus.Gatherer
}

// New creates the collectors and registers them on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "margin",
			Name:      "assistant_turns_total",
			Help:      "Assistant turns by outcome.",
		}, []string{"outcome"}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "margin",
			Name:      "assistant_turn_duration_seconds",
			Help:      "Wall time of assistant turns.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "margin",
			Name:      "tool_calls_total",
			Help:      "Tool invocations by kind and status.",
		}, []string{"kind", "status"}),
		usageRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "margin",
			Name:      "usage_rejections_total",
			Help:      "Requests rejected by the usage gate, by code.",
		}, []string{"code"}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "margin",
			Name:      "active_streams",
			Help:      "Open chat event streams.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "margin",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status.",
		}, []string{"method", "status"}),
		gatherer: reg,
	}
	reg.MustRegister(m.turns, m.turnDuration, m.toolCalls, m.usageRejections, m.activeStreams, m.httpRequests)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) TurnFinished(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
	m.turnDuration.Observe(d.Seconds())
}

func (m *Metrics) ToolCall(kind, status string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) UsageRejected(code string) {
	if m == nil {
		return
	}
	m.usageRejections.WithLabelValues(code).Inc()
}

// StreamOpened increments the open stream gauge; call the returned func on close.
func (m *Metrics) StreamOpened() func() {
	if m == nil {
		return func() {}
	}
	m.activeStreams.Inc()
	return m.activeStreams.Dec
}

func (m *Metrics) HTTPRequest(method string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}
