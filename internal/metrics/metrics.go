// Package metrics holds the Prometheus collectors shared by both transports.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Outcomes recorded for a tool call.
const (
	OutcomeOK       = "ok"
	OutcomeEmpty    = "empty"
	OutcomeInvalid  = "invalid"
	OutcomeDenied   = "denied"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
	OutcomeLimited  = "rate_limited"
)

type Metrics struct {
	Registry *prometheus.Registry
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry, plus the Go and process
// collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentdesk",
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool, transport and outcome.",
		}, []string{"tool", "transport", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentdesk",
			Name:      "tool_call_duration_seconds",
			Help:      "Tool latency including validation, authorization and the query.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool", "transport"}),
	}
	reg.MustRegister(
		m.calls,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe records one call. A nil receiver is a no-op so tests can skip metrics.
func (m *Metrics) Observe(tool, transport, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(tool, transport, outcome).Inc()
	m.duration.WithLabelValues(tool, transport).Observe(time.Since(start).Seconds())
}
