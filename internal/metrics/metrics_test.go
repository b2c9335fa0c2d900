package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserve(t *testing.T) {
	m := New()
	m.Observe("consultar_facturas", "http", OutcomeOK, time.Now())
	m.Observe("consultar_facturas", "http", OutcomeOK, time.Now())
	m.Observe("consultar_facturas", "mcp", OutcomeDenied, time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.calls.WithLabelValues("consultar_facturas", "http", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("consultar_facturas", "mcp", OutcomeDenied)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.Observe("x", "y", OutcomeOK, time.Now()) })
}
