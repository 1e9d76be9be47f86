package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObservePhase("run", "SUCCESS", 120*time.Millisecond)
	m.ObservePhase("run", "SUCCESS", 80*time.Millisecond)
	m.ObservePhase("compile", "ERROR", -1)
	m.IncShortCircuit()
	m.AddInflight(1)
	m.AddInflight(1)
	m.AddInflight(-1)

	require.Equal(t, 2.0, testutil.ToFloat64(m.executions.WithLabelValues("run", "SUCCESS")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.executions.WithLabelValues("compile", "ERROR")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.shortCircuits))
	require.Equal(t, 1.0, testutil.ToFloat64(m.inflight))
	require.Equal(t, 1, testutil.CollectAndCount(m.duration))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	require.Contains(t, names, "runbox_executions_total")
	require.Contains(t, names, "runbox_pipeline_short_circuits_total")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ObservePhase("run", "SUCCESS", time.Second)
		m.IncShortCircuit()
		m.AddInflight(1)
	})
}

func TestSharedRegistry(t *testing.T) {
	require.NotNil(t, GetRegistry())
	require.NotNil(t, GetMetrics())
}
