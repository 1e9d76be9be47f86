package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "runbox"

// Metrics records pipeline executions. A nil *Metrics is a valid no-op.
type Metrics struct {
	executions    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	shortCircuits prometheus.Counter
	inflight      prometheus.Gauge
}

// NewMetrics creates the execution collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Finished process executions by pipeline phase and result type.",
		}, []string{"phase", "type"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Wall time of finished process executions by pipeline phase.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"phase"}),
		shortCircuits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_short_circuits_total",
			Help:      "Pipelines whose run phase was skipped because compilation failed.",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inflight_executions",
			Help:      "Processes currently running.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.executions, m.duration, m.shortCircuits, m.inflight)
	}
	return m
}

func (m *Metrics) ObservePhase(phase, resultType string, took time.Duration) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(phase, resultType).Inc()
	if took >= 0 {
		m.duration.WithLabelValues(phase).Observe(took.Seconds())
	}
}

func (m *Metrics) IncShortCircuit() {
	if m == nil {
		return
	}
	m.shortCircuits.Inc()
}

func (m *Metrics) AddInflight(delta float64) {
	if m == nil {
		return
	}
	m.inflight.Add(delta)
}
