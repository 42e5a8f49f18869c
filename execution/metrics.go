package execution

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for executions and side effects.
type Metrics struct {
	executions         *prometheus.CounterVec
	sideEffectFailures *prometheus.CounterVec
	partialFailures    prometheus.Counter
	drift              prometheus.Counter
	duration           prometheus.Histogram
	reconciled         *prometheus.CounterVec
}

// MustNewMetrics registers the collectors with reg. A nil reg uses the
// default registerer. Registration errors panic, like promauto.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "revurdering",
			Name:      "executions_total",
			Help:      "Execution attempts by result.",
		}, []string{"result"}),
		sideEffectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "revurdering",
			Name:      "side_effect_failures_total",
			Help:      "Post-commit side effect failures by step.",
		}, []string{"step"}),
		partialFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "revurdering",
			Name:      "partial_execution_failures_total",
			Help:      "Executions where the ledger succeeded but the local commit did not.",
		}),
		drift: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "revurdering",
			Name:      "simulation_drift_total",
			Help:      "Executions refused because the approved simulation went stale.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "revurdering",
			Name:      "execution_duration_seconds",
			Help:      "Time from execution request to commit.",
			Buckets:   prometheus.DefBuckets,
		}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "revurdering",
			Name:      "reconciled_side_effects_total",
			Help:      "Side effect steps completed by the reconciliation sweep.",
		}, []string{"step"}),
	}
	reg.MustRegister(m.executions, m.sideEffectFailures, m.partialFailures, m.drift, m.duration, m.reconciled)
	return m
}

func (m *Metrics) observeExecution(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(result).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) incSideEffectFailure(step string) {
	if m == nil {
		return
	}
	m.sideEffectFailures.WithLabelValues(step).Inc()
}

func (m *Metrics) incPartialFailure() {
	if m == nil {
		return
	}
	m.partialFailures.Inc()
}

func (m *Metrics) incDrift() {
	if m == nil {
		return
	}
	m.drift.Inc()
}

func (m *Metrics) incReconciled(step string) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues(step).Inc()
}
