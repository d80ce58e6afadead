package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors recorded by the workflow engine. A nil
// *Metrics is valid and records nothing
type Metrics struct {
	executions   *prometheus.CounterVec
	stepAttempts *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	gateDenials  *prometheus.CounterVec
	lockDenials  *prometheus.CounterVec
	active       prometheus.Gauge
}

const namespace = "workshop"

// Outcome labels for step attempts
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
	OutcomePanic   = "panic"
)

// NewMetrics creates the engine collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_total",
				Help:      "Finished workflow executions by workflow and status.",
			},
			[]string{"workflow", "status"},
		),
		stepAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "step_attempts_total",
				Help:      "Provider dispatches by action and outcome.",
			},
			[]string{"action", "outcome"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_attempt_duration_seconds",
				Help:      "Provider dispatch latency by action.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"action"},
		),
		gateDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gate_denials_total",
				Help:      "Executions blocked by a policy gate.",
			},
			[]string{"gate"},
		),
		lockDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lock_denials_total",
				Help:      "Executions rejected because the device was locked.",
			},
			[]string{"workflow"},
		),
		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_executions",
				Help:      "Executions currently holding a device lock.",
			},
		),
	}

	for _, c := range []prometheus.Collector{
		m.executions, m.stepAttempts, m.stepDuration,
		m.gateDenials, m.lockDenials, m.active,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ExecutionStarted counts an execution that acquired its lock
func (m *Metrics) ExecutionStarted() {
	if m == nil {
		return
	}
	m.active.Inc()
}

// ExecutionFinished records the terminal status of a running execution
func (m *Metrics) ExecutionFinished(workflow, status string) {
	if m == nil {
		return
	}
	m.active.Dec()
	m.executions.WithLabelValues(workflow, status).Inc()
}

// ExecutionRejected records an execution that ended before running steps
func (m *Metrics) ExecutionRejected(workflow, status string) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(workflow, status).Inc()
}

// StepAttempt records one provider dispatch
func (m *Metrics) StepAttempt(action, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.stepAttempts.WithLabelValues(action, outcome).Inc()
	m.stepDuration.WithLabelValues(action).Observe(dur.Seconds())
}

// GateDenied counts a blocking gate
func (m *Metrics) GateDenied(gate string) {
	if m == nil {
		return
	}
	m.gateDenials.WithLabelValues(gate).Inc()
}

// LockDenied counts an execution refused by the device lock
func (m *Metrics) LockDenied(workflow string) {
	if m == nil {
		return
	}
	m.lockDenials.WithLabelValues(workflow).Inc()
}
