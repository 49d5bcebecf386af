package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by the counters below.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeIgnored   = "ignored"
)

// Metrics provides observability for the onboarding wizard.
// All methods are safe on a nil receiver so services can run without metrics.
type Metrics struct {
	StepSaves           *prometheus.CounterVec
	ReconcileFailures   prometheus.Counter
	ReconcileDropped    prometheus.Counter
	KYCUploads          prometheus.Counter
	KYCSkipped          prometheus.Counter
	FinalizeOutcomes    *prometheus.CounterVec
	OpenSessions        prometheus.Gauge
	BackendDuration     *prometheus.HistogramVec
	BackendCircuitState *prometheus.GaugeVec
}

// New registers the onboarding metrics with the default registerer.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the metrics with reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StepSaves: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_step_saves_total",
			Help: "Draft saves by step and outcome",
		}, []string{"step", "outcome"}),
		ReconcileFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "onboarding_reconcile_failures_total",
			Help: "Refetch-and-reconcile calls that failed",
		}),
		ReconcileDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "onboarding_reconcile_dropped_total",
			Help: "Refetch responses discarded because a newer one was already applied",
		}),
		KYCUploads: factory.NewCounter(prometheus.CounterOpts{
			Name: "onboarding_kyc_uploads_total",
			Help: "Batched KYC document uploads sent to the backend",
		}),
		KYCSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "onboarding_kyc_submissions_skipped_total",
			Help: "KYC submissions completed without an upload",
		}),
		FinalizeOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_finalize_total",
			Help: "Finalize attempts by outcome (completed, failed, ignored)",
		}, []string{"outcome"}),
		OpenSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "onboarding_open_sessions",
			Help: "Wizard sessions currently held in memory",
		}),
		BackendDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onboarding_backend_request_duration_seconds",
			Help:    "Latency of onboarding backend calls by endpoint and outcome",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint", "outcome"}),
		BackendCircuitState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "onboarding_backend_circuit_open",
			Help: "1 when the backend circuit breaker is open",
		}, []string{"name"}),
	}
}

func (m *Metrics) ObserveStepSave(step string, ok bool) {
	if m == nil {
		return
	}
	m.StepSaves.WithLabelValues(step, outcome(ok)).Inc()
}

func (m *Metrics) IncrementReconcileFailure() {
	if m == nil {
		return
	}
	m.ReconcileFailures.Inc()
}

func (m *Metrics) IncrementReconcileDropped() {
	if m == nil {
		return
	}
	m.ReconcileDropped.Inc()
}

func (m *Metrics) IncrementKYCUpload() {
	if m == nil {
		return
	}
	m.KYCUploads.Inc()
}

func (m *Metrics) IncrementKYCSkipped() {
	if m == nil {
		return
	}
	m.KYCSkipped.Inc()
}

// ObserveFinalize records one finalize attempt with OutcomeCompleted,
// OutcomeFailed or OutcomeIgnored.
func (m *Metrics) ObserveFinalize(result string) {
	if m == nil {
		return
	}
	m.FinalizeOutcomes.WithLabelValues(result).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.OpenSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.OpenSessions.Dec()
}

// ObserveBackendCall records the duration of a backend call.
// Call with time.Now() at the start of the call.
func (m *Metrics) ObserveBackendCall(endpoint string, start time.Time, ok bool) {
	if m == nil {
		return
	}
	m.BackendDuration.WithLabelValues(endpoint, outcome(ok)).Observe(time.Since(start).Seconds())
}

func (m *Metrics) SetCircuitOpen(name string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.BackendCircuitState.WithLabelValues(name).Set(v)
}

func outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
