// Package metrics provides observability for the verification pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the verification pipeline metrics. A nil *Metrics is
// valid and records nothing, so tests can skip registration.
type Metrics struct {
	// Step latencies by pipeline step name
	StepLatency *prometheus.HistogramVec

	// Verdicts by outcome and reason
	Verdicts *prometheus.CounterVec

	// Full pipeline latency per submission
	PipelineLatency prometheus.Histogram

	// Revocation outcomes by method (cached, live_fallback, discovered, unknown)
	RevocationMethod *prometheus.CounterVec

	// Submissions requeued after a system fault
	Requeues prometheus.Counter
}

// New creates and registers all verification metrics.
func New() *Metrics {
	return &Metrics{
		StepLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "peticao_verification_step_duration_seconds",
			Help:    "Duration of individual verification pipeline steps",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"step"}),

		Verdicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "peticao_verification_verdicts_total",
			Help: "Verification verdicts by outcome and reason",
		}, []string{"verdict", "reason"}),

		PipelineLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "peticao_verification_pipeline_duration_seconds",
			Help:    "Duration of the full verification pipeline per submission",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		RevocationMethod: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "peticao_revocation_checks_total",
			Help: "Revocation checks by resolution method",
		}, []string{"method"}),

		Requeues: promauto.NewCounter(prometheus.CounterOpts{
			Name: "peticao_verification_requeues_total",
			Help: "Submissions returned to the queue after a system fault",
		}),
	}
}

// ObserveStep records the duration of one pipeline step.
func (m *Metrics) ObserveStep(step string, d time.Duration) {
	if m != nil {
		m.StepLatency.WithLabelValues(step).Observe(d.Seconds())
	}
}

// IncrementVerdict records a pipeline verdict.
func (m *Metrics) IncrementVerdict(verdict, reason string) {
	if m != nil {
		m.Verdicts.WithLabelValues(verdict, reason).Inc()
	}
}

// ObservePipeline records the total pipeline duration.
func (m *Metrics) ObservePipeline(d time.Duration) {
	if m != nil {
		m.PipelineLatency.Observe(d.Seconds())
	}
}

// IncrementRevocationMethod records which tier resolved a revocation check.
func (m *Metrics) IncrementRevocationMethod(method string) {
	if m != nil {
		m.RevocationMethod.WithLabelValues(method).Inc()
	}
}

// IncrementRequeues records a fault-driven requeue.
func (m *Metrics) IncrementRequeues() {
	if m != nil {
		m.Requeues.Inc()
	}
}
