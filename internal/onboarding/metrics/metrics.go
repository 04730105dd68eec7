// Package metrics exposes Prometheus metrics for decision orchestration.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks decision outcomes and provisioning health.
type Metrics struct {
	decisions            *prometheus.CounterVec
	provisioningFailures *prometheus.CounterVec
	decisionDuration     *prometheus.HistogramVec
}

// New creates and registers orchestrator metrics.
func New() *Metrics {
	return &Metrics{
		decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_decisions_total",
			Help: "Decision outcomes by result (approved, rejected, failed, invalid_state)",
		}, []string{"result"}),
		provisioningFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_provisioning_failures_total",
			Help: "Approval provisioning failures by stage",
		}, []string{"stage"}),
		decisionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onboarding_decision_duration_seconds",
			Help:    "End-to-end decision processing duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"decision"}),
	}
}

func (m *Metrics) RecordDecision(result string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordProvisioningFailure(stage string) {
	if m == nil {
		return
	}
	m.provisioningFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveDecisionDuration(decision string, seconds float64) {
	if m == nil {
		return
	}
	m.decisionDuration.WithLabelValues(decision).Observe(seconds)
}
