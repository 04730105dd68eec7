package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-level Prometheus metrics. Module-specific metrics
// live next to their modules (see internal/onboarding/metrics).
type Metrics struct {
	ApplicationsSubmitted prometheus.Counter
	Reapplications        prometheus.Counter
}

// New creates and registers process-level metrics.
func New() *Metrics {
	return &Metrics{
		ApplicationsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "onboarding_applications_submitted_total",
			Help: "Total number of KYC applications submitted",
		}),
		Reapplications: promauto.NewCounter(prometheus.CounterOpts{
			Name: "onboarding_reapplications_total",
			Help: "Total number of reapplications after rejection",
		}),
	}
}

// IncrementApplicationsSubmitted records a successful first submission.
func (m *Metrics) IncrementApplicationsSubmitted() {
	m.ApplicationsSubmitted.Inc()
}

// IncrementReapplications records a successful reapplication.
func (m *Metrics) IncrementReapplications() {
	m.Reapplications.Inc()
}
