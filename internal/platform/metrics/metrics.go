package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the registry.
type Metrics struct {
	ApplicationsSubmitted prometheus.Counter
	StatusTransitions     *prometheus.CounterVec
	EvidenceVerified      *prometheus.CounterVec
	AuditEntriesWritten   prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ApplicationsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certreg_applications_submitted_total",
			Help: "Total number of certification applications submitted",
		}),
		StatusTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certreg_status_transitions_total",
			Help: "Total number of application status transitions, by target status",
		}, []string{"to"}),
		EvidenceVerified: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certreg_evidence_verified_total",
			Help: "Total number of evidence items verified, by kind",
		}, []string{"kind"}),
		AuditEntriesWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certreg_audit_entries_total",
			Help: "Total number of audit trail entries written",
		}),
	}
}

// IncrementSubmitted increments the submitted-applications counter by 1.
func (m *Metrics) IncrementSubmitted() {
	m.ApplicationsSubmitted.Inc()
}

// IncrementTransition counts one transition into the given status.
func (m *Metrics) IncrementTransition(to string) {
	m.StatusTransitions.WithLabelValues(to).Inc()
}

// IncrementVerified counts one verified evidence item of the given kind.
func (m *Metrics) IncrementVerified(kind string) {
	m.EvidenceVerified.WithLabelValues(kind).Inc()
}

// IncrementAuditEntries increments the audit-entries counter by 1.
func (m *Metrics) IncrementAuditEntries() {
	m.AuditEntriesWritten.Inc()
}
