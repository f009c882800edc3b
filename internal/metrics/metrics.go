package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	DocumentsCreated  *prometheus.CounterVec
	DocumentsRenewed  *prometheus.CounterVec
	RenewalsRejected  *prometheus.CounterVec
	PaymentsSettled   prometheus.Counter
	ExpiringDocuments prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		DocumentsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_documents_created_total",
			Help: "Total number of compliance documents created",
		}, []string{"document_type"}),
		DocumentsRenewed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_documents_renewed_total",
			Help: "Total number of successful document renewals",
		}, []string{"document_type"}),
		RenewalsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_renewals_rejected_total",
			Help: "Total number of rejected renewal attempts",
		}, []string{"reason"}),
		PaymentsSettled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "compliance_payments_settled_total",
			Help: "Total number of documents settled via mark-as-paid",
		}),
		ExpiringDocuments: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "compliance_documents_expiring",
			Help: "Documents currently expiring soon or expired, from the last reminder scan",
		}),
	}
}

func (m *Metrics) IncrementCreated(docType string) {
	m.DocumentsCreated.WithLabelValues(docType).Inc()
}

func (m *Metrics) IncrementRenewed(docType string) {
	m.DocumentsRenewed.WithLabelValues(docType).Inc()
}

func (m *Metrics) IncrementRenewalRejected(reason string) {
	m.RenewalsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementPaymentsSettled() {
	m.PaymentsSettled.Inc()
}

func (m *Metrics) SetExpiringDocuments(count int) {
	m.ExpiringDocuments.Set(float64(count))
}
