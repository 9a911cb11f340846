package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics counts payment handshake and commit outcomes.
type CheckoutMetrics struct {
	payments *prometheus.CounterVec
	commits  *prometheus.CounterVec
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_payment_begin_total",
		Help: "Checkout payment handshakes by outcome.",
	}, []string{"outcome"})
	commits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_commit_total",
		Help: "Capture confirmations by outcome (committed, duplicate, or a failure reason).",
	}, []string{"outcome"})
	reg.MustRegister(payments, commits)
	return &CheckoutMetrics{payments: payments, commits: commits}
}

func (m *CheckoutMetrics) IncPayment(outcome string) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *CheckoutMetrics) IncCommit(outcome string) {
	if m == nil || m.commits == nil {
		return
	}
	m.commits.WithLabelValues(normalizeLabel(outcome)).Inc()
}
