package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records checkout attempts and the order writes they issue.
type CheckoutMetrics struct {
	attempts *prometheus.CounterVec
	writes   *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_attempts_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome"})
	writes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_order_writes_total",
		Help: "Order row writes issued by checkout, by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(attempts, writes, duration)
	return &CheckoutMetrics{
		attempts: attempts,
		writes:   writes,
		duration: duration,
	}
}

// ObserveAttempt records one checkout attempt outcome and its duration.
func (m *CheckoutMetrics) ObserveAttempt(outcome string, duration time.Duration) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(normalizeLabel(outcome)).Inc()
	m.duration.Observe(duration.Seconds())
}

func (m *CheckoutMetrics) AddOrderWrites(outcome string, n int) {
	if m == nil || m.writes == nil || n <= 0 {
		return
	}
	m.writes.WithLabelValues(normalizeLabel(outcome)).Add(float64(n))
}
