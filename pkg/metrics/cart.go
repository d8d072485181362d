package metrics

import "github.com/prometheus/client_golang/prometheus"

// CartMetrics records cart persistence health.
type CartMetrics struct {
	persistenceFailures prometheus.Counter
	degraded            prometheus.Gauge
}

func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_persistence_failures_total",
		Help: "Failed attempts to persist or load the cart.",
	})
	degraded := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cart_persistence_degraded",
		Help: "1 while the cart runs in memory only.",
	})
	reg.MustRegister(failures, degraded)
	return &CartMetrics{persistenceFailures: failures, degraded: degraded}
}

func (m *CartMetrics) IncPersistenceFailure() {
	if m == nil || m.persistenceFailures == nil {
		return
	}
	m.persistenceFailures.Inc()
}

func (m *CartMetrics) SetDegraded(degraded bool) {
	if m == nil || m.degraded == nil {
		return
	}
	if degraded {
		m.degraded.Set(1)
		return
	}
	m.degraded.Set(0)
}
