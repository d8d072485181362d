package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeDiscarded = "discarded"
	OutcomePartial   = "partial"
	OutcomeRejected  = "rejected"
)

// RealtimeMetrics records subscription and refetch activity per catalog table.
type RealtimeMetrics struct {
	events          *prometheus.CounterVec
	refetches       *prometheus.CounterVec
	refetchDuration *prometheus.HistogramVec
	active          *prometheus.GaugeVec
}

// NewRealtimeMetrics registers the realtime metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewRealtimeMetrics(reg prometheus.Registerer) *RealtimeMetrics {
	if reg == nil {
		return &RealtimeMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_events_total",
		Help: "Change notifications delivered to mounted views.",
	}, []string{"table"})
	refetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_refetch_total",
		Help: "Table refetches triggered by mounts and change notifications.",
	}, []string{"table", "outcome"})
	refetchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "realtime_refetch_duration_seconds",
		Help:    "Duration of table refetches in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"table"})
	active := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "realtime_active_subscriptions",
		Help: "Live (table, view) subscriptions.",
	}, []string{"table"})
	reg.MustRegister(events, refetches, refetchDuration, active)
	return &RealtimeMetrics{
		events:          events,
		refetches:       refetches,
		refetchDuration: refetchDuration,
		active:          active,
	}
}

func (m *RealtimeMetrics) IncEvent(table string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(table)).Inc()
}

// ObserveRefetch records one refetch outcome and its duration.
func (m *RealtimeMetrics) ObserveRefetch(table, outcome string, duration time.Duration) {
	if m == nil || m.refetches == nil {
		return
	}
	table = normalizeLabel(table)
	m.refetches.WithLabelValues(table, normalizeLabel(outcome)).Inc()
	m.refetchDuration.WithLabelValues(table).Observe(duration.Seconds())
}

func (m *RealtimeMetrics) IncActive(table string) {
	if m == nil || m.active == nil {
		return
	}
	m.active.WithLabelValues(normalizeLabel(table)).Inc()
}

func (m *RealtimeMetrics) DecActive(table string) {
	if m == nil || m.active == nil {
		return
	}
	m.active.WithLabelValues(normalizeLabel(table)).Dec()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
