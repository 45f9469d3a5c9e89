package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the escrow domain. A Registerer is
// taken explicitly so tests can use a private registry.
type Metrics struct {
	EscrowsCreated prometheus.Counter
	Transitions    *prometheus.CounterVec
	Rejections     *prometheus.CounterVec
	ApplyDuration  prometheus.Histogram
}

// New creates and registers all escrow metrics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EscrowsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "escrowd_escrows_created_total",
			Help: "Total number of escrows created",
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "escrowd_transitions_total",
			Help: "Total number of accepted state transitions",
		}, []string{"action", "to_state"}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "escrowd_rejections_total",
			Help: "Total number of rejected actions by rejection reason",
		}, []string{"reason"}),
		ApplyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "escrowd_apply_duration_seconds",
			Help:    "Latency of apply calls including persistence",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementEscrowsCreated() {
	m.EscrowsCreated.Inc()
}

func (m *Metrics) IncrementTransitions(action, toState string) {
	m.Transitions.WithLabelValues(action, toState).Inc()
}

func (m *Metrics) IncrementRejections(reason string) {
	m.Rejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveApplyDuration(seconds float64) {
	m.ApplyDuration.Observe(seconds)
}
