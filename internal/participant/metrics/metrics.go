package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the participant registry. Transition
// counts feed the study dashboards; randomize duration tracks the external
// allocator's latency.
type Metrics struct {
	Transitions       *prometheus.CounterVec
	RandomizeDuration prometheus.Histogram
}

// New registers the participant module metrics.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trialgate_participant_transitions_total",
			Help: "Total participant lifecycle transitions by resulting status",
		}, []string{"status"}),
		RandomizeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "trialgate_randomize_duration_seconds",
			Help:    "Duration of randomize operations including the allocator call",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// ObserveTransition records one successful transition.
func (m *Metrics) ObserveTransition(status string) {
	m.Transitions.WithLabelValues(status).Inc()
}

// ObserveRandomize records the duration of a randomize operation.
func (m *Metrics) ObserveRandomize(start time.Time) {
	m.RandomizeDuration.Observe(time.Since(start).Seconds())
}
