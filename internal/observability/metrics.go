package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the Prometheus instruments of the pipeline. A nil *Metrics
// records nothing.
type Metrics struct {
	Interactions      *prometheus.CounterVec
	Syntheses         *prometheus.CounterVec
	SynthesisDuration prometheus.Histogram
	Deliveries        *prometheus.CounterVec
}

// NewMetrics registers the instruments on reg. A fresh registry per process
// (or per test) keeps registration from colliding.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Interactions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interactions_total",
			Help:      "Inbound interactions by result.",
		}, []string{"result"}),
		Syntheses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "syntheses_total",
			Help:      "Synthesis attempts by outcome.",
		}, []string{"outcome"}),
		SynthesisDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_duration_seconds",
			Help:      "Wall time of one synthesis including storage and patch.",
			Buckets:   []float64{1, 2, 5, 10, 15, 20, 25, 30},
		}),
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Follow-up messages by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
}

func (m *Metrics) ObserveInteraction(result string) {
	if m == nil {
		return
	}
	m.Interactions.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSynthesis(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Syntheses.WithLabelValues(outcome).Inc()
	m.SynthesisDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveDelivery(kind, outcome string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(kind, outcome).Inc()
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
