package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the pipeline's instrumentation. A nil *Metrics disables
// it, so callers without a registry pass nothing.
type Metrics struct {
	sentences *prometheus.CounterVec
	readings  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		sentences: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "binnacle",
			Subsystem: "ingest",
			Name:      "sentences_total",
			Help:      "Sentences processed, by sentence type and outcome.",
		}, []string{"type", "result"}),
		readings: f.NewCounter(prometheus.CounterOpts{
			Namespace: "binnacle",
			Subsystem: "ingest",
			Name:      "readings_total",
			Help:      "Individual readings applied to the sensor cache.",
		}),
	}
}

func (m *Metrics) sentence(typ, result string) {
	if m == nil {
		return
	}
	m.sentences.WithLabelValues(typ, result).Inc()
}

func (m *Metrics) readingsApplied(n int) {
	if m == nil || n == 0 {
		return
	}
	m.readings.Add(float64(n))
}
