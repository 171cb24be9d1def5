package sensors

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the cache. A nil *Metrics disables
// instrumentation.
type Metrics struct {
	updates       prometheus.Counter
	rangeRejects  prometheus.Counter
	expiredTotal  prometheus.Counter
	instanceGauge prometheus.Gauge
}

// NewMetrics registers the cache collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		updates: f.NewCounter(prometheus.CounterOpts{
			Namespace: "binnacle",
			Subsystem: "cache",
			Name:      "updates_total",
			Help:      "Metric values accepted into the cache.",
		}),
		rangeRejects: f.NewCounter(prometheus.CounterOpts{
			Namespace: "binnacle",
			Subsystem: "cache",
			Name:      "range_rejected_total",
			Help:      "Readings rejected because the converted value was out of range.",
		}),
		expiredTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "binnacle",
			Subsystem: "cache",
			Name:      "expired_instances_total",
			Help:      "Sensor instances removed by TTL expiry.",
		}),
		instanceGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "binnacle",
			Subsystem: "cache",
			Name:      "instances",
			Help:      "Sensor instances currently live.",
		}),
	}
}

func (m *Metrics) updated() {
	if m == nil {
		return
	}
	m.updates.Inc()
}

func (m *Metrics) rangeRejected() {
	if m == nil {
		return
	}
	m.rangeRejects.Inc()
}

func (m *Metrics) expired(n int) {
	if m == nil {
		return
	}
	m.expiredTotal.Add(float64(n))
}

func (m *Metrics) instanceCount(n int) {
	if m == nil {
		return
	}
	m.instanceGauge.Set(float64(n))
}
