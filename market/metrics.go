// SPDX-License-Identifier: MIT

package market

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the clearing counters.
type Metrics struct {
	clears *prometheus.CounterVec
	volume prometheus.Gauge
	steps  prometheus.Histogram
}

// NewMetrics creates the market collectors and registers them on reg; a
// nil registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		clears: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "basinflow",
			Subsystem: "market",
			Name:      "clears_total",
			Help:      "Market clearings by outcome status.",
		}, []string{"status"}),
		volume: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "basinflow",
			Subsystem: "market",
			Name:      "traded_volume",
			Help:      "Total volume traded in the last clearing.",
		}),
		steps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "basinflow",
			Subsystem: "market",
			Name:      "newton_steps",
			Help:      "Newton steps per successful clearing.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
	if reg == nil {
		return m
	}
	for _, c := range []prometheus.Collector{m.clears, m.volume, m.steps} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				continue
			}
			switch existing := are.ExistingCollector.(type) {
			case *prometheus.CounterVec:
				m.clears = existing
			case prometheus.Histogram:
				m.steps = existing
			case prometheus.Gauge:
				m.volume = existing
			}
		}
	}
	return m
}

func (m *Metrics) observe(out Outcome) {
	if m == nil {
		return
	}
	m.clears.WithLabelValues(out.Status.String()).Inc()
	m.volume.Set(out.Volume)
	if out.Status.Solved() {
		m.steps.Observe(float64(out.Iterations))
	}
}
