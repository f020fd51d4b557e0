// SPDX-License-Identifier: MIT

package solver

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the cascade counters.
type Metrics struct {
	attempts *prometheus.CounterVec
	failures prometheus.Counter
}

// NewMetrics creates the cascade counters and registers them on reg. A nil
// registerer leaves them unregistered. Collectors already present on reg
// are reused, so several cascades may share one registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "basinflow",
			Subsystem: "solver",
			Name:      "attempts_total",
			Help:      "Backend attempts by backend and outcome status.",
		}, []string{"backend", "status"}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "basinflow",
			Subsystem: "solver",
			Name:      "cascade_failures_total",
			Help:      "Cascade runs in which no backend reached an optimum.",
		}),
	}
	if reg == nil {
		return m
	}
	if err := reg.Register(m.attempts); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				m.attempts = existing
			}
		}
	}
	if err := reg.Register(m.failures); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				m.failures = existing
			}
		}
	}
	return m
}

func (m *Metrics) observe(backend string, s Status) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(backend, s.String()).Inc()
}

func (m *Metrics) failed() {
	if m == nil {
		return
	}
	m.failures.Inc()
}
