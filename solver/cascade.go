// SPDX-License-Identifier: MIT

package solver

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
)

// DefaultCertifyTolerance is the scaled constraint violation above which an
// "optimal" answer is downgraded to NotOptimal.
const DefaultCertifyTolerance = 1e-6

// CascadeOption configures a Cascade.
type CascadeOption func(*Cascade)

// WithMetrics attaches counters to the cascade.
func WithMetrics(m *Metrics) CascadeOption {
	return func(c *Cascade) { c.metrics = m }
}

// WithCertifyTolerance overrides DefaultCertifyTolerance. Zero disables the check.
func WithCertifyTolerance(tol float64) CascadeOption {
	return func(c *Cascade) { c.certify = tol }
}

// Cascade tries a fixed list of backends in order until one reports an
// optimum. Each backend is tried exactly once per Solve.
type Cascade struct {
	backends []Backend
	metrics  *Metrics
	certify  float64
}

// NewCascade builds a cascade over backends in the given order.
func NewCascade(backends []Backend, opts ...CascadeOption) *Cascade {
	c := &Cascade{
		backends: append([]Backend(nil), backends...),
		certify:  DefaultCertifyTolerance,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backends returns the backend names in cascade order.
func (c *Cascade) Backends() []string {
	names := make([]string, len(c.backends))
	for i, b := range c.backends {
		names[i] = b.Name()
	}
	return names
}

// Solve runs the cascade. It never panics and never returns an error:
// failures are reported through Result.Status and Result.Attempts.
func (c *Cascade) Solve(ctx context.Context, m *Model) Result {
	log := logr.FromContextOrDiscard(ctx).WithValues("model", m.Name)
	res := Result{Status: StatusFailed}

	for _, b := range c.backends {
		sol, err := c.attempt(ctx, b, m)
		status := classify(sol, err, m.NumVars())
		if status == StatusOptimal && c.certify > 0 {
			if v := m.MaxViolation(sol.Values); v > c.certify {
				status = StatusNotOptimal
				err = fmt.Errorf("solver: %s answer violates constraints by %.3g", b.Name(), v)
			}
		}
		res.Attempts = append(res.Attempts, Attempt{Backend: b.Name(), Status: status, Err: err})
		c.metrics.observe(b.Name(), status)

		if status == StatusOptimal {
			res.Status = StatusOptimal
			res.Backend = b.Name()
			res.Values = sol.Values
			res.Objective = sol.Objective
			log.V(1).Info("cascade solved", "backend", b.Name(), "objective", sol.Objective, "iterations", sol.Iterations)
			return res
		}
		log.V(1).Info("backend did not reach an optimum", "backend", b.Name(), "status", status.String(), "error", errString(err))
	}

	c.metrics.failed()
	return res
}

func (c *Cascade) attempt(ctx context.Context, b Backend, m *Model) (sol Solution, err error) {
	defer func() {
		if r := recover(); r != nil {
			sol = Solution{Status: StatusSolverError}
			err = fmt.Errorf("solver: %s panicked: %v", b.Name(), r)
		}
	}()
	return b.Solve(ctx, m)
}

func classify(sol Solution, err error, nvars int) Status {
	switch {
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrUnsupported):
		return StatusUnavailable
	case err != nil:
		return StatusSolverError
	case sol.Status == StatusOptimal && len(sol.Values) != nvars:
		return StatusNotOptimal
	case sol.Status == StatusFailed:
		return StatusNotOptimal
	default:
		return sol.Status
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
