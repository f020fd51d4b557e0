// SPDX-License-Identifier: MIT

package market

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMetrics attaches clearing metrics.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// warmState is the primal point and bound multipliers of the last solve.
type warmState struct {
	x map[pairKey]float64
	z map[pairKey]float64
}

// Engine is the persistent market-clearing instance of one run. It is safe
// for concurrent use; clears are serialized.
type Engine struct {
	mu      sync.Mutex
	dist    DistanceSource
	opts    Options
	metrics *Metrics

	model *model
	warm  *warmState
	// last holds the most recent successfully cleared volumes.
	last map[pairKey]float64
}

// NewEngine validates opts and returns an engine with no model yet; the
// first Clear builds it.
func NewEngine(dist DistanceSource, opts Options, eopts ...EngineOption) (*Engine, error) {
	if dist == nil {
		return nil, fmt.Errorf("%w: nil distance source", ErrBadOptions)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{dist: dist, opts: opts}
	for _, opt := range eopts {
		opt(e)
	}
	return e, nil
}

// Options returns the engine options.
func (e *Engine) Options() Options { return e.opts }

// Pairs returns the number of eligible pairs of the current model.
func (e *Engine) Pairs() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return 0
	}
	return len(e.model.pairs)
}

// Reset drops the warm-start state; the next Clear starts cold.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.warm = nil
}

// Clear clears the market for one period. It never fails: solver trouble
// and invalid input are reported through Outcome.Status and Outcome.Err.
func (e *Engine) Clear(ctx context.Context, p Period) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	log := logr.FromContextOrDiscard(ctx).WithValues("date", p.Date.String())

	if err := p.validate(); err != nil {
		log.Error(err, "market input rejected, keeping previous results")
		out := Outcome{Status: StatusRejected, Err: err}
		if e.model != nil {
			out = e.model.disaggregate(e.lastVolumes(), e.opts)
			out.Status, out.Err = StatusRejected, err
		}
		out.Date = p.Date
		e.metrics.observe(out)
		return out
	}

	sig := signature(p)
	if e.model == nil || e.model.sig != sig {
		if e.model != nil {
			log.Info("market structure changed, rebuilding model")
		}
		e.model = buildModel(p, e.dist, e.opts)
		log.V(1).Info("market model built", "buyers", len(p.Buyers), "sellers", len(p.Sellers), "pairs", len(e.model.pairs))
	}
	e.model.update(p, e.opts)

	status := StatusSolved
	warm := e.warm != nil
	sol, err := e.solve(ctx, warm)
	if err != nil && warm && !errors.Is(err, context.Canceled) {
		log.Info("warm market solve failed, retrying cold", "err", err.Error())
		e.warm = nil
		warm = false
		status = StatusSolvedCold
		sol, err = e.solve(ctx, false)
	}

	var out Outcome
	if err != nil {
		log.Error(err, "market clearing failed, keeping previous results")
		e.warm = nil
		out = e.model.disaggregate(e.lastVolumes(), e.opts)
		out.Status, out.Err = StatusKeptPrevious, err
	} else {
		e.remember(sol)
		out = e.model.disaggregate(sol.X, e.opts)
		out.Status = status
		out.Warm = warm
		out.Iterations = sol.Iterations
		out.Welfare = sol.Welfare
		for f, s := range e.model.sellers {
			r := out.Sellers[s.ID]
			r.Shadow = sol.Lambda[f]
			out.Sellers[s.ID] = r
		}
		log.V(1).Info("market cleared", "status", status.String(), "warm", warm,
			"iterations", sol.Iterations, "volume", out.Volume, "welfare", sol.Welfare)
	}
	out.Date = p.Date
	e.metrics.observe(out)
	return out
}

func (e *Engine) solve(ctx context.Context, warm bool) (*solution, error) {
	b := newBarrier(e.model)
	if !warm {
		return b.solve(ctx, nil, nil, e.opts.Cold, e.opts)
	}
	start := make([]float64, len(e.model.pairs))
	z := make([]float64, len(e.model.pairs))
	for i, pr := range e.model.pairs {
		start[i] = e.warm.x[pr.key]
		z[i] = e.warm.z[pr.key]
	}
	return b.solve(ctx, start, z, e.opts.Warm, e.opts)
}

func (e *Engine) remember(sol *solution) {
	e.warm = &warmState{
		x: make(map[pairKey]float64, len(e.model.pairs)),
		z: make(map[pairKey]float64, len(e.model.pairs)),
	}
	e.last = make(map[pairKey]float64, len(e.model.pairs))
	for i, pr := range e.model.pairs {
		e.warm.x[pr.key] = sol.X[i]
		e.warm.z[pr.key] = sol.Z[i]
		e.last[pr.key] = sol.X[i]
	}
}

// lastVolumes maps the last cleared volumes onto the current pairs; pairs
// never cleared read as zero.
func (e *Engine) lastVolumes() []float64 {
	x := make([]float64, len(e.model.pairs))
	for i, pr := range e.model.pairs {
		x[i] = e.last[pr.key]
	}
	return x
}
