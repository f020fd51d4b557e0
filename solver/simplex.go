// SPDX-License-Identifier: MIT

package solver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// Simplex defaults.
const (
	// DefaultSimplexTolerance bounds the reduced costs at termination.
	DefaultSimplexTolerance = 1e-10
	// DefaultSimplexTimeLimit bounds one Solve. gonum's simplex does not
	// observe a context, so the limit is enforced around it.
	DefaultSimplexTimeLimit = 30 * time.Second
)

// SimplexOption configures a Simplex backend.
type SimplexOption func(*Simplex)

// WithSimplexTolerance overrides the reduced-cost tolerance.
func WithSimplexTolerance(tol float64) SimplexOption {
	return func(s *Simplex) { s.tol = tol }
}

// WithSimplexTimeLimit overrides DefaultSimplexTimeLimit. Zero leaves only
// the caller's context deadline.
func WithSimplexTimeLimit(d time.Duration) SimplexOption {
	return func(s *Simplex) { s.limit = d }
}

// Simplex solves LPs with gonum's dense simplex. Quadratic models are
// rejected with ErrUnsupported. A solve that outlives its time limit or the
// context deadline reports StatusSolverError; the abandoned pivoting
// goroutine finishes in the background.
type Simplex struct {
	tol   float64
	limit time.Duration
}

// NewSimplex returns a simplex backend.
func NewSimplex(opts ...SimplexOption) *Simplex {
	s := &Simplex{tol: DefaultSimplexTolerance, limit: DefaultSimplexTimeLimit}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Backend.
func (s *Simplex) Name() string { return "simplex" }

// Solve implements Backend.
func (s *Simplex) Solve(ctx context.Context, m *Model) (Solution, error) {
	if err := ctx.Err(); err != nil {
		return Solution{}, err
	}
	if m.IsQuadratic() {
		return Solution{Status: StatusUnavailable}, fmt.Errorf("simplex: model %q has a quadratic objective: %w", m.Name, ErrUnsupported)
	}
	sf, err := toStandard(m, true)
	if errors.Is(err, errTrivialInfeasible) {
		return Solution{Status: StatusInfeasible}, nil
	}
	if err != nil {
		return Solution{}, err
	}

	// gonum rejects all-zero columns; such columns sit at zero unless their
	// cost makes the problem unbounded.
	keep := make([]int, 0, sf.numCols())
	for j, col := range sf.cols {
		if len(col) > 0 {
			keep = append(keep, j)
			continue
		}
		if sf.c[j] < 0 {
			return Solution{Status: StatusNotOptimal}, nil
		}
	}

	z := make([]float64, sf.numCols())
	if rows := sf.numRows(); rows > 0 {
		pos := make(map[int]int, len(keep))
		c := make([]float64, len(keep))
		for k, j := range keep {
			pos[j] = k
			c[k] = sf.c[j]
		}
		a := mat.NewDense(rows, len(keep), nil)
		for k, j := range keep {
			for _, e := range sf.cols[j] {
				a.Set(e.row, k, a.At(e.row, k)+e.val)
			}
		}

		// every row owns a +1 slack, so the slacks form a feasible basis
		// whenever b ≥ 0 and Phase I can be skipped.
		var basic []int
		feasible := true
		for i, bi := range sf.b {
			if bi < 0 || sf.slack[i] < 0 {
				feasible = false
				break
			}
		}
		if feasible {
			basic = make([]int, rows)
			for i := range basic {
				basic[i] = pos[sf.slack[i]]
			}
		}

		x, err := s.pivot(ctx, c, a, append([]float64(nil), sf.b...), basic)
		switch {
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			return Solution{Status: StatusSolverError}, fmt.Errorf("simplex: model %q: %w", m.Name, err)
		case errors.Is(err, lp.ErrInfeasible):
			return Solution{Status: StatusInfeasible}, nil
		case errors.Is(err, lp.ErrUnbounded):
			return Solution{Status: StatusNotOptimal}, nil
		case err != nil:
			return Solution{Status: StatusSolverError}, fmt.Errorf("simplex: %v: %w", err, ErrNumerical)
		}
		for k, j := range keep {
			z[j] = x[k]
		}
	}

	sol := Solution{Status: StatusOptimal, Values: sf.recover(z)}
	sol.Objective = m.Objective(sol.Values)
	logr.FromContextOrDiscard(ctx).V(2).Info("simplex finished", "model", m.Name, "rows", sf.numRows(), "cols", len(keep))

	return sol, nil
}

type simplexResult struct {
	x   []float64
	err error
}

// pivot runs lp.Simplex under the time limit.
func (s *Simplex) pivot(ctx context.Context, c []float64, a *mat.Dense, b []float64, basic []int) ([]float64, error) {
	if s.limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.limit)
		defer cancel()
	}
	done := make(chan simplexResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- simplexResult{err: fmt.Errorf("simplex panicked: %v", r)}
			}
		}()
		_, x, err := lp.Simplex(c, a, b, s.tol, basic)
		done <- simplexResult{x: x, err: err}
	}()

	select {
	case r := <-done:
		return r.x, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
