// SPDX-License-Identifier: MIT

package market

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// fraction of the distance to the nearest bound a step may cover.
const stepFraction = 0.99

// solution is one converged barrier solve over the full pair list.
type solution struct {
	X []float64
	// Z holds bound multipliers μ/x per pair, 0 for fixed pairs.
	Z []float64
	// Lambda holds row multipliers μ/s per model row, 0 for dropped rows.
	Lambda     []float64
	Welfare    float64
	Iterations int
}

// barrier is the log-barrier subproblem over the free pairs of a model:
//
//	min −Σ_h u_h·g_h(q_h) + Σ c·x − μ Σ ln x − μ Σ_r ln(rhs_r − Σ_{k∈r} x_k)
//
// A pair is fixed at zero when its buyer is inactive or one of its rows
// has no room.
type barrier struct {
	m     *model
	free  []int
	rows  [][]int
	rowID []int
	rhs   []float64
	// vars lists the local variables of each buyer.
	vars [][]int
}

func newBarrier(m *model) *barrier {
	closed := make([]bool, len(m.pairs))
	for _, r := range m.rows {
		if r.rhs <= 0 {
			for _, i := range r.pairs {
				closed[i] = true
			}
		}
	}
	b := &barrier{m: m, vars: make([][]int, len(m.buyers))}
	local := make([]int, len(m.pairs))
	for i, pr := range m.pairs {
		local[i] = -1
		if closed[i] || !m.buyers[pr.buyer].Active() {
			continue
		}
		local[i] = len(b.free)
		b.vars[pr.buyer] = append(b.vars[pr.buyer], len(b.free))
		b.free = append(b.free, i)
	}
	for ri, r := range m.rows {
		var row []int
		for _, i := range r.pairs {
			if local[i] >= 0 {
				row = append(row, local[i])
			}
		}
		if len(row) == 0 {
			continue
		}
		b.rows = append(b.rows, row)
		b.rowID = append(b.rowID, ri)
		b.rhs = append(b.rhs, r.rhs)
	}
	return b
}

func (b *barrier) quantity(x []float64, h int) float64 {
	buyer := b.m.buyers[h]
	var sum float64
	for _, k := range b.vars[h] {
		sum += x[k]
	}
	return sum/buyer.Units + buyer.PipedPerUnit
}

// objective is the negated welfare without its constant part.
func (b *barrier) objective(x []float64) float64 {
	var v float64
	for h, ks := range b.vars {
		if len(ks) == 0 {
			continue
		}
		buyer := b.m.buyers[h]
		v -= buyer.Units * surplus(buyer.Sigma, buyer.Sigma2, b.quantity(x, h))
	}
	for k, i := range b.free {
		v += b.m.pairs[i].price * x[k]
	}
	return v
}

func (b *barrier) slacks(x []float64) []float64 {
	s := make([]float64, len(b.rows))
	for r, row := range b.rows {
		s[r] = b.rhs[r]
		for _, k := range row {
			s[r] -= x[k]
		}
	}
	return s
}

// phi is the barrier function; false outside the open domain.
func (b *barrier) phi(x []float64, mu float64) (float64, bool) {
	v := b.objective(x)
	for _, xk := range x {
		if xk <= 0 {
			return 0, false
		}
		v -= mu * math.Log(xk)
	}
	for _, sr := range b.slacks(x) {
		if sr <= 0 {
			return 0, false
		}
		v -= mu * math.Log(sr)
	}
	return v, true
}

func (b *barrier) gradHess(x, s []float64, mu float64) ([]float64, *mat.SymDense) {
	n := len(x)
	g := make([]float64, n)
	h := mat.NewSymDense(n, nil)
	for hi, ks := range b.vars {
		if len(ks) == 0 {
			continue
		}
		buyer := b.m.buyers[hi]
		q := b.quantity(x, hi)
		marginal := buyer.Sigma*math.Log(q) + buyer.Sigma2
		curv := -buyer.Sigma / (q * buyer.Units)
		for a, i := range ks {
			g[i] -= marginal
			for _, j := range ks[a:] {
				h.SetSym(i, j, h.At(i, j)+curv)
			}
		}
	}
	for k, i := range b.free {
		g[k] += b.m.pairs[i].price - mu/x[k]
		h.SetSym(k, k, h.At(k, k)+mu/(x[k]*x[k]))
	}
	for r, row := range b.rows {
		w := mu / (s[r] * s[r])
		for a, i := range row {
			g[i] += mu / s[r]
			for _, j := range row[a:] {
				h.SetSym(i, j, h.At(i, j)+w)
			}
		}
	}
	return g, h
}

func (b *barrier) maxStep(x, s, d []float64) float64 {
	alpha := 1.0
	for k, dk := range d {
		if dk < 0 {
			alpha = math.Min(alpha, -stepFraction*x[k]/dk)
		}
	}
	for r, row := range b.rows {
		var ds float64
		for _, k := range row {
			ds -= d[k]
		}
		if ds < 0 {
			alpha = math.Min(alpha, -stepFraction*s[r]/ds)
		}
	}
	return alpha
}

// interior lifts x to at least push·max(1, ·) from zero and scales every
// row so that it keeps a relative slack of push.
func (b *barrier) interior(x []float64, push float64) {
	for k := range x {
		x[k] = math.Max(x[k], push)
	}
	for r, row := range b.rows {
		var sum float64
		for _, k := range row {
			sum += x[k]
		}
		if limit := b.rhs[r] * (1 - push); sum > limit {
			scale := limit / sum
			for _, k := range row {
				x[k] *= scale
			}
		}
	}
}

// solve runs the path-following barrier method from start (full pair
// volumes; a nil start is the origin). When bound multipliers z are given,
// each pair starts no closer to zero than the barrier-consistent μ/z.
func (b *barrier) solve(ctx context.Context, start, z []float64, cfg StartConfig, o Options) (*solution, error) {
	log := logr.FromContextOrDiscard(ctx)
	m := b.m
	n := len(b.free)
	x := make([]float64, n)
	for k, i := range b.free {
		if start != nil {
			x[k] = start[i]
			if z != nil && z[i] > 0 {
				x[k] = math.Max(x[k], cfg.MuInit/z[i])
			}
		}
	}
	b.interior(x, cfg.BoundPush)

	mu := cfg.MuInit
	terms := float64(n + len(b.rows))
	iters := 0
	for n > 0 {
		if err := b.center(ctx, x, mu, o, &iters); err != nil {
			return nil, err
		}
		if mu*terms <= o.Tol*(1+math.Abs(b.objective(x))) {
			break
		}
		mu *= o.MuFactor
	}

	sol := &solution{
		X:          make([]float64, len(m.pairs)),
		Z:          make([]float64, len(m.pairs)),
		Lambda:     make([]float64, len(m.rows)),
		Iterations: iters,
	}
	for k, i := range b.free {
		sol.X[i] = x[k]
		sol.Z[i] = mu / x[k]
	}
	for r, sr := range b.slacks(x) {
		sol.Lambda[b.rowID[r]] = mu / sr
	}
	sol.Welfare = m.welfare(sol.X)
	log.V(2).Info("market barrier converged", "pairs", n, "rows", len(b.rows), "iterations", iters, "mu", mu)
	return sol, nil
}

// center takes damped Newton steps on phi at fixed mu until the Newton
// decrement is at most CenterTol·mu. Far from the center the step is
// damped by 1/(1+λ) and backtracked; close to it the full step is taken,
// shortened only to stay inside the domain. A line search that cannot move
// is an error.
func (b *barrier) center(ctx context.Context, x []float64, mu float64, o Options, iters *int) error {
	n := len(x)
	xt := make([]float64, n)
	for {
		if *iters >= o.MaxIter {
			return fmt.Errorf("%w after %d Newton steps (mu=%g)", ErrNotConverged, *iters, mu)
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("market: %w", err)
		}
		*iters++

		s := b.slacks(x)
		g, h := b.gradHess(x, s, mu)
		d, err := newtonStep(h, g)
		if err != nil {
			return err
		}
		dec := -floats.Dot(g, d)
		phi0, _ := b.phi(x, mu)
		if math.IsNaN(dec) || math.IsNaN(phi0) {
			return fmt.Errorf("%w: NaN in Newton step", ErrNotConverged)
		}

		alpha := b.maxStep(x, s, d)
		if dec <= o.CenterTol*mu {
			if alpha >= 1 {
				floats.Add(x, d)
			}
			return nil
		}

		lambda := math.Sqrt(math.Max(dec, 0) / mu)
		damped := lambda >= 0.25
		if damped {
			alpha = math.Min(alpha, 1/(1+lambda))
		}
		// decreases below this are lost in rounding
		noise := 1e-13 * (1 + math.Abs(phi0))
		accepted := false
		for alpha > 1e-14 {
			copy(xt, x)
			floats.AddScaled(xt, alpha, d)
			v, ok := b.phi(xt, mu)
			if ok && (!damped || v <= phi0-0.25*alpha*dec || (0.25*alpha*dec <= noise && v <= phi0+noise)) {
				accepted = true
				break
			}
			alpha /= 2
		}
		if !accepted {
			return fmt.Errorf("%w: line search stalled (decrement %g, mu %g)", ErrNotConverged, dec, mu)
		}
		copy(x, xt)
	}
}

// newtonStep solves H·d = −g by Cholesky. A Hessian that is singular to
// working precision, as happens when a buyer buys from several sellers and
// the barrier terms are tiny, gets a growing diagonal shift.
func newtonStep(h *mat.SymDense, g []float64) ([]float64, error) {
	n := len(g)
	rhs := mat.NewVecDense(n, nil)
	for i, gi := range g {
		rhs.SetVec(i, -gi)
	}
	var maxDiag float64
	for i := 0; i < n; i++ {
		maxDiag = math.Max(maxDiag, math.Abs(h.At(i, i)))
	}

	var shift float64
	hs := mat.NewSymDense(n, nil)
	for try := 0; try < 7; try++ {
		hs.CopySym(h)
		for i := 0; i < n; i++ {
			hs.SetSym(i, i, h.At(i, i)+shift)
		}
		var chol mat.Cholesky
		if chol.Factorize(hs) {
			var dv mat.VecDense
			err := chol.SolveVecTo(&dv, rhs)
			var cond mat.Condition
			if err == nil || errors.As(err, &cond) {
				return dv.RawVector().Data, nil
			}
		}
		if shift == 0 {
			shift = 1e-12 * (1 + maxDiag)
		} else {
			shift *= 100
		}
	}
	return nil, fmt.Errorf("%w: Hessian not positive definite", ErrNotConverged)
}
