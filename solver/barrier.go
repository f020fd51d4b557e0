// SPDX-License-Identifier: MIT

package solver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Barrier defaults.
const (
	DefaultBarrierTolerance = 1e-8
	DefaultBarrierMaxIter   = 200

	barrierDiverge = 1e13
	// barrierAccept is the tolerance the best iterate must meet when the
	// iteration limit is hit or the method stalls.
	barrierAccept = 1e-7
	barrierStall  = 5
)

// BarrierOption configures a Barrier backend.
type BarrierOption func(*Barrier)

// WithBarrierTolerance sets the relative optimality and feasibility tolerance.
func WithBarrierTolerance(tol float64) BarrierOption {
	return func(b *Barrier) { b.tol = tol }
}

// WithBarrierMaxIter caps the number of predictor-corrector iterations.
func WithBarrierMaxIter(n int) BarrierOption {
	return func(b *Barrier) { b.maxIter = n }
}

// Barrier is a primal-dual interior-point backend (Mehrotra
// predictor-corrector) for LPs and convex diagonal QPs. Column upper bounds
// are handled implicitly and the constraint matrix is equilibrated before
// the first iteration; each iteration solves the normal equations
// A·Θ·Aᵀ Δy = r with a dense Cholesky factorization.
type Barrier struct {
	tol     float64
	maxIter int
	reg     float64
}

// NewBarrier returns a barrier backend.
func NewBarrier(opts ...BarrierOption) *Barrier {
	b := &Barrier{tol: DefaultBarrierTolerance, maxIter: DefaultBarrierMaxIter, reg: 1e-12}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements Backend.
func (b *Barrier) Name() string { return "barrier" }

// Solve implements Backend.
func (b *Barrier) Solve(ctx context.Context, m *Model) (Solution, error) {
	bf, err := toBounded(m)
	if errors.Is(err, errTrivialInfeasible) {
		return Solution{Status: StatusInfeasible}, nil
	}
	if err != nil {
		return Solution{}, err
	}

	z, status, iters, err := b.run(ctx, bf)
	if err != nil {
		return Solution{Status: StatusSolverError, Iterations: iters}, err
	}
	sol := Solution{Status: status, Iterations: iters}
	if status == StatusOptimal {
		sol.Values = bf.recover(m, z)
		sol.Objective = m.Objective(sol.Values)
	}
	logr.FromContextOrDiscard(ctx).V(2).Info("barrier finished",
		"model", m.Name, "status", status.String(), "iterations", iters, "rows", bf.numRows(), "cols", bf.numCols())

	return sol, nil
}

// iterate is a primal-dual point. w and v are the upper-bound slack and its
// multiplier and are only meaningful on bounded columns.
type iterate struct {
	z, w, y, s, v []float64
}

// direction is a Newton step for an iterate.
type direction struct {
	z, w, y, s, v []float64
}

// ipm carries the per-solve state of the interior-point loop.
type ipm struct {
	bf  *boundedForm
	reg float64
	// act lists the columns with matrix entries; bnd those of them that are
	// bounded above. Empty columns are settled before the loop.
	act, bnd []int
}

func (b *Barrier) run(ctx context.Context, bf *boundedForm) ([]float64, Status, int, error) {
	n, rows := bf.numCols(), bf.numRows()
	p := &ipm{bf: bf, reg: b.reg}

	z := make([]float64, n)
	for j, col := range bf.cols {
		if len(col) > 0 {
			p.act = append(p.act, j)
			if bf.bounded(j) {
				p.bnd = append(p.bnd, j)
			}
			continue
		}
		switch c, q, u := bf.c[j], bf.q[j], bf.u[j]; {
		case q > 0:
			z[j] = math.Min(math.Max(-c/q, 0), u)
		case c < 0 && math.IsInf(u, 1):
			return nil, StatusNotOptimal, 0, nil // unbounded ray
		case c < 0:
			z[j] = u
		}
	}
	if len(p.act) == 0 {
		// rows whose coefficients all vanished
		for i, bi := range bf.b {
			if math.Abs(bi) > feasTol(bi/bf.rowScale[i]) {
				return nil, StatusInfeasible, 0, nil
			}
		}
		return z, StatusOptimal, 0, nil
	}

	quadratic := len(bf.q) > 0 && floats.Max(bf.q) > 0
	pt, err := p.start(z)
	if err != nil {
		return nil, StatusSolverError, 0, err
	}

	var cNorm float64
	for _, j := range p.act {
		cNorm = math.Max(cNorm, math.Abs(bf.c[j]))
	}
	cNorm++
	bNorm := 1 + floats.Norm(bf.b, math.Inf(1))
	pairs := float64(len(p.act) + len(p.bnd))

	rp := make([]float64, rows)
	ru := make([]float64, n)
	rd := make([]float64, n)
	theta := make([]float64, n)
	rzs := make([]float64, n)
	rwv := make([]float64, n)

	var (
		best    = math.Inf(1)
		bestP   = math.Inf(1)
		bestZ   []float64
		stalled int
		failure error
		it      int
	)
	for ; it < b.maxIter; it++ {
		if err := ctx.Err(); err != nil {
			return nil, StatusSolverError, it, err
		}

		relP, relD, gap, mu := p.residuals(pt, rp, ru, rd, cNorm)
		if score := math.Max(relP, math.Max(relD, gap)); score < best {
			best, bestP = score, relP
			bestZ = append(bestZ[:0], pt.z...)
		}
		if relP <= b.tol && relD <= b.tol && gap <= b.tol {
			return pt.z, StatusOptimal, it, nil
		}
		if floats.Norm(pt.z, math.Inf(1)) > barrierDiverge*bNorm {
			return nil, StatusNotOptimal, it, nil
		}
		if floats.Norm(pt.y, math.Inf(1)) > barrierDiverge*cNorm {
			return nil, StatusInfeasible, it, nil
		}

		for _, j := range p.act {
			d := bf.q[j] + pt.s[j]/pt.z[j]
			if bf.bounded(j) {
				d += pt.v[j] / pt.w[j]
			}
			theta[j] = 1 / d
		}
		chol, err := p.factor(theta)
		if err != nil {
			failure = err
			break
		}

		// predictor
		for _, j := range p.act {
			rzs[j] = -pt.z[j] * pt.s[j]
		}
		for _, j := range p.bnd {
			rwv[j] = -pt.w[j] * pt.v[j]
		}
		aff, err := p.direction(chol, theta, pt, rp, ru, rd, rzs, rwv)
		if err != nil {
			failure = err
			break
		}
		ap, ad := p.steps(pt, aff, 1, quadratic)
		var muAff float64
		for _, j := range p.act {
			muAff += (pt.z[j] + ap*aff.z[j]) * (pt.s[j] + ad*aff.s[j])
		}
		for _, j := range p.bnd {
			muAff += (pt.w[j] + ap*aff.w[j]) * (pt.v[j] + ad*aff.v[j])
		}
		muAff /= pairs
		sigma := math.Min(1, math.Pow(math.Max(muAff, 0)/mu, 3))

		// corrector
		for _, j := range p.act {
			rzs[j] = sigma*mu - pt.z[j]*pt.s[j] - aff.z[j]*aff.s[j]
		}
		for _, j := range p.bnd {
			rwv[j] = sigma*mu - pt.w[j]*pt.v[j] - aff.w[j]*aff.v[j]
		}
		dir, err := p.direction(chol, theta, pt, rp, ru, rd, rzs, rwv)
		if err != nil {
			failure = err
			break
		}
		eta := math.Min(0.99995, math.Max(0.99, 1-mu))
		ap, ad = p.steps(pt, dir, eta, quadratic)
		p.move(pt, dir, ap, ad)
		if floats.HasNaN(pt.z) || floats.HasNaN(pt.y) || floats.HasNaN(pt.s) {
			failure = fmt.Errorf("barrier: NaN at iteration %d: %w", it, ErrNumerical)
			break
		}
		if ap < 1e-8 && ad < 1e-8 {
			if stalled++; stalled >= barrierStall {
				break
			}
		} else {
			stalled = 0
		}
	}

	switch {
	case best <= barrierAccept:
		return bestZ, StatusOptimal, it, nil
	case failure != nil:
		return nil, StatusSolverError, it, failure
	case bestP > 1e-6:
		return nil, StatusInfeasible, it, nil
	default:
		return nil, StatusNotOptimal, it, nil
	}
}

// start builds the initial point. z is seeded from the least-norm solution
// of A z = b and pushed inside its bounds; the dual slacks are chosen so
// that the reduced cost of every bounded column is met exactly.
func (p *ipm) start(z []float64) (*iterate, error) {
	bf := p.bf
	n := bf.numCols()
	ones := make([]float64, n)
	for _, j := range p.act {
		ones[j] = 1
	}
	chol, err := p.factor(ones)
	if err != nil {
		return nil, err
	}
	yls, err := solveChol(chol, bf.b)
	if err != nil {
		return nil, err
	}
	zls := bf.mulAT(yls)

	pt := &iterate{
		z: z,
		w: make([]float64, n),
		y: make([]float64, bf.numRows()),
		s: make([]float64, n),
		v: make([]float64, n),
	}
	for _, j := range p.act {
		if bf.bounded(j) {
			margin := math.Min(1, bf.u[j]/2)
			pt.z[j] = math.Min(math.Max(zls[j], margin), bf.u[j]-margin)
			pt.w[j] = bf.u[j] - pt.z[j]
		} else {
			pt.z[j] = math.Max(zls[j], 1)
		}
		t := bf.c[j] + bf.q[j]*pt.z[j]
		pt.s[j] = math.Max(t, 0) + 1
		if bf.bounded(j) {
			pt.v[j] = math.Max(-t, 0) + 1
		}
	}
	return pt, nil
}

// residuals fills rp = b − Az, ru = u − z − w and rd = c + Qz − Aᵀy − s + v,
// and returns the primal measure (per row, relative to the unscaled bound),
// the relative dual residual, the relative gap and the barrier parameter.
func (p *ipm) residuals(pt *iterate, rp, ru, rd []float64, cNorm float64) (relP, relD, gap, mu float64) {
	bf := p.bf
	az := bf.mulA(pt.z)
	for i := range rp {
		rp[i] = bf.b[i] - az[i]
		relP = math.Max(relP, math.Abs(rp[i])/(bf.rowScale[i]+math.Abs(bf.b[i])))
	}
	aty := bf.mulAT(pt.y)
	var comp, pobj float64
	for _, j := range p.act {
		z := pt.z[j]
		rd[j] = bf.c[j] + bf.q[j]*z - aty[j] - pt.s[j]
		comp += z * pt.s[j]
		pobj += bf.c[j]*z + 0.5*bf.q[j]*z*z
	}
	for _, j := range p.bnd {
		rd[j] += pt.v[j]
		ru[j] = bf.u[j] - pt.z[j] - pt.w[j]
		relP = math.Max(relP, math.Abs(ru[j])/(1/bf.colScale[j]+bf.u[j]))
		comp += pt.w[j] * pt.v[j]
	}
	for _, j := range p.act {
		relD = math.Max(relD, math.Abs(rd[j]))
	}
	relD /= cNorm
	gap = comp / (1 + math.Abs(pobj))
	mu = comp / float64(len(p.act)+len(p.bnd))
	return relP, relD, gap, mu
}

// direction solves the Newton system for the complementarity targets rzs
// and rwv:
//
//	A dz = rp,  dz + dw = ru,  Q dz − Aᵀ dy − ds + dv = −rd,
//	S dz + Z ds = rzs,  V dw + W dv = rwv.
func (p *ipm) direction(chol *mat.Cholesky, theta []float64, pt *iterate, rp, ru, rd, rzs, rwv []float64) (*direction, error) {
	bf := p.bf
	n := bf.numCols()
	g := make([]float64, n)
	tg := make([]float64, n)
	for _, j := range p.act {
		g[j] = -rd[j] + rzs[j]/pt.z[j]
	}
	for _, j := range p.bnd {
		g[j] -= (rwv[j] - pt.v[j]*ru[j]) / pt.w[j]
	}
	for _, j := range p.act {
		tg[j] = theta[j] * g[j]
	}
	rhs := bf.mulA(tg)
	for i := range rhs {
		rhs[i] = rp[i] - rhs[i]
	}
	dy, err := solveChol(chol, rhs)
	if err != nil {
		return nil, err
	}
	aty := bf.mulAT(dy)

	d := &direction{
		z: make([]float64, n),
		w: make([]float64, n),
		y: dy,
		s: make([]float64, n),
		v: make([]float64, n),
	}
	for _, j := range p.act {
		d.z[j] = theta[j] * (aty[j] + g[j])
		d.s[j] = (rzs[j] - pt.s[j]*d.z[j]) / pt.z[j]
	}
	for _, j := range p.bnd {
		d.w[j] = ru[j] - d.z[j]
		d.v[j] = (rwv[j] - pt.v[j]*d.w[j]) / pt.w[j]
	}
	return d, nil
}

// steps returns the primal and dual step lengths, each eta times the
// distance to the boundary and at most one.
func (p *ipm) steps(pt *iterate, d *direction, eta float64, common bool) (ap, ad float64) {
	ap = math.Min(stepOver(pt.z, d.z, p.act), stepOver(pt.w, d.w, p.bnd))
	ad = math.Min(stepOver(pt.s, d.s, p.act), stepOver(pt.v, d.v, p.bnd))
	ap, ad = math.Min(1, eta*ap), math.Min(1, eta*ad)
	if common {
		ap = math.Min(ap, ad)
		ad = ap
	}
	return ap, ad
}

func (p *ipm) move(pt *iterate, d *direction, ap, ad float64) {
	for _, j := range p.act {
		pt.z[j] += ap * d.z[j]
		pt.s[j] += ad * d.s[j]
	}
	for _, j := range p.bnd {
		pt.w[j] += ap * d.w[j]
		pt.v[j] += ad * d.v[j]
	}
	floats.AddScaled(pt.y, ad, d.y)
}

// factor forms and factorizes A·diag(theta)·Aᵀ with a small diagonal shift
// proportional to each diagonal entry, growing the shift until the
// factorization succeeds.
func (p *ipm) factor(theta []float64) (*mat.Cholesky, error) {
	bf := p.bf
	rows := bf.numRows()
	data := make([]float64, rows*rows)
	for _, j := range p.act {
		col := bf.cols[j]
		for _, e1 := range col {
			for _, e2 := range col {
				data[e1.row*rows+e2.row] += theta[j] * e1.val * e2.val
			}
		}
	}

	reg := p.reg
	buf := make([]float64, len(data))
	for try := 0; try < 10; try++ {
		copy(buf, data)
		for i := 0; i < rows; i++ {
			buf[i*rows+i] += reg * (1 + data[i*rows+i])
		}
		var chol mat.Cholesky
		if chol.Factorize(mat.NewSymDense(rows, buf)) {
			return &chol, nil
		}
		reg *= 10
	}
	return nil, fmt.Errorf("barrier: normal equations not positive definite: %w", ErrNumerical)
}

func solveChol(chol *mat.Cholesky, rhs []float64) ([]float64, error) {
	var dst mat.VecDense
	err := chol.SolveVecTo(&dst, mat.NewVecDense(len(rhs), append([]float64(nil), rhs...)))
	var cond mat.Condition
	if err != nil && !errors.As(err, &cond) {
		return nil, fmt.Errorf("barrier: %v: %w", err, ErrNumerical)
	}
	out := make([]float64, len(rhs))
	for i := range out {
		out[i] = dst.AtVec(i)
	}
	return out, nil
}

// stepOver returns the largest α with v + α·dv ≥ 0 over idx, or +Inf.
func stepOver(v, dv []float64, idx []int) float64 {
	alpha := math.Inf(1)
	for _, i := range idx {
		if dv[i] < 0 {
			alpha = math.Min(alpha, -v[i]/dv[i])
		}
	}
	return alpha
}
