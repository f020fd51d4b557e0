// SPDX-License-Identifier: MIT

package solver

import (
	"fmt"
	"math"
)

// boundedForm is
//
//	minimize  cᵀz + ½ Σ q·z²
//	s.t.      A z = b,  0 ≤ z ≤ u
//
// with A stored column-wise and u[j] = +Inf for columns without an upper
// bound. Unlike standardForm, upper bounds and ranged rows do not add rows.
type boundedForm struct {
	c, q, u []float64
	b       []float64
	cols    [][]entry
	// xmap recovers model columns; pos < 0 marks a column fixed at shift.
	xmap []colMap
	// colScale and rowScale are the equilibration factors: the stored
	// problem is in z' = z / colScale and rows multiplied by rowScale.
	colScale []float64
	rowScale []float64
	// rowSource is the model row behind each form row, for diagnostics.
	rowSource []int
}

func (bf *boundedForm) addCol(c, q, u float64) int {
	bf.c = append(bf.c, c)
	bf.q = append(bf.q, q)
	bf.u = append(bf.u, u)
	bf.cols = append(bf.cols, nil)
	return len(bf.c) - 1
}

func (bf *boundedForm) addRow(rhs float64, src int) int {
	bf.b = append(bf.b, rhs)
	bf.rowSource = append(bf.rowSource, src)
	return len(bf.b) - 1
}

func (bf *boundedForm) put(row, col int, v float64) {
	if v != 0 {
		bf.cols[col] = append(bf.cols[col], entry{row: row, val: v})
	}
}

func (bf *boundedForm) numCols() int { return len(bf.c) }
func (bf *boundedForm) numRows() int { return len(bf.b) }

func (bf *boundedForm) bounded(j int) bool { return !math.IsInf(bf.u[j], 1) }

// mulA returns A·z.
func (bf *boundedForm) mulA(z []float64) []float64 {
	out := make([]float64, len(bf.b))
	for j, col := range bf.cols {
		if z[j] == 0 {
			continue
		}
		for _, e := range col {
			out[e.row] += e.val * z[j]
		}
	}
	return out
}

// mulAT returns Aᵀ·y.
func (bf *boundedForm) mulAT(y []float64) []float64 {
	out := make([]float64, len(bf.c))
	for j, col := range bf.cols {
		var s float64
		for _, e := range col {
			s += e.val * y[e.row]
		}
		out[j] = s
	}
	return out
}

// recover maps a point of the scaled form back to model columns, clipped to
// the model bounds.
func (bf *boundedForm) recover(m *Model, z []float64) []float64 {
	x := make([]float64, len(bf.xmap))
	for j, cm := range bf.xmap {
		x[j] = cm.shift
		if cm.pos >= 0 {
			x[j] += cm.sign * z[cm.pos] * bf.colScale[cm.pos]
		}
		if cm.neg >= 0 {
			x[j] -= z[cm.neg] * bf.colScale[cm.neg]
		}
		x[j] = math.Min(math.Max(x[j], m.ColLower[j]), m.ColUpper[j])
	}
	return x
}

// toBounded converts a Model. Columns are shifted onto a finite bound (a
// column whose bounds coincide becomes a constant), free columns are split,
// an inequality or ranged row gets one slack column bounded by the width of
// the range, and rows without any finite side are dropped.
func toBounded(m *Model) (*boundedForm, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	bf := &boundedForm{}
	quad := func(j int) float64 {
		if len(m.Quad) == 0 {
			return 0
		}
		return m.Quad[j]
	}

	bf.xmap = make([]colMap, m.NumVars())
	for j := range m.ColCosts {
		l, u, c, q := m.ColLower[j], m.ColUpper[j], m.ColCosts[j], quad(j)
		switch {
		case !math.IsInf(l, 0) && !math.IsInf(u, 0) && u-l <= 1e-12*(1+math.Abs(l)):
			bf.xmap[j] = colMap{pos: -1, neg: -1, shift: l, sign: 1}
		case !math.IsInf(l, 0):
			cm := colMap{shift: l, sign: 1, neg: -1}
			cm.pos = bf.addCol(c+q*l, q, u-l)
			bf.xmap[j] = cm
		case !math.IsInf(u, 0):
			cm := colMap{shift: u, sign: -1, neg: -1}
			cm.pos = bf.addCol(-(c + q*u), q, math.Inf(1))
			bf.xmap[j] = cm
		default:
			if q != 0 {
				return nil, fmt.Errorf("solver: free column %s with curvature: %w", m.colName(j), ErrUnsupported)
			}
			cm := colMap{sign: 1}
			cm.pos = bf.addCol(c, 0, math.Inf(1))
			cm.neg = bf.addCol(-c, 0, math.Inf(1))
			bf.xmap[j] = cm
		}
	}

	byRow := make([][]Nonzero, m.NumRows())
	for _, nz := range m.ConstMatrix {
		byRow[nz.Row] = append(byRow[nz.Row], nz)
	}

	for i, row := range byRow {
		var konst float64
		live := row[:0:0]
		for _, nz := range row {
			konst += nz.Val * bf.xmap[nz.Col].shift
			if bf.xmap[nz.Col].pos >= 0 {
				live = append(live, nz)
			}
		}
		lo, hi := m.RowLower[i]-konst, m.RowUpper[i]-konst
		if len(live) == 0 {
			if lo > feasTol(lo) || hi < -feasTol(hi) {
				return nil, fmt.Errorf("solver: row %s: %w", m.rowName(i), errTrivialInfeasible)
			}
			continue
		}
		if math.IsInf(lo, -1) && math.IsInf(hi, 1) {
			continue
		}

		var r int
		switch {
		case !math.IsInf(lo, 0) && !math.IsInf(hi, 0) && hi-lo <= 1e-12*(1+math.Abs(lo)):
			r = bf.addRow(lo, i)
		case !math.IsInf(lo, 0):
			// a·x − t = lo, 0 ≤ t ≤ hi − lo
			r = bf.addRow(lo, i)
			bf.put(r, bf.addCol(0, 0, hi-lo), -1)
		default:
			// a·x + t = hi, t ≥ 0
			r = bf.addRow(hi, i)
			bf.put(r, bf.addCol(0, 0, math.Inf(1)), 1)
		}
		for _, nz := range live {
			cm := bf.xmap[nz.Col]
			bf.put(r, cm.pos, nz.Val*cm.sign)
			if cm.neg >= 0 {
				bf.put(r, cm.neg, -nz.Val)
			}
		}
	}

	bf.equilibrate(10)
	return bf, nil
}

// equilibrate applies Ruiz scaling: rows and columns are repeatedly divided
// by the square root of their largest entry so that every entry of A ends
// up close to unit magnitude. Costs are then normalized to a unit maximum,
// which leaves the minimizer unchanged.
func (bf *boundedForm) equilibrate(passes int) {
	n, rows := bf.numCols(), bf.numRows()
	bf.colScale = make([]float64, n)
	bf.rowScale = make([]float64, rows)
	for j := range bf.colScale {
		bf.colScale[j] = 1
	}
	for i := range bf.rowScale {
		bf.rowScale[i] = 1
	}

	rmax := make([]float64, rows)
	for p := 0; p < passes; p++ {
		for i := range rmax {
			rmax[i] = 0
		}
		for _, col := range bf.cols {
			for _, e := range col {
				rmax[e.row] = math.Max(rmax[e.row], math.Abs(e.val))
			}
		}
		for i, v := range rmax {
			if v > 0 {
				rmax[i] = 1 / math.Sqrt(v)
				bf.rowScale[i] *= rmax[i]
			} else {
				rmax[i] = 1
			}
		}
		for j, col := range bf.cols {
			var cmax float64
			for k := range col {
				col[k].val *= rmax[col[k].row]
				cmax = math.Max(cmax, math.Abs(col[k].val))
			}
			if cmax == 0 {
				continue
			}
			f := 1 / math.Sqrt(cmax)
			bf.colScale[j] *= f
			for k := range col {
				col[k].val *= f
			}
		}
	}

	for i := range bf.b {
		bf.b[i] *= bf.rowScale[i]
	}
	var cmax float64
	for j := range bf.c {
		cs := bf.colScale[j]
		bf.c[j] *= cs
		bf.q[j] *= cs * cs
		if bf.bounded(j) {
			bf.u[j] /= cs
		}
		cmax = math.Max(cmax, math.Max(math.Abs(bf.c[j]), bf.q[j]))
	}
	if cmax > 1 {
		for j := range bf.c {
			bf.c[j] /= cmax
			bf.q[j] /= cmax
		}
	}
}
