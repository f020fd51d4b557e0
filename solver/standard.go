// SPDX-License-Identifier: MIT

package solver

import (
	"errors"
	"fmt"
	"math"
)

// errTrivialInfeasible marks a constraint with no variables whose bounds
// exclude its constant term.
var errTrivialInfeasible = errors.New("solver: empty row violates its bounds")

// entry is one nonzero of a standard-form column.
type entry struct {
	row int
	val float64
}

// colMap recovers an original column from standard-form columns:
//
//	x = shift + sign·z[pos] − z[neg]    (neg < 0 when unused)
type colMap struct {
	pos, neg int
	shift    float64
	sign     float64
}

// standardForm is
//
//	minimize  cᵀz + ½ Σ q·z² + offset
//	s.t.      A z = b,  z ≥ 0
//
// with A stored column-wise.
type standardForm struct {
	c, q   []float64
	b      []float64
	cols   [][]entry
	offset float64
	xmap   []colMap
	slack  []int // per row, the column of its +1 slack or -1
}

func (sf *standardForm) addCol(c, q float64) int {
	sf.c = append(sf.c, c)
	sf.q = append(sf.q, q)
	sf.cols = append(sf.cols, nil)
	return len(sf.c) - 1
}

func (sf *standardForm) addRow(rhs float64) int {
	sf.b = append(sf.b, rhs)
	sf.slack = append(sf.slack, -1)
	return len(sf.b) - 1
}

func (sf *standardForm) put(row, col int, v float64) {
	if v != 0 {
		sf.cols[col] = append(sf.cols[col], entry{row: row, val: v})
	}
}

func (sf *standardForm) addSlack(row int) {
	s := sf.addCol(0, 0)
	sf.put(row, s, 1)
	sf.slack[row] = s
}

// numCols and numRows of A.
func (sf *standardForm) numCols() int { return len(sf.c) }
func (sf *standardForm) numRows() int { return len(sf.b) }

// mulA returns A·z.
func (sf *standardForm) mulA(z []float64) []float64 {
	out := make([]float64, len(sf.b))
	for j, col := range sf.cols {
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
func (sf *standardForm) mulAT(y []float64) []float64 {
	out := make([]float64, len(sf.c))
	for j, col := range sf.cols {
		var s float64
		for _, e := range col {
			s += e.val * y[e.row]
		}
		out[j] = s
	}
	return out
}

// recover maps a standard-form point back to model columns.
func (sf *standardForm) recover(z []float64) []float64 {
	x := make([]float64, len(sf.xmap))
	for j, cm := range sf.xmap {
		x[j] = cm.shift + cm.sign*z[cm.pos]
		if cm.neg >= 0 {
			x[j] -= z[cm.neg]
		}
	}
	return x
}

// toStandard converts a Model. Bounded columns are shifted onto their finite
// bound, free columns are split, and every inequality or range gets slack
// rows. With splitEq every equality also becomes a pair of inequalities so
// each row owns a distinct +1 slack and A has full row rank.
func toStandard(m *Model, splitEq bool) (*standardForm, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	sf := &standardForm{}
	quad := func(j int) float64 {
		if len(m.Quad) == 0 {
			return 0
		}
		return m.Quad[j]
	}

	sf.xmap = make([]colMap, m.NumVars())
	for j := range m.ColCosts {
		l, u, c, q := m.ColLower[j], m.ColUpper[j], m.ColCosts[j], quad(j)
		switch {
		case !math.IsInf(l, 0):
			cm := colMap{shift: l, sign: 1, neg: -1}
			cm.pos = sf.addCol(c+q*l, q)
			sf.offset += c*l + 0.5*q*l*l
			sf.xmap[j] = cm
			if !math.IsInf(u, 0) {
				r := sf.addRow(u - l)
				sf.put(r, cm.pos, 1)
				sf.addSlack(r)
			}
		case !math.IsInf(u, 0):
			cm := colMap{shift: u, sign: -1, neg: -1}
			cm.pos = sf.addCol(-(c + q*u), q)
			sf.offset += c*u + 0.5*q*u*u
			sf.xmap[j] = cm
		default:
			if q != 0 {
				return nil, fmt.Errorf("solver: free column %s with curvature: %w", m.colName(j), ErrUnsupported)
			}
			cm := colMap{sign: 1}
			cm.pos = sf.addCol(c, 0)
			cm.neg = sf.addCol(-c, 0)
			sf.xmap[j] = cm
		}
	}

	byRow := make([][]Nonzero, m.NumRows())
	for _, nz := range m.ConstMatrix {
		byRow[nz.Row] = append(byRow[nz.Row], nz)
	}

	for i, row := range byRow {
		var konst float64
		for _, nz := range row {
			konst += nz.Val * sf.xmap[nz.Col].shift
		}
		lo, hi := m.RowLower[i]-konst, m.RowUpper[i]-konst
		if len(row) == 0 {
			if lo > feasTol(lo) || hi < -feasTol(hi) {
				return nil, fmt.Errorf("solver: row %s: %w", m.rowName(i), errTrivialInfeasible)
			}
			continue
		}
		emit := func(r int, scale float64) {
			for _, nz := range row {
				cm := sf.xmap[nz.Col]
				sf.put(r, cm.pos, scale*nz.Val*cm.sign)
				if cm.neg >= 0 {
					sf.put(r, cm.neg, -scale*nz.Val)
				}
			}
		}
		if m.RowLower[i] == m.RowUpper[i] && !splitEq {
			emit(sf.addRow(lo), 1)
			continue
		}
		if !math.IsInf(hi, 0) {
			r := sf.addRow(hi)
			emit(r, 1)
			sf.addSlack(r)
		}
		if !math.IsInf(lo, 0) {
			r := sf.addRow(-lo)
			emit(r, -1)
			sf.addSlack(r)
		}
	}

	return sf, nil
}

func feasTol(v float64) float64 { return 1e-9 * (1 + math.Abs(v)) }
