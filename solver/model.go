// SPDX-License-Identifier: MIT

package solver

import (
	"errors"
	"fmt"
	"math"
)

// Nonzero is one entry of the sparse constraint matrix.
type Nonzero struct {
	Row int
	Col int
	Val float64
}

// Model is a solver-neutral linear or diagonal-quadratic program:
//
//	Minimize:    ColCosts·x + Offset + ½ Σ Quad[j]·x[j]²
//	Subject to:  RowLower ≤ A·x ≤ RowUpper
//	And:         ColLower ≤ x ≤ ColUpper
//
// A is given as ConstMatrix; duplicate (row, col) entries are summed.
// Use math.Inf for absent bounds.
type Model struct {
	Name string

	ColCosts []float64
	ColLower []float64
	ColUpper []float64
	ColNames []string

	// Quad is the diagonal of the Hessian; empty for pure LPs.
	Quad []float64

	Offset float64

	RowLower []float64
	RowUpper []float64
	RowNames []string

	ConstMatrix []Nonzero
}

// Inf returns +∞, for readability at call sites.
func Inf() float64 { return math.Inf(1) }

// NegInf returns −∞.
func NegInf() float64 { return math.Inf(-1) }

// AddVar appends a column and returns its index.
func (m *Model) AddVar(name string, lower, upper, cost float64) int {
	j := len(m.ColCosts)
	m.ColCosts = append(m.ColCosts, cost)
	m.ColLower = append(m.ColLower, lower)
	m.ColUpper = append(m.ColUpper, upper)
	m.ColNames = append(m.ColNames, name)
	if len(m.Quad) > 0 {
		m.Quad = append(m.Quad, 0)
	}

	return j
}

// SetQuad sets the diagonal Hessian entry of column j.
func (m *Model) SetQuad(j int, q float64) {
	if len(m.Quad) < len(m.ColCosts) {
		m.Quad = append(m.Quad, make([]float64, len(m.ColCosts)-len(m.Quad))...)
	}
	m.Quad[j] = q
}

// AddSparseRow adds lower ≤ Σ vals[i]·x[cols[i]] ≤ upper and returns the row index.
// Zero coefficients are filtered out.
func (m *Model) AddSparseRow(name string, lower float64, cols []int, vals []float64, upper float64) int {
	row := len(m.RowLower)
	m.RowLower = append(m.RowLower, lower)
	m.RowUpper = append(m.RowUpper, upper)
	m.RowNames = append(m.RowNames, name)
	for i, col := range cols {
		if vals[i] != 0 {
			m.ConstMatrix = append(m.ConstMatrix, Nonzero{Row: row, Col: col, Val: vals[i]})
		}
	}

	return row
}

// AddEqRow adds Σ vals·x = rhs.
func (m *Model) AddEqRow(name string, cols []int, vals []float64, rhs float64) int {
	return m.AddSparseRow(name, rhs, cols, vals, rhs)
}

// AddLeRow adds Σ vals·x ≤ rhs.
func (m *Model) AddLeRow(name string, cols []int, vals []float64, rhs float64) int {
	return m.AddSparseRow(name, math.Inf(-1), cols, vals, rhs)
}

// AddGeRow adds Σ vals·x ≥ rhs.
func (m *Model) AddGeRow(name string, cols []int, vals []float64, rhs float64) int {
	return m.AddSparseRow(name, rhs, cols, vals, math.Inf(1))
}

// NumVars returns the number of columns.
func (m *Model) NumVars() int { return len(m.ColCosts) }

// NumRows returns the number of constraints.
func (m *Model) NumRows() int { return len(m.RowLower) }

// IsQuadratic reports whether any Hessian entry is nonzero.
func (m *Model) IsQuadratic() bool {
	for _, q := range m.Quad {
		if q != 0 {
			return true
		}
	}
	return false
}

// Validate checks array lengths, bound ordering and matrix indices.
func (m *Model) Validate() error {
	n := len(m.ColCosts)
	if len(m.ColLower) != n || len(m.ColUpper) != n {
		return fmt.Errorf("solver: model %q: %d costs, %d lower, %d upper: %w", m.Name, n, len(m.ColLower), len(m.ColUpper), ErrInvalidModel)
	}
	if len(m.Quad) != 0 && len(m.Quad) != n {
		return fmt.Errorf("solver: model %q: %d quad entries for %d columns: %w", m.Name, len(m.Quad), n, ErrInvalidModel)
	}
	if len(m.RowLower) != len(m.RowUpper) {
		return fmt.Errorf("solver: model %q: row bound lengths differ: %w", m.Name, ErrInvalidModel)
	}
	for j := 0; j < n; j++ {
		if m.ColLower[j] > m.ColUpper[j] || math.IsNaN(m.ColLower[j]) || math.IsNaN(m.ColUpper[j]) {
			return fmt.Errorf("solver: model %q: column %s bounds [%g,%g]: %w", m.Name, m.colName(j), m.ColLower[j], m.ColUpper[j], ErrInvalidModel)
		}
		if len(m.Quad) > 0 && m.Quad[j] < 0 {
			return fmt.Errorf("solver: model %q: column %s has negative curvature: %w", m.Name, m.colName(j), ErrInvalidModel)
		}
	}
	for i := range m.RowLower {
		if m.RowLower[i] > m.RowUpper[i] {
			return fmt.Errorf("solver: model %q: row %s bounds [%g,%g]: %w", m.Name, m.rowName(i), m.RowLower[i], m.RowUpper[i], ErrInvalidModel)
		}
	}
	for _, nz := range m.ConstMatrix {
		if nz.Row < 0 || nz.Row >= len(m.RowLower) || nz.Col < 0 || nz.Col >= n {
			return fmt.Errorf("solver: model %q: entry (%d,%d) out of range: %w", m.Name, nz.Row, nz.Col, ErrInvalidModel)
		}
	}

	return nil
}

func (m *Model) colName(j int) string {
	if j < len(m.ColNames) && m.ColNames[j] != "" {
		return m.ColNames[j]
	}
	return fmt.Sprintf("x%d", j)
}

func (m *Model) rowName(i int) string {
	if i < len(m.RowNames) && m.RowNames[i] != "" {
		return m.RowNames[i]
	}
	return fmt.Sprintf("r%d", i)
}

// Objective evaluates the objective at x.
func (m *Model) Objective(x []float64) float64 {
	f := m.Offset
	for j, c := range m.ColCosts {
		f += c * x[j]
		if len(m.Quad) > 0 {
			f += 0.5 * m.Quad[j] * x[j] * x[j]
		}
	}
	return f
}

// RowActivity returns A·x.
func (m *Model) RowActivity(x []float64) []float64 {
	act := make([]float64, len(m.RowLower))
	for _, nz := range m.ConstMatrix {
		act[nz.Row] += nz.Val * x[nz.Col]
	}
	return act
}

// MaxViolation returns the largest bound or row violation at x, scaled by
// 1 + |bound| so that large right-hand sides do not dominate.
func (m *Model) MaxViolation(x []float64) float64 {
	var worst float64
	viol := func(v, bound float64) {
		if r := v / (1 + math.Abs(bound)); r > worst {
			worst = r
		}
	}
	for j, v := range x {
		viol(m.ColLower[j]-v, m.ColLower[j])
		viol(v-m.ColUpper[j], m.ColUpper[j])
	}
	for i, a := range m.RowActivity(x) {
		viol(m.RowLower[i]-a, m.RowLower[i])
		viol(a-m.RowUpper[i], m.RowUpper[i])
	}
	return worst
}

// Sentinel errors.
var (
	// ErrInvalidModel marks structurally broken models.
	ErrInvalidModel = errors.New("solver: invalid model")

	// ErrUnavailable marks a backend that cannot run (missing, misconfigured).
	ErrUnavailable = errors.New("solver: backend unavailable")

	// ErrUnsupported marks a model class the backend cannot handle.
	ErrUnsupported = errors.New("solver: model not supported by backend")

	// ErrNumerical marks a numerical breakdown inside a backend.
	ErrNumerical = errors.New("solver: numerical failure")
)
