// SPDX-License-Identifier: MIT

package solver_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/katalvlaran/basinflow/solver"
)

const valTol = 1e-5

// BackendSuite runs the same LP checks against every backend.
type BackendSuite struct {
	suite.Suite
	backend solver.Backend
}

func TestBarrierSuite(t *testing.T) { suite.Run(t, &BackendSuite{backend: solver.NewBarrier()}) }
func TestSimplexSuite(t *testing.T) { suite.Run(t, &BackendSuite{backend: solver.NewSimplex()}) }

func (s *BackendSuite) solve(m *solver.Model) solver.Solution {
	sol, err := s.backend.Solve(context.Background(), m)
	s.Require().NoError(err)
	return sol
}

func (s *BackendSuite) TestTwoInequalities() {
	// min -x - y  s.t.  x + 2y <= 4, 3x + y <= 6
	m := &solver.Model{Name: "two"}
	x := m.AddVar("x", 0, solver.Inf(), -1)
	y := m.AddVar("y", 0, solver.Inf(), -1)
	m.AddLeRow("a", []int{x, y}, []float64{1, 2}, 4)
	m.AddLeRow("b", []int{x, y}, []float64{3, 1}, 6)

	sol := s.solve(m)
	s.Require().Equal(solver.StatusOptimal, sol.Status)
	s.InDelta(1.6, sol.Values[x], valTol)
	s.InDelta(1.2, sol.Values[y], valTol)
	s.InDelta(-2.8, sol.Objective, valTol)
}

func (s *BackendSuite) TestEqualityWithBounds() {
	m := &solver.Model{Name: "eq"}
	a := m.AddVar("a", 1, 6, 2)
	b := m.AddVar("b", 0, solver.Inf(), 3)
	m.AddEqRow("sum", []int{a, b}, []float64{1, 1}, 10)

	sol := s.solve(m)
	s.Require().Equal(solver.StatusOptimal, sol.Status)
	s.InDelta(6.0, sol.Values[a], valTol)
	s.InDelta(4.0, sol.Values[b], valTol)
	s.InDelta(24.0, sol.Objective, 1e-4)
}

func (s *BackendSuite) TestFreeAndUpperOnlyColumns() {
	m := &solver.Model{Name: "free"}
	x := m.AddVar("x", solver.NegInf(), solver.Inf(), 1)
	y := m.AddVar("y", solver.NegInf(), 5, -1)
	m.AddGeRow("floor", []int{x}, []float64{1}, -3)
	m.AddLeRow("link", []int{x, y}, []float64{-1, 1}, 20)

	sol := s.solve(m)
	s.Require().Equal(solver.StatusOptimal, sol.Status)
	s.InDelta(-3.0, sol.Values[x], valTol)
	s.InDelta(5.0, sol.Values[y], valTol)
}

func (s *BackendSuite) TestRangedRow() {
	// maximize x + y inside 2 <= x + y <= 7 with x <= 3
	m := &solver.Model{Name: "range"}
	x := m.AddVar("x", 0, 3, -2)
	y := m.AddVar("y", 0, solver.Inf(), -1)
	m.AddSparseRow("band", 2, []int{x, y}, []float64{1, 1}, 7)

	sol := s.solve(m)
	s.Require().Equal(solver.StatusOptimal, sol.Status)
	s.InDelta(3.0, sol.Values[x], valTol)
	s.InDelta(4.0, sol.Values[y], valTol)
}

func (s *BackendSuite) TestInfeasible() {
	m := &solver.Model{Name: "infeasible"}
	x := m.AddVar("x", 0, 1, 1)
	m.AddGeRow("too_much", []int{x}, []float64{1}, 2)

	sol, _ := s.backend.Solve(context.Background(), m)
	s.NotEqual(solver.StatusOptimal, sol.Status)
}

func (s *BackendSuite) TestUnboundedRay() {
	m := &solver.Model{Name: "ray"}
	m.AddVar("x", 0, solver.Inf(), -1)

	sol := s.solve(m)
	s.Equal(solver.StatusNotOptimal, sol.Status)
}

func (s *BackendSuite) TestEmptyRowOutsideBounds() {
	m := &solver.Model{Name: "empty"}
	m.AddVar("x", 0, 1, 1)
	m.AddGeRow("nothing", nil, nil, 1)

	sol := s.solve(m)
	s.Equal(solver.StatusInfeasible, sol.Status)
}

func TestBarrierQuadratic(t *testing.T) {
	// min ½(x² + y²)  s.t.  x + y >= 4
	m := &solver.Model{Name: "qp"}
	x := m.AddVar("x", 0, solver.Inf(), 0)
	y := m.AddVar("y", 0, solver.Inf(), 0)
	m.SetQuad(x, 1)
	m.SetQuad(y, 1)
	m.AddGeRow("floor", []int{x, y}, []float64{1, 1}, 4)
	require.True(t, m.IsQuadratic())

	sol, err := solver.NewBarrier().Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, solver.StatusOptimal, sol.Status)
	require.InDelta(t, 2.0, sol.Values[x], valTol)
	require.InDelta(t, 2.0, sol.Values[y], valTol)
	require.InDelta(t, 4.0, sol.Objective, 1e-4)
}

func TestBarrierQuadraticInteriorOptimum(t *testing.T) {
	// min x² - 4x on [0,10] with x + y = 5
	m := &solver.Model{Name: "qp-interior"}
	x := m.AddVar("x", 0, 10, -4)
	y := m.AddVar("y", 0, solver.Inf(), 0)
	m.SetQuad(x, 2)
	m.AddEqRow("sum", []int{x, y}, []float64{1, 1}, 5)

	sol, err := solver.NewBarrier().Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, solver.StatusOptimal, sol.Status)
	require.InDelta(t, 2.0, sol.Values[x], valTol)
	require.InDelta(t, 3.0, sol.Values[y], valTol)
	require.InDelta(t, -4.0, sol.Objective, 1e-4)
}

// ratioModel draws from a reservoir over months to meet a demand, with
// every pair of monthly supply ratios held within a band. Zero right-hand
// sides and a wide spread of coefficients make it a scaling test.
func ratioModel(months int) *solver.Model {
	m := &solver.Model{Name: "ratio"}
	demand := make([]float64, months)
	supply := make([]int, months)
	short := make([]int, months)
	prev := -1
	for t := 0; t < months; t++ {
		demand[t] = 100 + 15*float64(t%4)
		supply[t] = m.AddVar(fmt.Sprintf("supply[%d]", t), 0, solver.Inf(), 0)
		short[t] = m.AddVar(fmt.Sprintf("short[%d]", t), 0, solver.Inf(), 1000)
		vol := m.AddVar(fmt.Sprintf("vol[%d]", t), 0, 1000, 0)
		m.AddEqRow(fmt.Sprintf("demand[%d]", t), []int{supply[t], short[t]}, []float64{1, 1}, demand[t])
		if prev < 0 {
			m.AddEqRow(fmt.Sprintf("balance[%d]", t), []int{vol, supply[t]}, []float64{1, 1}, 100+20)
		} else {
			m.AddEqRow(fmt.Sprintf("balance[%d]", t), []int{vol, prev, supply[t]}, []float64{1, -1, 1}, 20)
		}
		prev = vol
	}
	for a := 0; a < months; a++ {
		for b := a + 1; b < months; b++ {
			// supply[a]/d[a] <= 1.1 supply[b]/d[b] and the mirror
			m.AddLeRow(fmt.Sprintf("band[%d,%d]", a, b), []int{supply[a], supply[b]}, []float64{1 / demand[a], -1.1 / demand[b]}, 0)
			m.AddLeRow(fmt.Sprintf("band[%d,%d]", b, a), []int{supply[b], supply[a]}, []float64{1 / demand[b], -1.1 / demand[a]}, 0)
		}
	}
	return m
}

func TestBarrierMatchesSimplexOnRatioBands(t *testing.T) {
	for _, months := range []int{2, 5, 8} {
		t.Run(fmt.Sprint(months), func(t *testing.T) {
			m := ratioModel(months)
			want, err := solver.NewSimplex().Solve(context.Background(), m)
			require.NoError(t, err)
			require.Equal(t, solver.StatusOptimal, want.Status)

			got, err := solver.NewBarrier().Solve(context.Background(), m)
			require.NoError(t, err)
			require.Equal(t, solver.StatusOptimal, got.Status)
			require.InDelta(t, want.Objective, got.Objective, 1e-4*(1+want.Objective))
			require.LessOrEqual(t, m.MaxViolation(got.Values), solver.DefaultCertifyTolerance)
		})
	}
}

func TestBarrierUpperBoundsWithoutRows(t *testing.T) {
	// maximize x + y with x ≤ 3 and y ≤ 4, plus an equality pinning z
	m := &solver.Model{Name: "boxes"}
	x := m.AddVar("x", 0, 3, -1)
	y := m.AddVar("y", -2, 4, -1)
	z := m.AddVar("z", 0, 10, 1)
	m.AddEqRow("pin", []int{z}, []float64{2}, 5)

	sol, err := solver.NewBarrier().Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, solver.StatusOptimal, sol.Status)
	require.InDelta(t, 3.0, sol.Values[x], valTol)
	require.InDelta(t, 4.0, sol.Values[y], valTol)
	require.InDelta(t, 2.5, sol.Values[z], valTol)
}

func TestSimplexTimeLimit(t *testing.T) {
	m := ratioModel(12)
	sol, err := solver.NewSimplex(solver.WithSimplexTimeLimit(time.Nanosecond)).Solve(context.Background(), m)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, solver.StatusSolverError, sol.Status)

	res := solver.NewCascade([]solver.Backend{
		solver.NewSimplex(solver.WithSimplexTimeLimit(time.Nanosecond)),
		solver.NewBarrier(),
	}).Solve(context.Background(), m)
	require.True(t, res.OK())
	require.Equal(t, "barrier", res.Backend)
	require.Equal(t, solver.StatusSolverError, res.Attempts[0].Status)
}

func TestSimplexRejectsQuadratic(t *testing.T) {
	m := &solver.Model{Name: "qp"}
	x := m.AddVar("x", 0, 1, 0)
	m.SetQuad(x, 1)

	_, err := solver.NewSimplex().Solve(context.Background(), m)
	require.ErrorIs(t, err, solver.ErrUnsupported)
}

func TestValidateRejectsBrokenModels(t *testing.T) {
	m := &solver.Model{Name: "broken"}
	m.AddVar("x", 2, 1, 0)
	require.ErrorIs(t, m.Validate(), solver.ErrInvalidModel)

	m = &solver.Model{Name: "index"}
	m.AddVar("x", 0, 1, 0)
	m.ConstMatrix = append(m.ConstMatrix, solver.Nonzero{Row: 3, Col: 0, Val: 1})
	require.ErrorIs(t, m.Validate(), solver.ErrInvalidModel)
}

func TestMaxViolation(t *testing.T) {
	m := &solver.Model{}
	x := m.AddVar("x", 0, 10, 0)
	m.AddLeRow("cap", []int{x}, []float64{1}, 4)
	require.Zero(t, m.MaxViolation([]float64{4}))
	require.InDelta(t, 1.0/5, m.MaxViolation([]float64{5}), 1e-12)
}
