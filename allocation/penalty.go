// SPDX-License-Identifier: MIT

package allocation

import (
	"fmt"
	"strings"
)

// PenaltyMode selects how deficits are priced.
type PenaltyMode int

const (
	// PenaltyLinear charges DeficitWeight per unit of shortage.
	PenaltyLinear PenaltyMode = iota
	// PenaltyPiecewise charges escalating marginal costs per shortage ratio band.
	PenaltyPiecewise
	// PenaltySegments approximates the quadratic penalty with chords of r².
	PenaltySegments
	// PenaltyQuadratic charges DeficitWeight·short²/demand. Barrier only.
	PenaltyQuadratic
)

var penaltyNames = [...]string{
	PenaltyLinear:    "linear",
	PenaltyPiecewise: "piecewise",
	PenaltySegments:  "segments",
	PenaltyQuadratic: "quadratic",
}

func (p PenaltyMode) String() string {
	if p < 0 || int(p) >= len(penaltyNames) {
		return fmt.Sprintf("PenaltyMode(%d)", int(p))
	}
	return penaltyNames[p]
}

// ParsePenaltyMode accepts the names printed by String.
func ParsePenaltyMode(s string) (PenaltyMode, error) {
	for i, name := range penaltyNames {
		if strings.EqualFold(s, name) {
			return PenaltyMode(i), nil
		}
	}
	return 0, fmt.Errorf("allocation: unknown penalty mode %q", s)
}

// Fallback returns the linear mode a failed build should be retried with,
// and false when the mode is already linear.
func (p PenaltyMode) Fallback() (PenaltyMode, bool) {
	if p == PenaltyQuadratic {
		return PenaltySegments, true
	}
	return p, false
}

// Segments returns the chords of (x−x0)² over [x0, xmax] split into n
// equal intervals, as slope/intercept pairs. The upper envelope of the
// lines y = slope·x + intercept interpolates the parabola at the interval
// ends.
func Segments(x0, xmax float64, n int) (slopes, intercepts []float64) {
	if n <= 0 || xmax <= x0 {
		return nil, nil
	}
	h := (xmax - x0) / float64(n)
	slopes = make([]float64, n)
	intercepts = make([]float64, n)
	for k := 0; k < n; k++ {
		xa := x0 + float64(k)*h
		xb := xa + h
		ya := (xa - x0) * (xa - x0)
		yb := (xb - x0) * (xb - x0)
		m := (yb - ya) / (xb - xa)
		slopes[k] = m
		intercepts[k] = ya - m*xa
	}
	return slopes, intercepts
}

// Penalties returns 2n+1 lines whose upper envelope is a convex cost with
// marginal rate c0 up to −(n−1)·inc and multiplied by growth at every
// further increment inc. Consecutive lines meet on the increment grid.
func Penalties(inc float64, n int, growth, c0 float64) (costs, intercepts []float64) {
	x := -float64(n) * inc
	c := c0
	b := 1 - c*x
	for k := -n; k <= n; k++ {
		costs = append(costs, c)
		intercepts = append(intercepts, b)
		x += inc
		c2 := c * growth
		b = c*x - c2*x + b
		c = c2
	}
	return costs, intercepts
}
