// SPDX-License-Identifier: MIT

package solver

import "context"

// Status classifies the outcome of a single backend attempt or of a cascade.
type Status int

const (
	// StatusOptimal means the values are a certified optimum.
	StatusOptimal Status = iota
	// StatusInfeasible means the backend proved (or strongly suspects) no feasible point exists.
	StatusInfeasible
	// StatusNotOptimal covers unbounded problems, iteration limits and uncertified points.
	StatusNotOptimal
	// StatusSolverError means the backend broke down or panicked.
	StatusSolverError
	// StatusUnavailable means the backend could not run on this model.
	StatusUnavailable
	// StatusFailed is the cascade verdict when every backend was tried without success.
	StatusFailed
)

var statusNames = [...]string{
	StatusOptimal:     "optimal",
	StatusInfeasible:  "infeasible",
	StatusNotOptimal:  "not_optimal",
	StatusSolverError: "solver_error",
	StatusUnavailable: "unavailable",
	StatusFailed:      "failed",
}

// String returns the snake_case name used in logs and metric labels.
func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// Solution is what a backend hands back for one model.
type Solution struct {
	Status     Status
	Values     []float64
	Objective  float64
	Iterations int
}

// Backend is one optimization engine in a cascade.
//
// A returned error means the backend could not produce a verdict; wrap
// ErrUnavailable or ErrUnsupported when the model simply is not for it.
// A nil error with a non-optimal Status is a regular verdict.
type Backend interface {
	Name() string
	Solve(ctx context.Context, m *Model) (Solution, error)
}

// Attempt records one backend try inside a cascade.
type Attempt struct {
	Backend string
	Status  Status
	Err     error
}

// Result is the tagged outcome of a cascade run. Values and Objective are
// meaningful only when OK reports true.
type Result struct {
	Status    Status
	Backend   string
	Values    []float64
	Objective float64
	Attempts  []Attempt
}

// OK reports whether an optimal solution is available.
func (r Result) OK() bool { return r.Status == StatusOptimal }

// Value returns Values[j] or 0 when the result is not optimal.
func (r Result) Value(j int) float64 {
	if !r.OK() || j < 0 || j >= len(r.Values) {
		return 0
	}
	return r.Values[j]
}
