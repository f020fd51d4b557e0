// SPDX-License-Identifier: MIT

package solver

import "context"

// SolveFunc is the signature of an ad-hoc backend.
type SolveFunc func(ctx context.Context, m *Model) (Solution, error)

type funcBackend struct {
	name string
	fn   SolveFunc
}

// Func adapts a plain function to the Backend interface.
func Func(name string, fn SolveFunc) Backend {
	return funcBackend{name: name, fn: fn}
}

func (f funcBackend) Name() string { return f.name }

func (f funcBackend) Solve(ctx context.Context, m *Model) (Solution, error) {
	return f.fn(ctx, m)
}
