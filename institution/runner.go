// SPDX-License-Identifier: MIT

package institution

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/katalvlaran/basinflow/dfs"
	"github.com/katalvlaran/basinflow/horizon"
)

var (
	// ErrDuplicate is returned when two institutions share a name.
	ErrDuplicate = errors.New("institution: duplicate name")
	// ErrUnknownProducer is returned when a binding names no declared institution.
	ErrUnknownProducer = errors.New("institution: unknown producer")
	// ErrOrder is returned when a producer is declared after its consumer.
	ErrOrder = errors.New("institution: producer declared after consumer")
)

// Runner allocates a fixed list of institutions in declared order.
type Runner struct {
	insts []*Institution
}

// NewRunner checks the producer→consumer digraph of all bindings: it must
// be acyclic (dfs.ErrCycleDetected otherwise) and every producer must be
// declared before its consumers.
func NewRunner(insts ...*Institution) (*Runner, error) {
	pos := make(map[string]int, len(insts))
	g := dfs.NewDigraph()
	for i, in := range insts {
		if _, dup := pos[in.Name()]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicate, in.Name())
		}
		pos[in.Name()] = i
		g.AddVertex(in.Name())
	}
	for _, in := range insts {
		for _, b := range in.cfg.Consumes {
			if _, ok := pos[b.Producer]; !ok {
				return nil, fmt.Errorf("%w: %s reads %s/%s", ErrUnknownProducer, in.Name(), b.Producer, b.Name)
			}
			g.AddEdge(b.Producer, in.Name())
		}
	}
	if _, err := dfs.TopologicalSort(g); err != nil {
		if _, cycles := dfs.DetectCycles(g); len(cycles) > 0 {
			return nil, fmt.Errorf("institution: dependency cycle %v: %w", cycles[0], err)
		}
		return nil, fmt.Errorf("institution: %w", err)
	}
	for _, in := range insts {
		for _, b := range in.cfg.Consumes {
			if pos[b.Producer] > pos[in.Name()] {
				return nil, fmt.Errorf("%w: %s runs after %s", ErrOrder, b.Producer, in.Name())
			}
		}
	}
	return &Runner{insts: append([]*Institution(nil), insts...)}, nil
}

// Order returns the institution names in run order.
func (r *Runner) Order() []string {
	names := make([]string, len(r.insts))
	for i, in := range r.insts {
		names[i] = in.Name()
	}
	return names
}

// Institutions returns the institutions in run order.
func (r *Runner) Institutions() []*Institution {
	return append([]*Institution(nil), r.insts...)
}

// Run allocates every institution for now. Skipped periods do not stop the
// run; the first hard error does, returning the outcomes gathered so far.
func (r *Runner) Run(ctx context.Context, now horizon.Date) ([]Outcome, error) {
	log := logr.FromContextOrDiscard(ctx)
	outs := make([]Outcome, 0, len(r.insts))
	skipped := 0
	for _, in := range r.insts {
		out, err := in.Allocate(ctx, now)
		if err != nil {
			return outs, err
		}
		if out.Skipped() {
			skipped++
		}
		outs = append(outs, out)
	}
	log.V(1).Info("period allocated", "date", now.String(), "institutions", len(outs), "skipped", skipped)
	return outs, nil
}
