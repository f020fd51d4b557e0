// SPDX-License-Identifier: MIT

package aquifer

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/katalvlaran/basinflow/core"
	"github.com/katalvlaran/basinflow/matrix"
)

// Sentinel errors.
var (
	ErrDimensionMismatch = errors.New("aquifer: dimension mismatch")
	ErrRevision          = errors.New("aquifer: month already projected")
	ErrOutOfOrder        = errors.New("aquifer: months must be stepped in order")
	ErrIndexOutOfRange   = errors.New("aquifer: time index out of range")
	ErrNotProjected      = errors.New("aquifer: month not projected yet")
)

// DefaultUnitScale is the pumping volume of one unit multiple.
const DefaultUnitScale = 0.01

// Option configures an Engine.
type Option func(*Engine)

// WithUnitScale overrides the unit pumping normalization (default 0.01).
func WithUnitScale(s float64) Option {
	return func(e *Engine) { e.unitScale = s }
}

// WithResponseFactor scales every contribution (gw_response_factor, default 1).
func WithResponseFactor(f float64) Option {
	return func(e *Engine) { e.factor = f }
}

// WithExceptions replaces the exception table (default DefaultExceptions()).
func WithExceptions(t ExceptionTable) Option {
	return func(e *Engine) { e.exceptions = t }
}

// WithSources names the source axis; names are network node IDs.
func WithSources(ids []string) Option {
	return func(e *Engine) { e.sources = append([]string(nil), ids...) }
}

// WithLocations names the location axis; names are network node IDs.
func WithLocations(ids []string) Option {
	return func(e *Engine) { e.locations = append([]string(nil), ids...) }
}

// Engine is the response-matrix state for one simulation run. It is built
// once, owned by the run and passed to whoever steps it.
type Engine struct {
	resp     *matrix.Tensor3 // [location][source][lag], read-only
	head     *matrix.Dense   // [location][time]
	baseline []float64       // per source

	sources    []string
	locations  []string
	exceptions ExceptionTable
	unitScale  float64
	factor     float64

	next int // first time index not yet projected
}

// NewEngine builds an engine from the response tensor, the baseline head
// trajectory [location][time] and baseline pumping per source. The baseline
// head is copied; the tensor is shared read-only.
func NewEngine(resp *matrix.Tensor3, baselineHead *matrix.Dense, baselinePumping []float64, opts ...Option) (*Engine, error) {
	if resp == nil || baselineHead == nil {
		return nil, fmt.Errorf("aquifer: nil tensor or head: %w", ErrDimensionMismatch)
	}
	nl, ns, _ := resp.Dims()
	if baselineHead.Rows() != nl {
		return nil, fmt.Errorf("aquifer: %d tensor locations vs %d head rows: %w", nl, baselineHead.Rows(), ErrDimensionMismatch)
	}
	if len(baselinePumping) != ns {
		return nil, fmt.Errorf("aquifer: %d tensor sources vs %d baseline pumping: %w", ns, len(baselinePumping), ErrDimensionMismatch)
	}

	e := &Engine{
		resp:       resp,
		head:       baselineHead.Clone(),
		baseline:   append([]float64(nil), baselinePumping...),
		exceptions: DefaultExceptions(),
		unitScale:  DefaultUnitScale,
		factor:     1,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.unitScale <= 0 {
		return nil, fmt.Errorf("aquifer: unit scale %g must be positive", e.unitScale)
	}
	if e.sources != nil && len(e.sources) != ns {
		return nil, fmt.Errorf("aquifer: %d source names for %d sources: %w", len(e.sources), ns, ErrDimensionMismatch)
	}
	if e.locations != nil && len(e.locations) != nl {
		return nil, fmt.Errorf("aquifer: %d location names for %d locations: %w", len(e.locations), nl, ErrDimensionMismatch)
	}

	return e, nil
}

// Horizon returns the number of time slots in the head array.
func (e *Engine) Horizon() int { return e.head.Cols() }

// Completed returns how many months have been projected.
func (e *Engine) Completed() int { return e.next }

// Sources returns the source node IDs (nil when unnamed).
func (e *Engine) Sources() []string { return append([]string(nil), e.sources...) }

// UnitPumping converts raw pumping into unit deviation multiples after the
// exception table has been applied.
func (e *Engine) UnitPumping(pumping []float64) ([]float64, error) {
	if len(pumping) != len(e.baseline) {
		return nil, fmt.Errorf("aquifer: %d pumping values for %d sources: %w", len(pumping), len(e.baseline), ErrDimensionMismatch)
	}
	eff := pumping
	if e.sources != nil && len(e.exceptions) > 0 {
		var err error
		if eff, err = e.exceptions.Apply(e.sources, pumping, e.baseline); err != nil {
			return nil, err
		}
	}
	unit := make([]float64, len(eff))
	for s, p := range eff {
		unit[s] = (p - e.baseline[s]) / e.unitScale
	}

	return unit, nil
}

// Step projects the pumping column of month index t into head[:, t:].
// t must equal Completed(): earlier indices return ErrRevision, later ones
// ErrOutOfOrder.
func (e *Engine) Step(ctx context.Context, t int, pumping []float64) error {
	log := logr.FromContextOrDiscard(ctx)
	switch {
	case t < 0 || t >= e.head.Cols():
		return fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, t, e.head.Cols())
	case t < e.next:
		return fmt.Errorf("%w: %d", ErrRevision, t)
	case t > e.next:
		return fmt.Errorf("%w: got %d, want %d", ErrOutOfOrder, t, e.next)
	}

	unit, err := e.UnitPumping(pumping)
	if err != nil {
		return err
	}

	nl, ns, nk := e.resp.Dims()
	window := e.head.Cols() - t
	lags := window
	if nk < lags {
		lags = nk
	}
	delta := make([]float64, window)
	for l := 0; l < nl; l++ {
		for k := range delta {
			delta[k] = 0
		}
		for s := 0; s < ns; s++ {
			if unit[s] == 0 {
				continue
			}
			fiber, err := e.resp.Fiber(l, s, lags)
			if err != nil {
				return err
			}
			w := e.factor * unit[s]
			for k, c := range fiber {
				delta[k] += c * w
			}
		}
		if err := e.head.AddRowTail(l, t, delta); err != nil {
			return err
		}
	}
	e.next = t + 1
	log.V(1).Info("aquifer step", "t", t, "sources", ns, "locations", nl)

	return nil
}

// Head returns the projected head at location l and time t.
func (e *Engine) Head(l, t int) (float64, error) {
	v, err := e.head.At(l, t)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIndexOutOfRange, err)
	}
	return v, nil
}

// Project returns the head column of a completed month. Repeated calls
// return identical values; nothing is recomputed.
func (e *Engine) Project(t int) ([]float64, error) {
	if t < 0 || t >= e.head.Cols() {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, t)
	}
	if t >= e.next {
		return nil, fmt.Errorf("%w: %d", ErrNotProjected, t)
	}
	return e.head.Col(t)
}

// StepNetwork reads Pumping from the source nodes, steps month t and writes
// head[:, t] onto the location nodes.
func (e *Engine) StepNetwork(ctx context.Context, net *core.Network, t int) error {
	if e.sources == nil || e.locations == nil {
		return fmt.Errorf("aquifer: StepNetwork needs WithSources and WithLocations")
	}
	pumping := make([]float64, len(e.sources))
	for s, id := range e.sources {
		n, err := net.Node(id)
		if err != nil {
			return fmt.Errorf("aquifer: source: %w", err)
		}
		pumping[s] = n.Pumping
	}
	if err := e.Step(ctx, t, pumping); err != nil {
		return err
	}
	col, err := e.Project(t)
	if err != nil {
		return err
	}
	for l, id := range e.locations {
		h := col[l]
		if err := net.UpdateNode(id, func(n *core.Node) { n.Head = h }); err != nil {
			return fmt.Errorf("aquifer: location: %w", err)
		}
	}

	return nil
}
