// SPDX-License-Identifier: MIT

package institution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/go-logr/logr"

	"github.com/katalvlaran/basinflow/allocation"
	"github.com/katalvlaran/basinflow/core"
	"github.com/katalvlaran/basinflow/flow"
	"github.com/katalvlaran/basinflow/forecast"
	"github.com/katalvlaran/basinflow/horizon"
	"github.com/katalvlaran/basinflow/solver"
)

var (
	// ErrNoName is returned by New for a config without a name.
	ErrNoName = errors.New("institution: empty name")
	// ErrNoBoard is returned by New when bindings are declared without a board.
	ErrNoBoard = errors.New("institution: bindings need a forecast board")
)

// Config declares what one institution governs, reads and publishes.
type Config struct {
	Name    string
	Governs []string
	// Consumes lists upstream forecasts resolved from the board every period.
	Consumes []forecast.Binding
	// Publishes restricts the published forecast names; empty publishes all.
	Publishes []string
	Options   allocation.Options
	// Reachability is the max-flow routine of the deliverable bound.
	Reachability flow.Algorithm
}

// Option configures an Institution.
type Option func(*Institution)

// WithStartYear sets the first simulated year. By default it is the year of
// the first Allocate call.
func WithStartYear(y int) Option {
	return func(in *Institution) { in.startYear = y }
}

// WithAuditTolerance sets the tolerance of the post-solve balance audit.
// Zero disables it.
func WithAuditTolerance(tol float64) Option {
	return func(in *Institution) { in.audit = tol }
}

// Institution allocates water over the nodes it governs.
type Institution struct {
	cfg      Config
	net      *core.Network
	provider forecast.Provider
	cascade  *solver.Cascade
	board    *forecast.Board
	shell    *allocation.Shell

	startYear int
	audit     float64

	state State
	year  int
	// past holds realized deficit ratios of this calendar year by node and month.
	past map[string]map[int]float64
}

// Outcome reports one period.
type Outcome struct {
	Institution string
	Date        horizon.Date
	State       State
	// Penalty is the mode of the last build, after any fallback.
	Penalty allocation.PenaltyMode
	// Result is the last cascade result.
	Result solver.Result
	// Attempts spans every cascade run of the period.
	Attempts []solver.Attempt
	// First is the anchor month written to live state (Extracted only).
	First       allocation.MonthPlan
	Deliverable flow.Deliverable
	// Published maps forecast name to the snapshot version written.
	Published map[string]int
}

// Skipped reports whether the period ended without extraction.
func (o Outcome) Skipped() bool { return o.State == StateSkipped }

// New validates cfg and caches the governed topology.
func New(cfg Config, net *core.Network, provider forecast.Provider, cascade *solver.Cascade, board *forecast.Board, opts ...Option) (*Institution, error) {
	if cfg.Name == "" {
		return nil, ErrNoName
	}
	if board == nil && len(cfg.Consumes) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoBoard, cfg.Name)
	}
	if err := cfg.Options.Validate(); err != nil {
		return nil, fmt.Errorf("institution: %s: %w", cfg.Name, err)
	}
	shell, err := allocation.NewShell(net, cfg.Governs)
	if err != nil {
		return nil, fmt.Errorf("institution: %s: %w", cfg.Name, err)
	}
	in := &Institution{
		cfg:      cfg,
		net:      net,
		provider: provider,
		cascade:  cascade,
		board:    board,
		shell:    shell,
		audit:    1e-6,
		past:     map[string]map[int]float64{},
	}
	for _, opt := range opts {
		opt(in)
	}
	return in, nil
}

// Name returns the configured name.
func (in *Institution) Name() string { return in.cfg.Name }

// Config returns the configuration the institution was built with.
func (in *Institution) Config() Config { return in.cfg }

// State returns the state reached by the last Allocate call.
func (in *Institution) State() State { return in.state }

// Shell returns the cached governed topology.
func (in *Institution) Shell() *allocation.Shell { return in.shell }

// PastRatio returns the realized deficit ratio of node in month of the
// current calendar year.
func (in *Institution) PastRatio(node string, month int) (float64, bool) {
	r, ok := in.past[node][month]
	return r, ok
}

// Allocate runs one period. Only a missing forecast or an invalid date is
// returned as an error; solver failures end the period Skipped.
func (in *Institution) Allocate(ctx context.Context, now horizon.Date) (Outcome, error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("institution", in.cfg.Name, "date", now.String())
	ctx = logr.NewContext(ctx, log)
	in.state = StateIdle
	out := Outcome{Institution: in.cfg.Name, Date: now, State: StateIdle, Penalty: in.cfg.Options.Penalty}

	if in.startYear == 0 {
		in.startYear = now.Year
	}
	idx, err := horizon.New(now, in.startYear)
	if err != nil {
		return out, fmt.Errorf("institution: %s: %w", in.cfg.Name, err)
	}
	if now.Year != in.year {
		in.year = now.Year
		in.past = map[string]map[int]float64{}
	}

	inputs, err := in.refresh(ctx, idx)
	if err != nil {
		return out, err
	}
	in.state = StateForecastRefreshed
	out.State = in.state

	if err := in.shell.Refresh(in.net); err != nil {
		return out, fmt.Errorf("institution: %s: %w", in.cfg.Name, err)
	}
	volume, err := in.volumes()
	if err != nil {
		return out, err
	}
	out.Deliverable = in.reachability(ctx, idx.Anchor(), inputs, volume)

	mode := in.cfg.Options.Penalty
	for {
		opts := in.cfg.Options
		opts.Penalty = mode
		inst, err := allocation.Build(ctx, in.shell, allocation.Params{
			Index:      idx,
			Inputs:     inputs,
			Volume:     volume,
			PastRatios: in.past,
		}, opts)
		if err != nil {
			return out, fmt.Errorf("institution: %s: %w", in.cfg.Name, err)
		}
		in.state = StateModelBuilt

		res := in.cascade.Solve(ctx, inst.Model)
		in.state = StateSolved
		out.Penalty, out.Result = mode, res
		out.Attempts = append(out.Attempts, res.Attempts...)
		if res.OK() {
			return in.extract(ctx, inst, res, out)
		}

		next, ok := mode.Fallback()
		if !ok {
			break
		}
		log.Info("cascade failed, rebuilding with linearized penalty", "from", mode.String(), "to", next.String())
		mode = next
	}

	return in.skip(log, out), nil
}

func (in *Institution) skip(log logr.Logger, out Outcome) Outcome {
	for i, a := range out.Attempts {
		log.Info("solver step failed", "step", i+1, "backend", a.Backend, "status", a.Status.String(), "err", a.Err)
	}
	log.Info("allocation skipped", "steps", len(out.Attempts), "penalty", out.Penalty.String())
	in.state = StateSkipped
	out.State = in.state
	return out
}

// refresh pulls the provider forecast and resolves every upstream binding.
func (in *Institution) refresh(ctx context.Context, idx horizon.Index) (forecast.Inputs, error) {
	log := logr.FromContextOrDiscard(ctx)
	inputs, err := in.provider.Forecast(ctx, in.cfg.Name, idx)
	if err != nil {
		return forecast.Inputs{}, fmt.Errorf("institution: %s: %w", in.cfg.Name, err)
	}
	inputs = inputs.Clone()
	for _, b := range in.cfg.Consumes {
		if snap, err := in.board.Latest(b.Producer, b.Name); err == nil && snap.Issued != idx.Date {
			log.Info("consuming stale forecast", "producer", b.Producer, "name", b.Name, "issued", snap.Issued.String())
		}
		if err := in.board.Resolve(in.cfg.Name, b, idx.Remaining, &inputs); err != nil {
			return forecast.Inputs{}, fmt.Errorf("institution: %w", err)
		}
	}
	return inputs, nil
}

func (in *Institution) volumes() (map[string]float64, error) {
	out := make(map[string]float64, len(in.shell.Storage))
	for _, id := range in.shell.Storage {
		node, err := in.net.Node(id)
		if err != nil {
			return nil, fmt.Errorf("institution: %s: %w", in.cfg.Name, err)
		}
		out[id] = node.Volume
	}
	return out, nil
}

// reachability bounds this month's deliverable water. Failures are logged
// and yield a zero Deliverable; the bound is diagnostic only.
func (in *Institution) reachability(ctx context.Context, month int, inputs forecast.Inputs, volume map[string]float64) flow.Deliverable {
	supply := map[string]float64{}
	demand := map[string]float64{}
	for _, id := range in.shell.Nodes() {
		node, _ := in.shell.Node(id)
		s := inputs.Inflow.At(id, month) + inputs.ExogIn.At(id, month)
		if node.CanExtract() {
			s += node.EffectiveCap(month)
		}
		if node.Kind == core.KindStorage {
			s += math.Max(0, volume[id]-node.StorageMin) - inputs.Evaporation.At(id, month) - inputs.Seepage.At(id, month)
		}
		if s > 0 {
			supply[id] = s
		}
		if node.Kind == core.KindDemand {
			demand[id] = inputs.Demand.At(id, month)
		}
	}
	opts := flow.DefaultOptions()
	opts.Ctx = ctx
	opts.Algorithm = in.cfg.Reachability
	d, err := flow.MaxDeliverable(in.shell.Links, supply, demand, opts)
	if err != nil {
		logr.FromContextOrDiscard(ctx).Error(err, "deliverable bound failed")
		return flow.Deliverable{}
	}
	return d
}

func (in *Institution) extract(ctx context.Context, inst *allocation.Instance, res solver.Result, out Outcome) (Outcome, error) {
	log := logr.FromContextOrDiscard(ctx)
	plan, err := allocation.Extract(inst, res)
	if err != nil {
		log.Error(err, "extraction rejected")
		return in.skip(log, out), nil
	}
	if in.audit > 0 {
		if err := inst.Check(res.Values, in.audit); err != nil {
			log.Error(err, "post-solve audit", "backend", res.Backend)
		}
	}

	first := plan.FirstMonth()
	if err := in.writeBack(first); err != nil {
		return out, err
	}
	out.Published = in.publish(plan, out.Date)
	for id, r := range first.DeficitRatio {
		if in.past[id] == nil {
			in.past[id] = map[int]float64{}
		}
		in.past[id][first.Month] = r
	}

	in.state = StateExtracted
	out.State = in.state
	out.First = first
	log.V(1).Info("allocation extracted", "backend", res.Backend, "objective", res.Objective, "penalty", out.Penalty.String())
	return out, nil
}

// writeBack stores the anchor month in live node and link state. Every
// target is resolved before the first write, so a missing node or link
// leaves the network untouched.
func (in *Institution) writeBack(first allocation.MonthPlan) error {
	ids := in.shell.Nodes()
	for _, id := range ids {
		if !in.net.HasNode(id) {
			return fmt.Errorf("institution: %s write-back: %w: %q", in.cfg.Name, core.ErrNodeNotFound, id)
		}
	}
	for _, l := range in.shell.Links {
		if _, err := in.net.Link(l.ID); err != nil {
			return fmt.Errorf("institution: %s write-back: %w", in.cfg.Name, err)
		}
	}

	for _, id := range ids {
		node, _ := in.shell.Node(id)
		err := in.net.UpdateNode(id, func(n *core.Node) {
			switch node.Kind {
			case core.KindDemand:
				n.Delivery = first.Delivery[id]
				n.Deficit = first.Deficit[id]
			case core.KindStorage:
				n.Volume = first.EndStorage[id]
			}
			if v, ok := first.Extraction[id]; ok {
				n.Pumping = v
			}
		})
		if err != nil {
			return fmt.Errorf("institution: %s write-back: %w", in.cfg.Name, err)
		}
	}
	for _, l := range in.shell.Links {
		if err := in.net.UpdateLink(l.ID, func(x *core.Link) { x.Flow = first.Flow[l.ID] }); err != nil {
			return fmt.Errorf("institution: %s write-back: %w", in.cfg.Name, err)
		}
	}
	return nil
}

func (in *Institution) publish(plan *allocation.Plan, now horizon.Date) map[string]int {
	if in.board == nil {
		return nil
	}
	fc := plan.Forecast()
	names := in.cfg.Publishes
	if len(names) == 0 {
		for name := range fc {
			names = append(names, name)
		}
		sort.Strings(names)
	}
	out := make(map[string]int, len(names))
	for _, name := range names {
		series, ok := fc[name]
		if !ok {
			continue
		}
		out[name] = in.board.Publish(in.cfg.Name, name, now, series).Version
	}
	return out
}
