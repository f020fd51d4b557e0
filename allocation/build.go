// SPDX-License-Identifier: MIT

package allocation

import (
	"context"
	"fmt"
	"math"

	"github.com/go-logr/logr"

	"github.com/katalvlaran/basinflow/core"
	"github.com/katalvlaran/basinflow/forecast"
	"github.com/katalvlaran/basinflow/horizon"
	"github.com/katalvlaran/basinflow/solver"
)

// Params are the per-period values a build reads.
type Params struct {
	Index  horizon.Index
	Inputs forecast.Inputs
	// Volume is the observed storage per storage node at the anchor month.
	Volume map[string]float64
	// PastRatios holds realized deficit/demand per demand node and elapsed month.
	PastRatios map[string]map[int]float64
}

// Build forks a fresh Instance from the shell for one period.
func Build(ctx context.Context, shell *Shell, p Params, opts Options) (*Instance, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if p.Index.Len() == 0 {
		return nil, fmt.Errorf("allocation: empty horizon for %s", p.Index.Date)
	}
	for _, id := range shell.Storage {
		if _, ok := p.Volume[id]; !ok {
			return nil, fmt.Errorf("allocation: no observed volume for storage node %q: %w", id, forecast.ErrForecastMissing)
		}
	}

	inst := &Instance{
		Model:  &solver.Model{Name: fmt.Sprintf("allocation-%s", p.Index.Date)},
		Index:  p.Index,
		Mode:   opts.Penalty,
		shell:  shell,
		inputs: p.Inputs.Clone(),
		volume: make(map[string]float64, len(p.Volume)),
		cols:   make(map[VarKey]int),
	}
	for k, v := range p.Volume {
		inst.volume[k] = v
	}
	b := builder{inst: inst, opts: opts, past: p.PastRatios}

	b.columns()
	b.balances()
	b.storage()
	b.penalties()
	b.smoothing()

	logr.FromContextOrDiscard(ctx).V(1).Info("allocation model built",
		"date", p.Index.Date.String(), "months", p.Index.Len(),
		"cols", inst.Model.NumVars(), "rows", inst.Model.NumRows(), "penalty", opts.Penalty.String())

	return inst, nil
}

type builder struct {
	inst *Instance
	opts Options
	past map[string]map[int]float64
}

func (b *builder) demand(id string, t int) float64 {
	return math.Max(0, b.inst.inputs.Demand.At(id, t))
}

func (b *builder) col(kind VarKind, id string, t int) int {
	j, ok := b.inst.Col(kind, id, t)
	if !ok {
		panic(fmt.Sprintf("allocation: missing column %s", VarKey{Kind: kind, ID: id, Month: t}))
	}
	return j
}

// row collects sparse coefficients.
type row struct {
	cols []int
	vals []float64
}

func (r *row) add(j int, v float64) {
	r.cols = append(r.cols, j)
	r.vals = append(r.vals, v)
}

func (b *builder) columns() {
	s, o := b.inst.shell, b.opts
	for _, t := range b.inst.Index.Remaining {
		for _, l := range s.Links {
			b.inst.addVar(VarFlow, l.ID, t, 0, l.Capacity, l.UnitCost*o.TransferWeight)
		}
		for _, id := range s.Demand {
			d := b.demand(id, t)
			b.inst.addVar(VarDelivery, id, t, 0, (1+o.SurplusBand)*d, 0)
			b.inst.addVar(VarDeficit, id, t, -o.SurplusBand*d, d, 0)
			j := b.inst.addVar(VarShort, id, t, 0, d, 0)
			switch o.Penalty {
			case PenaltyLinear:
				b.inst.Model.ColCosts[j] = o.DeficitWeight
			case PenaltyQuadratic:
				if d > 0 {
					b.inst.Model.SetQuad(j, 2*o.DeficitWeight/d)
				}
			case PenaltyPiecewise, PenaltySegments:
				b.inst.addVar(VarPenalty, id, t, 0, solver.Inf(), o.DeficitWeight*d)
			}
		}
		for _, id := range s.Extractors {
			node, _ := s.Node(id)
			cost := node.ExtractionCost + node.Lift()*o.LiftTariff
			b.inst.addVar(VarExtraction, id, t, 0, node.EffectiveCap(t), cost*o.ExtractionWeight)
		}
		for _, id := range s.Storage {
			node, _ := s.Node(id)
			lo, hi := node.StorageMin, node.StorageMax
			if hi <= 0 {
				hi = solver.Inf()
			}
			if t == b.inst.Index.Anchor() {
				// the observed volume may sit outside the operating band
				v := b.inst.volume[id]
				lo, hi = math.Min(lo, v), math.Max(hi, v)
			}
			b.inst.addVar(VarStorage, id, t, lo, hi, 0)
			b.inst.addVar(VarRelease, id, t, 0, solver.Inf(), 0)
			b.inst.addVar(VarSpill, id, t, 0, solver.Inf(), o.SpillWeight)
		}
	}
}

func (b *builder) balances() {
	s, m, in := b.inst.shell, b.inst.Model, b.inst.inputs
	for _, t := range b.inst.Index.Remaining {
		for _, id := range s.Nodes() {
			node, _ := s.Node(id)
			if node.Kind == core.KindStorage {
				continue
			}
			var r row
			for _, l := range s.In(id) {
				r.add(b.col(VarFlow, l.ID, t), l.Delivered())
			}
			for _, l := range s.Out(id) {
				r.add(b.col(VarFlow, l.ID, t), -1)
			}
			if j, ok := b.inst.Col(VarExtraction, id, t); ok {
				r.add(j, 1)
			}
			if node.Kind == core.KindDemand {
				r.add(b.col(VarDelivery, id, t), -1)
			}
			rhs := in.ExogOut.At(id, t) - in.Inflow.At(id, t) - in.ExogIn.At(id, t)
			m.AddEqRow(fmt.Sprintf("balance[%s,%d]", id, t), r.cols, r.vals, rhs)

			if node.Kind == core.KindDemand {
				m.AddEqRow(fmt.Sprintf("shortfall[%s,%d]", id, t),
					[]int{b.col(VarDelivery, id, t), b.col(VarDeficit, id, t)}, []float64{1, 1}, b.demand(id, t))
				m.AddGeRow(fmt.Sprintf("short[%s,%d]", id, t),
					[]int{b.col(VarShort, id, t), b.col(VarDeficit, id, t)}, []float64{1, -1}, 0)
			}
		}
	}
}

func (b *builder) storage() {
	s, m, ix := b.inst.shell, b.inst.Model, b.inst.Index
	for _, id := range s.Storage {
		node, _ := s.Node(id)
		m.AddEqRow(fmt.Sprintf("anchor[%s]", id), []int{b.col(VarStorage, id, ix.Anchor())}, []float64{1}, b.inst.volume[id])

		for _, t := range ix.Remaining {
			var r row
			r.add(b.col(VarRelease, id, t), 1)
			for _, l := range s.Out(id) {
				r.add(b.col(VarFlow, l.ID, t), -1)
			}
			m.AddEqRow(fmt.Sprintf("release[%s,%d]", id, t), r.cols, r.vals, 0)
		}

		// carry(t) = storage − release − spill + Σ in-flow·delivered
		carry := func(t int) row {
			var r row
			r.add(b.col(VarStorage, id, t), 1)
			r.add(b.col(VarRelease, id, t), -1)
			r.add(b.col(VarSpill, id, t), -1)
			for _, l := range s.In(id) {
				r.add(b.col(VarFlow, l.ID, t), l.Delivered())
			}
			return r
		}
		for i := 1; i < len(ix.Remaining); i++ {
			prev, t := ix.Remaining[i-1], ix.Remaining[i]
			r := carry(prev)
			for k := range r.vals {
				r.vals[k] = -r.vals[k]
			}
			r.add(b.col(VarStorage, id, t), 1)
			m.AddEqRow(fmt.Sprintf("transition[%s,%d]", id, t), r.cols, r.vals, b.inst.exogStorage(id, prev))
		}

		last := ix.Last()
		hi := node.StorageMax
		if hi <= 0 {
			hi = solver.Inf()
		}
		net := b.inst.exogStorage(id, last)
		r := carry(last)
		m.AddSparseRow(fmt.Sprintf("final[%s]", id), math.Min(node.StorageMin, b.inst.volume[id])-net, r.cols, r.vals, hi-net)
	}
}

func (b *builder) penalties() {
	o, m := b.opts, b.inst.Model
	var slopes, intercepts []float64
	switch o.Penalty {
	case PenaltyPiecewise:
		slopes, intercepts = Penalties(o.Piecewise.Increment, o.Piecewise.Steps, o.Piecewise.Growth, o.Piecewise.Base)
	case PenaltySegments:
		slopes, intercepts = Segments(0, 1, o.SquareSegments)
	default:
		return
	}
	for _, t := range b.inst.Index.Remaining {
		for _, id := range b.inst.shell.Demand {
			d := b.demand(id, t)
			if d <= 0 {
				continue
			}
			pen, short := b.col(VarPenalty, id, t), b.col(VarShort, id, t)
			// penalty ≥ slope·short/demand + intercept
			for k, c := range slopes {
				m.AddGeRow(fmt.Sprintf("penalty[%s,%d,%d]", id, t, k), []int{pen, short}, []float64{1, -c / d}, intercepts[k])
			}
		}
	}
}

// ratioBand holds every ratio ρ = deficit/demand of members within a
// relative band of each other through two envelope columns:
//
//	lo ≤ ρₖ ≤ hi,  hi ≤ (1+band)·lo,  (1−band)·hi ≤ lo
//
// which for band < 1 is the same as bounding every pair, in O(n) rows.
func (b *builder) ratioBand(name string, env [2]int, members []int, demands []float64, band float64) {
	m := b.inst.Model
	lo, hi := env[0], env[1]
	for k, j := range members {
		m.AddGeRow(fmt.Sprintf("%s,%d]-", name, k), []int{j, lo}, []float64{1 / demands[k], -1}, 0)
		m.AddLeRow(fmt.Sprintf("%s,%d]+", name, k), []int{j, hi}, []float64{1 / demands[k], -1}, 0)
	}
	m.AddLeRow(name+"]+", []int{hi, lo}, []float64{1, -(1 + band)}, 0)
	m.AddGeRow(name+"]-", []int{lo, hi}, []float64{1, -(1 - band)}, 0)
}

// envelope adds the lo/hi columns of one band. Ratios live in
// [−SurplusBand, 1], so the envelope does too.
func (b *builder) envelope(lo, hi VarKind, id string, t int) [2]int {
	l := -b.opts.SurplusBand
	return [2]int{b.inst.addVar(lo, id, t, l, 1, 0), b.inst.addVar(hi, id, t, l, 1, 0)}
}

func (b *builder) smoothing() {
	s, o, ix := b.inst.shell, b.opts, b.inst.Index
	for _, id := range s.Demand {
		if o.excluded(id) {
			continue
		}
		var (
			members []int
			demands []float64
		)
		for _, t := range ix.Remaining {
			if d := b.demand(id, t); d > 0 {
				members = append(members, b.col(VarDeficit, id, t))
				demands = append(demands, d)
			}
		}
		if len(members) > 1 {
			b.ratioBand(fmt.Sprintf("month[%s", id), b.envelope(VarMonthLo, VarMonthHi, id, 0), members, demands, o.MonthBand)
		}
		b.pastBand(id)
	}

	for _, g := range s.Groups() {
		for _, t := range ix.Remaining {
			var (
				members []int
				demands []float64
			)
			for _, id := range s.Members(g) {
				if d := b.demand(id, t); d > 0 && !o.excluded(id) {
					members = append(members, b.col(VarDeficit, id, t))
					demands = append(demands, d)
				}
			}
			if len(members) > 1 {
				b.ratioBand(fmt.Sprintf("group[%s,%d", g, t), b.envelope(VarGroupLo, VarGroupHi, g, t), members, demands, o.NodeBand)
			}
		}
	}
}

// pastBand keeps each horizon ratio of id at or above (1−PastBand) times
// every positive realized ratio, and with PastUpperBand at or below
// (1+PastBand) times each of them. Only the tightest one binds, so one row
// per side and month is enough.
func (b *builder) pastBand(id string) {
	o, ix, m := b.opts, b.inst.Index, b.inst.Model
	floor, ceil := 0.0, math.Inf(1)
	for _, p := range ix.Past {
		if rho := b.past[id][p]; rho > 0 {
			floor = math.Max(floor, rho)
			ceil = math.Min(ceil, rho)
		}
	}
	if floor <= 0 {
		return
	}
	for _, t := range ix.Remaining {
		d := b.demand(id, t)
		if d <= 0 {
			continue
		}
		j := b.col(VarDeficit, id, t)
		m.AddGeRow(fmt.Sprintf("past[%s,%d]-", id, t), []int{j}, []float64{1 / d}, (1-o.PastBand)*floor)
		if o.PastUpperBand {
			m.AddLeRow(fmt.Sprintf("past[%s,%d]+", id, t), []int{j}, []float64{1 / d}, (1+o.PastBand)*ceil)
		}
	}
}
