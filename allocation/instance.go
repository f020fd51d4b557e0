// SPDX-License-Identifier: MIT

package allocation

import (
	"errors"
	"fmt"
	"math"

	"github.com/katalvlaran/basinflow/core"
	"github.com/katalvlaran/basinflow/forecast"
	"github.com/katalvlaran/basinflow/horizon"
	"github.com/katalvlaran/basinflow/solver"
)

// ErrResidual is returned by Check when a balance does not close.
var ErrResidual = errors.New("allocation: balance residual above tolerance")

// VarKind names a family of decision variables.
type VarKind int

const (
	VarFlow VarKind = iota
	VarDelivery
	VarDeficit
	VarShort
	VarExtraction
	VarStorage
	VarRelease
	VarSpill
	VarPenalty
	// envelopes of the deficit-ratio bands: per node over the horizon
	// (month 0) and per group and month
	VarMonthLo
	VarMonthHi
	VarGroupLo
	VarGroupHi
)

var varNames = [...]string{
	VarFlow:       "flow",
	VarDelivery:   "delivery",
	VarDeficit:    "deficit",
	VarShort:      "short",
	VarExtraction: "extraction",
	VarStorage:    "storage",
	VarRelease:    "release",
	VarSpill:      "spill",
	VarPenalty:    "penalty",
	VarMonthLo:    "month_lo",
	VarMonthHi:    "month_hi",
	VarGroupLo:    "group_lo",
	VarGroupHi:    "group_hi",
}

func (k VarKind) String() string {
	if k < 0 || int(k) >= len(varNames) {
		return fmt.Sprintf("VarKind(%d)", int(k))
	}
	return varNames[k]
}

// VarKey indexes one column: kind, node or link ID, calendar month.
type VarKey struct {
	Kind  VarKind
	ID    string
	Month int
}

func (k VarKey) String() string { return fmt.Sprintf("%s[%s,%d]", k.Kind, k.ID, k.Month) }

// Instance is one period's built program.
type Instance struct {
	Model *solver.Model
	Index horizon.Index
	Mode  PenaltyMode

	shell  *Shell
	inputs forecast.Inputs
	volume map[string]float64
	cols   map[VarKey]int
	keys   []VarKey
}

// Col returns the column of (kind, id, month).
func (in *Instance) Col(kind VarKind, id string, month int) (int, bool) {
	j, ok := in.cols[VarKey{Kind: kind, ID: id, Month: month}]
	return j, ok
}

// Keys returns the column keys in column order.
func (in *Instance) Keys() []VarKey { return append([]VarKey(nil), in.keys...) }

// Shell returns the topology the instance was built from.
func (in *Instance) Shell() *Shell { return in.shell }

func (in *Instance) addVar(kind VarKind, id string, month int, lower, upper, cost float64) int {
	key := VarKey{Kind: kind, ID: id, Month: month}
	j := in.Model.AddVar(key.String(), lower, upper, cost)
	in.cols[key] = j
	in.keys = append(in.keys, key)
	return j
}

// valueOf reads a keyed value, treating absent columns as zero.
func (in *Instance) valueOf(x []float64, kind VarKind, id string, month int) float64 {
	if j, ok := in.Col(kind, id, month); ok {
		return x[j]
	}
	return 0
}

// Check recomputes every mass balance, storage transition and the anchor
// from raw values and returns ErrResidual for the first one off by more
// than tol·(1+|demand or volume|).
func (in *Instance) Check(x []float64, tol float64) error {
	if len(x) != in.Model.NumVars() {
		return fmt.Errorf("allocation: %d values for %d columns", len(x), in.Model.NumVars())
	}
	s := in.shell
	for _, t := range in.Index.Remaining {
		for _, id := range s.Nodes() {
			node, _ := s.Node(id)
			if node.Kind == core.KindStorage {
				continue
			}
			inflow := in.inputs.Inflow.At(id, t) + in.inputs.ExogIn.At(id, t)
			for _, l := range s.In(id) {
				inflow += in.valueOf(x, VarFlow, l.ID, t) * l.Delivered()
			}
			var outflow float64
			for _, l := range s.Out(id) {
				outflow += in.valueOf(x, VarFlow, l.ID, t)
			}
			demand := in.inputs.Demand.At(id, t)
			if node.Kind != core.KindDemand {
				demand = 0
			}
			r := inflow + in.valueOf(x, VarExtraction, id, t) + in.valueOf(x, VarDeficit, id, t) -
				outflow - demand - in.inputs.ExogOut.At(id, t)
			if math.Abs(r) > tol*(1+math.Abs(demand)+math.Abs(inflow)) {
				return fmt.Errorf("%w: balance[%s,%d] = %g", ErrResidual, id, t, r)
			}
		}
	}

	for _, id := range s.Storage {
		anchor := in.Index.Anchor()
		if r := in.valueOf(x, VarStorage, id, anchor) - in.volume[id]; math.Abs(r) > tol*(1+math.Abs(in.volume[id])) {
			return fmt.Errorf("%w: anchor[%s] = %g", ErrResidual, id, r)
		}
		for i := 1; i < len(in.Index.Remaining); i++ {
			prev, t := in.Index.Remaining[i-1], in.Index.Remaining[i]
			want := in.valueOf(x, VarStorage, id, prev) + in.netStorageInflow(x, id, prev) -
				in.valueOf(x, VarRelease, id, prev) - in.valueOf(x, VarSpill, id, prev)
			got := in.valueOf(x, VarStorage, id, t)
			if r := got - want; math.Abs(r) > tol*(1+math.Abs(want)) {
				return fmt.Errorf("%w: transition[%s,%d] = %g", ErrResidual, id, t, r)
			}
		}
	}
	return nil
}

// netStorageInflow is inflow + exog_in + Σ in-flow·delivered − evaporation
// − seepage − exog_out at storage node id in month t.
func (in *Instance) netStorageInflow(x []float64, id string, t int) float64 {
	v := in.exogStorage(id, t)
	for _, l := range in.shell.In(id) {
		v += in.valueOf(x, VarFlow, l.ID, t) * l.Delivered()
	}
	return v
}

func (in *Instance) exogStorage(id string, t int) float64 {
	f := in.inputs
	return f.Inflow.At(id, t) + f.ExogIn.At(id, t) - f.Evaporation.At(id, t) - f.Seepage.At(id, t) - f.ExogOut.At(id, t)
}
