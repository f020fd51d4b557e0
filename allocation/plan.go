// SPDX-License-Identifier: MIT

package allocation

import (
	"errors"
	"fmt"

	"github.com/katalvlaran/basinflow/forecast"
	"github.com/katalvlaran/basinflow/horizon"
	"github.com/katalvlaran/basinflow/solver"
)

// ErrNotOptimal is returned by Extract for a failed cascade result.
var ErrNotOptimal = errors.New("allocation: result is not optimal")

// Published forecast names.
const (
	ForecastDelivery     = "delivery"
	ForecastExtraction   = "extraction"
	ForecastTransfer     = "transfer"
	ForecastDeficitRatio = "deficit_ratio"
)

// Plan holds every solved value of one instance.
type Plan struct {
	Index     horizon.Index
	Backend   string
	Objective float64
	values    map[VarKey]float64
	demand    forecast.Series
	// end is the storage left after each month: storage − release − spill
	// + net inflow, by node and month.
	end map[string]map[int]float64
}

// MonthPlan is the slice of a plan for one calendar month.
type MonthPlan struct {
	Month        int
	Flow         map[string]float64 // by link ID
	Delivery     map[string]float64
	Deficit      map[string]float64
	DeficitRatio map[string]float64
	Extraction   map[string]float64
	Storage      map[string]float64
	Release      map[string]float64
	Spill        map[string]float64
	// EndStorage is the volume carried into the following month.
	EndStorage map[string]float64
}

// Extract copies solved values into a Plan. Results that are not OK are
// rejected: no partial extraction happens.
func Extract(inst *Instance, res solver.Result) (*Plan, error) {
	if !res.OK() {
		return nil, fmt.Errorf("%w: %s", ErrNotOptimal, res.Status)
	}
	if len(res.Values) != len(inst.keys) {
		return nil, fmt.Errorf("allocation: %d values for %d columns", len(res.Values), len(inst.keys))
	}
	p := &Plan{
		Index:     inst.Index,
		Backend:   res.Backend,
		Objective: res.Objective,
		values:    make(map[VarKey]float64, len(inst.keys)),
		demand:    inst.inputs.Demand.Clone(),
	}
	for j, k := range inst.keys {
		p.values[k] = res.Values[j]
	}
	p.end = make(map[string]map[int]float64, len(inst.shell.Storage))
	for _, id := range inst.shell.Storage {
		p.end[id] = make(map[int]float64, inst.Index.Len())
		for _, t := range inst.Index.Remaining {
			p.end[id][t] = p.Value(VarStorage, id, t) - p.Value(VarRelease, id, t) - p.Value(VarSpill, id, t) +
				inst.netStorageInflow(res.Values, id, t)
		}
	}
	return p, nil
}

// Value returns one solved value; absent keys read as 0.
func (p *Plan) Value(kind VarKind, id string, month int) float64 {
	return p.values[VarKey{Kind: kind, ID: id, Month: month}]
}

// Month slices the plan at one horizon month.
func (p *Plan) Month(month int) MonthPlan {
	mp := MonthPlan{
		Month:        month,
		Flow:         map[string]float64{},
		Delivery:     map[string]float64{},
		Deficit:      map[string]float64{},
		DeficitRatio: map[string]float64{},
		Extraction:   map[string]float64{},
		Storage:      map[string]float64{},
		Release:      map[string]float64{},
		Spill:        map[string]float64{},
		EndStorage:   map[string]float64{},
	}
	for id, byMonth := range p.end {
		if v, ok := byMonth[month]; ok {
			mp.EndStorage[id] = v
		}
	}
	for k, v := range p.values {
		if k.Month != month {
			continue
		}
		switch k.Kind {
		case VarFlow:
			mp.Flow[k.ID] = v
		case VarDelivery:
			mp.Delivery[k.ID] = v
		case VarDeficit:
			mp.Deficit[k.ID] = v
			if d := p.demand.At(k.ID, month); d > 0 {
				mp.DeficitRatio[k.ID] = v / d
			} else {
				mp.DeficitRatio[k.ID] = 0
			}
		case VarExtraction:
			mp.Extraction[k.ID] = v
		case VarStorage:
			mp.Storage[k.ID] = v
		case VarRelease:
			mp.Release[k.ID] = v
		case VarSpill:
			mp.Spill[k.ID] = v
		}
	}
	return mp
}

// FirstMonth is the anchor month, the only one written to live state.
func (p *Plan) FirstMonth() MonthPlan { return p.Month(p.Index.Anchor()) }

// Forecast returns the series published for dependent institutions over
// every horizon month: the anchor month carries the realized values, later
// months the forecast. Transfer is keyed by link ID, the rest by node ID.
func (p *Plan) Forecast() map[string]forecast.Series {
	out := map[string]forecast.Series{
		ForecastDelivery:     {},
		ForecastExtraction:   {},
		ForecastTransfer:     {},
		ForecastDeficitRatio: {},
	}
	for _, t := range p.Index.Remaining {
		mp := p.Month(t)
		for id, v := range mp.Delivery {
			out[ForecastDelivery].Set(id, t, v)
		}
		for id, v := range mp.Extraction {
			out[ForecastExtraction].Set(id, t, v)
		}
		for id, v := range mp.Flow {
			out[ForecastTransfer].Set(id, t, v)
		}
		for id, v := range mp.DeficitRatio {
			out[ForecastDeficitRatio].Set(id, t, v)
		}
	}
	return out
}
