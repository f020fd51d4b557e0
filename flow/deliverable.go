// SPDX-License-Identifier: MIT

package flow

import (
	"fmt"
	"math"

	"github.com/go-logr/logr"

	"github.com/katalvlaran/basinflow/core"
)

// Reserved vertex IDs of the super source and super sink.
const (
	SuperSource = "\x00source"
	SuperSink   = "\x00sink"
)

// Deliverable is the supply reachability bound of one month.
type Deliverable struct {
	// Total is the max flow from all supplies to all demands.
	Total float64
	// Demand is the total demand the bound was computed against.
	Demand float64
	// PerNode is the flow reaching each demand node in the max flow found.
	// Only Total is unique; the split is one optimal witness.
	PerNode map[string]float64
}

// Shortfall is demand that no allocation can meet this month.
func (d Deliverable) Shortfall() float64 { return math.Max(0, d.Demand-d.Total) }

// Network builds a Capacities from links. Unbounded links keep an
// infinite capacity; losses are ignored.
func Network(links []core.Link) (Capacities, error) {
	caps := NewCapacities()
	for _, l := range links {
		if err := caps.Add(l.From, l.To, l.Capacity); err != nil {
			return nil, err
		}
	}
	return caps, nil
}

// MaxDeliverable bounds the water that can reach demand nodes from supply
// nodes over links. supply and demand are per-node amounts for one month;
// non-positive entries are skipped. Infinite supplies are rejected with an
// EdgeError since they make the bound meaningless.
func MaxDeliverable(links []core.Link, supply, demand map[string]float64, opts FlowOptions) (Deliverable, error) {
	opts.normalize()
	caps, err := Network(links)
	if err != nil {
		return Deliverable{}, err
	}
	caps.AddVertex(SuperSource)
	caps.AddVertex(SuperSink)

	out := Deliverable{PerNode: make(map[string]float64, len(demand))}
	for id, s := range supply {
		if math.IsInf(s, 0) || math.IsNaN(s) {
			return Deliverable{}, EdgeError{From: SuperSource, To: id, Cap: s}
		}
		if s > 0 {
			if err := caps.Add(SuperSource, id, s); err != nil {
				return Deliverable{}, err
			}
		}
	}
	for id, d := range demand {
		if d <= 0 {
			continue
		}
		out.Demand += d
		out.PerNode[id] = 0
		if err := caps.Add(id, SuperSink, d); err != nil {
			return Deliverable{}, err
		}
	}

	run := Dinic
	switch opts.Algorithm {
	case AlgorithmDinic:
	case AlgorithmEdmondsKarp:
		run = EdmondsKarp
	default:
		return Deliverable{}, fmt.Errorf("flow: unknown algorithm %v", opts.Algorithm)
	}
	total, res, err := run(caps, SuperSource, SuperSink, opts)
	if err != nil {
		return Deliverable{}, err
	}
	out.Total = total
	for id := range out.PerNode {
		// flow on id→sink shows up as the reverse residual
		out.PerNode[id] = res.Cap(SuperSink, id)
	}

	logr.FromContextOrDiscard(opts.Ctx).V(1).Info("deliverable supply",
		"total", out.Total, "demand", out.Demand, "shortfall", out.Shortfall(), "algorithm", opts.Algorithm.String())
	return out, nil
}
