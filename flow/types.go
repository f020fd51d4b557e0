// SPDX-License-Identifier: MIT

package flow

import (
	"context"
	"fmt"
	"sort"
)

// ErrSourceNotFound is returned when the specified source vertex is missing.
var ErrSourceNotFound = fmt.Errorf("flow: %w", errSourceNotFound)
var errSourceNotFound = fmt.Errorf("source vertex not found")

// ErrSinkNotFound is returned when the specified sink vertex is missing.
var ErrSinkNotFound = fmt.Errorf("flow: %w", errSinkNotFound)
var errSinkNotFound = fmt.Errorf("sink vertex not found")

// EdgeError is returned when an edge has a negative capacity.
type EdgeError struct {
	From, To string
	Cap      float64
}

func (e EdgeError) Error() string {
	return fmt.Sprintf("flow: negative capacity on edge %q→%q: %g", e.From, e.To, e.Cap)
}

// Algorithm selects the max-flow routine used by MaxDeliverable.
type Algorithm int

const (
	// AlgorithmDinic is the default.
	AlgorithmDinic Algorithm = iota
	AlgorithmEdmondsKarp
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmDinic:
		return "dinic"
	case AlgorithmEdmondsKarp:
		return "edmonds_karp"
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

// ParseAlgorithm maps "dinic" or "edmonds_karp" to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "", "dinic":
		return AlgorithmDinic, nil
	case "edmonds_karp":
		return AlgorithmEdmondsKarp, nil
	}
	return 0, fmt.Errorf("flow: unknown algorithm %q", s)
}

// FlowOptions configures both max-flow algorithms.
//   - Ctx: cancellation; nil means Background.
//   - Epsilon: treat capacities ≤ Epsilon as zero (default 1e-9).
//   - LevelRebuildInterval: for Dinic, rebuild level graph every N augmentations.
//   - Algorithm: the routine MaxDeliverable runs.
//
// Augmentations are logged at V(2) through the logger carried by Ctx.
type FlowOptions struct {
	Ctx                  context.Context
	Epsilon              float64
	LevelRebuildInterval int
	Algorithm            Algorithm
}

// DefaultOptions returns Background context, Epsilon 1e-9 and no forced
// level rebuilds.
func DefaultOptions() FlowOptions {
	return FlowOptions{Ctx: context.Background(), Epsilon: 1e-9}
}

func (o *FlowOptions) normalize() {
	if o.Ctx == nil {
		o.Ctx = context.Background()
	}
	if o.Epsilon <= 0 {
		o.Epsilon = 1e-9
	}
}

// Capacities is a residual network: caps[u][v] is the remaining capacity
// from u to v. Every vertex has an inner map, possibly empty.
type Capacities map[string]map[string]float64

// NewCapacities returns an empty network.
func NewCapacities() Capacities { return Capacities{} }

// AddVertex registers id without edges.
func (c Capacities) AddVertex(id string) {
	if _, ok := c[id]; !ok {
		c[id] = map[string]float64{}
	}
}

// HasVertex reports whether id is registered.
func (c Capacities) HasVertex(id string) bool {
	_, ok := c[id]
	return ok
}

// Add sums cap onto u→v, registering both endpoints. Self-loops are ignored.
func (c Capacities) Add(u, v string, cap float64) error {
	if cap < 0 {
		return EdgeError{From: u, To: v, Cap: cap}
	}
	c.AddVertex(u)
	c.AddVertex(v)
	if u == v {
		return nil
	}
	c[u][v] += cap
	return nil
}

// Cap returns the remaining capacity on u→v.
func (c Capacities) Cap(u, v string) float64 { return c[u][v] }

// Vertices returns the registered IDs, sorted.
func (c Capacities) Vertices() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone deep-copies the network.
func (c Capacities) Clone() Capacities {
	out := make(Capacities, len(c))
	for u, inner := range c {
		m := make(map[string]float64, len(inner))
		for v, x := range inner {
			m[v] = x
		}
		out[u] = m
	}
	return out
}
