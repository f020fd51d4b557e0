// SPDX-License-Identifier: MIT

package dfs

import (
	"errors"
	"sort"
)

// Visitation states.
const (
	White = iota // not visited yet
	Gray         // on the recursion stack
	Black        // fully explored
)

var (
	// ErrGraphNil is returned when a nil *Digraph is passed in.
	ErrGraphNil = errors.New("dfs: graph is nil")

	// ErrCycleDetected indicates that a cycle was encountered during
	// TopologicalSort.
	ErrCycleDetected = errors.New("dfs: cycle detected")
)

// Digraph is a minimal directed graph keyed by string IDs. Parallel edges
// collapse; self-loops are kept and count as cycles.
type Digraph struct {
	adj map[string]map[string]struct{}
}

// NewDigraph returns an empty graph.
func NewDigraph() *Digraph {
	return &Digraph{adj: make(map[string]map[string]struct{})}
}

// AddVertex registers id; re-adding is a no-op.
func (g *Digraph) AddVertex(id string) {
	if _, ok := g.adj[id]; !ok {
		g.adj[id] = make(map[string]struct{})
	}
}

// AddEdge adds from→to, registering both endpoints.
func (g *Digraph) AddEdge(from, to string) {
	g.AddVertex(from)
	g.AddVertex(to)
	g.adj[from][to] = struct{}{}
}

// HasEdge reports whether from→to exists.
func (g *Digraph) HasEdge(from, to string) bool {
	_, ok := g.adj[from][to]
	return ok
}

// Vertices returns all IDs, sorted.
func (g *Digraph) Vertices() []string {
	ids := make([]string, 0, len(g.adj))
	for id := range g.adj {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Successors returns the heads of id's out-edges, sorted.
func (g *Digraph) Successors(id string) []string {
	out := make([]string, 0, len(g.adj[id]))
	for v := range g.adj[id] {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
