// SPDX-License-Identifier: MIT

package dijkstra

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Sentinel errors.
var (
	// ErrEmptySource indicates that the provided source vertex ID is empty.
	ErrEmptySource = errors.New("dijkstra: source vertex ID is empty")

	// ErrNilGraph indicates that a nil *RoadGraph was passed to Dijkstra.
	ErrNilGraph = errors.New("dijkstra: graph is nil")

	// ErrVertexNotFound indicates that the source vertex does not exist.
	ErrVertexNotFound = errors.New("dijkstra: source vertex not found in graph")

	// ErrNegativeWeight indicates a negative or NaN road length.
	ErrNegativeWeight = errors.New("dijkstra: negative edge weight encountered")

	// ErrBadMaxDistance indicates that MaxDistance was negative.
	ErrBadMaxDistance = errors.New("dijkstra: MaxDistance must be non-negative")

	// ErrBadInfThreshold indicates that InfEdgeThreshold was zero or negative.
	ErrBadInfThreshold = errors.New("dijkstra: InfEdgeThreshold must be positive")
)

// RoadGraph is an undirected weighted graph of road segments. Parallel
// roads keep the shortest length.
type RoadGraph struct {
	adj map[string]map[string]float64
}

// NewRoadGraph returns an empty graph.
func NewRoadGraph() *RoadGraph {
	return &RoadGraph{adj: make(map[string]map[string]float64)}
}

// AddVertex registers id.
func (g *RoadGraph) AddVertex(id string) {
	if _, ok := g.adj[id]; !ok {
		g.adj[id] = make(map[string]float64)
	}
}

// HasVertex reports whether id is registered.
func (g *RoadGraph) HasVertex(id string) bool {
	_, ok := g.adj[id]
	return ok
}

// AddRoad adds an a–b segment of length km.
func (g *RoadGraph) AddRoad(a, b string, km float64) error {
	if km < 0 || math.IsNaN(km) {
		return fmt.Errorf("%w: road %s–%s length=%g", ErrNegativeWeight, a, b, km)
	}
	g.AddVertex(a)
	g.AddVertex(b)
	if a == b {
		return nil
	}
	if old, ok := g.adj[a][b]; ok && old <= km {
		return nil
	}
	g.adj[a][b] = km
	g.adj[b][a] = km
	return nil
}

// Vertices returns all IDs, sorted.
func (g *RoadGraph) Vertices() []string {
	ids := make([]string, 0, len(g.adj))
	for id := range g.adj {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Options configures the behavior of Dijkstra.
//
// Source           – starting vertex ID (must be non-empty and present).
// ReturnPath       – if true, return the predecessor map.
// MaxDistance      – vertices farther than this are not explored (≥ 0).
// InfEdgeThreshold – roads with length ≥ this are impassable (> 0).
type Options struct {
	Source           string
	ReturnPath       bool
	MaxDistance      float64
	InfEdgeThreshold float64
}

// Option represents a functional option for configuring Dijkstra.
type Option func(*Options)

// Source sets the starting vertex ID.
func Source(str string) Option {
	return func(o *Options) { o.Source = str }
}

// WithReturnPath enables the predecessor map in the result.
func WithReturnPath() Option {
	return func(o *Options) { o.ReturnPath = true }
}

// WithMaxDistance caps the explored distance. Negative values make
// Dijkstra return ErrBadMaxDistance.
func WithMaxDistance(max float64) Option {
	return func(o *Options) { o.MaxDistance = max }
}

// WithInfEdgeThreshold marks roads at least this long as impassable.
// Non-positive values make Dijkstra return ErrBadInfThreshold.
func WithInfEdgeThreshold(threshold float64) Option {
	return func(o *Options) { o.InfEdgeThreshold = threshold }
}

// DefaultOptions returns options for source with no distance cap and no
// impassable roads.
func DefaultOptions(source string) Options {
	return Options{
		Source:           source,
		MaxDistance:      math.Inf(1),
		InfEdgeThreshold: math.Inf(1),
	}
}
