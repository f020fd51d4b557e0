// SPDX-License-Identifier: MIT

package market

import (
	"math"
	"sync"

	"github.com/katalvlaran/basinflow/dijkstra"
)

// DistanceSource returns the road distance in km from a buyer location to
// a seller location, and false when the two are not connected.
type DistanceSource interface {
	Distance(from, to string) (float64, bool)
}

// DistanceTable is a precomputed from→to distance table. Lookups fall back
// to the reverse direction.
type DistanceTable map[string]map[string]float64

// Set records the from→to distance.
func (t DistanceTable) Set(from, to string, km float64) {
	if t[from] == nil {
		t[from] = make(map[string]float64)
	}
	t[from][to] = km
}

// Distance implements DistanceSource.
func (t DistanceTable) Distance(from, to string) (float64, bool) {
	if from == to {
		return 0, true
	}
	if km, ok := t[from][to]; ok {
		return km, true
	}
	km, ok := t[to][from]
	return km, ok
}

// Roads derives distances from a road graph with Dijkstra, one run per
// buyer location, cached for the life of the value.
type Roads struct {
	g     *dijkstra.RoadGraph
	mu    sync.Mutex
	cache map[string]map[string]float64
}

// NewRoads wraps g.
func NewRoads(g *dijkstra.RoadGraph) *Roads {
	return &Roads{g: g, cache: make(map[string]map[string]float64)}
}

// Distance implements DistanceSource. Locations absent from the graph are
// unreachable.
func (r *Roads) Distance(from, to string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dist, ok := r.cache[from]
	if !ok {
		var err error
		dist, _, err = dijkstra.Dijkstra(r.g, dijkstra.Source(from))
		if err != nil {
			dist = nil
		}
		r.cache[from] = dist
	}
	km, ok := dist[to]
	if !ok || math.IsInf(km, 1) {
		return 0, false
	}
	return km, true
}
