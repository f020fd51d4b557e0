// SPDX-License-Identifier: MIT

package dijkstra

import (
	"container/heap"
	"math"
)

// Dijkstra computes shortest distances from Options.Source to every vertex
// of g.
//
// Returns:
//
//   - dist: vertex ID → distance (+Inf if unreachable or beyond MaxDistance).
//   - prev: predecessor map when ReturnPath is set (nil otherwise);
//     prev[v] == "" for the source and unreachable vertices.
//   - err:  ErrEmptySource, ErrNilGraph, ErrVertexNotFound,
//     ErrBadMaxDistance or ErrBadInfThreshold.
func Dijkstra(g *RoadGraph, opts ...Option) (map[string]float64, map[string]string, error) {
	cfg := DefaultOptions("")
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.Source == "" {
		return nil, nil, ErrEmptySource
	}
	if g == nil {
		return nil, nil, ErrNilGraph
	}
	if !g.HasVertex(cfg.Source) {
		return nil, nil, ErrVertexNotFound
	}
	if cfg.MaxDistance < 0 || math.IsNaN(cfg.MaxDistance) {
		return nil, nil, ErrBadMaxDistance
	}
	if cfg.InfEdgeThreshold <= 0 || math.IsNaN(cfg.InfEdgeThreshold) {
		return nil, nil, ErrBadInfThreshold
	}

	r := &runner{
		g:       g,
		options: cfg,
		dist:    make(map[string]float64, len(g.adj)),
		prev:    make(map[string]string, len(g.adj)),
		visited: make(map[string]bool, len(g.adj)),
	}
	r.init()
	r.process()

	if !cfg.ReturnPath {
		return r.dist, nil, nil
	}
	return r.dist, r.prev, nil
}

// Path rebuilds source→target from a predecessor map. It returns nil if
// target was not reached.
func Path(prev map[string]string, source, target string) []string {
	if source == target {
		return []string{source}
	}
	if prev[target] == "" {
		return nil
	}
	var rev []string
	for cur := target; cur != ""; cur = prev[cur] {
		rev = append(rev, cur)
		if cur == source {
			break
		}
	}
	if rev[len(rev)-1] != source {
		return nil
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

type runner struct {
	g       *RoadGraph
	options Options
	dist    map[string]float64
	prev    map[string]string
	visited map[string]bool
	pq      nodePQ
}

func (r *runner) init() {
	for _, v := range r.g.Vertices() {
		r.dist[v] = math.Inf(1)
		r.prev[v] = ""
	}
	r.dist[r.options.Source] = 0
	heap.Init(&r.pq)
	heap.Push(&r.pq, &nodeItem{id: r.options.Source, dist: 0})
}

// process pops vertices in distance order until the heap is empty or the
// closest entry lies beyond MaxDistance.
func (r *runner) process() {
	for r.pq.Len() > 0 {
		item := heap.Pop(&r.pq).(*nodeItem)
		if r.visited[item.id] {
			continue
		}
		if item.dist > r.options.MaxDistance {
			break
		}
		r.visited[item.id] = true
		r.relax(item.id)
	}
}

func (r *runner) relax(u string) {
	for v, w := range r.g.adj[u] {
		if w >= r.options.InfEdgeThreshold {
			continue
		}
		newDist := r.dist[u] + w
		if newDist > r.options.MaxDistance || newDist >= r.dist[v] {
			continue
		}
		r.dist[v] = newDist
		r.prev[v] = u
		heap.Push(&r.pq, &nodeItem{id: v, dist: newDist})
	}
}

type nodeItem struct {
	id   string
	dist float64
}

// nodePQ is a min-heap of *nodeItem ordered by dist, ties by ID.
type nodePQ []*nodeItem

func (pq nodePQ) Len() int { return len(pq) }
func (pq nodePQ) Less(i, j int) bool {
	if pq[i].dist != pq[j].dist {
		return pq[i].dist < pq[j].dist
	}
	return pq[i].id < pq[j].id
}
func (pq nodePQ) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *nodePQ) Push(x interface{}) { *pq = append(*pq, x.(*nodeItem)) }
func (pq *nodePQ) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]

	return item
}
