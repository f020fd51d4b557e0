// SPDX-License-Identifier: MIT

package flow

import (
	"math"

	"github.com/go-logr/logr"
)

// EdmondsKarp computes the maximum flow from source to sink by repeatedly
// augmenting along a shortest (fewest-arc) residual path.
//
// Returns the flow value and the residual network; caps is not modified.
//
// Complexity: O(V · E²)
// Memory:     O(V + E)
func EdmondsKarp(caps Capacities, source, sink string, opts FlowOptions) (maxFlow float64, residual Capacities, err error) {
	opts.normalize()
	ctx, eps := opts.Ctx, opts.Epsilon
	log := logr.FromContextOrDiscard(ctx)

	res, err := prepare(caps, source, sink, opts)
	if err != nil {
		return 0, nil, err
	}

	for {
		if err = ctx.Err(); err != nil {
			return maxFlow, nil, err
		}
		path, bottle := bfsAugmentingPath(res, source, sink, eps)
		if len(path) == 0 || bottle <= eps {
			break
		}
		log.V(2).Info("augmenting path", "path", path, "flow", bottle)
		maxFlow += bottle
		for i := 0; i < len(path)-1; i++ {
			augment(res, path[i], path[i+1], bottle)
		}
	}

	return maxFlow, res, nil
}

// bfsAugmentingPath returns the shortest residual path source→sink with
// its bottleneck, or nil when the sink is unreachable.
func bfsAugmentingPath(res Capacities, source, sink string, eps float64) ([]string, float64) {
	parent := make(map[string]string, len(res))
	bottle := map[string]float64{source: math.Inf(1)}
	visited := map[string]bool{source: true}

	queue := []string{source}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range sortedNeighbors(res, u, eps) {
			if visited[v] {
				continue
			}
			visited[v] = true
			parent[v] = u
			bottle[v] = math.Min(bottle[u], res[u][v])
			if v == sink {
				path := []string{sink}
				for cur := sink; cur != source; {
					p := parent[cur]
					path = append([]string{p}, path...)
					cur = p
				}
				return path, bottle[sink]
			}
			queue = append(queue, v)
		}
	}
	return nil, 0
}
