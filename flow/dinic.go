// SPDX-License-Identifier: MIT

package flow

import (
	"math"

	"github.com/go-logr/logr"
)

// Dinic computes the maximum flow from source to sink using Dinic's
// algorithm (level graph + blocking flows).
//
// It returns the total flow and the residual network; caps is not modified.
//
// Steps:
//  1. Normalize options and validate endpoints.
//  2. Repeat until the sink is unreachable:
//     a. BFS from source builds the level of each vertex.
//     b. next[u] keeps the level-graph arcs u→v with level[v] = level[u]+1.
//     c. DFS pushes blocking flow, optionally rebuilding the level graph
//     every LevelRebuildInterval augmentations.
func Dinic(caps Capacities, source, sink string, opts FlowOptions) (maxFlow float64, residual Capacities, err error) {
	opts.normalize()
	ctx, eps := opts.Ctx, opts.Epsilon
	log := logr.FromContextOrDiscard(ctx)

	res, err := prepare(caps, source, sink, opts)
	if err != nil {
		return 0, nil, err
	}

	augmentCount := 0
	for {
		if err = ctx.Err(); err != nil {
			return maxFlow, nil, err
		}

		level := make(map[string]int, len(res))
		for u := range res {
			level[u] = -1
		}
		queue := []string{source}
		level[source] = 0
		for i := 0; i < len(queue); i++ {
			u := queue[i]
			for _, v := range sortedNeighbors(res, u, eps) {
				if level[v] < 0 {
					level[v] = level[u] + 1
					queue = append(queue, v)
				}
			}
		}
		if level[sink] < 0 {
			break
		}

		next := make(map[string][]string, len(res))
		for u := range res {
			for _, v := range sortedNeighbors(res, u, eps) {
				if level[v] == level[u]+1 {
					next[u] = append(next[u], v)
				}
			}
		}

		iter := make(map[string]int, len(next))
		for {
			if err = ctx.Err(); err != nil {
				return maxFlow, nil, err
			}
			pushed := dinicPush(res, next, iter, source, sink, math.Inf(1), eps)
			if pushed <= eps {
				break
			}
			maxFlow += pushed
			augmentCount++
			log.V(2).Info("dinic augmentation", "pushed", pushed, "total", maxFlow)
			if opts.LevelRebuildInterval > 0 && augmentCount%opts.LevelRebuildInterval == 0 {
				break
			}
		}
	}

	return maxFlow, res, nil
}

// dinicPush pushes flow along the level graph and returns the amount sent.
func dinicPush(res Capacities, next map[string][]string, iter map[string]int, u, sink string, available, eps float64) float64 {
	if u == sink {
		return available
	}
	for i := iter[u]; i < len(next[u]); i++ {
		v := next[u][i]
		capUV := res[u][v]
		if capUV <= eps {
			iter[u] = i + 1
			continue
		}
		send := math.Min(available, capUV)
		pushed := dinicPush(res, next, iter, v, sink, send, eps)
		if pushed > eps {
			augment(res, u, v, pushed)
			return pushed
		}
		iter[u] = i + 1
	}

	return 0
}
