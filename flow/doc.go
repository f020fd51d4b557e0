// SPDX-License-Identifier: MIT

// Package flow computes maximum flows over the water network and the upper
// bound of water deliverable from supply nodes to demand nodes.
//
// Two augmenting-path algorithms share one residual representation:
//
//   - Dinic
//
//   - Method: level graph construction + blocking flow via DFS.
//
//   - Time:   O(V²·E) worst case, far less on the shallow networks seen here.
//
//   - Memory: O(V + E) for level map, adjacency slices, and recursion state.
//
//   - EdmondsKarp
//
//   - Method: breadth-first search for shortest augmenting paths.
//
//   - Time:   O(V·E²).
//
//   - Memory: O(V + E).
//
// # Residual representation
//
// Capacities is a nested map caps[u][v] of remaining capacity. Parallel
// links are summed when a Capacities is built from core links; self-loops
// never enter it. Both algorithms work on a clone and return the residual.
//
// # Deliverable supply
//
// MaxDeliverable wires a super source to every supply node (capacity =
// available supply that month) and every demand node to a super sink
// (capacity = demand) and runs Dinic. Link losses are ignored, so the result
// is an upper bound on what any allocation can deliver.
//
// # Errors
//
//	ErrSourceNotFound - the source vertex is missing.
//	ErrSinkNotFound   - the sink vertex is missing.
//	EdgeError         - a negative capacity (beyond Epsilon) was supplied.
//	context.Canceled / context.DeadlineExceeded - opts.Ctx was canceled.
package flow
