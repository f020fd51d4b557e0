// SPDX-License-Identifier: MIT

// Package dfs implements depth-first topological sort and cycle detection
// on small directed graphs, such as the producer→consumer dependencies
// between institutions.
//
//   - TopologicalSort: a linear order with every edge u→v placing u before v,
//     or ErrCycleDetected.
//   - DetectCycles: every simple cycle found by back edges, canonicalized by
//     minimal rotation (Booth's algorithm) and sorted.
//
// Complexity:
//
//   - TopologicalSort: Time O(V+E), Memory O(V)
//   - DetectCycles:    Time O(V+E + C·L), Memory O(V+L_max)
//
// Vertices and neighbours are visited in ID order, so results are
// deterministic.
package dfs
