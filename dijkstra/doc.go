// SPDX-License-Identifier: MIT

// Package dijkstra computes shortest road distances on an undirected road
// graph with non-negative lengths (kilometres), as used to decide which
// tanker sellers can reach which buyers.
//
// Complexity:
//
//   - Time:  O((V + E) log V) with a lazy-decrease-key binary heap.
//   - Space: O(V + E)
//
// Notes:
//
//   - Negative lengths are rejected when the road is added.
//   - Roads with length ≥ InfEdgeThreshold are impassable.
//   - Exploration stops once the closest heap entry exceeds MaxDistance.
package dijkstra
