// SPDX-License-Identifier: MIT

// Package core provides the thread-safe in-memory water network used by every
// allocation component: typed nodes (reservoirs, groundwater units, demand
// points, junctions) joined by directed transfer links.
//
// The Network N = (V,L) supports:
//
//   - Typed node records (Node) with capacity bounds, monthly extraction caps,
//     capacity-reduction factors and live physical state.
//   - Directed links (Link) with capacity, unit transfer cost and loss factor.
//   - Separate sync.RWMutex for nodes (muNode) and links+adjacency (muLink)
//     to keep contention low when result readers run next to a writer.
//   - Collision-free atomic Link.ID generation ("l1", "l2", ...).
//
// Determinism:
//
//   - Nodes(), NodesOfKind(), Links(), Outgoing() and Incoming() return
//     results in a stable order (nodes by ID, links by creation sequence).
//     Model builders rely on this to produce identical column layouts for
//     identical inputs.
//
// Topology vs. state:
//
//   - Topology (node set, link endpoints, bounds) is fixed once the network is
//     built. Only live state (Volume, Pumping, Head, Delivery, Deficit, Flow)
//     changes during a run, through UpdateNode and UpdateLink.
//   - Induced sub-networks (InducedSubnetwork) give each institution its own
//     governed slice without copying state ownership: read accessors return
//     value copies, writes go through the parent network.
//
// Core methods:
//
//	AddNode(id, kind, opts...) error             // O(1)
//	AddLink(from, to, opts...) (linkID, error)   // O(1)
//	Node(id) (Node, error)                       // O(1), value copy
//	Link(id) (Link, error)                       // O(1), value copy
//	Nodes() []string                             // O(V log V)
//	NodesOfKind(kind) []string                   // O(V log V)
//	Links() []Link                               // O(L log L)
//	Outgoing(id) / Incoming(id) ([]Link, error)  // O(d log d)
//	UpdateNode(id, fn) / UpdateLink(id, fn)      // O(1) under write lock
//	Clone() *Network                             // O(V + L)
package core
