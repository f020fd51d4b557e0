// SPDX-License-Identifier: MIT

// File: view.go
// Role: Non-mutating network views.
// Determinism:
//   - Preserves node IDs, link IDs and link creation order.
// Concurrency:
//   - Read locks on source; result is a fresh network instance.

package core

import "sync/atomic"

// InducedSubnetwork returns a new Network containing only the nodes in keep
// and the links whose endpoints are both kept. The input is not mutated.
//
// Institutions use it once at construction to cache the topology they govern;
// state values in the view are a snapshot and must be refreshed from the
// parent network before use.
//
// Complexity: O(V + L).
func InducedSubnetwork(n *Network, keep map[string]bool) *Network {
	out := NewNetwork()
	out.allowParallel = n.allowParallel

	n.muNode.RLock()
	for id, node := range n.nodes {
		if !keep[id] {
			continue
		}
		cp := *node
		out.nodes[id] = &cp
		out.out[id] = make(map[string]struct{})
		out.in[id] = make(map[string]struct{})
	}
	n.muNode.RUnlock()

	n.muLink.RLock()
	srcNext := atomic.LoadUint64(&n.nextLinkID)
	for eid, l := range n.links {
		if !keep[l.From] || !keep[l.To] {
			continue
		}
		cp := *l
		out.links[eid] = &cp
		out.out[l.From][eid] = struct{}{}
		out.in[l.To][eid] = struct{}{}
	}
	n.muLink.RUnlock()

	// Carry the counter so links added to the view cannot collide with parent IDs.
	atomic.StoreUint64(&out.nextLinkID, srcNext)

	return out
}

// BoundaryLinks returns links with exactly one endpoint in keep, in creation
// order. Flows on these links are exogenous to an institution that governs
// keep and enter its model through forecasts.
func BoundaryLinks(n *Network, keep map[string]bool) []Link {
	var res []Link
	for _, l := range n.Links() {
		if keep[l.From] != keep[l.To] {
			res = append(res, l)
		}
	}

	return res
}
