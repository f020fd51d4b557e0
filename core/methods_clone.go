// SPDX-License-Identifier: MIT

// File: methods_clone.go
// Role: Cloning network instances.
// Determinism:
//   - Clone carries over nextLinkID so link IDs stay monotonic on the clone.
// Concurrency:
//   - Read locks for snapshotting; no mutation of the source network.

package core

import "sync/atomic"

// CloneEmpty returns a new Network with identical configuration and nodes
// (state included) but no links.
//
// Complexity: O(V).
func (n *Network) CloneEmpty() *Network {
	n.muNode.RLock()
	defer n.muNode.RUnlock()
	n.muLink.RLock()
	defer n.muLink.RUnlock()

	clone := &Network{
		allowParallel: n.allowParallel,
		nodes:         make(map[string]*Node, len(n.nodes)),
		links:         make(map[string]*Link),
		out:           make(map[string]map[string]struct{}, len(n.nodes)),
		in:            make(map[string]map[string]struct{}, len(n.nodes)),
	}
	atomic.StoreUint64(&clone.nextLinkID, atomic.LoadUint64(&n.nextLinkID))
	for id, node := range n.nodes {
		cp := *node
		clone.nodes[id] = &cp
		clone.out[id] = make(map[string]struct{})
		clone.in[id] = make(map[string]struct{})
	}

	return clone
}

// Clone returns a deep copy of the Network: configuration, nodes, links and
// live state. Link IDs and creation order are preserved.
//
// Complexity: O(V + L).
func (n *Network) Clone() *Network {
	clone := n.CloneEmpty()
	n.muLink.RLock()
	defer n.muLink.RUnlock()
	for eid, l := range n.links {
		cp := *l
		clone.links[eid] = &cp
		clone.out[l.From][eid] = struct{}{}
		clone.in[l.To][eid] = struct{}{}
	}

	return clone
}
