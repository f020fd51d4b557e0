// SPDX-License-Identifier: MIT

// File: methods_nodes.go
// Role: Node lifecycle, queries and state updates.
//
// Determinism:
//   - Nodes() and NodesOfKind() return IDs sorted ascending.
//
// Concurrency:
//   - Node catalog protected by muNode.
//   - Adjacency bootstrap under muLink.
package core

import (
	"fmt"
	"sort"
)

// AddNode inserts a node if missing.
//
// Adding an existing ID with the same kind is a no-op (options are ignored);
// with a different kind it returns ErrNodeExists.
//
// Complexity: O(1).
func (n *Network) AddNode(id string, kind NodeKind, opts ...NodeOption) error {
	if id == "" {
		return ErrEmptyNodeID
	}

	node := &Node{ID: id, Kind: kind}
	for _, opt := range opts {
		opt(node)
	}
	if err := validateNode(node); err != nil {
		return err
	}

	n.muNode.Lock()
	if cur, ok := n.nodes[id]; ok {
		n.muNode.Unlock()
		if cur.Kind != kind {
			return fmt.Errorf("%w: %q is %s", ErrNodeExists, id, cur.Kind)
		}
		return nil
	}
	n.nodes[id] = node
	n.muNode.Unlock()

	n.muLink.Lock()
	if _, ok := n.out[id]; !ok {
		n.out[id] = make(map[string]struct{})
	}
	if _, ok := n.in[id]; !ok {
		n.in[id] = make(map[string]struct{})
	}
	n.muLink.Unlock()

	return nil
}

func validateNode(node *Node) error {
	if node.StorageMin < 0 || node.StorageMax < node.StorageMin {
		return fmt.Errorf("%w: storage bounds [%g,%g] on %q", ErrBadCapacity, node.StorageMin, node.StorageMax, node.ID)
	}
	for m, c := range node.ExtractionCap {
		if c < 0 {
			return fmt.Errorf("%w: extraction cap %g in month %d on %q", ErrBadCapacity, c, m+1, node.ID)
		}
	}
	if node.CapacityReduction < 0 || node.CapacityReduction > 1 {
		return fmt.Errorf("%w: capacity reduction %g on %q", ErrBadLoss, node.CapacityReduction, node.ID)
	}

	return nil
}

// HasNode reports whether the node exists.
func (n *Network) HasNode(id string) bool {
	n.muNode.RLock()
	_, ok := n.nodes[id]
	n.muNode.RUnlock()

	return ok
}

// Node returns a value copy of the node.
func (n *Network) Node(id string) (Node, error) {
	n.muNode.RLock()
	defer n.muNode.RUnlock()
	node, ok := n.nodes[id]
	if !ok {
		return Node{}, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}

	return *node, nil
}

// Nodes returns all node IDs sorted ascending.
func (n *Network) Nodes() []string {
	n.muNode.RLock()
	ids := make([]string, 0, len(n.nodes))
	for id := range n.nodes {
		ids = append(ids, id)
	}
	n.muNode.RUnlock()
	sort.Strings(ids)

	return ids
}

// NodesOfKind returns the IDs of nodes with the given kind, sorted ascending.
func (n *Network) NodesOfKind(kind NodeKind) []string {
	n.muNode.RLock()
	ids := make([]string, 0)
	for id, node := range n.nodes {
		if node.Kind == kind {
			ids = append(ids, id)
		}
	}
	n.muNode.RUnlock()
	sort.Strings(ids)

	return ids
}

// NodeCount returns |V|.
func (n *Network) NodeCount() int {
	n.muNode.RLock()
	defer n.muNode.RUnlock()

	return len(n.nodes)
}

// UpdateNode applies fn to the stored node under the write lock.
// fn must not change ID or Kind; such changes are reverted.
func (n *Network) UpdateNode(id string, fn func(*Node)) error {
	n.muNode.Lock()
	defer n.muNode.Unlock()
	node, ok := n.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	kind := node.Kind
	fn(node)
	node.ID, node.Kind = id, kind

	return nil
}
