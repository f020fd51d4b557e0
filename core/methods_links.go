// SPDX-License-Identifier: MIT

// File: methods_links.go
// Role: Link lifecycle & queries: AddLink/Link/Links/Outgoing/Incoming/UpdateLink/
//       RemoveLink, plus nextLinkID().
//
// Determinism:
//   - Links(), Outgoing() and Incoming() return links in creation order.
//   - nextLinkID() is monotonic ("l" + decimal).
//
// Concurrency:
//   - Mutations under muLink write lock; queries under read lock.
package core

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync/atomic"
)

const linkIDPrefix = 'l'

// AddLink creates a directed link from→to and returns its ID.
//
// Steps:
//  1. Validate endpoints exist and differ.
//  2. Apply options over defaults (unbounded capacity, zero cost, zero loss).
//  3. Validate capacity and loss.
//  4. Under muLink, reject parallel links unless enabled, then register.
//
// Complexity: O(1) amortized.
func (n *Network) AddLink(from, to string, opts ...LinkOption) (string, error) {
	if from == "" || to == "" {
		return "", ErrEmptyNodeID
	}
	if from == to {
		return "", fmt.Errorf("%w: %q", ErrLoopNotAllowed, from)
	}
	if !n.HasNode(from) {
		return "", fmt.Errorf("%w: %q", ErrNodeNotFound, from)
	}
	if !n.HasNode(to) {
		return "", fmt.Errorf("%w: %q", ErrNodeNotFound, to)
	}

	l := &Link{From: from, To: to, Capacity: math.Inf(1)}
	for _, opt := range opts {
		opt(l)
	}
	if l.Capacity < 0 || math.IsNaN(l.Capacity) {
		return "", fmt.Errorf("%w: link %s→%s capacity %g", ErrBadCapacity, from, to, l.Capacity)
	}
	if l.LossFactor < 0 || l.UnitCost*l.LossFactor > 1 {
		return "", fmt.Errorf("%w: link %s→%s loss %g", ErrBadLoss, from, to, l.UnitCost*l.LossFactor)
	}

	n.muLink.Lock()
	defer n.muLink.Unlock()

	if !n.allowParallel {
		for eid := range n.out[from] {
			if n.links[eid].To == to {
				return "", fmt.Errorf("%w: %s→%s", ErrParallelLink, from, to)
			}
		}
	}

	l.seq = atomic.AddUint64(&n.nextLinkID, 1)
	l.ID = formatLinkID(l.seq)
	n.links[l.ID] = l
	n.out[from][l.ID] = struct{}{}
	n.in[to][l.ID] = struct{}{}

	return l.ID, nil
}

func formatLinkID(seq uint64) string {
	var buf [24]byte
	b := append(buf[:0], linkIDPrefix)
	b = strconv.AppendUint(b, seq, 10)

	return string(b)
}

// Link returns a value copy of the link.
func (n *Network) Link(id string) (Link, error) {
	n.muLink.RLock()
	defer n.muLink.RUnlock()
	l, ok := n.links[id]
	if !ok {
		return Link{}, fmt.Errorf("%w: %q", ErrLinkNotFound, id)
	}

	return *l, nil
}

// Links returns copies of all links in creation order.
func (n *Network) Links() []Link {
	n.muLink.RLock()
	out := make([]Link, 0, len(n.links))
	for _, l := range n.links {
		out = append(out, *l)
	}
	n.muLink.RUnlock()
	sortLinks(out)

	return out
}

// LinkCount returns |L|.
func (n *Network) LinkCount() int {
	n.muLink.RLock()
	defer n.muLink.RUnlock()

	return len(n.links)
}

// Outgoing returns copies of links leaving id, in creation order.
func (n *Network) Outgoing(id string) ([]Link, error) {
	return n.adjacent(id, true)
}

// Incoming returns copies of links entering id, in creation order.
func (n *Network) Incoming(id string) ([]Link, error) {
	return n.adjacent(id, false)
}

func (n *Network) adjacent(id string, outgoing bool) ([]Link, error) {
	if !n.HasNode(id) {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	n.muLink.RLock()
	idx := n.in[id]
	if outgoing {
		idx = n.out[id]
	}
	res := make([]Link, 0, len(idx))
	for eid := range idx {
		res = append(res, *n.links[eid])
	}
	n.muLink.RUnlock()
	sortLinks(res)

	return res, nil
}

// UpdateLink applies fn to the stored link under the write lock.
// Endpoints and ID are restored after fn returns.
func (n *Network) UpdateLink(id string, fn func(*Link)) error {
	n.muLink.Lock()
	defer n.muLink.Unlock()
	l, ok := n.links[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrLinkNotFound, id)
	}
	from, to, seq := l.From, l.To, l.seq
	fn(l)
	l.ID, l.From, l.To, l.seq = id, from, to, seq

	return nil
}

// RemoveLink deletes a link, for instance a canal taken out of service.
// IDs are never reused.
func (n *Network) RemoveLink(id string) error {
	n.muLink.Lock()
	defer n.muLink.Unlock()
	l, ok := n.links[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrLinkNotFound, id)
	}
	delete(n.out[l.From], id)
	delete(n.in[l.To], id)
	delete(n.links, id)

	return nil
}

func sortLinks(ls []Link) {
	sort.Slice(ls, func(i, j int) bool { return ls[i].seq < ls[j].seq })
}
