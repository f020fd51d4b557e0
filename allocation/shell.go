// SPDX-License-Identifier: MIT

package allocation

import (
	"errors"
	"fmt"
	"sort"

	"github.com/katalvlaran/basinflow/core"
)

// ErrEmptyShell is returned when an institution governs no nodes.
var ErrEmptyShell = errors.New("allocation: no governed nodes")

// Shell is the cached topology of one institution: governed nodes by role
// and the links between them. It never changes after NewShell, except for
// node bounds refreshed through Refresh.
type Shell struct {
	nodes map[string]core.Node

	Storage     []string
	Groundwater []string
	Demand      []string
	Junction    []string
	// Extractors are nodes with pumping capacity somewhere in the year.
	Extractors []string

	Links []core.Link
	in    map[string][]core.Link
	out   map[string][]core.Link

	groups map[string][]string
}

// NewShell caches the sub-network induced by governed.
func NewShell(net *core.Network, governed []string) (*Shell, error) {
	if len(governed) == 0 {
		return nil, ErrEmptyShell
	}
	keep := make(map[string]bool, len(governed))
	for _, id := range governed {
		if !net.HasNode(id) {
			return nil, fmt.Errorf("allocation: governed node %q: %w", id, core.ErrNodeNotFound)
		}
		keep[id] = true
	}
	view := core.InducedSubnetwork(net, keep)

	s := &Shell{
		nodes:  make(map[string]core.Node, len(keep)),
		in:     make(map[string][]core.Link),
		out:    make(map[string][]core.Link),
		groups: make(map[string][]string),
	}
	for _, id := range view.Nodes() {
		node, err := view.Node(id)
		if err != nil {
			return nil, err
		}
		s.nodes[id] = node
		switch node.Kind {
		case core.KindStorage:
			s.Storage = append(s.Storage, id)
		case core.KindGroundwater:
			s.Groundwater = append(s.Groundwater, id)
		case core.KindDemand:
			s.Demand = append(s.Demand, id)
			if node.Group != "" {
				s.groups[node.Group] = append(s.groups[node.Group], id)
			}
		default:
			s.Junction = append(s.Junction, id)
		}
		if node.CanExtract() {
			s.Extractors = append(s.Extractors, id)
		}
	}
	s.Links = view.Links()
	for _, l := range s.Links {
		s.out[l.From] = append(s.out[l.From], l)
		s.in[l.To] = append(s.in[l.To], l)
	}

	return s, nil
}

// Refresh re-reads node records from the parent network: bounds
// (extraction caps, capacity reductions, storage bounds) and the head that
// prices pumping lift. The rest of the live state is not read by builds.
func (s *Shell) Refresh(net *core.Network) error {
	for id := range s.nodes {
		node, err := net.Node(id)
		if err != nil {
			return fmt.Errorf("allocation: refresh %q: %w", id, err)
		}
		s.nodes[id] = node
	}
	return nil
}

// Governs reports whether id belongs to the shell.
func (s *Shell) Governs(id string) bool {
	_, ok := s.nodes[id]
	return ok
}

// Nodes returns all governed node IDs, sorted.
func (s *Shell) Nodes() []string {
	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Node returns the cached record of id.
func (s *Shell) Node(id string) (core.Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// In and Out return the internal links entering or leaving id.
func (s *Shell) In(id string) []core.Link  { return s.in[id] }
func (s *Shell) Out(id string) []core.Link { return s.out[id] }

// Siblings returns the other demand nodes sharing id's Group.
func (s *Shell) Siblings(id string) []string {
	node := s.nodes[id]
	if node.Group == "" {
		return nil
	}
	var res []string
	for _, other := range s.groups[node.Group] {
		if other != id {
			res = append(res, other)
		}
	}
	return res
}

// Groups returns the sibling group names, sorted.
func (s *Shell) Groups() []string {
	names := make([]string, 0, len(s.groups))
	for g := range s.groups {
		names = append(names, g)
	}
	sort.Strings(names)
	return names
}

// Members returns the demand nodes of group g in shell order.
func (s *Shell) Members(g string) []string { return s.groups[g] }

// Supplies returns the governed storage nodes and extractors, sorted.
func (s *Shell) Supplies() []string {
	seen := map[string]bool{}
	var res []string
	for _, group := range [][]string{s.Storage, s.Extractors} {
		for _, id := range group {
			if !seen[id] {
				seen[id] = true
				res = append(res, id)
			}
		}
	}
	sort.Strings(res)
	return res
}
