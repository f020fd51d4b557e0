// SPDX-License-Identifier: MIT

// File: types.go
// Role: Node, Link, Network declarations, functional options, sentinel errors
//       and the NewNetwork constructor.
//
// Errors:
//
//	ErrEmptyNodeID     - node ID is the empty string.
//	ErrNodeNotFound    - requested node does not exist.
//	ErrNodeExists      - node re-added with a different kind.
//	ErrLinkNotFound    - requested link does not exist.
//	ErrLoopNotAllowed  - link from a node to itself.
//	ErrParallelLink    - second link between the same endpoints without WithParallelLinks.
//	ErrBadCapacity     - negative capacity or storage bound.
//	ErrBadLoss         - loss factor outside [0,1] or reduction outside [0,1].
package core

import (
	"errors"
	"math"
	"sync"
)

// Months is the length of the calendar cycle used by monthly caps.
const Months = 12

// Sentinel errors for network operations.
var (
	// ErrEmptyNodeID indicates that the provided node ID is empty.
	ErrEmptyNodeID = errors.New("core: node ID is empty")

	// ErrNodeNotFound indicates an operation referenced a non-existent node.
	ErrNodeNotFound = errors.New("core: node not found")

	// ErrNodeExists indicates a node was re-added with a conflicting kind.
	ErrNodeExists = errors.New("core: node already exists with another kind")

	// ErrLinkNotFound indicates an operation referenced a non-existent link.
	ErrLinkNotFound = errors.New("core: link not found")

	// ErrLoopNotAllowed indicates a link from a node to itself.
	ErrLoopNotAllowed = errors.New("core: self-loop link not allowed")

	// ErrParallelLink indicates a parallel link when parallel links are disabled.
	ErrParallelLink = errors.New("core: parallel links not allowed")

	// ErrBadCapacity indicates a negative capacity or inverted bounds.
	ErrBadCapacity = errors.New("core: bad capacity")

	// ErrBadLoss indicates a fraction outside [0,1].
	ErrBadLoss = errors.New("core: fraction outside [0,1]")
)

// NodeKind classifies the physical role of a node.
type NodeKind uint8

const (
	// KindJunction passes water through without storage or demand.
	KindJunction NodeKind = iota
	// KindStorage is a reservoir with a storage transition.
	KindStorage
	// KindGroundwater is a well field or groundwater unit that can be pumped.
	KindGroundwater
	// KindDemand consumes water and may pump from local wells.
	KindDemand
)

// String implements fmt.Stringer.
func (k NodeKind) String() string {
	switch k {
	case KindJunction:
		return "junction"
	case KindStorage:
		return "storage"
	case KindGroundwater:
		return "groundwater"
	case KindDemand:
		return "demand"
	default:
		return "unknown"
	}
}

// ParseNodeKind maps a textual kind (as found in scenario files) to NodeKind.
func ParseNodeKind(s string) (NodeKind, bool) {
	switch s {
	case "junction":
		return KindJunction, true
	case "storage", "reservoir":
		return KindStorage, true
	case "groundwater", "gw":
		return KindGroundwater, true
	case "demand":
		return KindDemand, true
	default:
		return KindJunction, false
	}
}

// Node is a physical or administrative point of the water network.
//
// Bounds are fixed at construction; the state block is rewritten every period
// by the institution that governs the node (first horizon month only).
type Node struct {
	// ID is the unique identifier for this Node.
	ID string

	// Kind is the physical role.
	Kind NodeKind

	// Group ties sibling demand nodes together for node-to-node smoothing.
	Group string

	// StorageMin and StorageMax bound reservoir storage (KindStorage only).
	StorageMin float64
	StorageMax float64

	// ExtractionCap is the monthly pumping cap indexed by month-1.
	ExtractionCap [Months]float64

	// ExtractionCost is the cost per unit pumped.
	ExtractionCost float64

	// CapacityReduction in [0,1] scales the cap down: cap*(1-CapacityReduction).
	CapacityReduction float64

	// Elevation is the ground level at the wellhead, in the units of Head.
	Elevation float64

	// Live state.
	Volume   float64
	Pumping  float64
	Head     float64
	Delivery float64
	Deficit  float64
}

// Lift is the pumping lift from the current head to the surface, never
// negative.
func (n Node) Lift() float64 {
	return math.Max(0, n.Elevation-n.Head)
}

// EffectiveCap returns the extraction cap for month (1..12) after the
// capacity-reduction factor is applied.
func (n Node) EffectiveCap(month int) float64 {
	if month < 1 || month > Months {
		return 0
	}
	return n.ExtractionCap[month-1] * (1 - n.CapacityReduction)
}

// CanExtract reports whether the node has any pumping capacity in the year.
func (n Node) CanExtract() bool {
	if n.Kind != KindGroundwater && n.Kind != KindDemand {
		return false
	}
	for _, c := range n.ExtractionCap {
		if c > 0 {
			return true
		}
	}
	return false
}

// Link is a directed transfer edge between two nodes.
type Link struct {
	// ID uniquely identifies this link in the Network ("l1", "l2", ...).
	ID string

	// From is the source node ID.
	From string

	// To is the destination node ID.
	To string

	// Capacity bounds the monthly flow; +Inf when unbounded.
	Capacity float64

	// UnitCost is the transfer cost per unit of flow.
	UnitCost float64

	// LossFactor is the fraction lost per unit of cost (see Delivered).
	LossFactor float64

	// Flow is the live first-month flow.
	Flow float64

	seq uint64 // creation order, drives deterministic listing
}

// Delivered returns the fraction of the sent volume that reaches To:
// 1 - UnitCost*LossFactor, clamped to [0,1].
func (l Link) Delivered() float64 {
	f := 1 - l.UnitCost*l.LossFactor
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// NetworkOption configures a Network before creation.
type NetworkOption func(n *Network)

// WithParallelLinks permits several links between the same endpoints.
func WithParallelLinks() NetworkOption {
	return func(n *Network) { n.allowParallel = true }
}

// NodeOption configures a Node when added.
type NodeOption func(*Node)

// WithGroup sets the sibling group used by node-to-node smoothing.
func WithGroup(group string) NodeOption {
	return func(n *Node) { n.Group = group }
}

// WithStorageBounds sets reservoir bounds.
func WithStorageBounds(min, max float64) NodeOption {
	return func(n *Node) { n.StorageMin, n.StorageMax = min, max }
}

// WithExtractionCaps sets the monthly extraction caps (January first).
func WithExtractionCaps(caps [Months]float64) NodeOption {
	return func(n *Node) { n.ExtractionCap = caps }
}

// WithUniformExtractionCap sets the same cap for every month.
func WithUniformExtractionCap(c float64) NodeOption {
	return func(n *Node) {
		for i := range n.ExtractionCap {
			n.ExtractionCap[i] = c
		}
	}
}

// WithExtractionCost sets the per-unit pumping cost.
func WithExtractionCost(c float64) NodeOption {
	return func(n *Node) { n.ExtractionCost = c }
}

// WithCapacityReduction sets the externally supplied cap reduction factor.
func WithCapacityReduction(r float64) NodeOption {
	return func(n *Node) { n.CapacityReduction = r }
}

// WithVolume sets the initial reservoir volume.
func WithVolume(v float64) NodeOption {
	return func(n *Node) { n.Volume = v }
}

// WithElevation sets the ground elevation used for pumping lift.
func WithElevation(z float64) NodeOption {
	return func(n *Node) { n.Elevation = z }
}

// WithHead sets the initial groundwater head.
func WithHead(h float64) NodeOption {
	return func(n *Node) { n.Head = h }
}

// LinkOption configures a Link when added.
type LinkOption func(*Link)

// WithCapacity bounds the monthly flow on the link.
func WithCapacity(c float64) LinkOption {
	return func(l *Link) { l.Capacity = c }
}

// WithUnitCost sets the transfer cost per unit.
func WithUnitCost(c float64) LinkOption {
	return func(l *Link) { l.UnitCost = c }
}

// WithLossFactor sets the loss per unit of cost.
func WithLossFactor(f float64) LinkOption {
	return func(l *Link) { l.LossFactor = f }
}

// Network is the in-memory water network.
//
// muNode protects nodes; muLink protects links and the in/out indexes.
// nextLinkID is an atomic counter for unique Link.ID generation.
type Network struct {
	muNode sync.RWMutex // guards nodes
	muLink sync.RWMutex // guards links, out, in

	allowParallel bool

	nextLinkID uint64
	nodes      map[string]*Node
	links      map[string]*Link

	// out[from][linkID], in[to][linkID]
	out map[string]map[string]struct{}
	in  map[string]map[string]struct{}
}

// NewNetwork creates an empty Network.
// By default, parallel links are rejected.
// Complexity: O(1)
func NewNetwork(opts ...NetworkOption) *Network {
	n := &Network{
		nodes: make(map[string]*Node),
		links: make(map[string]*Link),
		out:   make(map[string]map[string]struct{}),
		in:    make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}

	return n
}

// Unbounded is the capacity used for links without an explicit bound.
var Unbounded = math.Inf(1)
