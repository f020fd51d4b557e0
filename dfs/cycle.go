// SPDX-License-Identifier: MIT

package dfs

import (
	"slices"
	"sort"
	"strings"
)

// DetectCycles inspects g for simple cycles reachable through back edges.
// Returns (true, cycles) if any are found, (false, nil) otherwise. Each
// cycle is closed ([v0, ..., v0]) and rotated to start at its smallest
// vertex.
func DetectCycles(g *Digraph) (bool, [][]string) {
	if g == nil {
		return false, nil
	}

	verts := g.Vertices()
	state := make(map[string]int, len(verts))
	path := make([]string, 0, len(verts))
	seen := make(map[string]struct{})
	var cycles [][]string

	var visit func(id string)
	visit = func(id string) {
		state[id] = Gray
		path = append(path, id)
		for _, nbr := range g.Successors(id) {
			switch state[nbr] {
			case White:
				visit(nbr)
			case Gray:
				recordCycle(nbr, path, seen, &cycles)
			}
		}
		path = path[:len(path)-1]
		state[id] = Black
	}
	for _, v := range verts {
		if state[v] == White {
			visit(v)
		}
	}

	if len(cycles) == 0 {
		return false, nil
	}
	sort.Slice(cycles, func(i, j int) bool {
		return strings.Join(cycles[i], ",") < strings.Join(cycles[j], ",")
	})

	return true, cycles
}

// recordCycle closes path[start:] into a cycle, canonicalizes it and
// appends it unless already seen.
func recordCycle(start string, path []string, seen map[string]struct{}, cycles *[][]string) {
	base := path[slices.Index(path, start):]
	closed := rotateToMin(base)
	closed = append(closed, closed[0])
	sig := strings.Join(closed, ",")
	if _, ok := seen[sig]; !ok {
		seen[sig] = struct{}{}
		*cycles = append(*cycles, closed)
	}
}

// rotateToMin returns a copy of the simple cycle c starting at its smallest
// vertex. Vertices of a simple cycle are distinct, so this is its minimal
// rotation.
func rotateToMin(c []string) []string {
	k := 0
	for i, v := range c {
		if v < c[k] {
			k = i
		}
	}
	out := make([]string, 0, len(c)+1)
	out = append(out, c[k:]...)
	return append(out, c[:k]...)
}
