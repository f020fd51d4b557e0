// SPDX-License-Identifier: MIT

package dfs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/basinflow/dfs"
)

func TestTopologicalSortOrdersEveryEdge(t *testing.T) {
	g := dfs.NewDigraph()
	g.AddEdge("ministry", "utility")
	g.AddEdge("ministry", "farmers")
	g.AddEdge("utility", "tankers")
	g.AddVertex("observer")

	order, err := dfs.TopologicalSort(g)
	require.NoError(t, err)
	require.Len(t, order, 5)
	pos := map[string]int{}
	for i, v := range order {
		pos[v] = i
	}
	for _, u := range g.Vertices() {
		for _, v := range g.Successors(u) {
			require.Less(t, pos[u], pos[v], "%s→%s", u, v)
		}
	}
}

func TestTopologicalSortCycle(t *testing.T) {
	g := dfs.NewDigraph()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("c", "a")
	_, err := dfs.TopologicalSort(g)
	require.ErrorIs(t, err, dfs.ErrCycleDetected)

	_, err = dfs.TopologicalSort(nil)
	require.ErrorIs(t, err, dfs.ErrGraphNil)
}

func TestTopologicalSortCanceled(t *testing.T) {
	g := dfs.NewDigraph()
	g.AddEdge("a", "b")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := dfs.TopologicalSort(g, dfs.WithCancelContext(ctx))
	require.ErrorIs(t, err, context.Canceled)
}

func TestDetectCycles(t *testing.T) {
	g := dfs.NewDigraph()
	g.AddEdge("c", "a")
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("x", "x")
	g.AddEdge("b", "y")

	found, cycles := dfs.DetectCycles(g)
	require.True(t, found)
	require.Equal(t, [][]string{{"a", "b", "c", "a"}, {"x", "x"}}, cycles)

	acyclic := dfs.NewDigraph()
	acyclic.AddEdge("a", "b")
	found, cycles = dfs.DetectCycles(acyclic)
	require.False(t, found)
	require.Nil(t, cycles)
}

func TestCycleStartsAtSmallestVertex(t *testing.T) {
	g := dfs.NewDigraph()
	g.AddEdge("a", "d")
	g.AddEdge("d", "e")
	g.AddEdge("e", "c")
	g.AddEdge("c", "d")

	found, cycles := dfs.DetectCycles(g)
	require.True(t, found)
	require.Equal(t, [][]string{{"c", "d", "e", "c"}}, cycles)
}
