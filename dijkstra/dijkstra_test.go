// SPDX-License-Identifier: MIT

package dijkstra_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/basinflow/dijkstra"
)

// roads:
//
//	A –4– B –3– D
//	 \         /
//	  1       8
//	   \     /
//	     C ––
func roads(t *testing.T) *dijkstra.RoadGraph {
	t.Helper()
	g := dijkstra.NewRoadGraph()
	require.NoError(t, g.AddRoad("A", "B", 4))
	require.NoError(t, g.AddRoad("B", "D", 3))
	require.NoError(t, g.AddRoad("A", "C", 1))
	require.NoError(t, g.AddRoad("C", "D", 8))
	require.NoError(t, g.AddRoad("C", "B", 2))
	g.AddVertex("island")
	return g
}

func TestShortestDistances(t *testing.T) {
	dist, prev, err := dijkstra.Dijkstra(roads(t), dijkstra.Source("A"), dijkstra.WithReturnPath())
	require.NoError(t, err)
	require.Equal(t, 0.0, dist["A"])
	require.Equal(t, 3.0, dist["B"], "A→C→B beats A→B")
	require.Equal(t, 6.0, dist["D"])
	require.True(t, math.IsInf(dist["island"], 1))
	require.Equal(t, []string{"A", "C", "B", "D"}, dijkstra.Path(prev, "A", "D"))
	require.Nil(t, dijkstra.Path(prev, "A", "island"))
	require.Equal(t, []string{"A"}, dijkstra.Path(prev, "A", "A"))
}

func TestRoadsAreUndirected(t *testing.T) {
	dist, prev, err := dijkstra.Dijkstra(roads(t), dijkstra.Source("D"))
	require.NoError(t, err)
	require.Nil(t, prev)
	require.Equal(t, 6.0, dist["A"])
}

func TestMaxDistanceAndThreshold(t *testing.T) {
	dist, _, err := dijkstra.Dijkstra(roads(t), dijkstra.Source("A"), dijkstra.WithMaxDistance(4))
	require.NoError(t, err)
	require.Equal(t, 3.0, dist["B"])
	require.True(t, math.IsInf(dist["D"], 1))

	dist, _, err = dijkstra.Dijkstra(roads(t), dijkstra.Source("A"), dijkstra.WithInfEdgeThreshold(2))
	require.NoError(t, err)
	require.Equal(t, 1.0, dist["C"])
	require.True(t, math.IsInf(dist["B"], 1), "every road into B is ≥ 2 km")
}

func TestValidation(t *testing.T) {
	g := roads(t)
	_, _, err := dijkstra.Dijkstra(g)
	require.ErrorIs(t, err, dijkstra.ErrEmptySource)
	_, _, err = dijkstra.Dijkstra(nil, dijkstra.Source("A"))
	require.ErrorIs(t, err, dijkstra.ErrNilGraph)
	_, _, err = dijkstra.Dijkstra(g, dijkstra.Source("Z"))
	require.ErrorIs(t, err, dijkstra.ErrVertexNotFound)
	_, _, err = dijkstra.Dijkstra(g, dijkstra.Source("A"), dijkstra.WithMaxDistance(-1))
	require.ErrorIs(t, err, dijkstra.ErrBadMaxDistance)
	_, _, err = dijkstra.Dijkstra(g, dijkstra.Source("A"), dijkstra.WithInfEdgeThreshold(0))
	require.ErrorIs(t, err, dijkstra.ErrBadInfThreshold)
	require.ErrorIs(t, g.AddRoad("A", "B", -1), dijkstra.ErrNegativeWeight)
}

func TestParallelRoadKeepsShortest(t *testing.T) {
	g := dijkstra.NewRoadGraph()
	require.NoError(t, g.AddRoad("A", "B", 5))
	require.NoError(t, g.AddRoad("B", "A", 2))
	require.NoError(t, g.AddRoad("A", "B", 9))
	dist, _, err := dijkstra.Dijkstra(g, dijkstra.Source("A"))
	require.NoError(t, err)
	require.Equal(t, 2.0, dist["B"])
}
