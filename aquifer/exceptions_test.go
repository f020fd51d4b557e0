// SPDX-License-Identifier: MIT

package aquifer_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/basinflow/aquifer"
)

func TestDefaultExceptionsAreVerbatim(t *testing.T) {
	want := aquifer.ExceptionTable{
		{Source: "210401_ag_02", Kind: aquifer.ExceptionBaseline},
		{Source: "130104_urb_01", Kind: aquifer.ExceptionScale, Factor: 0.75},
		{Source: "130104_urb_02", Kind: aquifer.ExceptionTransfer, Factor: 0.25, From: "130104_urb_01"},
		{Source: "330103_ag_01", Kind: aquifer.ExceptionBaseline},
	}
	if diff := cmp.Diff(want, aquifer.DefaultExceptions()); diff != "" {
		t.Fatalf("exception table drifted (-want +got):\n%s", diff)
	}

	e, ok := aquifer.DefaultExceptions().Lookup("130104_urb_02")
	require.True(t, ok)
	require.Equal(t, "transfer", e.Kind.String())
	_, ok = aquifer.DefaultExceptions().Lookup("000000_ag_01")
	require.False(t, ok)
}

func TestApplyExceptions(t *testing.T) {
	names := []string{"330103_ag_01", "130104_urb_01", "130104_urb_02", "other"}
	pumping := []float64{5, 8, 2, 3}
	baseline := []float64{1, 1, 1, 1}

	got, err := aquifer.DefaultExceptions().Apply(names, pumping, baseline)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 6, 4, 3}, got)
	require.Equal(t, []float64{5, 8, 2, 3}, pumping, "input must not be mutated")

	_, err = aquifer.DefaultExceptions().Apply(names, pumping[:2], baseline)
	require.ErrorIs(t, err, aquifer.ErrDimensionMismatch)

	orphan := aquifer.ExceptionTable{{Source: "a", Kind: aquifer.ExceptionTransfer, Factor: 1, From: "zz"}}
	_, err = orphan.Apply([]string{"a"}, []float64{1}, []float64{0})
	require.Error(t, err)
}

func TestDrainFlows(t *testing.T) {
	initial := []float64{100, 100, 50}
	current := []float64{96, 102, 50}
	drains := []aquifer.Drain{
		{Basin: "yarmouk", Head: 30, Elevation: 20, Conductance: 2, Wells: []int{0, 1}},
		{Basin: "yarmouk", Head: 10, Elevation: 20, Conductance: 5},
		{Basin: "zarqa", Head: 12, Elevation: 10, Conductance: 1, Wells: []int{2}},
	}
	flows, err := aquifer.DrainFlows(initial, current, drains)
	require.NoError(t, err)
	// decline counts only the falling well: (30 - 4 - 20) * 2 = 12; the dry drain adds nothing
	require.InDelta(t, 12.0, flows["yarmouk"], 1e-12)
	require.InDelta(t, 2.0, flows["zarqa"], 1e-12)
	require.Equal(t, []string{"yarmouk", "zarqa"}, aquifer.Basins(flows))

	_, err = aquifer.DrainFlows(initial, current[:1], drains)
	require.ErrorIs(t, err, aquifer.ErrDimensionMismatch)
	_, err = aquifer.DrainFlows(initial, current, []aquifer.Drain{{Basin: "x", Wells: []int{7}}})
	require.ErrorIs(t, err, aquifer.ErrIndexOutOfRange)
}
