// SPDX-License-Identifier: MIT

package institution_test

import (
	"context"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/basinflow/allocation"
	"github.com/katalvlaran/basinflow/core"
	"github.com/katalvlaran/basinflow/flow"
	"github.com/katalvlaran/basinflow/forecast"
	"github.com/katalvlaran/basinflow/horizon"
	"github.com/katalvlaran/basinflow/institution"
	"github.com/katalvlaran/basinflow/solver"
)

const tol = 1e-5

func fill(s forecast.Series, id string, v float64) {
	for m := 1; m <= 12; m++ {
		s.Set(id, m, v)
	}
}

func simplex() *solver.Cascade {
	return solver.NewCascade([]solver.Backend{solver.NewSimplex()})
}

// twoNode is a river junction with inflow 40 feeding a city with demand
// 100 and wells capped at 80.
func twoNode(t *testing.T) (*core.Network, forecast.Provider) {
	t.Helper()
	net := core.NewNetwork()
	require.NoError(t, net.AddNode("river", core.KindJunction))
	require.NoError(t, net.AddNode("city", core.KindDemand,
		core.WithUniformExtractionCap(80), core.WithExtractionCost(1)))
	_, err := net.AddLink("river", "city")
	require.NoError(t, err)

	in := forecast.NewInputs()
	fill(in.Demand, "city", 100)
	fill(in.Inflow, "river", 40)
	return net, forecast.NewStatic(map[string]forecast.Inputs{"jva": in})
}

func jva(opts allocation.Options) institution.Config {
	return institution.Config{Name: "jva", Governs: []string{"river", "city"}, Options: opts}
}

func TestAllocateExtractsAnchorMonth(t *testing.T) {
	net, provider := twoNode(t)
	board := forecast.NewBoard()
	inst, err := institution.New(jva(allocation.DefaultOptions()), net, provider, simplex(), board)
	require.NoError(t, err)

	out, err := inst.Allocate(context.Background(), horizon.Date{Year: 2020, Month: 12})
	require.NoError(t, err)
	require.Equal(t, institution.StateExtracted, out.State)
	require.Equal(t, institution.StateExtracted, inst.State())
	require.Equal(t, "simplex", out.Result.Backend)
	require.InDelta(t, 100.0, out.Deliverable.Total, tol)

	city, err := net.Node("city")
	require.NoError(t, err)
	require.InDelta(t, 100.0, city.Delivery, tol)
	require.InDelta(t, 60.0, city.Pumping, tol)
	require.InDelta(t, 0.0, city.Deficit, tol)
	link, err := net.Link("l1")
	require.NoError(t, err)
	require.InDelta(t, 40.0, link.Flow, tol)

	snap, err := board.Latest("jva", allocation.ForecastDelivery)
	require.NoError(t, err)
	require.Equal(t, 1, snap.Version)
	require.InDelta(t, 100.0, snap.Values.At("city", 12), tol)
	require.Equal(t, 1, out.Published[allocation.ForecastTransfer])

	r, ok := inst.PastRatio("city", 12)
	require.True(t, ok)
	require.InDelta(t, 0.0, r, tol)

	// next period: new year, new snapshot version, past ratios reset
	out, err = inst.Allocate(context.Background(), horizon.Date{Year: 2021, Month: 1})
	require.NoError(t, err)
	require.Equal(t, institution.StateExtracted, out.State)
	require.Equal(t, 2, out.Published[allocation.ForecastDelivery])
	_, ok = inst.PastRatio("city", 12)
	require.False(t, ok)
	_, ok = inst.PastRatio("city", 1)
	require.True(t, ok)
}

func TestWriteBackLeavesStateOnMissingLink(t *testing.T) {
	net, provider := twoNode(t)
	board := forecast.NewBoard()
	inst, err := institution.New(jva(allocation.DefaultOptions()), net, provider, simplex(), board)
	require.NoError(t, err)
	require.NoError(t, net.RemoveLink("l1"))

	_, err = inst.Allocate(context.Background(), horizon.Date{Year: 2020, Month: 12})
	require.ErrorIs(t, err, core.ErrLinkNotFound)

	city, err := net.Node("city")
	require.NoError(t, err)
	require.Zero(t, city.Delivery)
	require.Zero(t, city.Pumping)
	require.Empty(t, board.Names("jva"))
}

func TestReachabilityAlgorithm(t *testing.T) {
	net, provider := twoNode(t)
	cfg := jva(allocation.DefaultOptions())
	cfg.Reachability = flow.AlgorithmEdmondsKarp
	inst, err := institution.New(cfg, net, provider, simplex(), nil)
	require.NoError(t, err)

	out, err := inst.Allocate(context.Background(), horizon.Date{Year: 2020, Month: 12})
	require.NoError(t, err)
	require.InDelta(t, 100.0, out.Deliverable.Total, tol)
	require.Zero(t, out.Deliverable.Shortfall())
}

func TestPublishesRestrictsNames(t *testing.T) {
	net, provider := twoNode(t)
	board := forecast.NewBoard()
	cfg := jva(allocation.DefaultOptions())
	cfg.Publishes = []string{allocation.ForecastTransfer}
	inst, err := institution.New(cfg, net, provider, simplex(), board)
	require.NoError(t, err)

	out, err := inst.Allocate(context.Background(), horizon.Date{Year: 2020, Month: 12})
	require.NoError(t, err)
	require.Equal(t, map[string]int{allocation.ForecastTransfer: 1}, out.Published)
	require.Equal(t, []string{allocation.ForecastTransfer}, board.Names("jva"))
}

func TestFailedCascadeSkipsPeriod(t *testing.T) {
	net, provider := twoNode(t)
	board := forecast.NewBoard()
	stub := func(name string) solver.Backend {
		return solver.Func(name, func(context.Context, *solver.Model) (solver.Solution, error) {
			return solver.Solution{Status: solver.StatusNotOptimal}, nil
		})
	}
	cascade := solver.NewCascade([]solver.Backend{stub("ipopt"), stub("cbc")})
	inst, err := institution.New(jva(allocation.DefaultOptions()), net, provider, cascade, board)
	require.NoError(t, err)

	var lines []string
	log := funcr.New(func(prefix, args string) { lines = append(lines, args) }, funcr.Options{})
	ctx := logr.NewContext(context.Background(), log)

	out, err := inst.Allocate(ctx, horizon.Date{Year: 2020, Month: 12})
	require.NoError(t, err, "solver failures never escape")
	require.True(t, out.Skipped())
	require.False(t, out.Result.OK())
	require.Len(t, out.Attempts, 2)
	require.Equal(t, "ipopt", out.Attempts[0].Backend)
	require.Equal(t, "cbc", out.Attempts[1].Backend)

	city, err := net.Node("city")
	require.NoError(t, err)
	require.Zero(t, city.Delivery)
	require.Zero(t, city.Pumping)
	_, err = board.Latest("jva", allocation.ForecastDelivery)
	require.ErrorIs(t, err, forecast.ErrForecastMissing)
	_, ok := inst.PastRatio("city", 12)
	require.False(t, ok)

	joined := strings.Join(lines, "\n")
	require.Contains(t, joined, "allocation skipped")
	require.Contains(t, joined, "jva")
	require.Contains(t, joined, "cbc")
}

func TestQuadraticFallsBackToSegments(t *testing.T) {
	net, provider := twoNode(t)
	opts := allocation.DefaultOptions()
	opts.Penalty = allocation.PenaltyQuadratic
	inst, err := institution.New(jva(opts), net, provider, simplex(), forecast.NewBoard())
	require.NoError(t, err)

	out, err := inst.Allocate(context.Background(), horizon.Date{Year: 2020, Month: 12})
	require.NoError(t, err)
	require.Equal(t, institution.StateExtracted, out.State)
	require.Equal(t, allocation.PenaltySegments, out.Penalty)
	require.Len(t, out.Attempts, 2)
	require.Equal(t, solver.StatusUnavailable, out.Attempts[0].Status)
	require.InDelta(t, 100.0, out.First.Delivery["city"], tol)
}

func TestForecastMissingIsHard(t *testing.T) {
	net, _ := twoNode(t)
	empty := forecast.NewStatic(nil)
	inst, err := institution.New(jva(allocation.DefaultOptions()), net, empty, simplex(), forecast.NewBoard())
	require.NoError(t, err)

	_, err = inst.Allocate(context.Background(), horizon.Date{Year: 2020, Month: 12})
	require.ErrorIs(t, err, forecast.ErrForecastMissing)
	require.Equal(t, institution.StateIdle, inst.State())
}

func TestStorageVolumeCarriesForward(t *testing.T) {
	net := core.NewNetwork()
	require.NoError(t, net.AddNode("dam", core.KindStorage, core.WithStorageBounds(0, 1000), core.WithVolume(200)))
	require.NoError(t, net.AddNode("city", core.KindDemand))
	_, err := net.AddLink("dam", "city", core.WithUnitCost(0.1))
	require.NoError(t, err)

	in := forecast.NewInputs()
	fill(in.Demand, "city", 40)
	fill(in.Inflow, "dam", 10)
	fill(in.Evaporation, "dam", 2)
	provider := forecast.NewStatic(map[string]forecast.Inputs{"dam_ops": in})
	cfg := institution.Config{Name: "dam_ops", Governs: []string{"dam", "city"}, Options: allocation.DefaultOptions()}
	inst, err := institution.New(cfg, net, provider, simplex(), forecast.NewBoard())
	require.NoError(t, err)

	for i, want := range []float64{168, 136} {
		out, err := inst.Allocate(context.Background(), horizon.Date{Year: 2020, Month: 11 + i})
		require.NoError(t, err)
		require.Equal(t, institution.StateExtracted, out.State)
		dam, err := net.Node("dam")
		require.NoError(t, err)
		require.InDelta(t, want, dam.Volume, tol)
	}
}

func TestNewValidates(t *testing.T) {
	net, provider := twoNode(t)
	_, err := institution.New(institution.Config{Governs: []string{"city"}, Options: allocation.DefaultOptions()}, net, provider, simplex(), nil)
	require.ErrorIs(t, err, institution.ErrNoName)

	_, err = institution.New(institution.Config{Name: "x", Governs: []string{"ghost"}, Options: allocation.DefaultOptions()}, net, provider, simplex(), nil)
	require.ErrorIs(t, err, core.ErrNodeNotFound)

	cfg := jva(allocation.DefaultOptions())
	cfg.Consumes = []forecast.Binding{{Producer: "mwi", Name: "transfer"}}
	_, err = institution.New(cfg, net, provider, simplex(), nil)
	require.ErrorIs(t, err, institution.ErrNoBoard)

	_, err = institution.New(jva(allocation.Options{}), net, provider, simplex(), nil)
	require.ErrorIs(t, err, allocation.ErrBadOptions)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "forecast_refreshed", institution.StateForecastRefreshed.String())
	require.True(t, institution.StateSkipped.Terminal())
	require.False(t, institution.StateSolved.Terminal())
	require.Equal(t, "State(42)", institution.State(42).String())
}
