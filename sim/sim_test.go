// SPDX-License-Identifier: MIT

package sim_test

import (
	"context"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/katalvlaran/basinflow/config"
	"github.com/katalvlaran/basinflow/forecast"
	"github.com/katalvlaran/basinflow/horizon"
	"github.com/katalvlaran/basinflow/institution"
	"github.com/katalvlaran/basinflow/ledger"
	"github.com/katalvlaran/basinflow/market"
	"github.com/katalvlaran/basinflow/sim"
)

const tol = 1e-6

type RunSuite struct {
	suite.Suite
	cfg   *config.Config
	store *ledger.MemoryStore
	reg   *prometheus.Registry
}

func (s *RunSuite) SetupTest() {
	cfg, err := config.Load("testdata/run.yaml", nil)
	s.Require().NoError(err)
	s.cfg = cfg
	s.store = ledger.NewMemoryStore()
	s.reg = prometheus.NewRegistry()
}

func (s *RunSuite) simulation(opts ...sim.Option) *sim.Simulation {
	opts = append([]sim.Option{sim.WithStore(s.store), sim.WithRegisterer(s.reg)}, opts...)
	sm, err := sim.New(context.Background(), s.cfg, opts...)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = sm.Close() })
	return sm
}

func TestRunSuite(t *testing.T) {
	suite.Run(t, new(RunSuite))
}

func (s *RunSuite) TestThreeMonths() {
	r := s.Require()
	ctx := context.Background()
	sm := s.simulation()
	rep, err := sm.Run(ctx)
	r.NoError(err)
	r.Len(rep.Periods, 3)

	// drain baseflow raises the canal delivery and lowers town pumping
	pumping := []float64{30, 22, 21.4}
	canal := []float64{70, 78, 78.6}
	heads := []float64{49, 49.3, 49.76}
	baseflow := []float64{8, 8.6, 9.52}
	for i, p := range rep.Periods {
		r.Len(p.Outcomes, 2)
		for _, o := range p.Outcomes {
			r.Equal(institution.StateExtracted, o.State, "%s %s", o.Institution, p.Date)
		}
		r.InDelta(canal[i], p.Outcomes[0].First.Delivery["canal"], tol, p.Date.String())
		r.InDelta(pumping[i], p.Outcomes[1].First.Extraction["town"], tol, p.Date.String())
		r.InDelta(100, p.Outcomes[1].First.Delivery["town"], tol)
		r.InDelta(heads[i], p.Heads["town"], tol, p.Date.String())
		r.InDelta(baseflow[i], p.Baseflow["river"], tol, p.Date.String())

		r.NotNil(p.Market)
		r.True(p.Market.Status.Solved())
		r.InDelta(100*(math.E-1), p.Market.Volume, 1e-3)
	}
	r.False(rep.Periods[0].Market.Warm)
	r.True(rep.Periods[2].Market.Warm)
	r.Equal(horizon.Date{Year: 2022, Month: 2}, sm.Next())

	town, err := sm.Network().Node("town")
	r.NoError(err)
	r.InDelta(49.76, town.Head, tol)

	_, err = sm.Step(ctx)
	r.ErrorIs(err, sim.ErrFinished)
}

func (s *RunSuite) TestLedgerRecordsEveryPeriod() {
	r := s.Require()
	ctx := context.Background()
	sm := s.simulation()
	_, err := sm.Run(ctx)
	r.NoError(err)

	allocs, err := s.store.Allocations(ctx, sm.RunInfo().ID)
	r.NoError(err)
	r.Len(allocs, 6)
	r.Equal("ministry", allocs[0].Institution)
	r.Equal(2021, allocs[0].Year)
	r.Equal(11, allocs[0].Month)
	r.Equal("simplex", allocs[0].Backend)

	markets, err := s.store.Markets(ctx, sm.RunInfo().ID)
	r.NoError(err)
	r.Len(markets, 3)
	r.Equal(market.StatusSolved.String(), markets[1].Status)

	runs, err := s.store.Runs(ctx)
	r.NoError(err)
	r.Len(runs, 1)
	r.Equal("two-tier", runs[0].Label)
}

func (s *RunSuite) TestMetricsRegistered() {
	r := s.Require()
	_, err := s.simulation().Run(context.Background())
	r.NoError(err)

	families, err := s.reg.Gather()
	r.NoError(err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	r.True(names["basinflow_solver_attempts_total"])
	r.True(names["basinflow_market_clears_total"])
}

func (s *RunSuite) TestMissingForecastStopsRun() {
	r := s.Require()
	sm := s.simulation(sim.WithProvider(forecast.NewStatic(nil)))
	rep, err := sm.Run(context.Background())
	r.ErrorIs(err, forecast.ErrForecastMissing)
	r.Empty(rep.Periods)
	r.Equal(horizon.Date{Year: 2021, Month: 11}, sm.Next())
}

func (s *RunSuite) TestCanceledRun() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := s.simulation().Run(ctx)
	s.Require().ErrorIs(err, context.Canceled)
	s.Require().Empty(rep.Periods)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg, err := config.Load("testdata/run.yaml", nil)
	require.NoError(t, err)
	cfg.Run.Months = 0
	_, err = sim.New(context.Background(), cfg)
	require.ErrorIs(t, err, config.ErrInvalid)
}
