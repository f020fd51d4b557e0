// SPDX-License-Identifier: MIT

package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/katalvlaran/basinflow/allocation"
	"github.com/katalvlaran/basinflow/horizon"
	"github.com/katalvlaran/basinflow/institution"
	"github.com/katalvlaran/basinflow/ledger"
	"github.com/katalvlaran/basinflow/market"
	"github.com/katalvlaran/basinflow/solver"
)

// StoreSuite runs the Store contract against one backend.
type StoreSuite struct {
	suite.Suite
	newStore func(t *testing.T) ledger.Store
	store    ledger.Store
	run      ledger.Run
}

func (s *StoreSuite) SetupTest() {
	ctx := context.Background()
	s.store = s.newStore(s.T())
	s.Require().NoError(s.store.Init(ctx))
	s.T().Cleanup(func() { _ = ledger.CloseIfSupported(s.store) })
	s.run = ledger.Run{ID: ledger.NewRunID(), Label: "baseline", Started: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	s.Require().NoError(s.store.BeginRun(ctx, s.run))
}

func (s *StoreSuite) TestAllocationRoundTrip() {
	ctx := context.Background()
	r := s.Require()
	recs := []ledger.AllocationRecord{
		{SchemaVersion: ledger.CurrentSchemaVersion, RunID: s.run.ID, Institution: "mwi", Year: 2020, Month: 2, State: "extracted",
			Delivery: map[string]float64{"amman": 12.5}, Flow: map[string]float64{"l1": 3}},
		{SchemaVersion: ledger.CurrentSchemaVersion, RunID: s.run.ID, Institution: "jva", Year: 2020, Month: 2, State: "skipped", Attempts: 2},
		{SchemaVersion: ledger.CurrentSchemaVersion, RunID: s.run.ID, Institution: "jva", Year: 2020, Month: 1, State: "extracted"},
	}
	for _, rec := range recs {
		r.NoError(s.store.SaveAllocation(ctx, rec))
	}
	// saving the same key again replaces the record
	recs[1].Attempts = 3
	r.NoError(s.store.SaveAllocation(ctx, recs[1]))

	got, err := s.store.Allocations(ctx, s.run.ID)
	r.NoError(err)
	want := []ledger.AllocationRecord{recs[2], recs[1], recs[0]}
	r.Empty(cmp.Diff(want, got))
}

func (s *StoreSuite) TestMarketRoundTrip() {
	ctx := context.Background()
	r := s.Require()
	rec := ledger.MarketRecord{
		SchemaVersion: ledger.CurrentSchemaVersion, RunID: s.run.ID, Year: 2021, Month: 7,
		Status: "solved", Warm: true, Iterations: 9, Volume: 100,
		BuyerVolume: map[string]float64{"h1": 100}, BuyerPrice: map[string]float64{"h1": 3.5},
	}
	r.NoError(s.store.SaveMarket(ctx, rec))
	got, err := s.store.Markets(ctx, s.run.ID)
	r.NoError(err)
	r.Empty(cmp.Diff([]ledger.MarketRecord{rec}, got))
}

func (s *StoreSuite) TestRunsAndUnknownRun() {
	ctx := context.Background()
	r := s.Require()
	runs, err := s.store.Runs(ctx)
	r.NoError(err)
	r.Len(runs, 1)
	r.Equal(s.run.ID, runs[0].ID)
	r.True(s.run.Started.Equal(runs[0].Started))

	err = s.store.SaveAllocation(ctx, ledger.AllocationRecord{RunID: "missing"})
	r.ErrorIs(err, ledger.ErrUnknownRun)
	_, err = s.store.Markets(ctx, "missing")
	r.ErrorIs(err, ledger.ErrUnknownRun)
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(*testing.T) ledger.Store { return ledger.NewMemoryStore() }})
}

func TestUninitialized(t *testing.T) {
	err := ledger.NewMemoryStore().BeginRun(context.Background(), ledger.Run{ID: "x"})
	require.True(t, errors.Is(err, ledger.ErrNotInitialized))
}

func TestNewStore(t *testing.T) {
	s, err := ledger.NewStore("", "")
	require.NoError(t, err)
	require.IsType(t, &ledger.MemoryStore{}, s)
	_, err = ledger.NewStore("postgres", "")
	require.Error(t, err)
}

func TestNewRunID(t *testing.T) {
	id := ledger.NewRunID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	require.NotEqual(t, id, ledger.NewRunID())
}

func TestFromOutcome(t *testing.T) {
	out := institution.Outcome{
		Institution: "jva",
		Date:        horizon.Date{Year: 2020, Month: 12},
		State:       institution.StateExtracted,
		Penalty:     allocation.PenaltyLinear,
		Result:      solver.Result{Status: solver.StatusOptimal, Backend: "simplex", Objective: 60},
		Attempts:    []solver.Attempt{{Backend: "simplex", Status: solver.StatusOptimal}},
		First: allocation.MonthPlan{
			Month:    12,
			Delivery: map[string]float64{"city": 100},
			Flow:     map[string]float64{"l1": 40},
		},
	}
	rec := ledger.FromOutcome("run", out)
	require.Equal(t, "extracted", rec.State)
	require.Equal(t, "simplex", rec.Backend)
	require.Equal(t, 1, rec.Attempts)
	require.Equal(t, 100.0, rec.Delivery["city"])

	out.State = institution.StateSkipped
	rec = ledger.FromOutcome("run", out)
	require.Empty(t, rec.Backend)
	require.Nil(t, rec.Delivery)
}

func TestFromMarket(t *testing.T) {
	rec := ledger.FromMarket("run", market.Outcome{
		Date:    horizon.Date{Year: 2021, Month: 3},
		Status:  market.StatusKeptPrevious,
		Err:     market.ErrNotConverged,
		Volume:  12,
		Buyers:  map[string]market.BuyerResult{"h1": {Volume: 12, Price: 3}},
		Sellers: map[string]market.SellerResult{"s1": {Sold: 12}},
	})
	require.Equal(t, "kept_previous", rec.Status)
	require.Equal(t, market.ErrNotConverged.Error(), rec.Error)
	require.Equal(t, 3.0, rec.BuyerPrice["h1"])
	require.Equal(t, 12.0, rec.SellerSold["s1"])
}
