// SPDX-License-Identifier: MIT

package market_test

import (
	"context"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/basinflow/dijkstra"
	"github.com/katalvlaran/basinflow/horizon"
	"github.com/katalvlaran/basinflow/market"
)

const tol = 1e-3

var june = horizon.Date{Year: 2020, Month: 6}

// town buys with marginal willingness to pay −2·ln q + 5 on top of 0.5
// piped per unit.
func town(id string, kind market.BuyerKind) market.Buyer {
	return market.Buyer{
		ID: id, Location: "town", Subdistrict: "A", Kind: kind,
		Units: 100, PipedPerUnit: 0.5, Sigma: -2, Sigma2: 5,
	}
}

// monthly returns the annual offer that yields the given monthly ceiling.
func monthly(q float64) float64 { return q * market.DaysPerMonth }

func distances() market.DistanceTable {
	t := market.DistanceTable{}
	t.Set("town", "well1", 10)
	t.Set("town", "well2", 5)
	t.Set("town", "far", 80)
	return t
}

func engine(t *testing.T, opts ...func(*market.Options)) *market.Engine {
	t.Helper()
	o := market.DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	e, err := market.NewEngine(distances(), o)
	require.NoError(t, err)
	return e
}

func seller(id, loc string, farms ...market.FarmOffer) market.Seller {
	return market.Seller{ID: id, Location: loc, Subdistrict: "B", Farms: farms}
}

func TestInteriorOptimum(t *testing.T) {
	e := engine(t)
	out := e.Clear(context.Background(), market.Period{
		Date:    june,
		Buyers:  []market.Buyer{town("h1", market.Household)},
		Sellers: []market.Seller{seller("s1", "well1", market.FarmOffer{ID: "f1", Quantity: monthly(1200), Price: 2})},
	})
	require.NoError(t, out.Err)
	require.Equal(t, market.StatusSolved, out.Status)
	require.False(t, out.Warm)

	// −2·ln q + 5 = 3 at q = e
	want := 100 * (math.E - 0.5)
	b := out.Buyers["h1"]
	require.InDelta(t, want, b.Volume, tol)
	require.InDelta(t, math.E-0.5, b.PerUnit, tol)
	require.InDelta(t, 3.0, b.Price, 1e-12)
	require.InDelta(t, 3*want, b.Expenditure, 1e-2)
	require.InDelta(t, 10.0, b.MeanDistance, 1e-9)
	require.InDelta(t, 1200.0, out.Sellers["s1"].Ceiling, 1e-9)
	require.InDelta(t, 0.0, out.Sellers["s1"].Shadow, tol)
	require.InDelta(t, 2.0, out.Farms["f1"].Price, 1e-9)
	require.InDelta(t, want, out.Farms["f1"].Sold, tol)
	require.Len(t, out.Trades, 1)
	require.Greater(t, out.Welfare, 0.0)
}

func TestCeilingBindsWithShadowPrice(t *testing.T) {
	e := engine(t)
	out := e.Clear(context.Background(), market.Period{
		Date:    june,
		Buyers:  []market.Buyer{town("h1", market.Household)},
		Sellers: []market.Seller{seller("s1", "well1", market.FarmOffer{ID: "f1", Quantity: monthly(100), Price: 2})},
	})
	require.True(t, out.Status.Solved())
	require.InDelta(t, 100.0, out.Buyers["h1"].Volume, tol)
	// willingness to pay at q = 1.5 over the pair price 3
	require.InDelta(t, 2-2*math.Log(1.5), out.Sellers["s1"].Shadow, tol)
}

func TestDisaggregation(t *testing.T) {
	e := engine(t)
	out := e.Clear(context.Background(), market.Period{
		Date:   june,
		Buyers: []market.Buyer{town("h1", market.Household)},
		Sellers: []market.Seller{
			seller("s1", "well1",
				market.FarmOffer{ID: "f1", Quantity: monthly(100) / 3, Price: 2},
				market.FarmOffer{ID: "f2", Quantity: 2 * monthly(100) / 3, Price: 2},
				market.FarmOffer{ID: "idle", Quantity: 0, Price: 9}),
			seller("s2", "well2", market.FarmOffer{ID: "g1", Quantity: monthly(10000), Price: 3}),
		},
	})
	require.True(t, out.Status.Solved())

	// s1 (price 3) is exhausted, the rest comes from s2 (price 3.5) until
	// −2·ln q + 5 = 3.5
	fromS2 := 100*(math.Exp(0.75)-0.5) - 100
	b := out.Buyers["h1"]
	require.InDelta(t, 100+fromS2, b.Volume, tol)
	require.InDelta(t, 3.5, b.Price, 1e-12)
	require.InDelta(t, 10.0, b.MaxDistance, 1e-12)
	require.InDelta(t, (10*100+5*fromS2)/(100+fromS2), b.MeanDistance, tol)

	require.InDelta(t, 100.0/3, out.Farms["f1"].Sold, tol)
	require.InDelta(t, 200.0/3, out.Farms["f2"].Sold, tol)
	require.InDelta(t, 2.5, out.Farms["f1"].Price, 1e-9, "buyer price less transport")
	require.InDelta(t, 3.0, out.Farms["g1"].Price, 1e-9)
	require.NotContains(t, out.Farms, "idle")
	require.InDelta(t, 0.5, out.Sellers["s1"].Shadow, tol)
	require.InDelta(t, 2.5*100, out.Sellers["s1"].Revenue, 1e-2)
	require.Len(t, out.Trades, 2)
	require.Equal(t, "s1", out.Trades[0].Seller)
}

func TestPolicyCaps(t *testing.T) {
	sellers := []market.Seller{seller("s1", "well1", market.FarmOffer{ID: "f1", Quantity: monthly(1200), Price: 2})}

	e := engine(t)
	out := e.Clear(context.Background(), market.Period{
		Date:    june,
		Buyers:  []market.Buyer{town("h1", market.Household)},
		Sellers: sellers,
		Policy:  market.Policy{Kind: market.PolicyTotalCap, TotalCap: 50},
	})
	require.True(t, out.Status.Solved())
	require.InDelta(t, 50.0, out.Volume, tol)

	e = engine(t)
	out = e.Clear(context.Background(), market.Period{
		Date:    june,
		Buyers:  []market.Buyer{town("hh", market.Household), town("co", market.Commercial)},
		Sellers: sellers,
		Policy:  market.Policy{Kind: market.PolicySplitCaps, HouseholdCap: 30, CommercialCap: 80},
	})
	require.True(t, out.Status.Solved())
	require.InDelta(t, 30.0, out.Buyers["hh"].Volume, tol)
	require.InDelta(t, 80.0, out.Buyers["co"].Volume, tol)

	// a zero cap closes every pair under it
	out = e.Clear(context.Background(), market.Period{
		Date:    june,
		Buyers:  []market.Buyer{town("hh", market.Household), town("co", market.Commercial)},
		Sellers: sellers,
		Policy:  market.Policy{Kind: market.PolicySplitCaps, HouseholdCap: 0, CommercialCap: 80},
	})
	require.True(t, out.Status.Solved())
	require.Zero(t, out.Buyers["hh"].Volume)
	require.InDelta(t, 80.0, out.Buyers["co"].Volume, tol)
}

func TestSplitCapsHelper(t *testing.T) {
	p := market.SplitCaps(100, 0.7)
	require.Equal(t, market.PolicySplitCaps, p.Kind)
	require.InDelta(t, 70.0, p.HouseholdCap, 1e-12)
	require.InDelta(t, 30.0, p.CommercialCap, 1e-12)
	require.Zero(t, market.SplitCaps(100, 1.2).CommercialCap)
}

func TestEligibility(t *testing.T) {
	e := engine(t)
	local := market.Seller{ID: "local", Location: "yard", Subdistrict: "A",
		Farms: []market.FarmOffer{{ID: "y1", Quantity: monthly(10), Price: 1}}}
	dry := town("dry", market.Household)
	dry.PipedPerUnit = 0
	out := e.Clear(context.Background(), market.Period{
		Date:   june,
		Buyers: []market.Buyer{town("h1", market.Household), dry},
		Sellers: []market.Seller{
			seller("near", "well1", market.FarmOffer{ID: "n1", Quantity: monthly(1000), Price: 2}),
			seller("far", "far", market.FarmOffer{ID: "x1", Quantity: monthly(1000), Price: 0.1}),
			local,
		},
	})
	require.True(t, out.Status.Solved())
	// h1 and dry each pair with near and local; far is out of range
	require.Equal(t, 4, e.Pairs())
	require.Zero(t, out.Buyers["dry"].Volume, "buyers without piped supply stay out")
	require.Zero(t, out.Sellers["far"].Sold)
	// same-subdistrict seller without a road entry sits at distance 0
	require.InDelta(t, 10.0, out.Sellers["local"].Sold, tol)
	// the buyer pays the dearer route's price; y1 has no transport to deduct
	require.InDelta(t, 3.0, out.Buyers["h1"].Price, 1e-12)
	require.InDelta(t, 3.0, out.Farms["y1"].Price, 1e-9)
}

func TestNoOfferSellerGetsMinimumCeiling(t *testing.T) {
	e := engine(t, func(o *market.Options) { o.MinimumOfferCeiling = 5 })
	out := e.Clear(context.Background(), market.Period{
		Date:    june,
		Buyers:  []market.Buyer{town("h1", market.Household)},
		Sellers: []market.Seller{seller("s1", "well1")},
	})
	require.True(t, out.Status.Solved())
	require.InDelta(t, 5.0, out.Sellers["s1"].Ceiling, 1e-12)
	require.InDelta(t, 5.0, out.Buyers["h1"].Volume, tol)
	// mean price 1 plus 10 km of transport
	require.InDelta(t, 2.0, out.Buyers["h1"].Price, 1e-12)
	require.Empty(t, out.Farms)
}

func TestWarmStartIsIdempotent(t *testing.T) {
	e := engine(t)
	p := market.Period{
		Date:   june,
		Buyers: []market.Buyer{town("h1", market.Household), town("c1", market.Commercial)},
		Sellers: []market.Seller{
			seller("s1", "well1", market.FarmOffer{ID: "f1", Quantity: monthly(150), Price: 2}),
			seller("s2", "well2", market.FarmOffer{ID: "g1", Quantity: monthly(10000), Price: 3}),
		},
	}
	first := e.Clear(context.Background(), p)
	require.Equal(t, market.StatusSolved, first.Status)
	require.False(t, first.Warm)

	second := e.Clear(context.Background(), p)
	require.Equal(t, market.StatusSolved, second.Status)
	require.True(t, second.Warm)
	for id, b := range first.Buyers {
		require.InDelta(t, b.Volume, second.Buyers[id].Volume, tol, id)
		require.InDelta(t, b.Price, second.Buyers[id].Price, 1e-9, id)
	}
	require.InDelta(t, first.Welfare, second.Welfare, tol)

	// parameters change in place: no rebuild, still warm
	p.Sellers[0].Farms[0].Quantity = monthly(50)
	third := e.Clear(context.Background(), p)
	require.True(t, third.Warm)
	require.InDelta(t, 50.0, third.Sellers["s1"].Sold, tol)
}

func TestBuyerSplitAcrossEqualSellers(t *testing.T) {
	// both routes cost 3, so the split between them is free and only the
	// total is pinned: −2·ln q + 5 = 3 at q = e
	e := engine(t)
	p := market.Period{
		Date:   june,
		Buyers: []market.Buyer{town("h1", market.Household)},
		Sellers: []market.Seller{
			seller("s1", "well1", market.FarmOffer{ID: "f1", Quantity: monthly(1200), Price: 2}),
			seller("s2", "well2", market.FarmOffer{ID: "g1", Quantity: monthly(1200), Price: 2.5}),
		},
	}
	want := 100 * (math.E - 0.5)
	for i, warm := range []bool{false, true, true} {
		out := e.Clear(context.Background(), p)
		require.NoError(t, out.Err, "clear %d", i)
		require.Equal(t, market.StatusSolved, out.Status, "clear %d", i)
		require.Equal(t, warm, out.Warm, "clear %d", i)
		require.InDelta(t, want, out.Buyers["h1"].Volume, tol)
		require.InDelta(t, want, out.Sellers["s1"].Sold+out.Sellers["s2"].Sold, tol)
		require.InDelta(t, 0.0, out.Sellers["s1"].Shadow, tol)
	}
}

func TestFailureKeepsPreviousResults(t *testing.T) {
	e := engine(t)
	p := market.Period{
		Date:    june,
		Buyers:  []market.Buyer{town("h1", market.Household)},
		Sellers: []market.Seller{seller("s1", "well1", market.FarmOffer{ID: "f1", Quantity: monthly(100), Price: 2})},
	}
	ok := e.Clear(context.Background(), p)
	require.True(t, ok.Status.Solved())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	kept := e.Clear(ctx, p)
	require.Equal(t, market.StatusKeptPrevious, kept.Status)
	require.ErrorIs(t, kept.Err, context.Canceled)
	require.InDelta(t, ok.Buyers["h1"].Volume, kept.Buyers["h1"].Volume, 1e-12)

	bad := p
	bad.Buyers = []market.Buyer{town("h1", market.Household), town("h1", market.Household)}
	rejected := e.Clear(context.Background(), bad)
	require.Equal(t, market.StatusRejected, rejected.Status)
	require.ErrorIs(t, rejected.Err, market.ErrBadInput)
	require.InDelta(t, ok.Buyers["h1"].Volume, rejected.Buyers["h1"].Volume, 1e-12)
}

func TestColdFailureWithoutHistoryClearsNothing(t *testing.T) {
	e := engine(t, func(o *market.Options) { o.MaxIter = 1 })
	out := e.Clear(context.Background(), market.Period{
		Date:    june,
		Buyers:  []market.Buyer{town("h1", market.Household)},
		Sellers: []market.Seller{seller("s1", "well1", market.FarmOffer{ID: "f1", Quantity: monthly(100), Price: 2})},
	})
	require.Equal(t, market.StatusKeptPrevious, out.Status)
	require.ErrorIs(t, out.Err, market.ErrNotConverged)
	require.Zero(t, out.Volume)
}

func TestRoadDistances(t *testing.T) {
	g := dijkstra.NewRoadGraph()
	require.NoError(t, g.AddRoad("town", "junction", 4))
	require.NoError(t, g.AddRoad("junction", "well1", 6))
	g.AddVertex("island")
	roads := market.NewRoads(g)

	km, ok := roads.Distance("town", "well1")
	require.True(t, ok)
	require.InDelta(t, 10.0, km, 1e-12)
	_, ok = roads.Distance("town", "island")
	require.False(t, ok)
	_, ok = roads.Distance("nowhere", "well1")
	require.False(t, ok)

	e, err := market.NewEngine(roads, market.DefaultOptions())
	require.NoError(t, err)
	out := e.Clear(context.Background(), market.Period{
		Date:    june,
		Buyers:  []market.Buyer{town("h1", market.Household)},
		Sellers: []market.Seller{seller("s1", "well1", market.FarmOffer{ID: "f1", Quantity: monthly(1200), Price: 2})},
	})
	require.InDelta(t, 3.0, out.Buyers["h1"].Price, 1e-12)
}

func TestOptionsValidate(t *testing.T) {
	require.NoError(t, market.DefaultOptions().Validate())
	o := market.DefaultOptions()
	o.Warm.BoundPush = 0
	require.ErrorIs(t, o.Validate(), market.ErrBadOptions)
	o = market.DefaultOptions()
	o.CenterTol = 0
	require.ErrorIs(t, o.Validate(), market.ErrBadOptions)
	_, err := market.NewEngine(nil, market.DefaultOptions())
	require.ErrorIs(t, err, market.ErrBadOptions)

	k, err := market.ParsePolicyKind("split_caps")
	require.NoError(t, err)
	require.Equal(t, market.PolicySplitCaps, k)
	_, err = market.ParsePolicyKind("auction")
	require.ErrorIs(t, err, market.ErrBadOptions)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	e, err := market.NewEngine(distances(), market.DefaultOptions(), market.WithMetrics(market.NewMetrics(reg)))
	require.NoError(t, err)
	e.Clear(context.Background(), market.Period{
		Date:    june,
		Buyers:  []market.Buyer{town("h1", market.Household)},
		Sellers: []market.Seller{seller("s1", "well1", market.FarmOffer{ID: "f1", Quantity: monthly(100), Price: 2})},
	})

	families, err := reg.Gather()
	require.NoError(t, err)
	found := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				found[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				found[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	require.Equal(t, 1.0, found["basinflow_market_clears_total"])
	require.InDelta(t, 100.0, found["basinflow_market_traded_volume"], tol)
}
