// SPDX-License-Identifier: MIT

package config

import (
	"fmt"

	"github.com/katalvlaran/basinflow/aquifer"
	"github.com/katalvlaran/basinflow/core"
	"github.com/katalvlaran/basinflow/dijkstra"
	"github.com/katalvlaran/basinflow/horizon"
	"github.com/katalvlaran/basinflow/market"
	"github.com/katalvlaran/basinflow/matrix"
	"github.com/katalvlaran/basinflow/solver"
)

// Backend names accepted in InstitutionConfig.Backends.
const (
	BackendBarrier = "barrier"
	BackendSimplex = "simplex"
)

func knownBackend(name string) bool {
	return name == BackendBarrier || name == BackendSimplex
}

// BuildNetwork creates the network in declaration order, so link IDs are
// l1, l2, ... following the file.
func (c *Config) BuildNetwork() (*core.Network, error) {
	net := core.NewNetwork()
	for _, n := range c.Network.Nodes {
		kind, _ := core.ParseNodeKind(n.Kind)
		opts := []core.NodeOption{
			core.WithGroup(n.Group),
			core.WithExtractionCost(n.ExtractionCost),
			core.WithCapacityReduction(n.CapacityReduction),
			core.WithVolume(n.Volume),
			core.WithHead(n.Head),
			core.WithElevation(n.Elevation),
		}
		if n.StorageMin != 0 || n.StorageMax != 0 {
			opts = append(opts, core.WithStorageBounds(n.StorageMin, n.StorageMax))
		}
		switch {
		case len(n.ExtractionCaps) == core.Months:
			var caps [core.Months]float64
			copy(caps[:], n.ExtractionCaps)
			opts = append(opts, core.WithExtractionCaps(caps))
		case n.ExtractionCap > 0:
			opts = append(opts, core.WithUniformExtractionCap(n.ExtractionCap))
		}
		if err := net.AddNode(n.ID, kind, opts...); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	for _, l := range c.Network.Links {
		opts := []core.LinkOption{core.WithUnitCost(l.UnitCost), core.WithLossFactor(l.Loss)}
		if l.Capacity > 0 {
			opts = append(opts, core.WithCapacity(l.Capacity))
		}
		if _, err := net.AddLink(l.From, l.To, opts...); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	return net, nil
}

// Cascade builds the institution's backend cascade.
func (in InstitutionConfig) Cascade(opts ...solver.CascadeOption) *solver.Cascade {
	names := in.Backends
	if len(names) == 0 {
		names = []string{BackendBarrier, BackendSimplex}
	}
	backends := make([]solver.Backend, 0, len(names))
	for _, name := range names {
		switch name {
		case BackendBarrier:
			backends = append(backends, solver.NewBarrier())
		case BackendSimplex:
			backends = append(backends, solver.NewSimplex())
		}
	}
	return solver.NewCascade(backends, opts...)
}

// Aquifer builds the response engine and its drains.
func (a *AquiferConfig) Aquifer(months int) (*aquifer.Engine, []aquifer.Drain, error) {
	nl, ns := len(a.Locations), len(a.Sources)
	lags := 0
	for _, bySource := range a.Response {
		if len(bySource) != ns {
			return nil, nil, fmt.Errorf("config: aquifer response has %d sources, want %d", len(bySource), ns)
		}
		for _, fiber := range bySource {
			lags = max(lags, len(fiber))
		}
	}
	resp, err := matrix.NewTensor3(nl, ns, max(lags, 1))
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	for l, bySource := range a.Response {
		for s, fiber := range bySource {
			for k, v := range fiber {
				if err := resp.Set(l, s, k, v); err != nil {
					return nil, nil, fmt.Errorf("config: %w", err)
				}
			}
		}
	}
	rows := make([][]float64, nl)
	for l, row := range a.BaselineHead {
		rows[l] = row[:months]
	}
	head, err := matrix.NewDenseFrom(rows)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}

	opts := []aquifer.Option{aquifer.WithSources(a.Sources), aquifer.WithLocations(a.Locations)}
	if a.UnitScale > 0 {
		opts = append(opts, aquifer.WithUnitScale(a.UnitScale))
	}
	if a.ResponseFactor != 0 {
		opts = append(opts, aquifer.WithResponseFactor(a.ResponseFactor))
	}
	eng, err := aquifer.NewEngine(resp, head, a.BaselinePumping, opts...)
	if err != nil {
		return nil, nil, err
	}

	drains := make([]aquifer.Drain, len(a.Drains))
	for i, d := range a.Drains {
		drains[i] = aquifer.Drain{
			Basin:       d.Basin,
			Head:        d.Head,
			Elevation:   d.Elevation,
			Conductance: d.Conductance,
			Wells:       append([]int(nil), d.Wells...),
		}
	}
	return eng, drains, nil
}

// Distances returns shortest-path road distances when roads are given and
// a plain table otherwise.
func (m *MarketConfig) Distances() (market.DistanceSource, error) {
	if len(m.Roads) > 0 {
		g := dijkstra.NewRoadGraph()
		for _, r := range m.Roads {
			if err := g.AddRoad(r.From, r.To, r.Km); err != nil {
				return nil, fmt.Errorf("config: road %s-%s: %w", r.From, r.To, err)
			}
		}
		return market.NewRoads(g), nil
	}
	t := market.DistanceTable{}
	for _, r := range m.Table {
		t.Set(r.From, r.To, r.Km)
	}
	return t, nil
}

// Period builds the market input of one month. supply returns the realized
// delivery of a network node and is only consulted for buyers with a
// SupplyNode.
func (m *MarketConfig) Period(date horizon.Date, supply func(node string) float64) (market.Period, error) {
	p := market.Period{Date: date}

	units := map[string]float64{}
	for _, b := range m.Buyers {
		if b.SupplyNode != "" {
			units[b.SupplyNode] += b.Units
		}
	}
	for _, b := range m.Buyers {
		kind, err := market.ParseBuyerKind(b.Kind)
		if err != nil {
			return market.Period{}, err
		}
		piped := b.PipedPerUnit
		if b.SupplyNode != "" && units[b.SupplyNode] > 0 {
			piped = supply(b.SupplyNode) / units[b.SupplyNode]
		}
		p.Buyers = append(p.Buyers, market.Buyer{
			ID:           b.ID,
			Location:     b.Location,
			Subdistrict:  b.Subdistrict,
			Kind:         kind,
			Units:        b.Units,
			PipedPerUnit: piped,
			Sigma:        b.Sigma,
			Sigma2:       b.Sigma2,
		})
	}
	for _, s := range m.Sellers {
		seller := market.Seller{ID: s.ID, Location: s.Location, Subdistrict: s.Subdistrict}
		for _, f := range s.Farms {
			seller.Farms = append(seller.Farms, market.FarmOffer{ID: f.ID, Quantity: f.Quantity, Price: f.Price})
		}
		p.Sellers = append(p.Sellers, seller)
	}

	kind, err := market.ParsePolicyKind(m.Policy.Kind)
	if err != nil {
		return market.Period{}, err
	}
	switch kind {
	case market.PolicyTotalCap:
		p.Policy = market.Policy{Kind: kind, TotalCap: m.Policy.TotalCap}
	case market.PolicySplitCaps:
		p.Policy = market.SplitCaps(m.Policy.TotalCap, m.Policy.HouseholdShare)
	}
	return p, nil
}
