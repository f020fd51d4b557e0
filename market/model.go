// SPDX-License-Identifier: MIT

package market

import (
	"fmt"
	"math"
	"strings"
)

type pairKey struct {
	Buyer  string
	Seller string
}

// pair is one eligible buyer×seller trade route.
type pair struct {
	key      pairKey
	buyer    int
	seller   int
	distance float64
	// price is the pair minimum price: transport·distance + seller mean price.
	price float64
}

// capRow is Σ x[pairs] ≤ rhs.
type capRow struct {
	name  string
	pairs []int
	rhs   float64
}

// model is the persistent clearing structure. Pairs and their distances are
// fixed at build time; everything else is a parameter refreshed by update.
type model struct {
	sig      string
	pairs    []pair
	byBuyer  [][]int
	bySeller [][]int

	buyers  []Buyer
	sellers []Seller
	qmax    []float64
	cs0     []float64
	rows    []capRow
}

// signature identifies the pair structure of a period: IDs, locations,
// subdistricts and buyer kinds in input order.
func signature(p Period) string {
	var sb strings.Builder
	for _, b := range p.Buyers {
		fmt.Fprintf(&sb, "b|%s|%s|%s|%d\n", b.ID, b.Location, b.Subdistrict, b.Kind)
	}
	for _, s := range p.Sellers {
		fmt.Fprintf(&sb, "s|%s|%s|%s\n", s.ID, s.Location, s.Subdistrict)
	}
	return sb.String()
}

// buildModel enumerates the eligible pairs: same subdistrict, or a road
// distance of at most MaxDistance.
func buildModel(p Period, dist DistanceSource, o Options) *model {
	m := &model{
		sig:      signature(p),
		byBuyer:  make([][]int, len(p.Buyers)),
		bySeller: make([][]int, len(p.Sellers)),
	}
	for h, b := range p.Buyers {
		for f, s := range p.Sellers {
			same := b.Subdistrict != "" && b.Subdistrict == s.Subdistrict
			km, ok := dist.Distance(b.Location, s.Location)
			switch {
			case ok && km <= o.MaxDistance:
			case same:
				if !ok {
					km = 0
				}
			default:
				continue
			}
			m.byBuyer[h] = append(m.byBuyer[h], len(m.pairs))
			m.bySeller[f] = append(m.bySeller[f], len(m.pairs))
			m.pairs = append(m.pairs, pair{key: pairKey{Buyer: b.ID, Seller: s.ID}, buyer: h, seller: f, distance: km})
		}
	}
	return m
}

// update copies this period's parameters into the model in place.
func (m *model) update(p Period, o Options) {
	m.buyers = append(m.buyers[:0], p.Buyers...)
	m.sellers = append(m.sellers[:0], p.Sellers...)

	m.qmax = resize(m.qmax, len(p.Sellers))
	mean := make([]float64, len(p.Sellers))
	for f, s := range p.Sellers {
		if sum := s.OfferSum(); sum > 0 {
			m.qmax[f] = sum / DaysPerMonth
		} else {
			m.qmax[f] = o.MinimumOfferCeiling
		}
		mean[f] = s.MeanPrice()
	}
	for i := range m.pairs {
		pr := &m.pairs[i]
		pr.price = o.TransportCost*pr.distance + mean[pr.seller]
	}

	m.cs0 = resize(m.cs0, len(p.Buyers))
	for h, b := range p.Buyers {
		m.cs0[h] = 0
		if b.Active() {
			m.cs0[h] = surplus(b.Sigma, b.Sigma2, b.PipedPerUnit)
		}
	}

	m.rows = m.rows[:0]
	for f, s := range p.Sellers {
		m.rows = append(m.rows, capRow{name: "seller/" + s.ID, pairs: m.bySeller[f], rhs: m.qmax[f]})
	}
	switch p.Policy.Kind {
	case PolicyTotalCap:
		all := make([]int, len(m.pairs))
		for i := range all {
			all[i] = i
		}
		m.rows = append(m.rows, capRow{name: "policy/total", pairs: all, rhs: p.Policy.TotalCap})
	case PolicySplitCaps:
		var hh, co []int
		for i, pr := range m.pairs {
			if m.buyers[pr.buyer].Kind == Commercial {
				co = append(co, i)
			} else {
				hh = append(hh, i)
			}
		}
		m.rows = append(m.rows,
			capRow{name: "policy/household", pairs: hh, rhs: p.Policy.HouseholdCap},
			capRow{name: "policy/commercial", pairs: co, rhs: p.Policy.CommercialCap})
	}
}

func resize(s []float64, n int) []float64 {
	if cap(s) >= n {
		return s[:n]
	}
	return make([]float64, n)
}

// surplus is g(q) = (σ·ln q − σ + σ2)·q, the integral of the marginal
// willingness to pay σ·ln q + σ2.
func surplus(sigma, sigma2, q float64) float64 {
	if q <= 0 {
		return 0
	}
	return (sigma*math.Log(q) - sigma + sigma2) * q
}

// welfare evaluates the clearing objective at full pair volumes x.
func (m *model) welfare(x []float64) float64 {
	var w float64
	for h, b := range m.buyers {
		if !b.Active() {
			continue
		}
		var bought, cost float64
		for _, i := range m.byBuyer[h] {
			bought += x[i]
			cost += m.pairs[i].price * x[i]
		}
		q := bought/b.Units + b.PipedPerUnit
		w += b.Units*(surplus(b.Sigma, b.Sigma2, q)-m.cs0[h]) - cost
	}
	return w
}
