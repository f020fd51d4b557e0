// SPDX-License-Identifier: MIT

package market

import (
	"fmt"
	"sort"

	"github.com/katalvlaran/basinflow/horizon"
)

// Status tags the outcome of one Clear.
type Status int

const (
	// StatusSolved means the first (warm or cold) solve converged.
	StatusSolved Status = iota
	// StatusSolvedCold means a failed warm solve was recovered from a cold start.
	StatusSolvedCold
	// StatusKeptPrevious means both attempts failed and the previous volumes were reused.
	StatusKeptPrevious
	// StatusRejected means the period input was invalid; previous volumes were reused.
	StatusRejected
)

var statusNames = [...]string{
	StatusSolved:       "solved",
	StatusSolvedCold:   "solved_cold",
	StatusKeptPrevious: "kept_previous",
	StatusRejected:     "rejected",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// Solved reports whether this period's volumes come from this period's solve.
func (s Status) Solved() bool { return s == StatusSolved || s == StatusSolvedCold }

// Trade is one traded buyer×seller pair.
type Trade struct {
	Buyer    string
	Seller   string
	Distance float64
	MinPrice float64
	Volume   float64
}

// BuyerResult is the disaggregated position of one buyer.
type BuyerResult struct {
	// Price is the highest pair minimum price among the sellers bought from.
	Price float64
	// PerUnit is the tanker volume per represented unit.
	PerUnit      float64
	Volume       float64
	Expenditure  float64
	MeanDistance float64
	MaxDistance  float64
}

// SellerResult is the disaggregated position of one seller.
type SellerResult struct {
	Ceiling float64
	Sold    float64
	Revenue float64
	// Shadow is the multiplier of the seller ceiling.
	Shadow float64
}

// FarmResult is one farm's share of its seller's sales.
type FarmResult struct {
	Seller  string
	Sold    float64
	Revenue float64
	// Price is the revenue-weighted realized price.
	Price float64
}

// Outcome is the result of one Clear.
type Outcome struct {
	Date   horizon.Date
	Status Status
	// Err explains a KeptPrevious or Rejected status.
	Err        error
	Warm       bool
	Iterations int
	Welfare    float64
	Volume     float64
	Trades     []Trade
	Buyers     map[string]BuyerResult
	Sellers    map[string]SellerResult
	Farms      map[string]FarmResult
}

// disaggregate spreads pair volumes x back onto buyers, sellers and farms.
// Volumes at or below tol count as zero.
func (m *model) disaggregate(x []float64, o Options) Outcome {
	out := Outcome{
		Buyers:  make(map[string]BuyerResult, len(m.buyers)),
		Sellers: make(map[string]SellerResult, len(m.sellers)),
		Farms:   map[string]FarmResult{},
	}
	traded := func(i int) float64 {
		if x == nil || x[i] <= o.PurchaseTol {
			return 0
		}
		return x[i]
	}

	price := make([]float64, len(m.buyers))
	for h, b := range m.buyers {
		var r BuyerResult
		var weighted float64
		for _, i := range m.byBuyer[h] {
			v := traded(i)
			if v == 0 {
				continue
			}
			pr := m.pairs[i]
			r.Volume += v
			weighted += pr.distance * v
			if pr.price > r.Price {
				r.Price = pr.price
			}
			if pr.distance > r.MaxDistance {
				r.MaxDistance = pr.distance
			}
			out.Trades = append(out.Trades, Trade{
				Buyer:    pr.key.Buyer,
				Seller:   pr.key.Seller,
				Distance: pr.distance,
				MinPrice: pr.price,
				Volume:   v,
			})
		}
		if r.Volume > 0 {
			r.MeanDistance = weighted / r.Volume
			r.Expenditure = r.Price * r.Volume
			if b.Units > 0 {
				r.PerUnit = r.Volume / b.Units
			}
		}
		price[h] = r.Price
		out.Volume += r.Volume
		out.Buyers[b.ID] = r
	}

	for f, s := range m.sellers {
		r := SellerResult{Ceiling: m.qmax[f]}
		offer := s.OfferSum()
		for _, i := range m.bySeller[f] {
			v := traded(i)
			if v == 0 {
				continue
			}
			pr := m.pairs[i]
			farmPrice := price[pr.buyer] - o.TransportCost*pr.distance
			r.Sold += v
			r.Revenue += farmPrice * v
			if offer <= 0 {
				continue
			}
			for _, farm := range s.Farms {
				if farm.Quantity <= 0 {
					continue
				}
				share := farm.Quantity / offer
				fr := out.Farms[farm.ID]
				fr.Seller = s.ID
				fr.Sold += v * share
				fr.Revenue += farmPrice * v * share
				out.Farms[farm.ID] = fr
			}
		}
		out.Sellers[s.ID] = r
	}
	for id, fr := range out.Farms {
		if fr.Sold > 0 {
			fr.Price = fr.Revenue / fr.Sold
			out.Farms[id] = fr
		}
	}
	sort.Slice(out.Trades, func(i, j int) bool {
		if out.Trades[i].Buyer != out.Trades[j].Buyer {
			return out.Trades[i].Buyer < out.Trades[j].Buyer
		}
		return out.Trades[i].Seller < out.Trades[j].Seller
	})
	return out
}
