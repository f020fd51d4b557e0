// SPDX-License-Identifier: MIT

package market

import (
	"errors"
	"fmt"
	"math"

	"github.com/katalvlaran/basinflow/horizon"
)

// DaysPerMonth converts annual offer quantities into a monthly ceiling.
const DaysPerMonth = 365.0 / 12.0

var (
	// ErrBadOptions is returned by Options.Validate.
	ErrBadOptions = errors.New("market: invalid options")
	// ErrBadInput marks a period whose buyers or sellers cannot be cleared.
	ErrBadInput = errors.New("market: invalid period input")
	// ErrNotConverged is reported when the Newton iteration gives up.
	ErrNotConverged = errors.New("market: barrier iteration did not converge")
)

// BuyerKind separates the two buyer classes split caps apply to.
type BuyerKind int

const (
	Household BuyerKind = iota
	Commercial
)

func (k BuyerKind) String() string {
	if k == Commercial {
		return "commercial"
	}
	return "household"
}

// ParseBuyerKind maps "household" / "commercial" to a BuyerKind.
func ParseBuyerKind(s string) (BuyerKind, error) {
	switch s {
	case "household", "":
		return Household, nil
	case "commercial":
		return Commercial, nil
	}
	return Household, fmt.Errorf("%w: buyer kind %q", ErrBadInput, s)
}

// Buyer is one representative consumer agent.
type Buyer struct {
	ID          string
	Location    string
	Subdistrict string
	Kind        BuyerKind
	// Units is the number of households or businesses represented.
	Units float64
	// PipedPerUnit is the piped supply per unit this month.
	PipedPerUnit float64
	// Sigma and Sigma2 shape the marginal willingness to pay σ·ln q + σ2.
	Sigma  float64
	Sigma2 float64
}

// Active reports whether the buyer may purchase at all.
func (b Buyer) Active() bool { return b.Units > 0 && b.PipedPerUnit > 0 }

// FarmOffer is one farm's annual tanker offer.
type FarmOffer struct {
	ID       string
	Quantity float64
	Price    float64
}

// Seller is a group of farms selling through one wellfield location.
type Seller struct {
	ID          string
	Location    string
	Subdistrict string
	Farms       []FarmOffer
}

// OfferSum is the total annual quantity offered by farms with a positive offer.
func (s Seller) OfferSum() float64 {
	var sum float64
	for _, f := range s.Farms {
		if f.Quantity > 0 {
			sum += f.Quantity
		}
	}
	return sum
}

// MeanPrice is the plain mean price of the farms with a positive offer,
// or 1 when none offers.
func (s Seller) MeanPrice() float64 {
	var sum float64
	n := 0
	for _, f := range s.Farms {
		if f.Quantity > 0 {
			sum += f.Price
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return sum / float64(n)
}

// PolicyKind selects the market-wide sales caps.
type PolicyKind int

const (
	PolicyNone PolicyKind = iota
	// PolicyTotalCap limits the total tanker sales.
	PolicyTotalCap
	// PolicySplitCaps limits household and commercial sales separately.
	PolicySplitCaps
)

var policyNames = [...]string{
	PolicyNone:      "none",
	PolicyTotalCap:  "total_cap",
	PolicySplitCaps: "split_caps",
}

func (k PolicyKind) String() string {
	if k < 0 || int(k) >= len(policyNames) {
		return fmt.Sprintf("PolicyKind(%d)", int(k))
	}
	return policyNames[k]
}

// ParsePolicyKind maps a policy name to its kind.
func ParsePolicyKind(s string) (PolicyKind, error) {
	if s == "" {
		return PolicyNone, nil
	}
	for k, name := range policyNames {
		if name == s {
			return PolicyKind(k), nil
		}
	}
	return PolicyNone, fmt.Errorf("%w: policy %q", ErrBadOptions, s)
}

// Policy holds this period's caps.
type Policy struct {
	Kind          PolicyKind
	TotalCap      float64
	HouseholdCap  float64
	CommercialCap float64
}

// SplitCaps reserves householdShare of total for households and leaves the
// rest, never negative, to commercial buyers.
func SplitCaps(total, householdShare float64) Policy {
	hh := householdShare * total
	return Policy{
		Kind:          PolicySplitCaps,
		TotalCap:      total,
		HouseholdCap:  hh,
		CommercialCap: math.Max(0, total-hh),
	}
}

// Period is the input of one Clear.
type Period struct {
	Date    horizon.Date
	Buyers  []Buyer
	Sellers []Seller
	Policy  Policy
}

func (p Period) validate() error {
	seen := make(map[string]bool, len(p.Buyers))
	for _, b := range p.Buyers {
		if b.ID == "" || seen[b.ID] {
			return fmt.Errorf("%w: buyer ID %q empty or duplicate", ErrBadInput, b.ID)
		}
		seen[b.ID] = true
		if b.Units < 0 || b.PipedPerUnit < 0 {
			return fmt.Errorf("%w: buyer %s units=%g piped=%g", ErrBadInput, b.ID, b.Units, b.PipedPerUnit)
		}
		if b.Active() && b.Sigma > 0 {
			return fmt.Errorf("%w: buyer %s sigma %g must not be positive", ErrBadInput, b.ID, b.Sigma)
		}
	}
	seen = make(map[string]bool, len(p.Sellers))
	for _, s := range p.Sellers {
		if s.ID == "" || seen[s.ID] {
			return fmt.Errorf("%w: seller ID %q empty or duplicate", ErrBadInput, s.ID)
		}
		seen[s.ID] = true
	}
	switch p.Policy.Kind {
	case PolicyNone:
	case PolicyTotalCap:
		if p.Policy.TotalCap < 0 {
			return fmt.Errorf("%w: total cap %g", ErrBadInput, p.Policy.TotalCap)
		}
	case PolicySplitCaps:
		if p.Policy.HouseholdCap < 0 || p.Policy.CommercialCap < 0 {
			return fmt.Errorf("%w: split caps %g/%g", ErrBadInput, p.Policy.HouseholdCap, p.Policy.CommercialCap)
		}
	default:
		return fmt.Errorf("%w: policy %v", ErrBadInput, p.Policy.Kind)
	}
	return nil
}

// StartConfig parameterizes the barrier start.
type StartConfig struct {
	// MuInit is the first barrier weight.
	MuInit float64 `yaml:"mu_init" mapstructure:"mu_init"`
	// BoundPush is the minimum relative distance of the start from any bound.
	BoundPush float64 `yaml:"bound_push" mapstructure:"bound_push"`
}

// Options configures an Engine.
type Options struct {
	// TransportCost is the price per unit volume per km.
	TransportCost float64 `yaml:"transport_cost" mapstructure:"transport_cost"`
	// MaxDistance is the longest road trip in km a pair may span across
	// subdistricts.
	MaxDistance float64 `yaml:"max_distance" mapstructure:"max_distance"`
	// MinimumOfferCeiling is the monthly ceiling of a seller without offers.
	MinimumOfferCeiling float64 `yaml:"minimum_offer_ceiling" mapstructure:"minimum_offer_ceiling"`

	Cold StartConfig `yaml:"cold" mapstructure:"cold"`
	Warm StartConfig `yaml:"warm" mapstructure:"warm"`

	// Tol bounds the duality gap relative to the objective.
	Tol float64 `yaml:"tol" mapstructure:"tol"`
	// CenterTol ends a centering pass once the Newton decrement is at most
	// CenterTol·μ.
	CenterTol float64 `yaml:"center_tol" mapstructure:"center_tol"`
	// MuFactor shrinks the barrier weight between centering passes.
	MuFactor float64 `yaml:"mu_factor" mapstructure:"mu_factor"`
	// MaxIter caps the Newton steps of one solve.
	MaxIter int `yaml:"max_iter" mapstructure:"max_iter"`
	// PurchaseTol is the volume above which a pair counts as traded.
	PurchaseTol float64 `yaml:"purchase_tol" mapstructure:"purchase_tol"`
}

// DefaultOptions returns the cold/warm settings used for monthly runs.
func DefaultOptions() Options {
	return Options{
		TransportCost:       0.1,
		MaxDistance:         50,
		MinimumOfferCeiling: 0.001,
		Cold:                StartConfig{MuInit: 0.1, BoundPush: 0.01},
		Warm:                StartConfig{MuInit: 1e-6, BoundPush: 1e-6},
		Tol:                 1e-9,
		CenterTol:           1e-8,
		MuFactor:            0.2,
		MaxIter:             500,
		PurchaseTol:         1e-4,
	}
}

// Validate checks ranges.
func (o Options) Validate() error {
	switch {
	case o.TransportCost < 0, o.MaxDistance < 0, o.MinimumOfferCeiling < 0:
		return fmt.Errorf("%w: transport=%g max_distance=%g minimum_offer=%g",
			ErrBadOptions, o.TransportCost, o.MaxDistance, o.MinimumOfferCeiling)
	case o.Cold.MuInit <= 0, o.Warm.MuInit <= 0:
		return fmt.Errorf("%w: mu_init must be positive", ErrBadOptions)
	case o.Cold.BoundPush <= 0 || o.Cold.BoundPush >= 1, o.Warm.BoundPush <= 0 || o.Warm.BoundPush >= 1:
		return fmt.Errorf("%w: bound_push must lie in (0,1)", ErrBadOptions)
	case o.Tol <= 0, o.CenterTol <= 0, o.MuFactor <= 0 || o.MuFactor >= 1, o.MaxIter <= 0, o.PurchaseTol < 0:
		return fmt.Errorf("%w: tol=%g center_tol=%g mu_factor=%g max_iter=%d purchase_tol=%g",
			ErrBadOptions, o.Tol, o.CenterTol, o.MuFactor, o.MaxIter, o.PurchaseTol)
	}
	return nil
}
