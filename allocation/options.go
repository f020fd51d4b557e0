// SPDX-License-Identifier: MIT

package allocation

import (
	"errors"
	"fmt"
)

// ErrBadOptions is wrapped by Options.Validate.
var ErrBadOptions = errors.New("allocation: invalid options")

// PiecewiseParams feeds Penalties for PenaltyPiecewise.
type PiecewiseParams struct {
	Increment float64 `yaml:"increment" mapstructure:"increment"`
	Steps     int     `yaml:"steps" mapstructure:"steps"`
	Growth    float64 `yaml:"growth" mapstructure:"growth"`
	Base      float64 `yaml:"base" mapstructure:"base"`
}

// Options tune one institution's formulation.
type Options struct {
	Penalty PenaltyMode `yaml:"-" mapstructure:"-"`

	DeficitWeight    float64 `yaml:"deficit_weight" mapstructure:"deficit_weight"`
	TransferWeight   float64 `yaml:"transfer_weight" mapstructure:"transfer_weight"`
	ExtractionWeight float64 `yaml:"extraction_weight" mapstructure:"extraction_weight"`
	// SpillWeight prices spilled storage so reservoirs only spill when full.
	SpillWeight float64 `yaml:"spill_weight" mapstructure:"spill_weight"`
	// LiftTariff is the energy price per unit pumped and unit of lift
	// (elevation − head), added to each node's ExtractionCost.
	LiftTariff float64 `yaml:"lift_tariff" mapstructure:"lift_tariff"`

	// MonthBand bounds deficit ratios between two horizon months of one node.
	MonthBand float64 `yaml:"month_band" mapstructure:"month_band"`
	// NodeBand bounds deficit ratios between siblings in one month.
	NodeBand float64 `yaml:"node_band" mapstructure:"node_band"`
	// PastBand bounds horizon ratios against realized ratios of elapsed months.
	PastBand float64 `yaml:"past_band" mapstructure:"past_band"`
	// PastUpperBand also adds the upper side of the past band.
	PastUpperBand bool `yaml:"past_upper_band" mapstructure:"past_upper_band"`
	// SurplusBand is the largest surplus, as a fraction of demand, a demand
	// node may absorb (deficit lower bound −SurplusBand·demand).
	SurplusBand float64 `yaml:"surplus_band" mapstructure:"surplus_band"`

	// SmoothingExclusions lists demand nodes never smoothed.
	SmoothingExclusions []string `yaml:"smoothing_exclusions" mapstructure:"smoothing_exclusions"`

	Piecewise PiecewiseParams `yaml:"piecewise" mapstructure:"piecewise"`
	// SquareSegments is the number of chords used by PenaltySegments.
	SquareSegments int `yaml:"square_segments" mapstructure:"square_segments"`
}

// DefaultOptions returns the stock formulation: linear deficit cost
// dominating transfer and pumping costs, ±10% month and ±20% sibling bands.
func DefaultOptions() Options {
	return Options{
		Penalty:          PenaltyLinear,
		DeficitWeight:    1000,
		TransferWeight:   1,
		ExtractionWeight: 1,
		SpillWeight:      0.01,
		MonthBand:        0.1,
		NodeBand:         0.2,
		PastBand:         0.1,
		SurplusBand:      0.5,
		Piecewise:        PiecewiseParams{Increment: 0.1, Steps: 5, Growth: 1.5, Base: 1},
		SquareSegments:   20,
	}
}

// Validate checks ranges.
func (o Options) Validate() error {
	for name, band := range map[string]float64{"month_band": o.MonthBand, "node_band": o.NodeBand, "past_band": o.PastBand} {
		if band < 0 || band >= 1 {
			return fmt.Errorf("%w: %s %g outside [0,1)", ErrBadOptions, name, band)
		}
	}
	if o.SurplusBand < 0 {
		return fmt.Errorf("%w: surplus_band %g", ErrBadOptions, o.SurplusBand)
	}
	if o.DeficitWeight <= 0 || o.TransferWeight < 0 || o.ExtractionWeight < 0 || o.SpillWeight < 0 {
		return fmt.Errorf("%w: weights deficit=%g transfer=%g extraction=%g spill=%g",
			ErrBadOptions, o.DeficitWeight, o.TransferWeight, o.ExtractionWeight, o.SpillWeight)
	}
	if o.LiftTariff < 0 {
		return fmt.Errorf("%w: lift_tariff %g", ErrBadOptions, o.LiftTariff)
	}
	switch o.Penalty {
	case PenaltyPiecewise:
		if o.Piecewise.Increment <= 0 || o.Piecewise.Steps <= 0 || o.Piecewise.Growth < 1 || o.Piecewise.Base <= 0 {
			return fmt.Errorf("%w: piecewise %+v", ErrBadOptions, o.Piecewise)
		}
	case PenaltySegments:
		if o.SquareSegments <= 0 {
			return fmt.Errorf("%w: square_segments %d", ErrBadOptions, o.SquareSegments)
		}
	case PenaltyLinear, PenaltyQuadratic:
	default:
		return fmt.Errorf("%w: penalty %v", ErrBadOptions, o.Penalty)
	}
	return nil
}

func (o Options) excluded(id string) bool {
	for _, x := range o.SmoothingExclusions {
		if x == id {
			return true
		}
	}
	return false
}
