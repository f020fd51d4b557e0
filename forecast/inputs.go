// SPDX-License-Identifier: MIT

// Package forecast carries the per-period exogenous inputs of an allocation
// model and the versioned forecasts institutions publish for each other.
package forecast

import (
	"errors"
	"fmt"
	"sort"

	"github.com/katalvlaran/basinflow/core"
)

// ErrForecastMissing is returned when a declared forecast input is absent.
var ErrForecastMissing = errors.New("forecast: forecast missing")

// ErrUnknownSeries is returned by ParseSeriesKind.
var ErrUnknownSeries = errors.New("forecast: unknown series")

// Monthly holds one value per calendar month; index 0 is January.
type Monthly [core.Months]float64

// Series maps node IDs to monthly values.
type Series map[string]Monthly

// At returns the value for node in month (1..12); absent entries read as 0.
func (s Series) At(node string, month int) float64 {
	if month < 1 || month > core.Months {
		return 0
	}
	return s[node][month-1]
}

// Set stores one value, allocating the row on first use.
func (s Series) Set(node string, month int, v float64) {
	row := s[node]
	row[month-1] = v
	s[node] = row
}

// Add accumulates into one value.
func (s Series) Add(node string, month int, v float64) {
	row := s[node]
	row[month-1] += v
	s[node] = row
}

// Nodes returns the sorted node IDs present in s.
func (s Series) Nodes() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns an independent copy.
func (s Series) Clone() Series {
	out := make(Series, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// SeriesKind names one of the input series of Inputs.
type SeriesKind int

const (
	SeriesDemand SeriesKind = iota
	SeriesInflow
	SeriesEvaporation
	SeriesSeepage
	SeriesExogIn
	SeriesExogOut
)

var seriesNames = [...]string{
	SeriesDemand:      "demand",
	SeriesInflow:      "inflow",
	SeriesEvaporation: "evaporation",
	SeriesSeepage:     "seepage",
	SeriesExogIn:      "exog_in",
	SeriesExogOut:     "exog_out",
}

func (k SeriesKind) String() string {
	if k < 0 || int(k) >= len(seriesNames) {
		return fmt.Sprintf("SeriesKind(%d)", int(k))
	}
	return seriesNames[k]
}

// ParseSeriesKind maps a config name back to a SeriesKind.
func ParseSeriesKind(s string) (SeriesKind, error) {
	for k, name := range seriesNames {
		if name == s {
			return SeriesKind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSeries, s)
}

// Inputs is everything exogenous an allocation model reads for one period.
type Inputs struct {
	Demand      Series `yaml:"demand"`
	Inflow      Series `yaml:"inflow"`
	Evaporation Series `yaml:"evaporation"`
	Seepage     Series `yaml:"seepage"`
	ExogIn      Series `yaml:"exog_in"`
	ExogOut     Series `yaml:"exog_out"`
}

// NewInputs returns Inputs with every series allocated.
func NewInputs() Inputs {
	return Inputs{
		Demand:      Series{},
		Inflow:      Series{},
		Evaporation: Series{},
		Seepage:     Series{},
		ExogIn:      Series{},
		ExogOut:     Series{},
	}
}

// Series returns the series of the given kind, allocating it if needed.
func (in *Inputs) Series(k SeriesKind) Series {
	var p *Series
	switch k {
	case SeriesDemand:
		p = &in.Demand
	case SeriesInflow:
		p = &in.Inflow
	case SeriesEvaporation:
		p = &in.Evaporation
	case SeriesSeepage:
		p = &in.Seepage
	case SeriesExogIn:
		p = &in.ExogIn
	default:
		p = &in.ExogOut
	}
	if *p == nil {
		*p = Series{}
	}
	return *p
}

// Clone returns a deep copy.
func (in Inputs) Clone() Inputs {
	return Inputs{
		Demand:      in.Demand.Clone(),
		Inflow:      in.Inflow.Clone(),
		Evaporation: in.Evaporation.Clone(),
		Seepage:     in.Seepage.Clone(),
		ExogIn:      in.ExogIn.Clone(),
		ExogOut:     in.ExogOut.Clone(),
	}
}
