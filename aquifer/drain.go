// SPDX-License-Identifier: MIT

package aquifer

import (
	"fmt"
	"sort"
)

// Drain is a spring or baseflow outlet fed by the aquifer.
type Drain struct {
	Basin       string
	Head        float64 // drain head at the start of the run
	Elevation   float64
	Conductance float64
	// Wells are location indices whose head decline lowers this drain.
	Wells []int
}

// DrainFlows returns the outflow per basin for the head column at time t,
// given the initial head column. Each drain flows
//
//	(Head - decline - Elevation) * Conductance
//
// where decline is the mean head drop among its wells that declined (rising
// heads are ignored). Only positive drain flows count towards a basin.
func DrainFlows(initial, current []float64, drains []Drain) (map[string]float64, error) {
	if len(initial) != len(current) {
		return nil, fmt.Errorf("aquifer: drain heads %d vs %d: %w", len(initial), len(current), ErrDimensionMismatch)
	}
	flows := make(map[string]float64)
	for _, d := range drains {
		if _, ok := flows[d.Basin]; !ok {
			flows[d.Basin] = 0
		}
		var decline float64
		var n int
		for _, w := range d.Wells {
			if w < 0 || w >= len(current) {
				return nil, fmt.Errorf("aquifer: drain in %q references well %d: %w", d.Basin, w, ErrIndexOutOfRange)
			}
			if drop := initial[w] - current[w]; drop > 0 {
				decline += drop
				n++
			}
		}
		if n > 0 {
			decline /= float64(n)
		}
		if f := (d.Head - decline - d.Elevation) * d.Conductance; f > 0 {
			flows[d.Basin] += f
		}
	}

	return flows, nil
}

// Basins returns the sorted basin names of a flow map.
func Basins(flows map[string]float64) []string {
	names := make([]string, 0, len(flows))
	for b := range flows {
		names = append(names, b)
	}
	sort.Strings(names)

	return names
}
