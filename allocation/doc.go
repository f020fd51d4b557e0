// SPDX-License-Identifier: MIT

// Package allocation builds the rolling-horizon allocation program of one
// institution, and extracts solved values back into a typed plan.
//
// A Shell caches the governed topology once (nodes by role, internal links).
// Every period Build forks a fresh Instance from it: a solver.Model with one
// column per (variable kind, node or link, horizon month) and the rows below.
//
// Variables, for every month t of the horizon:
//
//	flow[l,t]        ∈ [0, capacity]              per internal link
//	delivery[n,t]    ∈ [0, (1+surplus)·demand]    per demand node
//	deficit[n,t]     ∈ [−surplus·demand, demand]  per demand node (signed)
//	short[n,t]       ≥ max(deficit, 0)            per demand node, penalized
//	extraction[n,t]  ∈ [0, cap·(1−reduction)]     per node with pumping
//	storage[s,t]     ∈ [min, max]                 per storage node
//	release[s,t]     = Σ out-flow                 per storage node
//	spill[s,t]       ≥ 0                          per storage node
//	penalty[n,t]     ≥ 0                          epigraph (Piecewise/Segments modes)
//
// Rows:
//
//   - balance[n,t]: Σ in-flow·delivered + inflow + exog_in + extraction
//     − Σ out-flow − delivery − exog_out = 0 at every non-storage node.
//   - shortfall[n,t]: delivery + deficit = demand at every demand node.
//   - transition[s,t]: storage[t] = storage[t−1] − release − spill
//     − evaporation − seepage + inflow + Σ in-flow·delivered (all at t−1).
//   - anchor[s]: storage at the first horizon month equals the observed volume.
//   - final[s]: storage after the last horizon month stays within bounds.
//   - month and sibling smoothing bands on deficit/demand, plus the lower
//     band against realized deficit ratios of elapsed months.
//
// The objective adds deficit penalties (per PenaltyMode), transfer cost
// flow·UnitCost and extraction cost extraction·ExtractionCost, each scaled by
// its Options weight.
package allocation
