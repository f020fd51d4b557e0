// SPDX-License-Identifier: MIT

// Package market clears the monthly tanker water market between farm
// sellers and urban buyers.
//
// An Engine keeps one persistent clearing model for the whole run. The
// first Clear builds the buyer×seller pairs (eligible by road distance or
// shared subdistrict); every later Clear mutates prices, ceilings, unit
// counts and policy caps in place and re-solves from the previous primal
// point and bound multipliers.
//
// The clearing problem maximizes buyer surplus
//
//	Σ_h u_h·[ g_h(q_h) − g_h(p_h) − Σ_f c_hf·x_hf/u_h ],   g(q) = (σ·ln q − σ + σ2)·q
//
// with q_h = Σ_f x_hf/u_h + p_h (p_h piped supply per unit), subject to
// seller ceilings Σ_h x_hf ≤ qmax_f and the active policy caps. It is
// solved by a primal log-barrier Newton method on a dense Hessian
// (gonum/mat Cholesky).
//
// Clear never returns an error. A failed warm solve is retried once from a
// cold start; if that fails too, the previous cleared volumes are reused
// and the Outcome reports StatusKeptPrevious.
package market
