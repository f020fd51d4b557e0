// SPDX-License-Identifier: MIT

// Package aquifer projects groundwater head from pumping history with a linear
// time-invariant impulse-response model.
//
// The response tensor unit_response[location][source][lag] gives the head
// change at a monitored location, lag months after one unit of pumping
// deviation at a source. Every month the Engine:
//
//  1. reads current pumping at each source and applies the named exception
//     table (ExceptionTable),
//  2. converts pumping into unit multiples: (pumping - baseline) / UnitScale,
//  3. convolves that single column against the remaining lags:
//     head[l][t+k] += factor * Σ_s coef[l][s][k] * unit[s],  k = 0..H-t-1,
//  4. writes head[:, t] back to the location nodes.
//
// Head columns before the current index are never written again; stepping a
// completed month returns ErrRevision.
//
// Sign convention: head = baseline + coef × deviation. Drawdown coefficients
// are therefore negative in the tensor.
package aquifer
