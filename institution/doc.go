// SPDX-License-Identifier: MIT

// Package institution runs one water institution's monthly allocation and
// sequences several institutions in their declared order.
//
// Per period an Institution moves through
//
//	Idle → ForecastRefreshed → ModelBuilt → Solved → Extracted
//	                                    └→ Solved(failed) → Skipped
//
// Only Extracted writes anything: the anchor month goes into live node and
// link state, the later months are published on the forecast Board for
// dependent institutions. A Skipped period leaves live state untouched.
// Solver failures are never returned as errors; a missing forecast is.
package institution
