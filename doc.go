// SPDX-License-Identifier: MIT

// Package basinflow simulates a scarce-water river basin month by month.
//
// What is in the module?
//
//	• Water institutions decide surface and groundwater deliveries over the
//	  rest of the year with a rolling-horizon optimization, anchored on the
//	  observed state and smoothed against past deficits.
//	• A solver cascade tries backends in order (barrier, then simplex) and
//	  tags the outcome instead of failing the period.
//	• An aquifer answers cumulative pumping through an impulse-response
//	  tensor and feeds drain baseflow back into the river.
//	• A tanker market clears farm→consumer trades with a warm-started
//	  Newton barrier solve.
//
// Layout:
//
//	core/        water network: typed nodes and links, thread-safe catalog
//	horizon/     rolling-horizon month index
//	matrix/      dense 2-D and 3-D float storage
//	aquifer/     response-matrix engine, pumping exceptions, drains
//	solver/      solver-neutral model, barrier and simplex backends, cascade
//	allocation/  allocation model builder and plan extraction
//	forecast/    forecast provider, series, versioned publication board
//	institution/ per-period state machine and the ordered runner
//	flow/        Dinic max-flow bound on deliverable water
//	dfs/         topological order and cycle detection of dependencies
//	dijkstra/    road distances for tanker eligibility
//	market/      market clearing engine
//	ledger/      run ledger (memory, sqlite with -tags sqlite)
//	config/      YAML run file with env and flag overrides
//	logging/     zap-backed logr loggers
//	sim/         per-month sequencer
//	cmd/basinflow CLI
//
// Quick start:
//
//	go run ./cmd/basinflow run --config sim/testdata/run.yaml
package basinflow
