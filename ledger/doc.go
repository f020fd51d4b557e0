// SPDX-License-Identifier: MIT

// Package ledger persists what a run realized: one record per institution
// and period, one per market clearing, keyed by a run ID.
//
// Two stores are provided. MemoryStore is always available; the sqlite
// store (modernc.org/sqlite, pure Go) is compiled in with -tags sqlite.
// NewStore picks one by name.
package ledger
