// SPDX-License-Identifier: MIT

package ledger

import (
	"context"
	"fmt"
	"sort"
)

// Store persists runs and their records. Saving a record twice for the
// same key replaces it.
type Store interface {
	Init(ctx context.Context) error
	BeginRun(ctx context.Context, run Run) error
	Runs(ctx context.Context) ([]Run, error)
	SaveAllocation(ctx context.Context, rec AllocationRecord) error
	Allocations(ctx context.Context, runID string) ([]AllocationRecord, error)
	SaveMarket(ctx context.Context, rec MarketRecord) error
	Markets(ctx context.Context, runID string) ([]MarketRecord, error)
}

// NewStore returns the named backend: "memory" (or empty) or "sqlite".
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("ledger: unsupported store backend %q", kind)
	}
}

// CloseIfSupported closes stores holding resources.
func CloseIfSupported(s Store) error {
	closer, ok := s.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}

func sortAllocations(recs []AllocationRecord) {
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		return a.Institution < b.Institution
	})
}

func sortMarkets(recs []MarketRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Year != recs[j].Year {
			return recs[i].Year < recs[j].Year
		}
		return recs[i].Month < recs[j].Month
	})
}
