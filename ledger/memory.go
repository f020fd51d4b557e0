// SPDX-License-Identifier: MIT

package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type allocKey struct {
	inst        string
	year, month int
}

type marketKey struct{ year, month int }

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]Run
	allocations map[string]map[allocKey]AllocationRecord
	markets     map[string]map[marketKey]MarketRecord
}

// NewMemoryStore returns an uninitialized store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Init implements Store.
func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]Run)
	s.allocations = make(map[string]map[allocKey]AllocationRecord)
	s.markets = make(map[string]map[marketKey]MarketRecord)
	return nil
}

// BeginRun implements Store.
func (s *MemoryStore) BeginRun(_ context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.runs[run.ID] = run
	return nil
}

// Runs implements Store; runs come back in start order.
func (s *MemoryStore) Runs(_ context.Context) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	out := make([]Run, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Started.Equal(out[j].Started) {
			return out[i].Started.Before(out[j].Started)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SaveAllocation implements Store.
func (s *MemoryStore) SaveAllocation(_ context.Context, rec AllocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkRun(rec.RunID); err != nil {
		return err
	}
	if s.allocations[rec.RunID] == nil {
		s.allocations[rec.RunID] = make(map[allocKey]AllocationRecord)
	}
	s.allocations[rec.RunID][allocKey{rec.Institution, rec.Year, rec.Month}] = rec
	return nil
}

// Allocations implements Store.
func (s *MemoryStore) Allocations(_ context.Context, runID string) ([]AllocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkRun(runID); err != nil {
		return nil, err
	}
	out := make([]AllocationRecord, 0, len(s.allocations[runID]))
	for _, r := range s.allocations[runID] {
		out = append(out, r)
	}
	sortAllocations(out)
	return out, nil
}

// SaveMarket implements Store.
func (s *MemoryStore) SaveMarket(_ context.Context, rec MarketRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkRun(rec.RunID); err != nil {
		return err
	}
	if s.markets[rec.RunID] == nil {
		s.markets[rec.RunID] = make(map[marketKey]MarketRecord)
	}
	s.markets[rec.RunID][marketKey{rec.Year, rec.Month}] = rec
	return nil
}

// Markets implements Store.
func (s *MemoryStore) Markets(_ context.Context, runID string) ([]MarketRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkRun(runID); err != nil {
		return nil, err
	}
	out := make([]MarketRecord, 0, len(s.markets[runID]))
	for _, r := range s.markets[runID] {
		out = append(out, r)
	}
	sortMarkets(out)
	return out, nil
}

func (s *MemoryStore) checkRun(id string) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	if _, ok := s.runs[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRun, id)
	}
	return nil
}
