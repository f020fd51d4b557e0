// SPDX-License-Identifier: MIT

package forecast

import (
	"fmt"
	"sort"
	"sync"

	"github.com/katalvlaran/basinflow/horizon"
)

// Snapshot is one published forecast. Version increases by one with every
// publication of the same (Institution, Name) pair.
type Snapshot struct {
	Institution string
	Name        string
	Version     int
	Issued      horizon.Date
	Values      Series
}

// Board is the shared blackboard of published forecasts.
type Board struct {
	mu    sync.RWMutex
	snaps map[string]map[string]Snapshot
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{snaps: make(map[string]map[string]Snapshot)}
}

// Publish stores values under (inst, name) and returns the new snapshot.
func (b *Board) Publish(inst, name string, issued horizon.Date, values Series) Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	byName, ok := b.snaps[inst]
	if !ok {
		byName = make(map[string]Snapshot)
		b.snaps[inst] = byName
	}
	snap := Snapshot{
		Institution: inst,
		Name:        name,
		Version:     byName[name].Version + 1,
		Issued:      issued,
		Values:      values.Clone(),
	}
	byName[name] = snap

	return snap
}

// Latest returns the newest snapshot of (inst, name) or ErrForecastMissing.
func (b *Board) Latest(inst, name string) (Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap, ok := b.snaps[inst][name]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s/%s never published", ErrForecastMissing, inst, name)
	}
	snap.Values = snap.Values.Clone()
	return snap, nil
}

// Names returns the sorted forecast names inst has published.
func (b *Board) Names(inst string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.snaps[inst]))
	for n := range b.snaps[inst] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Binding declares that a consumer reads a producer's published forecast
// into one of its own input series.
type Binding struct {
	Producer string     `yaml:"producer" mapstructure:"producer"`
	Name     string     `yaml:"name" mapstructure:"name"`
	Into     SeriesKind `yaml:"-" mapstructure:"-"`
	// Nodes lists the keys (node or link IDs) that must be present in the snapshot.
	Nodes []string `yaml:"nodes" mapstructure:"nodes"`
	// Map renames a producer key to the consumer node it feeds; keys
	// absent from Map keep their name.
	Map map[string]string `yaml:"map" mapstructure:"map"`
}

// Resolve looks up the binding on the board and adds the bound values for
// the given months into in. Any absent snapshot or node is ErrForecastMissing.
func (b *Board) Resolve(consumer string, bind Binding, months []int, in *Inputs) error {
	snap, err := b.Latest(bind.Producer, bind.Name)
	if err != nil {
		return fmt.Errorf("forecast: %s reading %s/%s: %w", consumer, bind.Producer, bind.Name, err)
	}
	dst := in.Series(bind.Into)
	for _, node := range bind.Nodes {
		row, ok := snap.Values[node]
		if !ok {
			return fmt.Errorf("%w: %s reading %s/%s key %q", ErrForecastMissing, consumer, bind.Producer, bind.Name, node)
		}
		target := node
		if to, ok := bind.Map[node]; ok {
			target = to
		}
		for _, m := range months {
			dst.Add(target, m, row[m-1])
		}
	}
	return nil
}
