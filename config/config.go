// SPDX-License-Identifier: MIT

// Package config loads and validates a basinflow run file.
//
// A run file is YAML. Scalars may be overridden from BASINFLOW_* environment
// variables (dots become underscores: BASINFLOW_LOGGING_LEVEL) and from CLI
// flags bound with BindFlags.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/katalvlaran/basinflow/allocation"
	"github.com/katalvlaran/basinflow/core"
	"github.com/katalvlaran/basinflow/flow"
	"github.com/katalvlaran/basinflow/forecast"
	"github.com/katalvlaran/basinflow/horizon"
	"github.com/katalvlaran/basinflow/market"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid run file")

// Config is a whole run file.
type Config struct {
	Run          RunConfig           `yaml:"run" mapstructure:"run"`
	Logging      LoggingConfig       `yaml:"logging" mapstructure:"logging"`
	Store        StoreConfig         `yaml:"store" mapstructure:"store"`
	Network      NetworkConfig       `yaml:"network" mapstructure:"network"`
	Institutions []InstitutionConfig `yaml:"institutions" mapstructure:"institutions"`
	Aquifer      *AquiferConfig      `yaml:"aquifer" mapstructure:"aquifer"`
	Market       *MarketConfig       `yaml:"market" mapstructure:"market"`

	// dir is the directory relative paths are resolved against.
	dir string
}

// RunConfig sets the simulated calendar.
type RunConfig struct {
	Label string `yaml:"label" mapstructure:"label"`
	// Start is the first simulated month, "YYYY-MM".
	Start  string `yaml:"start" mapstructure:"start"`
	Months int    `yaml:"months" mapstructure:"months"`
	// Forecasts is the path of the static forecast table.
	Forecasts string `yaml:"forecasts" mapstructure:"forecasts"`
	// MetricsFile receives a Prometheus text dump at the end of the run.
	MetricsFile string `yaml:"metrics_file" mapstructure:"metrics_file"`
}

// LoggingConfig selects the logger.
type LoggingConfig struct {
	// Level is the highest logr V-level printed.
	Level       int  `yaml:"level" mapstructure:"level"`
	Development bool `yaml:"development" mapstructure:"development"`
}

// StoreConfig selects the ledger backend.
type StoreConfig struct {
	Kind string `yaml:"kind" mapstructure:"kind"`
	Path string `yaml:"path" mapstructure:"path"`
}

// NetworkConfig lists nodes and links.
type NetworkConfig struct {
	Nodes []NodeConfig `yaml:"nodes" mapstructure:"nodes"`
	Links []LinkConfig `yaml:"links" mapstructure:"links"`
}

// NodeConfig is one network node.
type NodeConfig struct {
	ID    string `yaml:"id" mapstructure:"id"`
	Kind  string `yaml:"kind" mapstructure:"kind"`
	Group string `yaml:"group" mapstructure:"group"`
	// ExtractionCap is a uniform monthly cap; ExtractionCaps, when given,
	// lists all twelve months and wins.
	ExtractionCap     float64   `yaml:"extraction_cap" mapstructure:"extraction_cap"`
	ExtractionCaps    []float64 `yaml:"extraction_caps" mapstructure:"extraction_caps"`
	ExtractionCost    float64   `yaml:"extraction_cost" mapstructure:"extraction_cost"`
	CapacityReduction float64   `yaml:"capacity_reduction" mapstructure:"capacity_reduction"`
	StorageMin        float64   `yaml:"storage_min" mapstructure:"storage_min"`
	StorageMax        float64   `yaml:"storage_max" mapstructure:"storage_max"`
	Volume            float64   `yaml:"volume" mapstructure:"volume"`
	Head              float64   `yaml:"head" mapstructure:"head"`
	Elevation         float64   `yaml:"elevation" mapstructure:"elevation"`
}

// LinkConfig is one directed link. A zero capacity means unbounded.
type LinkConfig struct {
	From     string  `yaml:"from" mapstructure:"from"`
	To       string  `yaml:"to" mapstructure:"to"`
	Capacity float64 `yaml:"capacity" mapstructure:"capacity"`
	UnitCost float64 `yaml:"unit_cost" mapstructure:"unit_cost"`
	Loss     float64 `yaml:"loss" mapstructure:"loss"`
}

// BindingConfig is the file form of forecast.Binding.
type BindingConfig struct {
	Producer string            `yaml:"producer" mapstructure:"producer"`
	Name     string            `yaml:"name" mapstructure:"name"`
	Into     string            `yaml:"into" mapstructure:"into"`
	Nodes    []string          `yaml:"nodes" mapstructure:"nodes"`
	Map      map[string]string `yaml:"map" mapstructure:"map"`
}

// InstitutionConfig declares one institution. Options overrides the keys of
// allocation.DefaultOptions it names.
type InstitutionConfig struct {
	Name      string          `yaml:"name" mapstructure:"name"`
	Governs   []string        `yaml:"governs" mapstructure:"governs"`
	Publishes []string        `yaml:"publishes" mapstructure:"publishes"`
	Consumes  []BindingConfig `yaml:"consumes" mapstructure:"consumes"`
	Penalty   string          `yaml:"penalty" mapstructure:"penalty"`
	Options   map[string]any  `yaml:"options" mapstructure:"options"`
	// Backends lists the cascade order; empty means barrier then simplex.
	Backends []string `yaml:"backends" mapstructure:"backends"`
	// Reachability names the max-flow routine of the deliverable bound:
	// dinic (default) or edmonds_karp.
	Reachability string `yaml:"reachability" mapstructure:"reachability"`
}

// DrainConfig is the file form of aquifer.Drain.
type DrainConfig struct {
	Basin       string  `yaml:"basin" mapstructure:"basin"`
	Head        float64 `yaml:"head" mapstructure:"head"`
	Elevation   float64 `yaml:"elevation" mapstructure:"elevation"`
	Conductance float64 `yaml:"conductance" mapstructure:"conductance"`
	Wells       []int   `yaml:"wells" mapstructure:"wells"`
}

// AquiferConfig holds the response tensor and its baselines.
type AquiferConfig struct {
	// Sources and Locations are network node IDs.
	Sources   []string `yaml:"sources" mapstructure:"sources"`
	Locations []string `yaml:"locations" mapstructure:"locations"`
	// Response is indexed [location][source][lag].
	Response [][][]float64 `yaml:"response" mapstructure:"response"`
	// BaselineHead is indexed [location][month of run].
	BaselineHead    [][]float64   `yaml:"baseline_head" mapstructure:"baseline_head"`
	BaselinePumping []float64     `yaml:"baseline_pumping" mapstructure:"baseline_pumping"`
	UnitScale       float64       `yaml:"unit_scale" mapstructure:"unit_scale"`
	ResponseFactor  float64       `yaml:"response_factor" mapstructure:"response_factor"`
	Drains          []DrainConfig `yaml:"drains" mapstructure:"drains"`
}

// RoadConfig is one undirected road.
type RoadConfig struct {
	From string  `yaml:"from" mapstructure:"from"`
	To   string  `yaml:"to" mapstructure:"to"`
	Km   float64 `yaml:"km" mapstructure:"km"`
}

// FarmConfig is one farm offer.
type FarmConfig struct {
	ID       string  `yaml:"id" mapstructure:"id"`
	Quantity float64 `yaml:"quantity" mapstructure:"quantity"`
	Price    float64 `yaml:"price" mapstructure:"price"`
}

// SellerConfig is one seller.
type SellerConfig struct {
	ID          string       `yaml:"id" mapstructure:"id"`
	Location    string       `yaml:"location" mapstructure:"location"`
	Subdistrict string       `yaml:"subdistrict" mapstructure:"subdistrict"`
	Farms       []FarmConfig `yaml:"farms" mapstructure:"farms"`
}

// BuyerConfig is one buyer. When SupplyNode is set, the piped supply per
// unit is the node's realized delivery shared over the units of every buyer
// on that node; otherwise PipedPerUnit is used as is.
type BuyerConfig struct {
	ID           string  `yaml:"id" mapstructure:"id"`
	Location     string  `yaml:"location" mapstructure:"location"`
	Subdistrict  string  `yaml:"subdistrict" mapstructure:"subdistrict"`
	Kind         string  `yaml:"kind" mapstructure:"kind"`
	Units        float64 `yaml:"units" mapstructure:"units"`
	PipedPerUnit float64 `yaml:"piped_per_unit" mapstructure:"piped_per_unit"`
	SupplyNode   string  `yaml:"supply_node" mapstructure:"supply_node"`
	Sigma        float64 `yaml:"sigma" mapstructure:"sigma"`
	Sigma2       float64 `yaml:"sigma2" mapstructure:"sigma2"`
}

// PolicyConfig is the market-wide sales cap.
type PolicyConfig struct {
	Kind           string  `yaml:"kind" mapstructure:"kind"`
	TotalCap       float64 `yaml:"total_cap" mapstructure:"total_cap"`
	HouseholdShare float64 `yaml:"household_share" mapstructure:"household_share"`
}

// MarketConfig describes the tanker market.
type MarketConfig struct {
	Options market.Options `yaml:"options" mapstructure:"options"`
	// Roads, when present, derive distances by shortest path; Table
	// otherwise gives them directly.
	Roads   []RoadConfig   `yaml:"roads" mapstructure:"roads"`
	Table   []RoadConfig   `yaml:"distances" mapstructure:"distances"`
	Buyers  []BuyerConfig  `yaml:"buyers" mapstructure:"buyers"`
	Sellers []SellerConfig `yaml:"sellers" mapstructure:"sellers"`
	Policy  PolicyConfig   `yaml:"policy" mapstructure:"policy"`
}

// Default returns a config with every scalar at its default.
func Default() *Config {
	return &Config{
		Run:     RunConfig{Label: "basinflow", Months: 12},
		Logging: LoggingConfig{Level: 0},
		Store:   StoreConfig{Kind: "memory"},
	}
}

// StartDate parses Run.Start.
func (c *Config) StartDate() (horizon.Date, error) {
	t, err := time.Parse("2006-01", c.Run.Start)
	if err != nil {
		return horizon.Date{}, fmt.Errorf("%w: run.start %q: want YYYY-MM", ErrInvalid, c.Run.Start)
	}
	return horizon.Date{Year: t.Year(), Month: int(t.Month())}, nil
}

// Validate checks the whole file.
func (c *Config) Validate() error {
	if _, err := c.StartDate(); err != nil {
		return err
	}
	if c.Run.Months <= 0 {
		return fmt.Errorf("%w: run.months %d must be positive", ErrInvalid, c.Run.Months)
	}
	if c.Run.Forecasts == "" {
		return fmt.Errorf("%w: run.forecasts is required", ErrInvalid)
	}
	if c.Logging.Level < 0 {
		return fmt.Errorf("%w: logging.level %d", ErrInvalid, c.Logging.Level)
	}
	switch c.Store.Kind {
	case "", "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for sqlite", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: store.kind %q", ErrInvalid, c.Store.Kind)
	}

	nodes, err := c.validateNetwork()
	if err != nil {
		return err
	}
	if err := c.validateInstitutions(nodes); err != nil {
		return err
	}
	if c.Aquifer != nil {
		if err := c.Aquifer.validate(nodes, c.Run.Months); err != nil {
			return err
		}
	}
	if c.Market != nil {
		if err := c.Market.validate(nodes); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateNetwork() (map[string]bool, error) {
	nodes := make(map[string]bool, len(c.Network.Nodes))
	if len(c.Network.Nodes) == 0 {
		return nil, fmt.Errorf("%w: network has no nodes", ErrInvalid)
	}
	for _, n := range c.Network.Nodes {
		if n.ID == "" || nodes[n.ID] {
			return nil, fmt.Errorf("%w: node ID %q empty or duplicate", ErrInvalid, n.ID)
		}
		if _, ok := core.ParseNodeKind(n.Kind); !ok {
			return nil, fmt.Errorf("%w: node %s kind %q", ErrInvalid, n.ID, n.Kind)
		}
		if len(n.ExtractionCaps) != 0 && len(n.ExtractionCaps) != core.Months {
			return nil, fmt.Errorf("%w: node %s has %d extraction caps, want %d", ErrInvalid, n.ID, len(n.ExtractionCaps), core.Months)
		}
		nodes[n.ID] = true
	}
	for i, l := range c.Network.Links {
		if !nodes[l.From] || !nodes[l.To] {
			return nil, fmt.Errorf("%w: link %d %s->%s names an unknown node", ErrInvalid, i, l.From, l.To)
		}
	}
	return nodes, nil
}

func (c *Config) validateInstitutions(nodes map[string]bool) error {
	if len(c.Institutions) == 0 {
		return fmt.Errorf("%w: no institutions", ErrInvalid)
	}
	seen := make(map[string]bool, len(c.Institutions))
	for _, in := range c.Institutions {
		if in.Name == "" || seen[in.Name] {
			return fmt.Errorf("%w: institution name %q empty or duplicate", ErrInvalid, in.Name)
		}
		seen[in.Name] = true
		if len(in.Governs) == 0 {
			return fmt.Errorf("%w: institution %s governs nothing", ErrInvalid, in.Name)
		}
		for _, id := range in.Governs {
			if !nodes[id] {
				return fmt.Errorf("%w: institution %s governs unknown node %q", ErrInvalid, in.Name, id)
			}
		}
		if _, err := in.AllocationOptions(); err != nil {
			return fmt.Errorf("%w: institution %s: %v", ErrInvalid, in.Name, err)
		}
		if _, err := in.Bindings(); err != nil {
			return fmt.Errorf("%w: institution %s: %v", ErrInvalid, in.Name, err)
		}
		for _, b := range in.Backends {
			if !knownBackend(b) {
				return fmt.Errorf("%w: institution %s backend %q", ErrInvalid, in.Name, b)
			}
		}
		if _, err := flow.ParseAlgorithm(in.Reachability); err != nil {
			return fmt.Errorf("%w: institution %s: %v", ErrInvalid, in.Name, err)
		}
	}
	return nil
}

func (a *AquiferConfig) validate(nodes map[string]bool, months int) error {
	for _, id := range append(append([]string(nil), a.Sources...), a.Locations...) {
		if !nodes[id] {
			return fmt.Errorf("%w: aquifer names unknown node %q", ErrInvalid, id)
		}
	}
	if len(a.Response) != len(a.Locations) || len(a.BaselineHead) != len(a.Locations) {
		return fmt.Errorf("%w: aquifer response/head rows must match %d locations", ErrInvalid, len(a.Locations))
	}
	if len(a.BaselinePumping) != len(a.Sources) {
		return fmt.Errorf("%w: aquifer baseline pumping must match %d sources", ErrInvalid, len(a.Sources))
	}
	for l, row := range a.BaselineHead {
		if len(row) < months {
			return fmt.Errorf("%w: aquifer baseline head row %d covers %d of %d months", ErrInvalid, l, len(row), months)
		}
	}
	if a.UnitScale < 0 {
		return fmt.Errorf("%w: aquifer unit_scale %g", ErrInvalid, a.UnitScale)
	}
	return nil
}

func (m *MarketConfig) validate(nodes map[string]bool) error {
	if err := m.Options.Validate(); err != nil {
		return fmt.Errorf("%w: market: %v", ErrInvalid, err)
	}
	if _, err := market.ParsePolicyKind(m.Policy.Kind); err != nil {
		return fmt.Errorf("%w: market: %v", ErrInvalid, err)
	}
	if m.Policy.HouseholdShare < 0 || m.Policy.HouseholdShare > 1 {
		return fmt.Errorf("%w: market household_share %g outside [0,1]", ErrInvalid, m.Policy.HouseholdShare)
	}
	for _, b := range m.Buyers {
		if _, err := market.ParseBuyerKind(b.Kind); err != nil {
			return fmt.Errorf("%w: market: %v", ErrInvalid, err)
		}
		if b.SupplyNode != "" && !nodes[b.SupplyNode] {
			return fmt.Errorf("%w: buyer %s supply node %q unknown", ErrInvalid, b.ID, b.SupplyNode)
		}
	}
	for _, r := range append(append([]RoadConfig(nil), m.Roads...), m.Table...) {
		if r.Km < 0 {
			return fmt.Errorf("%w: road %s-%s has negative length", ErrInvalid, r.From, r.To)
		}
	}
	return nil
}

// AllocationOptions overlays the institution's options on the defaults.
func (in InstitutionConfig) AllocationOptions() (allocation.Options, error) {
	opts := allocation.DefaultOptions()
	if in.Penalty != "" {
		p, err := allocation.ParsePenaltyMode(in.Penalty)
		if err != nil {
			return opts, err
		}
		opts.Penalty = p
	}
	if err := decodeOverlay(in.Options, &opts); err != nil {
		return opts, err
	}
	return opts, opts.Validate()
}

// Bindings converts the consumed forecasts.
func (in InstitutionConfig) Bindings() ([]forecast.Binding, error) {
	out := make([]forecast.Binding, 0, len(in.Consumes))
	for _, b := range in.Consumes {
		kind, err := forecast.ParseSeriesKind(b.Into)
		if err != nil {
			return nil, err
		}
		if b.Producer == "" || b.Name == "" {
			return nil, fmt.Errorf("binding into %s needs producer and name", b.Into)
		}
		out = append(out, forecast.Binding{
			Producer: b.Producer,
			Name:     b.Name,
			Into:     kind,
			Nodes:    append([]string(nil), b.Nodes...),
			Map:      b.Map,
		})
	}
	return out, nil
}
