// SPDX-License-Identifier: MIT

// Package sim sequences one run: every month the institutions allocate in
// declared order, the aquifer answers the realized pumping, drains feed
// baseflow back into the next forecasts and the tanker market clears on
// the realized piped supply. Each period is written to the run ledger.
package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/katalvlaran/basinflow/aquifer"
	"github.com/katalvlaran/basinflow/config"
	"github.com/katalvlaran/basinflow/core"
	"github.com/katalvlaran/basinflow/flow"
	"github.com/katalvlaran/basinflow/forecast"
	"github.com/katalvlaran/basinflow/horizon"
	"github.com/katalvlaran/basinflow/institution"
	"github.com/katalvlaran/basinflow/ledger"
	"github.com/katalvlaran/basinflow/market"
	"github.com/katalvlaran/basinflow/solver"
)

// ErrFinished is returned by Step once every configured month has run.
var ErrFinished = errors.New("sim: run finished")

// Option configures a Simulation.
type Option func(*Simulation)

// WithRegisterer registers solver and market metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Simulation) { s.reg = reg }
}

// WithStore replaces the ledger named by the config.
func WithStore(store ledger.Store) Option {
	return func(s *Simulation) { s.store = store }
}

// WithProvider replaces the static forecast table named by the config.
func WithProvider(p forecast.Provider) Option {
	return func(s *Simulation) { s.base = p }
}

// Period reports one simulated month.
type Period struct {
	Date     horizon.Date
	Outcomes []institution.Outcome
	// Heads maps aquifer location to its projected head.
	Heads map[string]float64
	// Baseflow maps basin node to the drain flow fed into the next forecasts.
	Baseflow map[string]float64
	Market   *market.Outcome
}

// Report is a finished run.
type Report struct {
	Run     ledger.Run
	Periods []Period
}

// Simulation owns the live state of one run.
type Simulation struct {
	cfg   *config.Config
	reg   prometheus.Registerer
	store ledger.Store
	base  forecast.Provider

	net    *core.Network
	board  *forecast.Board
	runner *institution.Runner

	aquifer  *aquifer.Engine
	drains   []aquifer.Drain
	initial  []float64
	baseflow map[string]float64

	market *market.Engine

	run   ledger.Run
	start horizon.Date
	next  horizon.Date
}

// New wires every component of cfg, opens the ledger and begins a run.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Simulation{cfg: cfg, board: forecast.NewBoard(), baseflow: map[string]float64{}}
	for _, opt := range opts {
		opt(s)
	}
	start, _ := cfg.StartDate()
	s.start, s.next = start, start

	var err error
	if s.net, err = cfg.BuildNetwork(); err != nil {
		return nil, err
	}
	if s.base == nil {
		if s.base, err = forecast.LoadStaticFile(cfg.Run.Forecasts); err != nil {
			return nil, err
		}
	}
	if err := s.institutions(); err != nil {
		return nil, err
	}
	if a := cfg.Aquifer; a != nil {
		if s.aquifer, s.drains, err = a.Aquifer(cfg.Run.Months); err != nil {
			return nil, err
		}
		s.initial = make([]float64, len(a.Locations))
		for l := range s.initial {
			if s.initial[l], err = s.aquifer.Head(l, 0); err != nil {
				return nil, err
			}
		}
	}
	if m := cfg.Market; m != nil {
		dist, err := m.Distances()
		if err != nil {
			return nil, err
		}
		if s.market, err = market.NewEngine(dist, m.Options, market.WithMetrics(market.NewMetrics(s.reg))); err != nil {
			return nil, err
		}
	}
	if err := s.openLedger(ctx); err != nil {
		return nil, err
	}

	logr.FromContextOrDiscard(ctx).Info("run started", "run", s.run.ID, "label", s.run.Label,
		"start", start.String(), "months", cfg.Run.Months, "institutions", s.runner.Order())
	return s, nil
}

func (s *Simulation) institutions() error {
	metrics := solver.NewMetrics(s.reg)
	provider := forecast.ProviderFunc(s.forecast)
	insts := make([]*institution.Institution, 0, len(s.cfg.Institutions))
	for _, ic := range s.cfg.Institutions {
		opts, err := ic.AllocationOptions()
		if err != nil {
			return fmt.Errorf("sim: %s: %w", ic.Name, err)
		}
		binds, err := ic.Bindings()
		if err != nil {
			return fmt.Errorf("sim: %s: %w", ic.Name, err)
		}
		reach, err := flow.ParseAlgorithm(ic.Reachability)
		if err != nil {
			return fmt.Errorf("sim: %s: %w", ic.Name, err)
		}
		in, err := institution.New(institution.Config{
			Name:         ic.Name,
			Governs:      ic.Governs,
			Consumes:     binds,
			Publishes:    ic.Publishes,
			Options:      opts,
			Reachability: reach,
		}, s.net, provider, ic.Cascade(solver.WithMetrics(metrics)), s.board, institution.WithStartYear(s.start.Year))
		if err != nil {
			return err
		}
		insts = append(insts, in)
	}
	runner, err := institution.NewRunner(insts...)
	if err != nil {
		return err
	}
	s.runner = runner
	return nil
}

func (s *Simulation) openLedger(ctx context.Context) error {
	if s.store == nil {
		store, err := ledger.NewStore(s.cfg.Store.Kind, s.cfg.Store.Path)
		if err != nil {
			return err
		}
		s.store = store
	}
	if err := s.store.Init(ctx); err != nil {
		return err
	}
	s.run = ledger.Run{ID: ledger.NewRunID(), Label: s.cfg.Run.Label, Started: time.Now().UTC()}
	return s.store.BeginRun(ctx, s.run)
}

// forecast adds the last drain flows, held constant, to the static inflow.
func (s *Simulation) forecast(ctx context.Context, inst string, idx horizon.Index) (forecast.Inputs, error) {
	in, err := s.base.Forecast(ctx, inst, idx)
	if err != nil {
		return forecast.Inputs{}, err
	}
	if len(s.baseflow) == 0 {
		return in, nil
	}
	in = in.Clone()
	inflow := in.Series(forecast.SeriesInflow)
	for node, q := range s.baseflow {
		for _, m := range idx.Remaining {
			inflow.Add(node, m, q)
		}
	}
	return in, nil
}

// Network returns the live network.
func (s *Simulation) Network() *core.Network { return s.net }

// Board returns the published forecasts.
func (s *Simulation) Board() *forecast.Board { return s.board }

// Store returns the run ledger.
func (s *Simulation) Store() ledger.Store { return s.store }

// RunInfo returns the ledger run.
func (s *Simulation) RunInfo() ledger.Run { return s.run }

// Next returns the month the next Step simulates.
func (s *Simulation) Next() horizon.Date { return s.next }

// Close releases the ledger.
func (s *Simulation) Close() error { return ledger.CloseIfSupported(s.store) }

// Step simulates the next month.
func (s *Simulation) Step(ctx context.Context) (Period, error) {
	t := s.next.MonthsSince(s.start)
	if t >= s.cfg.Run.Months {
		return Period{}, ErrFinished
	}
	date := s.next
	log := logr.FromContextOrDiscard(ctx).WithValues("run", s.run.ID, "date", date.String())
	ctx = logr.NewContext(ctx, log)
	p := Period{Date: date}

	outs, err := s.runner.Run(ctx, date)
	p.Outcomes = outs
	if err != nil {
		return p, fmt.Errorf("sim: %s: %w", date, err)
	}
	for _, o := range outs {
		if err := s.store.SaveAllocation(ctx, ledger.FromOutcome(s.run.ID, o)); err != nil {
			return p, fmt.Errorf("sim: ledger: %w", err)
		}
	}

	if s.aquifer != nil {
		if err := s.groundwater(ctx, t, &p); err != nil {
			return p, fmt.Errorf("sim: %s: %w", date, err)
		}
	}

	if s.market != nil {
		period, err := s.cfg.Market.Period(date, s.delivery)
		if err != nil {
			return p, fmt.Errorf("sim: %s: %w", date, err)
		}
		out := s.market.Clear(ctx, period)
		p.Market = &out
		if err := s.store.SaveMarket(ctx, ledger.FromMarket(s.run.ID, out)); err != nil {
			return p, fmt.Errorf("sim: ledger: %w", err)
		}
	}

	s.next = date.Next()
	skipped := 0
	for _, o := range outs {
		if o.Skipped() {
			skipped++
		}
	}
	kv := []any{"skipped", skipped}
	if p.Market != nil {
		kv = append(kv, "market", p.Market.Status.String(), "traded", p.Market.Volume)
	}
	log.Info("period complete", kv...)
	return p, nil
}

func (s *Simulation) groundwater(ctx context.Context, t int, p *Period) error {
	if err := s.aquifer.StepNetwork(ctx, s.net, t); err != nil {
		return err
	}
	col, err := s.aquifer.Project(t)
	if err != nil {
		return err
	}
	p.Heads = make(map[string]float64, len(col))
	for l, id := range s.cfg.Aquifer.Locations {
		p.Heads[id] = col[l]
	}
	if len(s.drains) == 0 {
		return nil
	}
	flows, err := aquifer.DrainFlows(s.initial, col, s.drains)
	if err != nil {
		return err
	}
	s.baseflow = flows
	p.Baseflow = make(map[string]float64, len(flows))
	for _, basin := range aquifer.Basins(flows) {
		p.Baseflow[basin] = flows[basin]
	}
	return nil
}

func (s *Simulation) delivery(node string) float64 {
	n, err := s.net.Node(node)
	if err != nil {
		return 0
	}
	return n.Delivery
}

// Run steps every remaining month. Cancellation stops between months.
func (s *Simulation) Run(ctx context.Context) (Report, error) {
	rep := Report{Run: s.run}
	for {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		p, err := s.Step(ctx)
		if errors.Is(err, ErrFinished) {
			return rep, nil
		}
		if err != nil {
			return rep, err
		}
		rep.Periods = append(rep.Periods, p)
	}
}
