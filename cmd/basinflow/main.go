// SPDX-License-Identifier: MIT

// Command basinflow runs a basin simulation described by a YAML run file.
//
//	basinflow run --config run.yaml [--months 24] [--store sqlite --store-path runs.db]
//	basinflow validate --config run.yaml
//	basinflow runs --store-path runs.db [--run ID]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/katalvlaran/basinflow/config"
	"github.com/katalvlaran/basinflow/ledger"
	"github.com/katalvlaran/basinflow/logging"
	"github.com/katalvlaran/basinflow/sim"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usageError("missing command")
	}
	switch args[0] {
	case "run":
		return runRun(ctx, args[1:], out)
	case "validate":
		return runValidate(args[1:], out)
	case "runs":
		return runRuns(ctx, args[1:], out)
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: basinflow <run|validate|runs> [flags]", msg)
}

func loadConfig(name string, args []string) (*config.Config, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	path := fs.String("config", "basinflow.yaml", "run file")
	config.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return config.Load(*path, fs)
}

func runValidate(args []string, out io.Writer) error {
	cfg, err := loadConfig("validate", args)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "ok: %d institutions, %d nodes, %d links, %d months from %s\n",
		len(cfg.Institutions), len(cfg.Network.Nodes), len(cfg.Network.Links), cfg.Run.Months, cfg.Run.Start)
	return nil
}

func runRun(ctx context.Context, args []string, out io.Writer) error {
	cfg, err := loadConfig("run", args)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return err
	}
	ctx = logr.NewContext(ctx, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	s, err := sim.New(ctx, cfg, sim.WithRegisterer(reg))
	if err != nil {
		return err
	}
	defer func() {
		_ = s.Close()
	}()

	rep, runErr := s.Run(ctx)
	printReport(out, rep)
	if cfg.Run.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.Run.MetricsFile, reg); err != nil {
			log.Error(err, "metrics dump failed", "path", cfg.Run.MetricsFile)
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func printReport(out io.Writer, rep sim.Report) {
	fmt.Fprintf(out, "run %s (%s)\n", rep.Run.ID, rep.Run.Label)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "month\tinstitution\tstate\tbackend\tdelivered\tdeficit")
	for _, p := range rep.Periods {
		for _, o := range p.Outcomes {
			var delivered, deficit float64
			for _, v := range o.First.Delivery {
				delivered += v
			}
			for _, v := range o.First.Deficit {
				deficit += v
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%.2f\n", p.Date, o.Institution, o.State, o.Result.Backend, delivered, deficit)
		}
		if p.Market != nil {
			fmt.Fprintf(tw, "%s\tmarket\t%s\t\t%.2f\t\n", p.Date, p.Market.Status, p.Market.Volume)
		}
	}
	_ = tw.Flush()
}

func runRuns(ctx context.Context, args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("runs", pflag.ContinueOnError)
	kind := fs.String("store", "sqlite", "ledger backend: memory|sqlite")
	path := fs.String("store-path", "basinflow.db", "sqlite ledger file")
	runID := fs.String("run", "", "print the records of one run")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := ledger.NewStore(*kind, *path)
	if err != nil {
		return err
	}
	defer func() {
		_ = ledger.CloseIfSupported(store)
	}()
	if err := store.Init(ctx); err != nil {
		return err
	}

	if *runID == "" {
		runs, err := store.Runs(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "id\tlabel\tstarted")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.Label, r.Started.Format("2006-01-02 15:04:05"))
		}
		return tw.Flush()
	}

	allocs, err := store.Allocations(ctx, *runID)
	if err != nil {
		return err
	}
	markets, err := store.Markets(ctx, *runID)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "month\tinstitution\tstate\tbackend\tobjective")
	for _, a := range allocs {
		fmt.Fprintf(tw, "%04d-%02d\t%s\t%s\t%s\t%.4g\n", a.Year, a.Month, a.Institution, a.State, a.Backend, a.Objective)
	}
	for _, m := range markets {
		fmt.Fprintf(tw, "%04d-%02d\tmarket\t%s\t\t%.4g\n", m.Year, m.Month, m.Status, m.Welfare)
	}
	return tw.Flush()
}
