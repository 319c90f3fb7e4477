package run

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/nspcc-dev/rpcprobe/cli/options"
	"github.com/nspcc-dev/rpcprobe/pkg/report"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient"
	"github.com/nspcc-dev/rpcprobe/pkg/scenario"
	"github.com/nspcc-dev/rpcprobe/pkg/services/metrics"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

// NewCommands returns 'run' and 'list' commands.
func NewCommands() []cli.Command {
	runFlags := append([]cli.Flag{
		cli.StringSliceFlag{
			Name:  "scenario, n",
			Usage: "scenario to run, can be repeated (all configured or all known scenarios by default)",
		},
		cli.BoolFlag{
			Name:  "parallel, p",
			Usage: "run scenarios concurrently (overrides configuration)",
		},
		cli.StringFlag{
			Name:  "report",
			Usage: "report database path (overrides configuration)",
		},
	}, options.Common...)
	return []cli.Command{
		{
			Name:      "run",
			Usage:     "run conformance scenarios against a node",
			UsageText: "rpcprobe run [--config-file file] [-r endpoint] [--transport http|ws|cli] [--scenario name ...] [--parallel]",
			Action:    runScenarios,
			Flags:     runFlags,
		},
		{
			Name:   "list",
			Usage:  "list known scenarios",
			Action: listScenarios,
		},
	}
}

func listScenarios(ctx *cli.Context) error {
	w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	for _, s := range scenario.All() {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", s.Name, s.Accounts, s.Description)
	}
	return w.Flush()
}

// newGraceContext returns a context cancelled on interrupt.
func newGraceContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(stop)
	}()
	return ctx, cancel
}

func runScenarios(ctx *cli.Context) error {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if ctx.Bool("parallel") {
		cfg.Runner.Parallel = true
	}
	if p := ctx.String("report"); p != "" {
		cfg.Report.Path = p
	}
	names := cfg.Runner.Scenarios
	if ns := ctx.StringSlice("scenario"); len(ns) != 0 {
		names = ns
	}

	log, logCloser, err := options.GetLogger(ctx, cfg)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if logCloser != nil {
		defer func() { _ = logCloser() }()
	}
	defer func() { _ = log.Sync() }()

	grace, cancel := newGraceContext()
	defer cancel()

	c, exitErr := options.GetRPCClient(grace, cfg.RPC, log)
	if exitErr != nil {
		return exitErr
	}
	defer func() { _ = c.Close() }()

	w, err := options.GetWallet(cfg)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	r, err := options.GetRunner(cfg, c, w, log)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	var store *report.Store
	if cfg.Report.Path != "" {
		store, err = report.Open(cfg.Report.Path)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		defer func() { _ = store.Close() }()
	}

	prometheus, err := metrics.NewPrometheusService(cfg.Prometheus, log,
		append(rpcclient.Collectors(), scenario.Collectors()...)...)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	pprof := metrics.NewPprofService(cfg.Pprof, log)
	prometheus.Start()
	pprof.Start()
	defer prometheus.ShutDown()
	defer pprof.ShutDown()

	started := time.Now()
	results, err := r.Run(grace, names)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("can't run scenarios: %w", err), 1)
	}
	if err := printResults(ctx.App.Writer, results); err != nil {
		return cli.NewExitError(err, 1)
	}

	if store != nil {
		run := report.NewRun(started, cfg.RPC.Endpoint, c.TransportName(), cfg.Runner.Parallel, results)
		if err := store.Save(run); err != nil {
			return cli.NewExitError(fmt.Errorf("can't save report: %w", err), 1)
		}
		log.Info("report saved", zap.Stringer("id", run.ID), zap.String("path", cfg.Report.Path))
	}
	if n := scenario.Failed(results); n != 0 {
		return cli.NewExitError(fmt.Sprintf("%d of %d scenarios failed", n, len(results)), 1)
	}
	return nil
}

// printResults writes a results table.
func printResults(out io.Writer, results []scenario.Result) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", status, r.Name, r.Duration.Round(time.Millisecond), r.Error)
	}
	_, _ = fmt.Fprintf(w, "\t%d passed, %d failed\t\t\n", len(results)-scenario.Failed(results), scenario.Failed(results))
	return w.Flush()
}
