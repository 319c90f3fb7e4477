package report

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/nspcc-dev/rpcprobe/cli/options"
	"github.com/nspcc-dev/rpcprobe/pkg/report"
	"github.com/nspcc-dev/rpcprobe/pkg/scenario"
	"github.com/urfave/cli"
)

// NewCommands returns 'report' command.
func NewCommands() []cli.Command {
	reportFlags := []cli.Flag{
		options.ConfigFile,
		cli.StringFlag{
			Name:  "report",
			Usage: "report database path (overrides configuration)",
		},
	}
	return []cli.Command{{
		Name:  "report",
		Usage: "show stored run reports",
		Subcommands: []cli.Command{
			{
				Name:      "list",
				Usage:     "list stored runs, newest first",
				UsageText: "rpcprobe report list [--report file] [--limit n]",
				Action:    listRuns,
				Flags: append([]cli.Flag{
					cli.IntFlag{
						Name:  "limit, l",
						Value: 10,
						Usage: "number of runs to show, 0 for all",
					},
				}, reportFlags...),
			},
			{
				Name:      "show",
				Usage:     "show results of a single run",
				UsageText: "rpcprobe report show [--report file] <id>",
				Action:    showRun,
				Flags:     reportFlags,
			},
		},
	}}
}

func openStore(ctx *cli.Context) (*report.Store, error) {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return nil, err
	}
	path := cfg.Report.Path
	if p := ctx.String("report"); p != "" {
		path = p
	}
	if path == "" {
		return nil, fmt.Errorf("no report database specified, use '--report' or set Report.Path in configuration")
	}
	return report.Open(path)
}

func listRuns(ctx *cli.Context) error {
	s, err := openStore(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer func() { _ = s.Close() }()

	runs, err := s.List(ctx.Int("limit"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	for _, r := range runs {
		failed := scenario.Failed(r.Results)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d passed\n", r.ID, r.Started.Format(time.RFC3339),
			r.Transport, r.Endpoint, len(r.Results)-failed, len(r.Results))
	}
	return w.Flush()
}

func showRun(ctx *cli.Context) error {
	if !ctx.Args().Present() {
		return cli.NewExitError("run ID is missing", 1)
	}
	id, err := uuid.Parse(ctx.Args().First())
	if err != nil {
		return cli.NewExitError(fmt.Errorf("invalid run ID: %w", err), 1)
	}
	s, err := openStore(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer func() { _ = s.Close() }()

	r, err := s.Get(id)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Started:\t%s\n", r.Started.Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "Endpoint:\t%s (%s)\n", r.Endpoint, r.Transport)
	_, _ = fmt.Fprintf(w, "Parallel:\t%t\n", r.Parallel)
	for _, res := range r.Results {
		status := "PASS"
		if !res.Passed {
			status = "FAIL"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", status, res.Name, res.Duration.Round(time.Millisecond), res.Error)
	}
	return w.Flush()
}
