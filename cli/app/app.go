package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/nspcc-dev/rpcprobe/cli/console"
	"github.com/nspcc-dev/rpcprobe/cli/query"
	"github.com/nspcc-dev/rpcprobe/cli/report"
	"github.com/nspcc-dev/rpcprobe/cli/run"
	"github.com/nspcc-dev/rpcprobe/cli/wallet"
	"github.com/nspcc-dev/rpcprobe/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "rpcprobe\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates an rpcprobe instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "rpcprobe"
	ctl.Version = config.Version
	ctl.Usage = "Conformance test harness for CITA-compatible JSON-RPC nodes"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, run.NewCommands()...)
	ctl.Commands = append(ctl.Commands, query.NewCommands()...)
	ctl.Commands = append(ctl.Commands, wallet.NewCommands()...)
	ctl.Commands = append(ctl.Commands, console.NewCommands()...)
	ctl.Commands = append(ctl.Commands, report.NewCommands()...)
	return ctl
}
