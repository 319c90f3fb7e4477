package wallet

import (
	"fmt"
	"text/tabwriter"

	"github.com/nspcc-dev/rpcprobe/cli/cmdargs"
	"github.com/nspcc-dev/rpcprobe/cli/options"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc"
	"github.com/urfave/cli"
)

// NewCommands returns 'accounts' command.
func NewCommands() []cli.Command {
	return []cli.Command{{
		Name:      "accounts",
		Usage:     "list configured test accounts",
		UsageText: "rpcprobe accounts [--config-file file] [--balances [-r endpoint]] [--keys]",
		Action:    listAccounts,
		Flags: append([]cli.Flag{
			cli.BoolFlag{
				Name:  "balances, b",
				Usage: "query latest balances and transaction counts from the node",
			},
			cli.BoolFlag{
				Name:  "keys",
				Usage: "print private keys too",
			},
		}, options.Common...),
	}}
}

func listAccounts(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	w, err := options.GetWallet(cfg)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	balances := ctx.Bool("balances")
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()

	tw := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	if balances {
		c, exitErr := options.GetRPCClient(gctx, cfg.RPC, nil)
		if exitErr != nil {
			return exitErr
		}
		defer func() { _ = c.Close() }()
		for i, acc := range w.Accounts {
			bal, err := c.GetBalance(acc.Address(), citarpc.Latest)
			if err != nil {
				return cli.NewExitError(fmt.Errorf("can't get balance of %s: %w", acc.Address(), err), 1)
			}
			n, err := c.GetTransactionCount(acc.Address(), citarpc.Latest)
			if err != nil {
				return cli.NewExitError(fmt.Errorf("can't get transaction count of %s: %w", acc.Address(), err), 1)
			}
			_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", i, acc.Address().Hex(), bal.ToBig().String(), n)
		}
		return tw.Flush()
	}
	for i, acc := range w.Accounts {
		if ctx.Bool("keys") {
			_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", i, acc.Address().Hex(), acc.PrivateKey())
			continue
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\n", i, acc.Address().Hex())
	}
	return tw.Flush()
}
