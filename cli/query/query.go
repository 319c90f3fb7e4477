package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/nspcc-dev/rpcprobe/cli/cmdargs"
	"github.com/nspcc-dev/rpcprobe/cli/options"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc/result"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient/waiter"
	"github.com/urfave/cli"
)

// NewCommands returns 'query' command.
func NewCommands() []cli.Command {
	queryTxFlags := append([]cli.Flag{
		cli.BoolFlag{
			Name:  "await",
			Usage: "wait for the transaction to be mined using configured polling",
		},
		cli.BoolFlag{
			Name:  "verbose, v",
			Usage: "Output logs and mined transaction",
		},
	}, options.Common...)
	return []cli.Command{{
		Name:  "query",
		Usage: "query node",
		Subcommands: []cli.Command{
			{
				Name:      "invoke",
				Usage:     "perform a single raw RPC call",
				UsageText: "rpcprobe query invoke [-r endpoint] <method> [params...]",
				Description: `Calls the method with the given parameters and prints the result.

` + cmdargs.ParamsParsingDoc,
				Action: queryInvoke,
				Flags:  options.Common,
			},
			{
				Name:      "tx",
				Usage:     "query transaction receipt",
				UsageText: "rpcprobe query tx [-r endpoint] [--await] [-v] <hash>",
				Action:    queryTx,
				Flags:     queryTxFlags,
			},
		},
	}}
}

func queryInvoke(ctx *cli.Context) error {
	args := ctx.Args()
	if len(args) == 0 {
		return cli.NewExitError("method is missing", 1)
	}
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()

	c, exitErr := options.GetRPCClient(gctx, cfg.RPC, nil)
	if exitErr != nil {
		return exitErr
	}
	defer func() { _ = c.Close() }()

	res, err := c.Invoke(args[0], cmdargs.ParseParams(args[1:])...)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	return printJSON(ctx, res)
}

func printJSON(ctx *cli.Context, res json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, res, "", "  "); err != nil {
		buf.Reset()
		buf.Write(res)
	}
	_, _ = fmt.Fprintln(ctx.App.Writer, buf.String())
	return nil
}

func queryTx(ctx *cli.Context) error {
	txHash, exitErr := cmdargs.GetHashFromContext(ctx, "transaction hash")
	if exitErr != nil {
		return exitErr
	}
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()

	c, rpcErr := options.GetRPCClient(gctx, cfg.RPC, nil)
	if rpcErr != nil {
		return rpcErr
	}
	defer func() { _ = c.Close() }()

	var rcpt *result.Receipt
	if ctx.Bool("await") {
		rcpt, err = waiter.NewPollingBased(c, options.GetPollConfig(cfg.Poll)).WaitForReceipt(gctx, txHash)
	} else {
		rcpt, err = c.GetTransactionReceipt(txHash)
	}
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	var tx *result.Transaction
	if rcpt != nil && ctx.Bool("verbose") {
		tx, err = c.GetTransaction(txHash)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
	}
	dumpReceipt(ctx, txHash.Hex(), rcpt, tx)
	return nil
}

func dumpReceipt(ctx *cli.Context, hash string, rcpt *result.Receipt, tx *result.Transaction) {
	verbose := ctx.Bool("verbose")
	mined := rcpt != nil && rcpt.Mined()
	buf := bytes.NewBuffer(nil)

	// Ignore the errors below because `Write` to buffer doesn't return error.
	tw := tabwriter.NewWriter(buf, 0, 4, 4, '\t', 0)
	_, _ = tw.Write([]byte("Hash:\t" + hash + "\n"))
	_, _ = tw.Write([]byte(fmt.Sprintf("OnChain:\t%t\n", mined)))
	if mined {
		_, _ = tw.Write([]byte("BlockHash:\t" + rcpt.BlockHash.Hex() + "\n"))
		_, _ = tw.Write([]byte("BlockNumber:\t" + rcpt.BlockNumber.String() + "\n"))
		_, _ = tw.Write([]byte("Status:\t" + rcpt.Status() + "\n"))
		_, _ = tw.Write([]byte("QuotaUsed:\t" + rcpt.QuotaUsed.String() + "\n"))
		if rcpt.ContractAddress != nil {
			_, _ = tw.Write([]byte("ContractAddress:\t" + rcpt.ContractAddress.Hex() + "\n"))
		}
	}
	if verbose && mined {
		for _, l := range rcpt.Logs {
			_, _ = tw.Write([]byte(fmt.Sprintf("Log:\t%s %d topics, %d bytes\n", l.Address.Hex(), len(l.Topics), len(l.Data))))
		}
		if tx != nil {
			_, _ = tw.Write([]byte("From:\t" + tx.From.Hex() + "\n"))
			_, _ = tw.Write([]byte("Index:\t" + tx.Index.String() + "\n"))
		}
	}
	_ = tw.Flush()
	fmt.Fprint(ctx.App.Writer, buf.String())
}
