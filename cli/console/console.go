package console

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/kballard/go-shellquote"
	"github.com/nspcc-dev/rpcprobe/cli/cmdargs"
	"github.com/nspcc-dev/rpcprobe/cli/options"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient"
	"github.com/urfave/cli"
)

const prompt = "\033[32mrpcprobe>\033[0m "

// Methods is the list of methods offered for completion, any other method
// can still be called.
var Methods = []string{
	"peerCount", "blockNumber", "getBalance", "sendRawTransaction",
	"getTransactionReceipt", "getTransaction", "getTransactionCount",
	"getBlockByNumber", "getBlockByHash", "getBlockHeader", "call", "getCode",
	"getStorageAt", "getTransactionProof", "getStateProof", "getLogs",
	"newFilter", "newBlockFilter", "getFilterChanges", "uninstallFilter",
}

var builtins = map[string]string{
	"exit":    "leave the console",
	"help":    "show this help",
	"methods": "list known RPC methods",
}

var errExit = errors.New("exit")

var completer *readline.PrefixCompleter

func init() {
	var pcItems []readline.PrefixCompleterInterface
	for b := range builtins {
		pcItems = append(pcItems, readline.PcItem(b))
	}
	for _, m := range Methods {
		pcItems = append(pcItems, readline.PcItem(m))
	}
	completer = readline.NewPrefixCompleter(pcItems...)
}

// NewCommands returns 'console' command.
func NewCommands() []cli.Command {
	return []cli.Command{{
		Name:      "console",
		Usage:     "start an interactive shell issuing raw RPC calls",
		UsageText: "rpcprobe console [--config-file file] [-r endpoint] [--transport http|ws|cli]",
		Description: `Every line is a method name followed by parameters, quoted the shell way.

` + cmdargs.ParamsParsingDoc,
		Action: startConsole,
		Flags:  options.Common,
	}}
}

func startConsole(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log, closer, err := options.GetLogger(ctx, cfg)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if closer != nil {
		defer func() { _ = closer() }()
	}
	c, exitErr := options.GetRPCClient(context.Background(), cfg.RPC, log)
	if exitErr != nil {
		return exitErr
	}
	defer func() { _ = c.Close() }()

	con, err := New(c, &readline.Config{Prompt: prompt})
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer con.Close()
	return con.Run()
}

// Console is an interactive RPC shell.
type Console struct {
	client *rpcclient.Client
	rl     *readline.Instance
	out    io.Writer
	errOut io.Writer
}

// New creates a console using the given readline configuration, completion
// is added if not set.
func New(c *rpcclient.Client, cfg *readline.Config) (*Console, error) {
	if cfg.AutoComplete == nil {
		cfg.AutoComplete = completer
	}
	l, err := readline.NewEx(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create readline instance: %w", err)
	}
	return &Console{
		client: c,
		rl:     l,
		out:    l.Stdout(),
		errOut: l.Stderr(),
	}, nil
}

// Close releases the terminal.
func (c *Console) Close() {
	_ = c.rl.Close()
}

// Run waits for user input and executes it until EOF, interrupt or exit.
func (c *Console) Run() error {
	for {
		line, err := c.rl.Readline()
		if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
			return nil // OK, stop execution.
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		err = c.Execute(line)
		if errors.Is(err, errExit) {
			return nil
		}
		if err != nil {
			writeErr(c.errOut, err)
		}
	}
}

// Execute runs a single console line.
func (c *Console) Execute(line string) error {
	args, err := shellquote.Split(line)
	if err != nil {
		return fmt.Errorf("failed to parse arguments: %w", err)
	}
	if len(args) == 0 {
		return nil
	}
	switch args[0] {
	case "exit":
		return errExit
	case "help":
		names := make([]string, 0, len(builtins))
		for b := range builtins {
			names = append(names, b)
		}
		sort.Strings(names)
		for _, b := range names {
			fmt.Fprintf(c.out, "%-8s %s\n", b, builtins[b])
		}
		fmt.Fprintln(c.out, "<method> [params...] calls the method, e.g. getBalance 0x... latest")
		return nil
	case "methods":
		fmt.Fprintln(c.out, strings.Join(Methods, "\n"))
		return nil
	}
	res, err := c.client.Invoke(args[0], cmdargs.ParseParams(args[1:])...)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, res, "", "  "); err != nil {
		buf.Reset()
		buf.Write(res)
	}
	fmt.Fprintln(c.out, buf.String())
	return nil
}

func writeErr(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %s\n", err)
}
