package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc"
)

// CLIArgser is implemented by parameters that expand into several command
// line flags.
type CLIArgser interface {
	CLIArgs() []string
}

// cliFlags maps method parameters (by position) to cita-cli flags.
var cliFlags = map[string][]string{
	"peerCount":             nil,
	"blockNumber":           nil,
	"getBalance":            {"--address", "--height"},
	"sendRawTransaction":    {"--byte-code"},
	"getTransactionReceipt": {"--hash"},
	"getTransaction":        {"--hash"},
	"getTransactionCount":   {"--address", "--height"},
	"getBlockByNumber":      {"--height", "--with-txs"},
	"getBlockByHash":        {"--hash", "--with-txs"},
	"getBlockHeader":        {"--height"},
	"call":                  {"", "--height"},
	"getCode":               {"--address", "--height"},
	"getStorageAt":          {"--address", "--key", "--height"},
	"getTransactionProof":   {"--hash"},
	"getStateProof":         {"--address", "--key", "--height"},
	"getLogs":               {""},
	"newFilter":             {""},
	"newBlockFilter":        nil,
	"getFilterChanges":      {"--id"},
	"uninstallFilter":       {"--id"},
}

// CLITransport runs an external cita-cli compatible client per call:
//
//	<command> rpc --url <endpoint> [--no-color] <method> [--flag value ...]
//
// A zero exit code with a JSON-RPC envelope on stdout is a successful call,
// anything else is reported as *citarpc.Error with the exit code.
type CLITransport struct {
	command  []string
	endpoint string
	noColor  bool
	env      []string
}

// CLIOptions are the CLI transport settings.
type CLIOptions struct {
	// Command is the client command line, it's split the shell way, so
	// something like "docker exec node cita-cli" works.
	Command string
	// NoColor adds --no-color flag.
	NoColor bool
	// Env is additional environment for the client process.
	Env []string
}

// NewCLITransport creates CLI transport for the given endpoint.
func NewCLITransport(endpoint string, opts CLIOptions) (*CLITransport, error) {
	if opts.Command == "" {
		opts.Command = "cita-cli"
	}
	cmd, err := shellquote.Split(opts.Command)
	if err != nil {
		return nil, fmt.Errorf("bad client command: %w", err)
	}
	if len(cmd) == 0 {
		return nil, errors.New("empty client command")
	}
	return &CLITransport{
		command:  cmd,
		endpoint: endpoint,
		noColor:  opts.NoColor,
		env:      opts.Env,
	}, nil
}

// Name implements the Transport interface.
func (t *CLITransport) Name() string {
	return "cli"
}

// Close implements the Transport interface, there is nothing to release.
func (t *CLITransport) Close() error {
	return nil
}

// Args returns the full argument list for the request (without the command
// itself).
func (t *CLITransport) Args(r *citarpc.Request) ([]string, error) {
	flags, ok := cliFlags[r.Method]
	if !ok {
		return nil, fmt.Errorf("method %s is not supported by CLI transport", r.Method)
	}
	if len(r.Params) > len(flags) {
		return nil, fmt.Errorf("too many parameters for %s: %d", r.Method, len(r.Params))
	}
	args := []string{"rpc", "--url", t.endpoint}
	if t.noColor {
		args = append(args, "--no-color")
	}
	args = append(args, r.Method)
	for i, p := range r.Params {
		if a, ok := p.(CLIArgser); ok {
			args = append(args, a.CLIArgs()...)
			continue
		}
		if b, ok := p.(bool); ok {
			if b {
				args = append(args, flags[i])
			}
			continue
		}
		if flags[i] == "" {
			return nil, fmt.Errorf("parameter %d of %s can't be passed via CLI", i, r.Method)
		}
		v, err := cliValue(p)
		if err != nil {
			return nil, fmt.Errorf("parameter %d of %s: %w", i, r.Method, err)
		}
		args = append(args, flags[i], v)
	}
	return args, nil
}

// cliValue renders the JSON form of the parameter, strings are unquoted.
func cliValue(p interface{}) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return s, nil
	}
	return string(b), nil
}

// Invoke implements the Transport interface.
func (t *CLITransport) Invoke(ctx context.Context, r *citarpc.Request) (*citarpc.Response, error) {
	args, err := t.Args(r)
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, t.command[0], append(t.command[1:], args...)...)
	if len(t.env) != 0 {
		cmd.Env = append(cmd.Environ(), t.env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out := strings.TrimSpace(stdout.String() + stderr.String())
			return nil, citarpc.NewError(int64(exitErr.ExitCode()), out, "")
		}
		return nil, fmt.Errorf("can't run %s: %w", t.command[0], err)
	}

	resp := new(citarpc.Response)
	if err := json.Unmarshal(stdout.Bytes(), resp); err != nil {
		return nil, fmt.Errorf("unexpected client output %q: %w", strings.TrimSpace(stdout.String()), err)
	}
	return resp, nil
}
