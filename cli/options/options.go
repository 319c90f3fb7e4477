/*
Package options contains a set of common CLI options and helper functions to use them.
*/
package options

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/holiman/uint256"
	"github.com/nspcc-dev/rpcprobe/pkg/config"
	"github.com/nspcc-dev/rpcprobe/pkg/crypto/keys"
	"github.com/nspcc-dev/rpcprobe/pkg/oracle"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient/actor"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient/waiter"
	"github.com/nspcc-dev/rpcprobe/pkg/scenario"
	"github.com/nspcc-dev/rpcprobe/pkg/wallet"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// DefaultTimeout is the default timeout used for RPC requests.
	DefaultTimeout = 10 * time.Second
	// DefaultAwaitableTimeout is the default timeout used for RPC requests that
	// require transaction awaiting, it covers the default confirmation
	// polling.
	DefaultAwaitableTimeout = config.DefaultPollInterval*config.DefaultMaxAttempts + DefaultTimeout
)

// RPCEndpointFlag is a long flag name for an RPC endpoint. It can be used to
// check for flag presence in the context.
const RPCEndpointFlag = "rpc-endpoint"

// RPCLoggerName is the name of the RPC client logger.
const RPCLoggerName = "rpc"

// RPC is a set of flags used for RPC connections (endpoint, transport and
// timeout).
var RPC = []cli.Flag{
	cli.StringFlag{
		Name:  RPCEndpointFlag + ", r",
		Usage: "RPC node address (overrides configuration)",
	},
	cli.StringFlag{
		Name:  "transport",
		Usage: "RPC transport: http, ws or cli (overrides configuration)",
	},
	cli.StringFlag{
		Name:  "cli-command",
		Usage: "cita-cli command line for cli transport (overrides configuration)",
	},
	cli.DurationFlag{
		Name:  "timeout, s",
		Value: DefaultTimeout,
		Usage: "Timeout for the operation",
	},
}

// ConfigFile is a flag for commands that use harness configuration.
var ConfigFile = cli.StringFlag{
	Name:  "config-file, c",
	Usage: "path to the configuration file, defaults are used if not set",
}

// Debug is a flag for commands that allow debug logging.
var Debug = cli.BoolFlag{
	Name:  "debug, d",
	Usage: "enable debug logging (overrides configuration)",
}

// TraceRPC is a flag enabling per-call RPC logging in debug mode.
var TraceRPC = cli.BoolFlag{
	Name:  "trace-rpc",
	Usage: "log every RPC call when debug logging is enabled",
}

// Common is a set of flags shared by all commands talking to the node.
var Common = append([]cli.Flag{ConfigFile, Debug, TraceRPC}, RPC...)

var errNoEndpoint = errors.New("no RPC endpoint specified, use option '--" + RPCEndpointFlag + "' or '-r' or set it in configuration")

// GetTimeoutContext returns a context.Context with the default or a user-set timeout.
func GetTimeoutContext(ctx *cli.Context) (context.Context, func()) {
	dur := ctx.Duration("timeout")
	if dur == 0 {
		dur = DefaultTimeout
	}
	if !ctx.IsSet("timeout") && ctx.Bool("await") {
		dur = DefaultAwaitableTimeout
	}
	return context.WithTimeout(context.Background(), dur)
}

// GetConfigFromContext loads configuration from the file given (defaults
// otherwise) and applies flag overrides.
func GetConfigFromContext(ctx *cli.Context) (config.Config, error) {
	var (
		cfg = config.Default()
		err error
	)
	if path := ctx.String("config-file"); path != "" {
		cfg, err = config.LoadFile(path)
		if err != nil {
			return cfg, err
		}
	}
	if ep := ctx.String(RPCEndpointFlag); ep != "" {
		cfg.RPC.Endpoint = ep
	}
	if tr := ctx.String("transport"); tr != "" {
		cfg.RPC.Transport = tr
	}
	if cmd := ctx.String("cli-command"); cmd != "" {
		cfg.RPC.CLI.Command = cmd
	}
	if ctx.IsSet("timeout") {
		cfg.RPC.Timeout = ctx.Duration("timeout")
	}
	return cfg, cfg.Validate()
}

// GetRPCClient returns an RPC client instance for the given configuration.
func GetRPCClient(gctx context.Context, cfg config.RPC, log *zap.Logger) (*rpcclient.Client, cli.ExitCoder) {
	if len(cfg.Endpoint) == 0 {
		return nil, cli.NewExitError(errNoEndpoint, 1)
	}
	if log == nil {
		log = zap.NewNop()
	}
	opts := rpcclient.Options{
		DialTimeout:    cfg.Timeout,
		RequestTimeout: cfg.Timeout,
		Logger:         log.Named(RPCLoggerName),
	}
	var (
		t   rpcclient.Transport
		err error
	)
	switch cfg.Transport {
	case config.TransportHTTP, "":
		t, err = rpcclient.NewHTTPTransport(cfg.Endpoint, opts)
	case config.TransportWS:
		t, err = rpcclient.NewWSTransport(cfg.Endpoint, opts, cfg.WSPoolSize)
	case config.TransportCLI:
		t, err = rpcclient.NewCLITransport(cfg.Endpoint, rpcclient.CLIOptions{
			Command: cfg.CLI.Command,
			NoColor: cfg.CLI.NoColor,
		})
	default:
		err = fmt.Errorf("unknown transport %q", cfg.Transport)
	}
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	return rpcclient.NewWithTransport(gctx, t, opts), nil
}

// GetWallet returns the wallet of configured accounts (default ones if
// none configured).
func GetWallet(cfg config.Config) (*wallet.Wallet, error) {
	return wallet.NewWallet(cfg.Accounts, keys.AddressScheme(cfg.Chain.AddressScheme))
}

// GetFeeModel returns the fee model from configuration, beneficiary is
// resolved by the runner.
func GetFeeModel(cfg config.Fee) oracle.FeeModel {
	return oracle.FeeModel{
		BaseQuota:    cfg.BaseQuota,
		PerByteQuota: cfg.PerByteQuota,
		QuotaPrice:   cfg.QuotaPrice,
	}
}

// GetActorOptions returns transaction options from configuration.
func GetActorOptions(cfg config.Config, log *zap.Logger) actor.Options {
	return actor.Options{
		ChainID:               cfg.Chain.ChainID,
		Version:               cfg.Chain.TxVersion,
		ValidUntilBlockOffset: cfg.Chain.ValidUntilBlockOffset,
		QuotaLimit:            cfg.Fee.QuotaLimit,
		Poll:                  GetPollConfig(cfg.Poll),
		FeeModel:              GetFeeModel(cfg.Fee),
		Logger:                log,
	}
}

// GetPollConfig converts poll configuration.
func GetPollConfig(cfg config.Poll) waiter.PollConfig {
	return waiter.PollConfig{
		PollInterval: cfg.Interval,
		MaxAttempts:  cfg.MaxAttempts,
	}
}

// GetRunner creates a scenario runner for the given configuration.
func GetRunner(cfg config.Config, c *rpcclient.Client, w *wallet.Wallet, log *zap.Logger) (*scenario.Runner, error) {
	var genesis *uint256.Int
	if cfg.Expect.EnsureBlankChain {
		g, err := cfg.Expect.Genesis()
		if err != nil {
			return nil, err
		}
		if g == nil {
			return nil, errors.New("blank chain check requires genesis balance")
		}
		genesis = g
	}
	return &scenario.Runner{
		Client:      c,
		Wallet:      w,
		Fee:         GetFeeModel(cfg.Fee),
		Beneficiary: cfg.Fee.Beneficiary,
		Poll:        GetPollConfig(cfg.Poll),
		Tx:          GetActorOptions(cfg, nil),
		Expect: scenario.Expectations{
			PeerCount:             cfg.Expect.PeerCount,
			ActiveBlockProduction: cfg.Expect.ActiveBlockProduction,
			BlockInterval:         cfg.Chain.BlockInterval,
			CodeSize:              cfg.Expect.CodeSize,
		},
		Parallel:       cfg.Runner.Parallel,
		Timeout:        cfg.Runner.Timeout,
		GenesisBalance: genesis,
		Log:            log,
	}, nil
}

var (
	// _winfileSinkRegistered denotes whether zap has registered
	// user-supplied factory for all sinks with `winfile`-prefixed scheme.
	_winfileSinkRegistered bool
	_winfileSinkCloser     func() error
)

// HandleLoggingParams reads logging parameters.
// If a user selected debug level -- function enables it.
// If logPath is configured -- function creates a dir and a file for logging.
// If logPath is configured on Windows -- function returns closer to be
// able to close sink for the opened log output file.
// RPC call traces are dropped unless traceRPC is set.
func HandleLoggingParams(debug, traceRPC bool, cfg config.Logger) (*zap.Logger, *zap.AtomicLevel, func() error, error) {
	var (
		level = zapcore.InfoLevel
		err   error
	)
	if len(cfg.LogLevel) > 0 {
		level, err = zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("log setting: %w", err)
		}
	}
	if debug {
		level = zapcore.DebugLevel
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cc.Encoding = "console"
	if cfg.LogEncoding != "" {
		cc.Encoding = cfg.LogEncoding
	}
	cc.Level = zap.NewAtomicLevelAt(level)
	cc.Sampling = nil

	if logPath := cfg.LogPath; logPath != "" {
		if err := MakeDirForFile(logPath, "logger"); err != nil {
			return nil, nil, nil, err
		}

		if runtime.GOOS == "windows" {
			if !_winfileSinkRegistered {
				// See https://github.com/uber-go/zap/issues/621.
				err := zap.RegisterSink("winfile", func(u *url.URL) (zap.Sink, error) {
					if u.User != nil {
						return nil, fmt.Errorf("user and password not allowed with file URLs: got %v", u)
					}
					if u.Fragment != "" {
						return nil, fmt.Errorf("fragments not allowed with file URLs: got %v", u)
					}
					if u.RawQuery != "" {
						return nil, fmt.Errorf("query parameters not allowed with file URLs: got %v", u)
					}
					if u.Port() != "" {
						return nil, fmt.Errorf("ports not allowed with file URLs: got %v", u)
					}
					if hn := u.Hostname(); hn != "" && hn != "localhost" {
						return nil, fmt.Errorf("file URLs must leave host empty or use localhost: got %v", u)
					}
					switch u.Path {
					case "stdout":
						return os.Stdout, nil
					case "stderr":
						return os.Stderr, nil
					}
					f, err := os.OpenFile(u.Path[1:], // Remove leading slash left after url.Parse.
						os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
					_winfileSinkCloser = func() error {
						_winfileSinkCloser = nil
						return f.Close()
					}
					return f, err
				})
				if err != nil {
					return nil, nil, nil, fmt.Errorf("failed to register windows-specific sinc: %w", err)
				}
				_winfileSinkRegistered = true
			}
			logPath = "winfile:///" + logPath
		}

		cc.OutputPaths = []string{logPath}
	}

	var opts []zap.Option
	if !traceRPC {
		opts = append(opts, zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return NewFilteringCore(c, DropDebugOf(RPCLoggerName))
		}))
	}
	log, err := cc.Build(opts...)
	return log, &cc.Level, _winfileSinkCloser, err
}

// GetLogger is HandleLoggingParams for the given command context.
func GetLogger(ctx *cli.Context, cfg config.Config) (*zap.Logger, func() error, error) {
	log, _, closer, err := HandleLoggingParams(ctx.Bool("debug"), ctx.Bool("trace-rpc"), cfg.Logger)
	return log, closer, err
}

// MakeDirForFile creates a directory specified in filePath for the given
// file. desc is used in the error message.
func MakeDirForFile(filePath string, desc string) error {
	fileName := filePath
	dir := filepath.Dir(fileName)
	err := os.MkdirAll(dir, os.ModePerm)
	if err != nil {
		return fmt.Errorf("could not create dir for %s: %w", desc, err)
	}
	return nil
}
