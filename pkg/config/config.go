/*
Package config contains the harness configuration: node endpoint and
transport, chain parameters, test accounts, fee model, confirmation polling,
node expectations and runner settings. It's loaded from a YAML file, all
values have defaults.
*/
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/holiman/uint256"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc/result"
	"github.com/nspcc-dev/rpcprobe/pkg/crypto/keys"
	"gopkg.in/yaml.v3"
)

// Supported transports.
const (
	TransportHTTP = "http"
	TransportWS   = "ws"
	TransportCLI  = "cli"
)

// Default values.
const (
	DefaultEndpoint       = "http://127.0.0.1:8101"
	DefaultRPCTimeout     = 10 * time.Second
	DefaultWSPoolSize     = 4
	DefaultCLICommand     = "cita-cli"
	DefaultBlockInterval  = 3 * time.Second
	DefaultPollInterval   = 3 * time.Second
	DefaultMaxAttempts    = 10
	DefaultVUBOffset      = 16
	DefaultChainID        = 1
	DefaultQuotaLimit     = 100000
	DefaultBaseQuota      = 21000
	DefaultPerByteQuota   = 68
	DefaultQuotaPrice     = 1
	DefaultCodeSize       = 223
	DefaultPeerCount      = 1
	DefaultRunnerTimeout  = 2 * time.Minute
	DefaultGenesisBalance = "0x400000000000000000"
	DefaultBeneficiary    = "proposer"
)

// Version is the harness version, set at build time.
var Version string

// Config is the top level configuration structure.
type Config struct {
	RPC        RPC          `yaml:"RPC"`
	Chain      Chain        `yaml:"Chain"`
	Accounts   []string     `yaml:"Accounts"`
	Fee        Fee          `yaml:"Fee"`
	Poll       Poll         `yaml:"Poll"`
	Expect     Expect       `yaml:"Expect"`
	Runner     Runner       `yaml:"Runner"`
	Logger     Logger       `yaml:"Logger"`
	Report     Report       `yaml:"Report"`
	Prometheus BasicService `yaml:"Prometheus"`
	Pprof      BasicService `yaml:"Pprof"`
}

type (
	// RPC configures the connection to the node.
	RPC struct {
		Endpoint  string        `yaml:"Endpoint"`
		Transport string        `yaml:"Transport"`
		Timeout   time.Duration `yaml:"Timeout"`
		// WSPoolSize is the number of idle web-socket connections kept.
		WSPoolSize int `yaml:"WSPoolSize"`
		CLI        CLI `yaml:"CLI"`
	}

	// CLI configures the cita-cli transport.
	CLI struct {
		// Command is split the shell way, so it can contain arguments.
		Command string `yaml:"Command"`
		NoColor bool   `yaml:"NoColor"`
	}

	// Chain contains chain parameters put into transactions.
	Chain struct {
		ChainID               uint64        `yaml:"ChainID"`
		TxVersion             uint32        `yaml:"TxVersion"`
		AddressScheme         string        `yaml:"AddressScheme"`
		ValidUntilBlockOffset uint64        `yaml:"ValidUntilBlockOffset"`
		BlockInterval         time.Duration `yaml:"BlockInterval"`
	}

	// Fee describes the fee model of the node.
	Fee struct {
		BaseQuota    uint64 `yaml:"BaseQuota"`
		PerByteQuota uint64 `yaml:"PerByteQuota"`
		QuotaPrice   uint64 `yaml:"QuotaPrice"`
		// QuotaLimit is the quota limit of transfers.
		QuotaLimit uint64 `yaml:"QuotaLimit"`
		// Beneficiary is "burn", "proposer" or an address.
		Beneficiary string `yaml:"Beneficiary"`
	}

	// Poll configures transaction confirmation awaiting.
	Poll struct {
		Interval    time.Duration `yaml:"Interval"`
		MaxAttempts int           `yaml:"MaxAttempts"`
	}

	// Expect holds expected node properties.
	Expect struct {
		// PeerCount is the expected number of peers, negative disables
		// the check.
		PeerCount             int  `yaml:"PeerCount"`
		ActiveBlockProduction bool `yaml:"ActiveBlockProduction"`
		EnsureBlankChain      bool `yaml:"EnsureBlankChain"`
		// GenesisBalance is the balance of every account at genesis, hex
		// or decimal.
		GenesisBalance string `yaml:"GenesisBalance"`
		CodeSize       int    `yaml:"CodeSize"`
	}

	// Runner configures scenario runs.
	Runner struct {
		Parallel  bool          `yaml:"Parallel"`
		Scenarios []string      `yaml:"Scenarios"`
		Timeout   time.Duration `yaml:"Timeout"`
	}

	// Logger configures logging.
	Logger struct {
		LogLevel    string `yaml:"LogLevel"`
		LogPath     string `yaml:"LogPath"`
		LogEncoding string `yaml:"LogEncoding"`
	}

	// Report configures run report storage.
	Report struct {
		// Path is the report database file, no reports are stored if empty.
		Path string `yaml:"Path"`
	}
)

// Default returns the default configuration.
func Default() Config {
	return Config{
		RPC: RPC{
			Endpoint:   DefaultEndpoint,
			Transport:  TransportHTTP,
			Timeout:    DefaultRPCTimeout,
			WSPoolSize: DefaultWSPoolSize,
			CLI: CLI{
				Command: DefaultCLICommand,
				NoColor: true,
			},
		},
		Chain: Chain{
			ChainID:               DefaultChainID,
			AddressScheme:         string(keys.MutaScheme),
			ValidUntilBlockOffset: DefaultVUBOffset,
			BlockInterval:         DefaultBlockInterval,
		},
		Fee: Fee{
			BaseQuota:    DefaultBaseQuota,
			PerByteQuota: DefaultPerByteQuota,
			QuotaPrice:   DefaultQuotaPrice,
			QuotaLimit:   DefaultQuotaLimit,
			Beneficiary:  DefaultBeneficiary,
		},
		Poll: Poll{
			Interval:    DefaultPollInterval,
			MaxAttempts: DefaultMaxAttempts,
		},
		Expect: Expect{
			PeerCount:             DefaultPeerCount,
			ActiveBlockProduction: true,
			GenesisBalance:        DefaultGenesisBalance,
			CodeSize:              DefaultCodeSize,
		},
		Runner: Runner{
			Timeout: DefaultRunnerTimeout,
		},
		Logger: Logger{
			LogLevel:    "info",
			LogEncoding: "console",
		},
	}
}

// LoadFile loads the configuration from the given file on top of the
// defaults. Unknown fields are an error.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}
	return Load(data)
}

// Load decodes YAML configuration on top of the defaults and validates it.
func Load(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration consistency.
func (c Config) Validate() error {
	switch c.RPC.Transport {
	case TransportHTTP, TransportWS, TransportCLI:
	default:
		return fmt.Errorf("unknown transport %q", c.RPC.Transport)
	}
	if c.RPC.Endpoint == "" {
		return errors.New("no RPC endpoint")
	}
	if c.RPC.Transport == TransportCLI && c.RPC.CLI.Command == "" {
		return errors.New("no CLI command for cli transport")
	}
	if !keys.AddressScheme(c.Chain.AddressScheme).Valid() {
		return fmt.Errorf("unknown address scheme %q", c.Chain.AddressScheme)
	}
	if c.Chain.TxVersion > 1 {
		return fmt.Errorf("unsupported transaction version %d", c.Chain.TxVersion)
	}
	for i, k := range c.Accounts {
		if _, err := keys.NewPrivateKeyFromHex(k); err != nil {
			return fmt.Errorf("account #%d: %w", i, err)
		}
	}
	if c.Poll.Interval <= 0 {
		return errors.New("poll interval must be positive")
	}
	if c.Poll.MaxAttempts <= 0 {
		return errors.New("poll attempts must be positive")
	}
	if c.Fee.BaseQuota == 0 {
		return errors.New("base quota must be positive")
	}
	if _, err := c.Expect.Genesis(); err != nil {
		return err
	}
	if err := c.Prometheus.Validate(); err != nil {
		return fmt.Errorf("prometheus: %w", err)
	}
	if err := c.Pprof.Validate(); err != nil {
		return fmt.Errorf("pprof: %w", err)
	}
	return nil
}

// Genesis returns the parsed GenesisBalance, nil if it's empty.
func (e Expect) Genesis() (*uint256.Int, error) {
	if e.GenesisBalance == "" {
		return nil, nil
	}
	q, err := result.ParseQuantity(e.GenesisBalance)
	if err != nil {
		return nil, fmt.Errorf("invalid genesis balance: %w", err)
	}
	return q.Int(), nil
}
