package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc"
	"github.com/nspcc-dev/rpcprobe/pkg/oracle"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient/actor"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient/waiter"
	"github.com/nspcc-dev/rpcprobe/pkg/wallet"
	"go.uber.org/zap"
)

// Fee beneficiary settings, anything else is an address.
const (
	BeneficiaryBurn     = "burn"
	BeneficiaryProposer = "proposer"
)

// DefaultTimeout is the default time limit of a single scenario.
const DefaultTimeout = 2 * time.Minute

// ErrNotBlankChain is returned by the blank chain guard.
var ErrNotBlankChain = errors.New("chain is not blank")

// Runner runs scenarios against a node.
type Runner struct {
	Client *rpcclient.Client
	Wallet *wallet.Wallet
	// Fee is the fee model, its Beneficiary is set from the Beneficiary
	// field when a run starts.
	Fee         oracle.FeeModel
	Beneficiary string
	Poll        waiter.PollConfig
	Tx          actor.Options
	Expect      Expectations
	// Parallel runs all scenarios concurrently.
	Parallel bool
	// Timeout limits every scenario, DefaultTimeout if zero.
	Timeout time.Duration
	// GenesisBalance enables the blank chain guard if set: every wallet
	// account must have this balance at genesis and no transactions sent.
	GenesisBalance *uint256.Int
	Log            *zap.Logger
}

// Result is the outcome of a single scenario.
type Result struct {
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`

	Err error `json:"-"`
}

// Failed returns the number of failed scenarios.
func Failed(results []Result) int {
	var n int
	for i := range results {
		if !results[i].Passed {
			n++
		}
	}
	return n
}

// ResolveBeneficiary converts beneficiary setting into an address, nil
// means fees are burned.
func ResolveBeneficiary(c *rpcclient.Client, s string) (*common.Address, error) {
	switch strings.ToLower(s) {
	case "", BeneficiaryBurn:
		return nil, nil
	case BeneficiaryProposer:
		b, err := c.GetBlockByNumber(citarpc.Latest, false)
		if err != nil {
			return nil, fmt.Errorf("can't get proposer: %w", err)
		}
		p := b.Header.Proposer
		return &p, nil
	}
	if !common.IsHexAddress(s) {
		return nil, fmt.Errorf("invalid fee beneficiary %q", s)
	}
	a := common.HexToAddress(s)
	return &a, nil
}

// Run runs the scenarios with the given names (all of them if none given).
// An error is returned only if scenarios can't be run at all, scenario
// failures are reported in results.
func (r *Runner) Run(ctx context.Context, names []string) ([]Result, error) {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	scenarios, err := Select(names)
	if err != nil {
		return nil, err
	}
	if r.GenesisBalance != nil {
		if err := r.ensureBlankChain(); err != nil {
			return nil, err
		}
	}
	beneficiary, err := ResolveBeneficiary(r.Client, r.Beneficiary)
	if err != nil {
		return nil, err
	}
	fee := r.Fee.WithBeneficiary(beneficiary)
	if fee.BaseQuota == 0 {
		fee = oracle.DefaultFeeModel().WithBeneficiary(beneficiary)
	}

	var accs []*wallet.Account
	for _, acc := range r.Wallet.Accounts {
		if beneficiary != nil && acc.Address() == *beneficiary {
			log.Info("fee beneficiary is not used by scenarios", zap.Stringer("address", acc.Address()))
			continue
		}
		accs = append(accs, acc)
	}
	pool := NewAccountPool(accs)

	log.Info("running scenarios",
		zap.Int("count", len(scenarios)),
		zap.Bool("parallel", r.Parallel),
		zap.String("transport", r.Client.TransportName()))

	results := make([]Result, len(scenarios))
	if !r.Parallel {
		for i := range scenarios {
			results[i] = r.runOne(ctx, scenarios[i], pool, fee, log)
		}
		return results, nil
	}
	var wg sync.WaitGroup
	for i := range scenarios {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.runOne(ctx, scenarios[i], pool, fee, log)
		}(i)
	}
	wg.Wait()
	return results, nil
}

func (r *Runner) runOne(ctx context.Context, s Scenario, pool *AccountPool, fee oracle.FeeModel, log *zap.Logger) (res Result) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log = log.With(zap.String("scenario", s.Name))
	start := time.Now()
	res.Name = s.Name
	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("panic: %v", p)
		}
		res.Duration = time.Since(start)
		res.Passed = res.Err == nil
		if res.Err != nil {
			res.Error = res.Err.Error()
			log.Error("scenario failed", zap.Duration("duration", res.Duration), zap.Error(res.Err))
		} else {
			log.Info("scenario passed", zap.Duration("duration", res.Duration))
		}
		observeScenario(s.Name, res.Passed, res.Duration)
	}()

	accs, err := pool.Lease(ctx, s.Accounts)
	if err != nil {
		res.Err = fmt.Errorf("can't lease %d accounts: %w", s.Accounts, err)
		return
	}
	defer pool.Release(accs)

	// Waiting for accounts doesn't count against the scenario timeout.
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	env := &Env{
		Client:   r.Client,
		Accounts: accs,
		Fee:      fee,
		Poll:     r.Poll,
		Tx:       r.Tx,
		Expect:   r.Expect,
		Shared:   r.Parallel,
		Log:      log,
	}
	log.Debug("scenario started", zap.Int("accounts", len(accs)))
	res.Err = s.Run(ctx, env)
	return
}

// ensureBlankChain checks that wallet accounts have genesis balances and
// sent no transactions yet.
func (r *Runner) ensureBlankChain() error {
	var errs []error
	for _, acc := range r.Wallet.Accounts {
		addr := acc.Address()
		bal, err := r.Client.GetBalance(addr, citarpc.Height(0))
		if err != nil {
			return err
		}
		if err := oracle.AssertEqual("genesis balance of "+addr.Hex(), r.GenesisBalance.ToBig().String(), bal.ToBig().String()); err != nil {
			errs = append(errs, err)
		}
		n, err := r.Client.GetTransactionCount(addr, citarpc.Latest)
		if err != nil {
			return err
		}
		if err := oracle.AssertEqual("transaction count of "+addr.Hex(), uint64(0), n); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) != 0 {
		return fmt.Errorf("%w: %w", ErrNotBlankChain, errors.Join(errs...))
	}
	return nil
}
