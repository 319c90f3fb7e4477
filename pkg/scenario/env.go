package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc/result"
	"github.com/nspcc-dev/rpcprobe/pkg/oracle"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient/actor"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient/waiter"
	"github.com/nspcc-dev/rpcprobe/pkg/wallet"
	"go.uber.org/zap"
)

// DefaultBlockInterval is the block interval of test chains.
const DefaultBlockInterval = 3 * time.Second

// ErrTransactionFailed is returned when a transaction expected to succeed
// has an error in its receipt.
var ErrTransactionFailed = errors.New("transaction failed")

// Expectations are node properties scenarios check against.
type Expectations struct {
	// PeerCount is the expected number of peers, negative value disables
	// the check.
	PeerCount int
	// ActiveBlockProduction means that blocks are produced even without
	// transactions, so the height must grow in a block interval.
	ActiveBlockProduction bool
	// BlockInterval is the expected time between blocks.
	BlockInterval time.Duration
	// CodeSize is the expected size of the fixture contract code.
	CodeSize int
}

// Env is everything a scenario needs to run.
type Env struct {
	Client *rpcclient.Client
	// Accounts are leased exclusively for the scenario.
	Accounts []*wallet.Account
	Fee      oracle.FeeModel
	Poll     waiter.PollConfig
	// Tx holds transaction parameters for actors, its Poll, FeeModel and
	// Logger are overridden by the Env.
	Tx     actor.Options
	Expect Expectations
	// Shared is true when other scenarios run concurrently.
	Shared bool
	Log    *zap.Logger
}

// NewActor creates an actor for the given account.
func (e *Env) NewActor(acc *wallet.Account) (*actor.Actor, error) {
	opts := e.Tx
	opts.Poll = e.Poll
	opts.FeeModel = e.Fee
	opts.Logger = e.Log
	return actor.New(e.Client, acc, opts)
}

// NewOracle creates an oracle tracking the given accounts. The fee
// beneficiary is tracked too unless other scenarios run concurrently.
func (e *Env) NewOracle(addrs ...common.Address) (*oracle.Oracle, error) {
	o := oracle.New(e.Client, e.Fee, e.Log)
	if b := e.Fee.Beneficiary; b != nil {
		if e.Shared && !e.leased(*b) {
			o.Exclude(*b)
		} else {
			addrs = append(addrs, *b)
		}
	}
	if err := o.Track(addrs...); err != nil {
		return nil, err
	}
	return o, nil
}

func (e *Env) leased(addr common.Address) bool {
	for _, acc := range e.Accounts {
		if acc.Address() == addr {
			return true
		}
	}
	return false
}

// Transfer sends value with the payload from the account to the address,
// waits for the receipt and records the transfer in the oracle (if any).
// A failed transaction is an error.
func (e *Env) Transfer(ctx context.Context, o *oracle.Oracle, from *wallet.Account, to common.Address, value uint64, data []byte) (*result.Receipt, error) {
	a, err := e.NewActor(from)
	if err != nil {
		return nil, err
	}
	v := uint256.NewInt(value)
	rcpt, err := a.Transfer(ctx, to, v, data)
	if err != nil {
		return nil, err
	}
	if rcpt.Failed() {
		return rcpt, fmt.Errorf("%w: %s: %s", ErrTransactionFailed, rcpt.TransactionHash, rcpt.Status())
	}
	if o != nil {
		o.RecordTransfer(from.Address(), to, v, rcpt.QuotaUsed.Uint64())
	}
	e.Log.Debug("transfer confirmed",
		zap.Stringer("hash", rcpt.TransactionHash),
		zap.Stringer("block", rcpt.BlockNumber),
		zap.Stringer("quota used", rcpt.QuotaUsed))
	return rcpt, nil
}

// Sleep waits for the given number of block intervals.
func (e *Env) Sleep(ctx context.Context, blocks int) error {
	t := time.NewTimer(time.Duration(blocks) * e.blockInterval())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *Env) blockInterval() time.Duration {
	if e.Expect.BlockInterval <= 0 {
		return DefaultBlockInterval
	}
	return e.Expect.BlockInterval
}
