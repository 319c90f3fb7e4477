/*
Package actor provides a way to change chain state via RPC client.

This layer builds on top of the basic RPC client and the [waiter] package, it
simplifies creating, signing and sending transactions to the network (since
that's the only way chain state is changed). Actor is bound to a single
account and fills chain-specific validity fields (nonce, validUntilBlock,
chain ID and version) of every transaction it creates.

Methods with the "Make" prefix create signed transactions without sending
them, "Send" methods transmit them to the node and "SendAndWait" methods
additionally wait for the receipt.
*/
package actor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc"
	"github.com/nspcc-dev/rpcprobe/pkg/core/transaction"
	"github.com/nspcc-dev/rpcprobe/pkg/oracle"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient/waiter"
	"github.com/nspcc-dev/rpcprobe/pkg/wallet"
	"go.uber.org/zap"
)

const (
	// DefaultValidUntilBlockOffset is the number of blocks a transaction
	// stays valid for starting from the current height.
	DefaultValidUntilBlockOffset = 16
	// DefaultQuotaLimit is the quota limit used for transactions when
	// nothing else is specified.
	DefaultQuotaLimit = 100000
	// DefaultChainID is the chain ID of test chains.
	DefaultChainID = 1
)

// RPCActor is an interface required from the RPC client to successfully
// create and send transactions.
type RPCActor interface {
	waiter.RPCPollingBased

	GetBlockNumber() (uint64, error)
	GetTransactionCount(addr common.Address, height citarpc.BlockTag) (uint64, error)
	SendRawTransaction(tx *transaction.Signed) (common.Hash, error)
}

// Options are used to create Actor with non-default transaction parameters.
type Options struct {
	// ChainID is set into every transaction, DefaultChainID if zero.
	ChainID uint64
	// Version is the transaction format version (transaction.V0 or
	// transaction.V1).
	Version uint32
	// ValidUntilBlockOffset is added to the current height to get
	// validUntilBlock, DefaultValidUntilBlockOffset if zero.
	ValidUntilBlockOffset uint64
	// QuotaLimit is used by methods that don't accept quota explicitly,
	// DefaultQuotaLimit if zero.
	QuotaLimit uint64
	// Poll configures receipt awaiting.
	Poll waiter.PollConfig
	// NonceFunc generates transaction nonces, random UUID-based ones
	// are used if nil.
	NonceFunc func() string
	// FeeModel is used to warn about quota limits below the intrinsic
	// transaction cost, oracle.DefaultFeeModel if BaseQuota is zero.
	FeeModel oracle.FeeModel
	// Logger is used for transaction tracing, no logging if nil.
	Logger *zap.Logger
}

// Actor keeps a connection to the RPC endpoint and allows to perform
// state-changing actions on behalf of a single account. It also provides a
// Waiter interface to wait until a transaction is accepted to the chain.
//
// Actor never rejects a transaction because of its quota limit, negative
// checks deliberately send transactions that can't be executed, but it
// logs a warning when the limit is below the intrinsic cost.
type Actor struct {
	waiter.Waiter

	client  RPCActor
	account *wallet.Account
	opts    Options
	log     *zap.Logger
}

// NewRandomNonce returns a random 32-character hex string.
func NewRandomNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// New creates an Actor for the given account using the given RPC client.
// Zero Options fields are replaced with defaults.
func New(ra RPCActor, acc *wallet.Account, opts Options) (*Actor, error) {
	if acc == nil {
		return nil, errors.New("no account provided")
	}
	if opts.Version > transaction.V1 {
		return nil, fmt.Errorf("unsupported transaction version %d", opts.Version)
	}
	if opts.ChainID == 0 {
		opts.ChainID = DefaultChainID
	}
	if opts.ValidUntilBlockOffset == 0 {
		opts.ValidUntilBlockOffset = DefaultValidUntilBlockOffset
	}
	if opts.QuotaLimit == 0 {
		opts.QuotaLimit = DefaultQuotaLimit
	}
	if opts.NonceFunc == nil {
		opts.NonceFunc = NewRandomNonce
	}
	if opts.FeeModel.BaseQuota == 0 {
		opts.FeeModel = oracle.DefaultFeeModel()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Actor{
		Waiter:  waiter.NewPollingBased(ra, opts.Poll),
		client:  ra,
		account: acc,
		opts:    opts,
		log:     log.With(zap.Stringer("sender", acc.Address())),
	}, nil
}

// Account returns the account used to sign transactions.
func (a *Actor) Account() *wallet.Account {
	return a.account
}

// Address returns the sender address.
func (a *Actor) Address() common.Address {
	return a.account.Address()
}

// Options returns effective Actor options.
func (a *Actor) Options() Options {
	return a.opts
}

// GetBlockNumber wraps RPCActor's GetBlockNumber, making it available to
// Actor users directly.
func (a *Actor) GetBlockNumber() (uint64, error) {
	return a.client.GetBlockNumber()
}

// Params returns transaction validity parameters for a new transaction,
// validUntilBlock is calculated from the current chain height.
func (a *Actor) Params() (transaction.Params, error) {
	height, err := a.client.GetBlockNumber()
	if err != nil {
		return transaction.Params{}, fmt.Errorf("failed to get current height: %w", err)
	}
	return transaction.Params{
		Nonce:           a.opts.NonceFunc(),
		ValidUntilBlock: height + a.opts.ValidUntilBlockOffset,
		ChainID:         a.opts.ChainID,
		Version:         a.opts.Version,
	}, nil
}

// PredictContractAddress returns the address the next contract deployed by
// this account will get. It uses the current transaction count of the
// account as a creation nonce.
func (a *Actor) PredictContractAddress() (common.Address, error) {
	n, err := a.client.GetTransactionCount(a.Address(), citarpc.Latest)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to get transaction count: %w", err)
	}
	return crypto.CreateAddress(a.Address(), n), nil
}
