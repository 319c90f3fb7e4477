package actor

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/rpcprobe/pkg/core/transaction"
	"go.uber.org/zap"
)

// MakeTransfer creates a transaction transferring value to the given address
// with an optional payload. Actor's default quota limit is used.
func (a *Actor) MakeTransfer(to common.Address, value *uint256.Int, data []byte) (*transaction.Signed, error) {
	return a.MakeTunedTransaction(&to, value, data, a.opts.QuotaLimit)
}

// MakeCall creates a transaction calling the contract with the given ABI
// encoded input. It's the same as a transfer, but it's logged differently.
func (a *Actor) MakeCall(contract common.Address, input []byte, quota uint64) (*transaction.Signed, error) {
	if quota == 0 {
		quota = a.opts.QuotaLimit
	}
	return a.MakeTunedTransaction(&contract, nil, input, quota)
}

// MakeDeploy creates a contract creation transaction and returns it along
// with the address the contract is going to get. The address is predicted
// from the current transaction count of the sender, so the transaction must
// be the next one this sender gets included.
func (a *Actor) MakeDeploy(code []byte, quota uint64) (*transaction.Signed, common.Address, error) {
	addr, err := a.PredictContractAddress()
	if err != nil {
		return nil, common.Address{}, err
	}
	if quota == 0 {
		quota = a.opts.QuotaLimit
	}
	tx, err := a.MakeTunedTransaction(nil, nil, code, quota)
	if err != nil {
		return nil, common.Address{}, err
	}
	return tx, addr, nil
}

// MakeTunedTransaction creates and signs a transaction with the given
// recipient (nil for contract creation), value, payload and quota limit.
// Quota below the intrinsic cost is allowed, but logged.
func (a *Actor) MakeTunedTransaction(to *common.Address, value *uint256.Int, data []byte, quota uint64) (*transaction.Signed, error) {
	p, err := a.Params()
	if err != nil {
		return nil, err
	}
	if intrinsic := a.opts.FeeModel.IntrinsicQuota(data); quota < intrinsic {
		a.log.Warn("quota limit is below intrinsic cost",
			zap.Uint64("quota", quota),
			zap.Uint64("intrinsic", intrinsic))
	}
	tx, err := transaction.Build(a.account, to, value, data, quota, p)
	if err != nil {
		return nil, err
	}
	a.log.Debug("transaction signed",
		zap.Stringer("hash", tx.Hash()),
		zap.Bool("deploy", to == nil),
		zap.Uint64("validUntilBlock", p.ValidUntilBlock))
	return tx, nil
}
