package scenario

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc/result"
	"github.com/nspcc-dev/rpcprobe/pkg/oracle"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient/actor"
	"go.uber.org/zap"
)

// transferValue is the value moved by transfer scenarios.
const transferValue = 10

// transferPayload is the payload of transfer-with-data.
var transferPayload = []byte{0x12, 0x34}

func transferBalance(ctx context.Context, e *Env) error {
	from, to := e.Accounts[0], e.Accounts[1]
	o, err := e.NewOracle(from.Address(), to.Address())
	if err != nil {
		return err
	}
	rcpt, err := e.Transfer(ctx, o, from, to.Address(), transferValue, nil)
	if err != nil {
		return err
	}
	return errors.Join(
		o.AssertQuotaUsed(rcpt, nil),
		o.AssertBalances(),
		o.AssertConservation(),
	)
}

// minedBlock returns the block the receipt points to.
func minedBlock(e *Env, rcpt *result.Receipt, full bool) (*result.Block, error) {
	b, err := e.Client.GetBlockByNumber(citarpc.Height(rcpt.BlockNumber.Uint64()), full)
	if err != nil {
		return nil, err
	}
	if err := oracle.AssertEqual("hash of block "+rcpt.BlockNumber.String(), rcpt.BlockHash, b.Hash); err != nil {
		return nil, err
	}
	return b, nil
}

func blockByNumber(ctx context.Context, e *Env) error {
	from, to := e.Accounts[0], e.Accounts[1]
	rcpt, err := e.Transfer(ctx, nil, from, to.Address(), transferValue, nil)
	if err != nil {
		return err
	}
	h := rcpt.TransactionHash

	b, err := minedBlock(e, rcpt, false)
	if err != nil {
		return err
	}
	tx := b.FindTransaction(h)
	if tx == nil {
		return oracle.NewViolation("transactions of block "+b.Hash.Hex(), "containing "+h.Hex(), b.TxHashes())
	}
	if tx.Full != nil {
		return oracle.NewViolation("transaction "+h.Hex()+" in block", "hash only", "full transaction")
	}

	b, err = minedBlock(e, rcpt, true)
	if err != nil {
		return err
	}
	tx = b.FindTransaction(h)
	if tx == nil || tx.Full == nil {
		return oracle.NewViolation("transactions of block "+b.Hash.Hex(), "full "+h.Hex(), b.TxHashes())
	}
	return errors.Join(
		oracle.AssertEqual("hash of transaction in block", h, tx.Full.Hash),
		oracle.AssertEqual("sender of "+h.Hex(), from.Address(), tx.Full.From),
	)
}

func transferWithData(ctx context.Context, e *Env) error {
	from, to := e.Accounts[0], e.Accounts[1]
	o, err := e.NewOracle(from.Address(), to.Address())
	if err != nil {
		return err
	}
	rcpt, err := e.Transfer(ctx, o, from, to.Address(), transferValue, transferPayload)
	if err != nil {
		return err
	}
	b, err := minedBlock(e, rcpt, true)
	if err != nil {
		return err
	}
	tx := b.FindTransaction(rcpt.TransactionHash)
	if tx == nil || tx.Full == nil {
		return oracle.NewViolation("transactions of block "+b.Hash.Hex(), "full "+rcpt.TransactionHash.Hex(), b.TxHashes())
	}
	errs := []error{
		oracle.AssertEqual("sender of "+tx.Hash.Hex(), from.Address(), tx.Full.From),
		o.AssertQuotaUsed(rcpt, transferPayload),
	}
	// Block quota covers all of its transactions, it's exact only when
	// the transfer is alone there.
	if len(b.Body.Transactions) == 1 {
		errs = append(errs, oracle.AssertEqual("quota used by block "+b.Hash.Hex(), rcpt.QuotaUsed.String(), b.Header.QuotaUsed.String()))
	} else if b.Header.QuotaUsed.Cmp(rcpt.QuotaUsed) < 0 {
		errs = append(errs, oracle.NewViolation("quota used by block "+b.Hash.Hex(), ">= "+rcpt.QuotaUsed.String(), b.Header.QuotaUsed.String()))
	}
	errs = append(errs, o.AssertBalances(), o.AssertConservation())
	return errors.Join(errs...)
}

func getTransaction(ctx context.Context, e *Env) error {
	from, to := e.Accounts[0], e.Accounts[1]
	rcpt, err := e.Transfer(ctx, nil, from, to.Address(), transferValue, nil)
	if err != nil {
		return err
	}
	h := rcpt.TransactionHash
	tx, err := e.Client.GetTransaction(h)
	if err != nil {
		return err
	}
	if tx == nil {
		return oracle.NewViolation("transaction "+h.Hex(), "found", "null")
	}
	return errors.Join(
		oracle.AssertEqual("hash of transaction", h, tx.Hash),
		oracle.AssertEqual("sender of "+h.Hex(), from.Address(), tx.From),
		oracle.AssertEqual("block of "+h.Hex(), rcpt.BlockNumber.String(), tx.BlockNumber.String()),
	)
}

func transactionCount(ctx context.Context, e *Env) error {
	from, to := e.Accounts[0], e.Accounts[1]
	rcpt, err := e.Transfer(ctx, nil, from, to.Address(), transferValue, nil)
	if err != nil {
		return err
	}
	height := rcpt.BlockNumber.Uint64()
	after, err := e.Client.GetTransactionCount(from.Address(), citarpc.Height(height))
	if err != nil {
		return err
	}
	if height == 0 {
		return oracle.NewViolation("block of "+rcpt.TransactionHash.Hex(), "> 0", height)
	}
	before, err := e.Client.GetTransactionCount(from.Address(), citarpc.Height(height-1))
	if err != nil {
		return err
	}
	return oracle.AssertEqual(fmt.Sprintf("transaction count of %s at %d", from.Address(), height), before+1, after)
}

func transactionProof(ctx context.Context, e *Env) error {
	from, to := e.Accounts[0], e.Accounts[1]
	rcpt, err := e.Transfer(ctx, nil, from, to.Address(), transferValue, nil)
	if err != nil {
		return err
	}
	proof, err := e.Client.GetTransactionProof(rcpt.TransactionHash)
	if err != nil {
		return err
	}
	if len(proof) == 0 {
		return oracle.NewViolation("proof of "+rcpt.TransactionHash.Hex(), "non-empty", "empty")
	}
	return nil
}

// insufficientQuota sends a transfer with quota one below the intrinsic
// cost. The node can either reject it or mine it as failed, charging no
// more than the quota limit.
func insufficientQuota(ctx context.Context, e *Env) error {
	from, to := e.Accounts[0], e.Accounts[1]
	o, err := e.NewOracle(from.Address(), to.Address())
	if err != nil {
		return err
	}
	a, err := e.NewActor(from)
	if err != nil {
		return err
	}
	quota := e.Fee.IntrinsicQuota(nil) - 1
	addr := to.Address()
	tx, err := a.MakeTunedTransaction(&addr, uint256.NewInt(transferValue), nil, quota)
	if err != nil {
		return err
	}
	sub, err := a.Submit(ctx, tx)
	switch sub.State() {
	case actor.Rejected:
		if !rpcclient.IsNodeError(err) {
			return err
		}
		e.Log.Info("transaction rejected by node", zap.Error(err))
	case actor.Confirmed:
		rcpt := sub.Receipt()
		if !rcpt.Failed() {
			return oracle.NewViolation("status of "+rcpt.TransactionHash.Hex(), "failure", rcpt.Status())
		}
		used := rcpt.QuotaUsed.Uint64()
		if !rcpt.QuotaUsed.IsUint64() || used > quota {
			return oracle.NewViolation("quota used by "+rcpt.TransactionHash.Hex(), fmt.Sprintf("<= %d", quota), rcpt.QuotaUsed.String())
		}
		o.RecordFailure(from.Address(), used)
		e.Log.Info("transaction failed", zap.String("status", rcpt.Status()), zap.Uint64("quota used", used))
	default:
		return err
	}
	return errors.Join(o.AssertBalances(), o.AssertConservation())
}

// feeDestination checks where the fee of a transfer goes. With a
// beneficiary it must get exactly the fee (at least the fee if scenarios
// run concurrently), otherwise the fee must disappear from the tracked
// supply.
func feeDestination(ctx context.Context, e *Env) error {
	from, to := e.Accounts[0], e.Accounts[1]
	b, err := e.Client.GetBlockByNumber(citarpc.Latest, false)
	if err != nil {
		return err
	}
	proposer := b.Header.Proposer
	target := proposer
	if e.Fee.Beneficiary != nil {
		target = *e.Fee.Beneficiary
	}
	before, err := e.Client.GetBalance(target, citarpc.Latest)
	if err != nil {
		return err
	}
	o, err := e.NewOracle(from.Address(), to.Address())
	if err != nil {
		return err
	}
	rcpt, err := e.Transfer(ctx, o, from, to.Address(), 0, nil)
	if err != nil {
		return err
	}
	after, err := e.Client.GetBalance(target, citarpc.Latest)
	if err != nil {
		return err
	}
	fee := e.Fee.Fee(rcpt.QuotaUsed.Uint64())
	var delta *uint256.Int
	if after.Lt(before) {
		delta = new(uint256.Int)
	} else {
		delta = new(uint256.Int).Sub(after, before)
	}
	e.Log.Info("fee destination",
		zap.Stringer("target", target),
		zap.Bool("beneficiary", e.Fee.Beneficiary != nil),
		zap.String("fee", fee.ToBig().String()),
		zap.String("target balance change", delta.ToBig().String()))

	var errs []error
	subject := "balance change of " + target.Hex()
	switch {
	case e.Fee.Beneficiary == nil:
		// The proposer must not get fees that are supposed to be burned,
		// it can only be checked without concurrent activity.
		if !e.Shared && !delta.IsZero() && target != from.Address() && target != to.Address() {
			errs = append(errs, oracle.NewViolation(subject, "0 (fees burned)", delta.ToBig().String()))
		}
	case e.Shared:
		if delta.Lt(fee) {
			errs = append(errs, oracle.NewViolation(subject, ">= "+fee.ToBig().String(), delta.ToBig().String()))
		}
	default:
		if !delta.Eq(fee) {
			errs = append(errs, oracle.NewViolation(subject, fee.ToBig().String(), delta.ToBig().String()))
		}
	}
	errs = append(errs, o.AssertBalances(), o.AssertConservation())
	return errors.Join(errs...)
}
