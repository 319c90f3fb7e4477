package scenario

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/rpcprobe/pkg/fixture/simplestorage"
	"github.com/nspcc-dev/rpcprobe/pkg/oracle"
	"go.uber.org/zap"
)

func word(v uint64) common.Hash {
	return common.Hash(uint256.NewInt(v).Bytes32())
}

// deploy deploys the fixture contract on behalf of the first leased account
// and records the deployment in the oracle.
func deploy(ctx context.Context, e *Env, o *oracle.Oracle) (*simplestorage.Contract, error) {
	a, err := e.NewActor(e.Accounts[0])
	if err != nil {
		return nil, err
	}
	c, rcpt, err := simplestorage.Deploy(ctx, a, e.Client, 0)
	if err != nil {
		if o != nil && rcpt != nil && rcpt.Failed() {
			o.RecordFailure(a.Address(), rcpt.QuotaUsed.Uint64())
		}
		return nil, err
	}
	if o != nil {
		o.RecordContractCall(a.Address(), c.Address(), nil, rcpt.QuotaUsed.Uint64(),
			map[common.Hash]common.Hash{simplestorage.ValueSlot: word(simplestorage.InitialValue)})
	}
	e.Log.Info("contract deployed", zap.Stringer("address", c.Address()), zap.Stringer("block", rcpt.BlockNumber))
	return c, nil
}

// set calls set(v) and records the write.
func set(ctx context.Context, o *oracle.Oracle, c *simplestorage.Contract, from common.Address, v uint64) error {
	rcpt, err := c.Set(ctx, uint256.NewInt(v))
	if err != nil {
		return err
	}
	if rcpt.Failed() {
		o.RecordFailure(from, rcpt.QuotaUsed.Uint64())
		return oracle.NewViolation("status of set transaction "+rcpt.TransactionHash.Hex(), "OK", rcpt.Status())
	}
	o.RecordContractCall(from, c.Address(), nil, rcpt.QuotaUsed.Uint64(),
		map[common.Hash]common.Hash{simplestorage.ValueSlot: word(v)})
	return nil
}

func contractCall(ctx context.Context, e *Env) error {
	from := e.Accounts[0].Address()
	o, err := e.NewOracle(from)
	if err != nil {
		return err
	}
	c, err := deploy(ctx, e, o)
	if err != nil {
		return err
	}
	v, err := c.Get()
	if err != nil {
		return err
	}
	if err := oracle.AssertEqual("initial value", uint64(simplestorage.InitialValue), v.Uint64()); err != nil {
		return err
	}
	for _, x := range []uint64{42, 15} {
		if err := set(ctx, o, c, from, x); err != nil {
			return err
		}
		// get() is read-only, repeated calls must return the same word.
		for i := 0; i < 2; i++ {
			raw, err := c.GetRaw()
			if err != nil {
				return err
			}
			if err := oracle.AssertEqual("get() output", word(x).Bytes(), raw); err != nil {
				return err
			}
		}
		if err := o.AssertStorage(c.Address(), simplestorage.ValueSlot); err != nil {
			return err
		}
	}
	return errors.Join(o.AssertBalances(), o.AssertConservation())
}

func getCode(ctx context.Context, e *Env) error {
	c, err := deploy(ctx, e, nil)
	if err != nil {
		return err
	}
	code, err := c.Code()
	if err != nil {
		return err
	}
	size := e.Expect.CodeSize
	if size <= 0 {
		size = simplestorage.RuntimeCodeLen
	}
	if err := oracle.AssertEqual("code size of "+c.Address().Hex(), size, len(code)); err != nil {
		return err
	}
	if size == simplestorage.RuntimeCodeLen {
		return oracle.AssertEqual("code of "+c.Address().Hex(), simplestorage.RuntimeCode, code)
	}
	return nil
}

func storageAt(ctx context.Context, e *Env) error {
	from := e.Accounts[0].Address()
	o, err := e.NewOracle(from)
	if err != nil {
		return err
	}
	c, err := deploy(ctx, e, o)
	if err != nil {
		return err
	}
	if err := o.AssertStorage(c.Address(), simplestorage.ValueSlot); err != nil {
		return err
	}
	if err := set(ctx, o, c, from, 42); err != nil {
		return err
	}
	for i := 0; i < 2; i++ {
		slot, err := c.Slot()
		if err != nil {
			return err
		}
		if err := oracle.AssertEqual("storage slot 0 of "+c.Address().Hex(), word(42), slot); err != nil {
			return err
		}
	}
	return o.AssertStorage(c.Address(), simplestorage.ValueSlot)
}
