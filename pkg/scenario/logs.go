package scenario

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc/result"
	"github.com/nspcc-dev/rpcprobe/pkg/fixture/emitter"
	"github.com/nspcc-dev/rpcprobe/pkg/oracle"
	"go.uber.org/zap"
)

// logView is the part of a log every method reporting it must agree on.
type logView struct {
	Address     common.Address
	Topics      []common.Hash
	Data        string
	BlockHash   common.Hash
	BlockNumber uint64
	Tx          common.Hash
}

func viewOf(l result.Log) logView {
	return logView{
		Address:     l.Address,
		Topics:      l.Topics,
		Data:        common.Bytes2Hex(l.Data),
		BlockHash:   l.BlockHash,
		BlockNumber: l.BlockNumber.Uint64(),
		Tx:          l.TransactionHash,
	}
}

// emit deploys the emitter on behalf of the first leased account, calls it
// once and checks the receipt log.
func emit(ctx context.Context, e *Env) (*emitter.Contract, result.Log, error) {
	from := e.Accounts[0].Address()
	o, err := e.NewOracle(from)
	if err != nil {
		return nil, result.Log{}, err
	}
	a, err := e.NewActor(e.Accounts[0])
	if err != nil {
		return nil, result.Log{}, err
	}
	c, rcpt, err := emitter.Deploy(ctx, a, 0)
	if err != nil {
		if rcpt != nil && rcpt.Failed() {
			o.RecordFailure(from, rcpt.QuotaUsed.Uint64())
		}
		return nil, result.Log{}, errors.Join(err, o.AssertBalances())
	}
	o.RecordContractCall(from, c.Address(), nil, rcpt.QuotaUsed.Uint64(), nil)
	e.Log.Info("emitter deployed", zap.Stringer("address", c.Address()), zap.Stringer("block", rcpt.BlockNumber))

	value := uint256.NewInt(rcpt.BlockNumber.Uint64())
	rcpt, err = c.Emit(ctx, value)
	if err != nil {
		return nil, result.Log{}, err
	}
	if rcpt.Failed() {
		o.RecordFailure(from, rcpt.QuotaUsed.Uint64())
		return nil, result.Log{}, oracle.NewViolation("status of emitting transaction "+rcpt.TransactionHash.Hex(), "OK", rcpt.Status())
	}
	o.RecordContractCall(from, c.Address(), nil, rcpt.QuotaUsed.Uint64(), nil)
	if err := errors.Join(o.AssertBalances(), o.AssertConservation()); err != nil {
		return nil, result.Log{}, err
	}

	if len(rcpt.Logs) != 1 {
		return nil, result.Log{}, oracle.NewViolation("logs of "+rcpt.TransactionHash.Hex(), 1, len(rcpt.Logs))
	}
	l := rcpt.Logs[0]
	h, err := emitter.UnpackHeight(l.Data)
	if err != nil {
		return nil, result.Log{}, err
	}
	return c, l, errors.Join(
		oracle.AssertEqual("log address", c.Address(), l.Address),
		oracle.AssertEqual("log topics", emitter.Topics(from, value), l.Topics),
		oracle.AssertEqual("log block hash", rcpt.BlockHash, l.BlockHash),
		oracle.AssertEqual("log height", rcpt.BlockNumber.Uint64(), h),
	)
}

// assertLogs checks that every log matches the filter and the expected one
// is among them. When exact is set nothing else is allowed.
func assertLogs(subject string, f citarpc.LogFilter, logs []result.Log, expected result.Log, exact bool) error {
	var found bool
	for _, l := range logs {
		if !f.Matches(l) {
			return oracle.NewViolation(subject, "logs matching the filter", viewOf(l))
		}
		if l.TransactionHash == expected.TransactionHash && l.TransactionLogIndex.Cmp(expected.TransactionLogIndex) == 0 {
			if err := oracle.AssertEqual(subject, viewOf(expected), viewOf(l)); err != nil {
				return err
			}
			found = true
		}
	}
	if !found {
		return oracle.NewViolation(subject, viewOf(expected), fmt.Sprintf("%d logs without it", len(logs)))
	}
	if exact && len(logs) != 1 {
		return oracle.NewViolation(subject+" count", 1, len(logs))
	}
	return nil
}

func getLogs(ctx context.Context, e *Env) error {
	c, l, err := emit(ctx, e)
	if err != nil {
		return err
	}
	at := citarpc.Height(l.BlockNumber.Uint64())
	value := l.Topics[2]
	for _, tc := range []struct {
		name  string
		f     citarpc.LogFilter
		exact bool
	}{
		{"by block and address", citarpc.LogFilter{FromBlock: at, ToBlock: at, Address: []common.Address{c.Address()}}, true},
		{"by event", citarpc.LogFilter{FromBlock: at, ToBlock: at, Topics: []*common.Hash{&emitter.EventID}}, false},
		{"by event and value", citarpc.LogFilter{FromBlock: citarpc.Earliest, Topics: []*common.Hash{&emitter.EventID, nil, &value}}, false},
	} {
		logs, err := e.Client.GetLogs(tc.f)
		if err != nil {
			return fmt.Errorf("getLogs %s: %w", tc.name, err)
		}
		if err := assertLogs("getLogs "+tc.name, tc.f, logs, l, tc.exact); err != nil {
			return err
		}
	}
	return nil
}

func filterLogs(ctx context.Context, e *Env) (err error) {
	a, err := e.NewActor(e.Accounts[0])
	if err != nil {
		return err
	}
	// The filters have to be installed before the emitting call, so the
	// contract address is predicted.
	addr, err := a.PredictContractAddress()
	if err != nil {
		return err
	}
	filters := []citarpc.LogFilter{
		{FromBlock: citarpc.Earliest, ToBlock: citarpc.Latest, Address: []common.Address{addr}},
		{Address: []common.Address{addr}},
	}
	ids := make([]result.Quantity, 0, len(filters))
	defer func() {
		for _, id := range ids {
			ok, uErr := e.Client.UninstallFilter(id)
			if err == nil {
				if uErr != nil {
					err = uErr
				} else if !ok {
					err = oracle.NewViolation("uninstallFilter "+id.String(), true, false)
				}
			}
		}
	}()
	for _, f := range filters {
		id, err := e.Client.NewFilter(f)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	c, l, err := emit(ctx, e)
	if err != nil {
		return err
	}
	if err := oracle.AssertEqual("emitter address", addr, c.Address()); err != nil {
		return err
	}
	for i, id := range ids {
		logs, err := e.Client.GetFilterLogs(id)
		if err != nil {
			return err
		}
		subject := fmt.Sprintf("log filter #%d changes", i)
		if err := assertLogs(subject, filters[i], logs, l, true); err != nil {
			return err
		}
		logs, err = e.Client.GetFilterLogs(id)
		if err != nil {
			return err
		}
		if len(logs) != 0 {
			return oracle.NewViolation(subject, "only new logs", fmt.Sprintf("%d logs reported twice", len(logs)))
		}
	}
	return nil
}
