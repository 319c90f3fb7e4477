package waiter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc/result"
	"github.com/stretchr/testify/require"
)

type receiptFunc func(call int) (*result.Receipt, error)

type pollMock struct {
	ctx   context.Context
	lock  sync.Mutex
	calls int
	f     receiptFunc
}

func (p *pollMock) Context() context.Context {
	return p.ctx
}

func (p *pollMock) GetTransactionReceipt(h common.Hash) (*result.Receipt, error) {
	p.lock.Lock()
	p.calls++
	n := p.calls
	p.lock.Unlock()
	return p.f(n)
}

func (p *pollMock) Calls() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.calls
}

var testTx = common.HexToHash("0x5a6d3e1f03d9a04d2fd3b0c4e41f6f6d0b0d6ccdcd1fb0bdd91c77d1cf3b3f11")

func mined(h common.Hash, height uint64) *result.Receipt {
	n := result.NewQuantity(height)
	return &result.Receipt{TransactionHash: h, BlockNumber: &n}
}

func fastConfig(attempts int) PollConfig {
	return PollConfig{PollInterval: 10 * time.Millisecond, MaxAttempts: attempts}
}

func TestDefaults(t *testing.T) {
	w := NewPollingBased(&pollMock{ctx: context.Background()}, PollConfig{})
	require.Equal(t, DefaultPollInterval, w.Config().PollInterval)
	require.Equal(t, DefaultMaxAttempts, w.Config().MaxAttempts)

	_, ok := New(struct{}{}, PollConfig{}).(Null)
	require.True(t, ok)
	_, err := NewNull().Wait(testTx, nil)
	require.ErrorIs(t, err, ErrAwaitingNotSupported)
	_, ok = New(&pollMock{ctx: context.Background()}, PollConfig{}).(*PollingBased)
	require.True(t, ok)
}

func TestWaitConfirmed(t *testing.T) {
	pendingReceipt := &result.Receipt{TransactionHash: testTx}
	m := &pollMock{ctx: context.Background(), f: func(call int) (*result.Receipt, error) {
		switch call {
		case 1:
			return nil, nil
		case 2:
			return pendingReceipt, nil
		default:
			return mined(testTx, 7), nil
		}
	}}
	w := NewPollingBased(m, fastConfig(5))
	r, err := w.WaitForReceipt(context.Background(), testTx)
	require.NoError(t, err)
	require.EqualValues(t, 7, r.BlockNumber.Uint64())
	require.Equal(t, 3, m.Calls())
}

func TestWaitTimeout(t *testing.T) {
	m := &pollMock{ctx: context.Background(), f: func(int) (*result.Receipt, error) { return nil, nil }}
	w := NewPollingBased(m, fastConfig(3))
	_, err := w.WaitForReceipt(context.Background(), testTx)
	require.ErrorIs(t, err, ErrConfirmationTimeout)

	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	require.Equal(t, testTx, te.Hash)
	require.Equal(t, 3, te.Attempts)
	require.Equal(t, 3, m.Calls())
}

func TestWaitMismatch(t *testing.T) {
	other := common.HexToHash("0x01")
	m := &pollMock{ctx: context.Background(), f: func(int) (*result.Receipt, error) { return mined(other, 1), nil }}
	w := NewPollingBased(m, fastConfig(5))
	_, err := w.WaitForReceipt(context.Background(), testTx)
	require.ErrorIs(t, err, ErrReceiptMismatch)

	var me *MismatchError
	require.True(t, errors.As(err, &me))
	require.Equal(t, testTx, me.Expected)
	require.Equal(t, other, me.Got)
	require.Equal(t, 1, m.Calls(), "mismatch must not be retried")

	t.Run("pending", func(t *testing.T) {
		m := &pollMock{ctx: context.Background(), f: func(int) (*result.Receipt, error) {
			return &result.Receipt{TransactionHash: other}, nil
		}}
		w := NewPollingBased(m, fastConfig(3))
		_, err := w.WaitForReceipt(context.Background(), testTx)
		require.ErrorIs(t, err, ErrReceiptMismatch)
		require.False(t, errors.Is(err, ErrConfirmationTimeout))
		require.Equal(t, 1, m.Calls())
	})
}

func TestWaitNodeError(t *testing.T) {
	m := &pollMock{ctx: context.Background(), f: func(int) (*result.Receipt, error) {
		return nil, citarpc.NewInternalError("db is down")
	}}
	w := NewPollingBased(m, fastConfig(5))
	_, err := w.WaitForReceipt(context.Background(), testTx)
	require.ErrorIs(t, err, citarpc.NewInternalError(""))
	require.Equal(t, 1, m.Calls(), "node errors must not be retried")
}

func TestWaitSendError(t *testing.T) {
	m := &pollMock{ctx: context.Background()}
	w := NewPollingBased(m, fastConfig(5))
	sendErr := errors.New("rejected")
	_, err := w.Wait(testTx, sendErr)
	require.Equal(t, sendErr, err)
	require.Equal(t, 0, m.Calls())
}

func TestWaitContext(t *testing.T) {
	t.Run("argument", func(t *testing.T) {
		m := &pollMock{ctx: context.Background(), f: func(int) (*result.Receipt, error) { return nil, nil }}
		w := NewPollingBased(m, PollConfig{PollInterval: time.Hour, MaxAttempts: 1})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := w.WaitForReceipt(ctx, testTx)
		require.ErrorIs(t, err, ErrContextDone)
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 0, m.Calls())
	})
	t.Run("client", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		m := &pollMock{ctx: ctx, f: func(int) (*result.Receipt, error) { return nil, nil }}
		w := NewPollingBased(m, PollConfig{PollInterval: time.Hour, MaxAttempts: 1})
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		_, err := w.Wait(testTx, nil)
		require.ErrorIs(t, err, ErrContextDone)
	})
}
