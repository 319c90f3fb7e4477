package simplestorage_test

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/rpcprobe/internal/fakenode"
	"github.com/nspcc-dev/rpcprobe/pkg/crypto/keys"
	"github.com/nspcc-dev/rpcprobe/pkg/fixture/simplestorage"
	"github.com/nspcc-dev/rpcprobe/pkg/oracle"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient/actor"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient/waiter"
	"github.com/nspcc-dev/rpcprobe/pkg/wallet"
	"github.com/stretchr/testify/require"
)

func TestCode(t *testing.T) {
	require.Len(t, simplestorage.RuntimeCode, simplestorage.RuntimeCodeLen)
	require.True(t, simplestorage.IsRuntimeCode(simplestorage.RuntimeCode))
	require.False(t, simplestorage.IsRuntimeCode(simplestorage.CreationCode))
	require.Equal(t, byte(0x60), simplestorage.RuntimeCode[0])
}

func TestEncoding(t *testing.T) {
	require.Equal(t, simplestorage.GetSelector, simplestorage.PackGet())

	in, err := simplestorage.PackSet(uint256.NewInt(42))
	require.NoError(t, err)
	require.Len(t, in, 4+32)
	require.Equal(t, simplestorage.SetSelector, in[:4])
	require.Equal(t, byte(42), in[35])

	word := common.Hash(uint256.NewInt(simplestorage.InitialValue).Bytes32())
	v, err := simplestorage.UnpackGet(word.Bytes())
	require.NoError(t, err)
	require.Equal(t, uint64(simplestorage.InitialValue), v.Uint64())

	_, err = simplestorage.UnpackGet([]byte{1, 2, 3})
	require.Error(t, err)
}

func newActor(t *testing.T) (*actor.Actor, *rpcclient.Client) {
	_, srv := fakenode.NewTestServer(t, fakenode.DefaultConfig(), 10*time.Millisecond)
	c, err := rpcclient.New(context.Background(), srv.URL, rpcclient.Options{})
	require.NoError(t, err)
	acc, err := wallet.NewAccountFromHex(wallet.DefaultKeys[2], keys.MutaScheme)
	require.NoError(t, err)
	a, err := actor.New(c, acc, actor.Options{
		Poll: waiter.PollConfig{PollInterval: 10 * time.Millisecond, MaxAttempts: 50},
	})
	require.NoError(t, err)
	return a, c
}

func TestContract(t *testing.T) {
	a, c := newActor(t)
	ctx := context.Background()

	ct, rcpt, err := simplestorage.Deploy(ctx, a, c, 0)
	require.NoError(t, err)
	require.NotNil(t, rcpt.ContractAddress)
	require.Equal(t, *rcpt.ContractAddress, ct.Address())

	code, err := ct.Code()
	require.NoError(t, err)
	require.Equal(t, simplestorage.RuntimeCode, code)

	v, err := ct.Get()
	require.NoError(t, err)
	require.Equal(t, uint64(simplestorage.InitialValue), v.Uint64())

	for _, x := range []uint64{42, 15} {
		rcpt, err := ct.Set(ctx, uint256.NewInt(x))
		require.NoError(t, err)
		require.False(t, rcpt.Failed(), rcpt.Status())

		raw, err := ct.GetRaw()
		require.NoError(t, err)
		require.Equal(t, common.Hash(uint256.NewInt(x).Bytes32()).Bytes(), raw)

		v, err := ct.Get()
		require.NoError(t, err)
		require.Equal(t, x, v.Uint64())

		slot, err := ct.Slot()
		require.NoError(t, err)
		require.Equal(t, common.Hash(uint256.NewInt(x).Bytes32()), slot)
	}

	bound := simplestorage.NewContract(ct.Address(), a, c)
	v, err = bound.Get()
	require.NoError(t, err)
	require.Equal(t, uint64(15), v.Uint64())
}

func TestDeployFailed(t *testing.T) {
	a, c := newActor(t)
	quota := oracle.DefaultFeeModel().IntrinsicQuota(simplestorage.CreationCode) + 1
	_, rcpt, err := simplestorage.Deploy(context.Background(), a, c, quota)
	require.ErrorIs(t, err, simplestorage.ErrDeployFailed)
	require.NotNil(t, rcpt)
	require.Equal(t, fakenode.ErrMsgOutOfQuota, rcpt.Status())
}
