package emitter_test

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/rpcprobe/internal/fakenode"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc"
	"github.com/nspcc-dev/rpcprobe/pkg/crypto/keys"
	"github.com/nspcc-dev/rpcprobe/pkg/fixture/emitter"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient/actor"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient/waiter"
	"github.com/nspcc-dev/rpcprobe/pkg/wallet"
	"github.com/stretchr/testify/require"
)

func TestCode(t *testing.T) {
	require.Len(t, emitter.RuntimeCode, emitter.RuntimeCodeLen)
	require.Equal(t, emitter.RuntimeCode, emitter.CreationCode[len(emitter.CreationCode)-emitter.RuntimeCodeLen:])
	require.True(t, emitter.IsRuntimeCode(emitter.RuntimeCode))
	require.False(t, emitter.IsRuntimeCode(emitter.CreationCode))
	// keccak256("Emitted(address,uint256,uint256)")
	require.Equal(t, common.BytesToHash(emitter.RuntimeCode[9:41]), emitter.EventID)
}

func TestEncoding(t *testing.T) {
	sender := common.HexToAddress("0x2ae83ce578e4bb7968104b5d7c034af36a771a35")
	topics := emitter.Topics(sender, uint256.NewInt(7))
	require.Len(t, topics, 3)
	require.Equal(t, emitter.EventID, topics[0])
	require.Equal(t, sender, common.BytesToAddress(topics[1].Bytes()))
	require.Equal(t, common.BigToHash(uint256.NewInt(7).ToBig()), topics[2])

	h, err := emitter.UnpackHeight(common.BigToHash(uint256.NewInt(12).ToBig()).Bytes())
	require.NoError(t, err)
	require.Equal(t, uint64(12), h)

	_, err = emitter.UnpackHeight([]byte{1})
	require.Error(t, err)
}

func TestContract(t *testing.T) {
	_, srv := fakenode.NewTestServer(t, fakenode.DefaultConfig(), 10*time.Millisecond)
	c, err := rpcclient.New(context.Background(), srv.URL, rpcclient.Options{})
	require.NoError(t, err)
	acc, err := wallet.NewAccountFromHex(wallet.DefaultKeys[1], keys.MutaScheme)
	require.NoError(t, err)
	a, err := actor.New(c, acc, actor.Options{
		Poll: waiter.PollConfig{PollInterval: 10 * time.Millisecond, MaxAttempts: 50},
	})
	require.NoError(t, err)
	ctx := context.Background()

	ct, rcpt, err := emitter.Deploy(ctx, a, 0)
	require.NoError(t, err)
	require.NotNil(t, rcpt.ContractAddress)
	require.Equal(t, *rcpt.ContractAddress, ct.Address())
	require.Empty(t, rcpt.Logs)

	code, err := c.GetCode(ct.Address(), citarpc.Latest)
	require.NoError(t, err)
	require.Equal(t, emitter.RuntimeCode, code)

	rcpt, err = ct.Emit(ctx, uint256.NewInt(5))
	require.NoError(t, err)
	require.False(t, rcpt.Failed(), rcpt.Status())
	require.Len(t, rcpt.Logs, 1)
	l := rcpt.Logs[0]
	require.Equal(t, ct.Address(), l.Address)
	require.Equal(t, emitter.Topics(acc.Address(), uint256.NewInt(5)), l.Topics)
	require.Equal(t, rcpt.BlockHash, l.BlockHash)
	require.Equal(t, rcpt.TransactionHash, l.TransactionHash)
	h, err := emitter.UnpackHeight(l.Data)
	require.NoError(t, err)
	require.Equal(t, rcpt.BlockNumber.Uint64(), h)

	logs, err := c.GetLogs(citarpc.LogFilter{
		FromBlock: citarpc.Earliest,
		ToBlock:   citarpc.Latest,
		Address:   []common.Address{ct.Address()},
	})
	require.NoError(t, err)
	require.Equal(t, rcpt.Logs, logs)
}
