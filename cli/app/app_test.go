package app

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/nspcc-dev/rpcprobe/internal/fakenode"
	"github.com/nspcc-dev/rpcprobe/pkg/crypto/keys"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient/actor"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient/waiter"
	"github.com/nspcc-dev/rpcprobe/pkg/scenario"
	"github.com/nspcc-dev/rpcprobe/pkg/wallet"
	"github.com/stretchr/testify/require"
)

func TestCLIVersion(t *testing.T) {
	e := newExecutor(t)
	e.Run(t, "rpcprobe", "--version")
	e.checkNextLine(t, "^rpcprobe")
	e.checkNextLine(t, "^Version:")
	e.checkNextLine(t, "^GoVersion:")
	e.checkEOF(t)
}

func TestList(t *testing.T) {
	e := newExecutor(t)
	e.Run(t, "rpcprobe", "list")
	for _, s := range scenario.All() {
		e.checkNextLine(t, fmt.Sprintf(`^%s\s+%d\s+\S`, regexp.QuoteMeta(s.Name), s.Accounts))
	}
	e.checkEOF(t)
}

func TestAccounts(t *testing.T) {
	e := newExecutor(t)
	w, err := wallet.NewWallet(nil, keys.MutaScheme)
	require.NoError(t, err)

	e.Run(t, "rpcprobe", "accounts")
	for i, acc := range w.Accounts {
		e.checkNextLine(t, fmt.Sprintf(`^%d\s+%s$`, i, acc.Address().Hex()))
	}
	e.checkEOF(t)

	e.Run(t, "rpcprobe", "accounts", "--keys")
	e.checkNextLine(t, fmt.Sprintf(`^0\s+%s\s+%s$`, w.Accounts[0].Address().Hex(), w.Accounts[0].PrivateKey()))

	e.Run(t, "rpcprobe", "accounts", "--balances", "-r", e.Srv.URL)
	for i, acc := range w.Accounts {
		e.checkNextLine(t, fmt.Sprintf(`^%d\s+%s\s+%s\s+0$`, i, acc.Address().Hex(), fakenode.DefaultGenesisBalance.ToBig()))
	}
	e.checkEOF(t)

	e.Run(t, "rpcprobe", "accounts", "-c", e.writeConfig(t, "Accounts:\n  - "+wallet.DefaultKeys[3]+"\n"))
	e.checkNextLine(t, fmt.Sprintf(`^0\s+%s$`, w.Accounts[3].Address().Hex()))
	e.checkEOF(t)

	e.RunWithError(t, "rpcprobe", "accounts", "extra")
	e.RunWithError(t, "rpcprobe", "accounts", "--balances", "-r", "http://127.0.0.1:1", "--timeout", "100ms")
}

func TestQueryInvoke(t *testing.T) {
	e := newExecutor(t)
	e.Run(t, "rpcprobe", "query", "invoke", "-r", e.Srv.URL, "peerCount")
	e.checkNextLine(t, `^"0x1"$`)
	e.checkEOF(t)

	e.Run(t, "rpcprobe", "query", "invoke", "-r", fakenode.WSEndpoint(e.Srv), "--transport", "ws", "getBlockByNumber", "0x0", "false")
	require.Contains(t, e.Out.String(), `"number": "0x0"`)

	e.RunWithError(t, "rpcprobe", "query", "invoke", "-r", e.Srv.URL)
	e.RunWithError(t, "rpcprobe", "query", "invoke", "-r", e.Srv.URL, "getAbi")
	e.RunWithError(t, "rpcprobe", "query", "invoke", "-r", e.Srv.URL, "--transport", "grpc", "peerCount")
}

func TestQueryTx(t *testing.T) {
	e := newExecutor(t)
	c, err := rpcclient.New(context.Background(), e.Srv.URL, rpcclient.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	acc, err := wallet.NewAccountFromHex(wallet.DefaultKeys[1], keys.MutaScheme)
	require.NoError(t, err)
	a, err := actor.New(c, acc, actor.Options{Poll: waiter.PollConfig{PollInterval: sealInterval, MaxAttempts: 100}})
	require.NoError(t, err)
	h, err := a.SendTransfer(acc.Address(), uint256.NewInt(10), nil)
	require.NoError(t, err)

	cfg := e.writeConfig(t, "")
	e.Run(t, "rpcprobe", "query", "tx", "-c", cfg, "--await", "-v", h.Hex())
	e.checkNextLine(t, `^Hash:\s+`+h.Hex())
	e.checkNextLine(t, `^OnChain:\s+true`)
	e.checkNextLine(t, `^BlockHash:\s+0x`)
	e.checkNextLine(t, `^BlockNumber:\s+\d+`)
	e.checkNextLine(t, `^Status:\s+OK`)
	e.checkNextLine(t, `^QuotaUsed:\s+21000`)
	e.checkNextLine(t, `^From:\s+`+acc.Address().Hex())
	e.checkNextLine(t, `^Index:\s+0`)
	e.checkEOF(t)

	unknown := strings.Repeat("ab", 32)
	e.Run(t, "rpcprobe", "query", "tx", "-r", e.Srv.URL, "0x"+unknown)
	e.checkNextLine(t, `^Hash:\s+0x`+unknown)
	e.checkNextLine(t, `^OnChain:\s+false`)
	e.checkEOF(t)

	e.RunWithError(t, "rpcprobe", "query", "tx", "-r", e.Srv.URL)
	e.RunWithError(t, "rpcprobe", "query", "tx", "-r", e.Srv.URL, "0x1234")
}

func TestRunAndReport(t *testing.T) {
	e := newExecutor(t)
	cfg := e.writeConfig(t, "")

	e.Run(t, "rpcprobe", "run", "-c", cfg, "--scenario", "peer-count", "--scenario", "transfer-balance")
	e.checkNextLine(t, `^PASS\s+peer-count\s+`)
	e.checkNextLine(t, `^PASS\s+transfer-balance\s+`)
	e.checkNextLine(t, `2 passed, 0 failed`)
	e.checkEOF(t)

	e.Run(t, "rpcprobe", "run", "-c", cfg, "--parallel", "-n", "block-by-hash", "-n", "get-code")
	e.checkNextLine(t, `^PASS\s+block-by-hash\s+`)
	e.checkNextLine(t, `^PASS\s+get-code\s+`)

	e.Run(t, "rpcprobe", "report", "list", "-c", cfg)
	line := e.getNextLine(t)
	e.checkLine(t, line, `\s+http\s+`+regexp.QuoteMeta(e.Srv.URL)+`\s+2/2 passed$`)
	id := strings.Fields(line)[0]
	e.checkNextLine(t, `\s+2/2 passed$`)
	e.checkEOF(t)

	e.Run(t, "rpcprobe", "report", "list", "-c", cfg, "--limit", "1")
	e.checkNextLine(t, "^"+id)
	e.checkEOF(t)

	e.Run(t, "rpcprobe", "report", "show", "-c", cfg, id)
	e.checkNextLine(t, `^Started:`)
	e.checkNextLine(t, `^Endpoint:\s+`+regexp.QuoteMeta(e.Srv.URL)+` \(http\)`)
	e.checkNextLine(t, `^Parallel:\s+true`)
	e.checkNextLine(t, `^PASS\s+block-by-hash`)
	e.checkNextLine(t, `^PASS\s+get-code`)
	e.checkEOF(t)

	e.RunWithError(t, "rpcprobe", "report", "show", "-c", cfg)
	e.RunWithError(t, "rpcprobe", "report", "show", "-c", cfg, "not-an-id")
	e.RunWithError(t, "rpcprobe", "report", "show", "-c", cfg, "6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	e.RunWithError(t, "rpcprobe", "report", "list")
}

func TestRunFailures(t *testing.T) {
	cfg := fakenode.DefaultConfig()
	cfg.PeerCount = 3
	e := newExecutorWithConfig(t, cfg)
	path := e.writeConfig(t, "Expect:\n  PeerCount: 1\n")

	e.RunWithError(t, "rpcprobe", "run", "-c", path, "-n", "peer-count", "-n", "block-number")
	e.checkNextLine(t, `^FAIL\s+peer-count\s+`)
	e.checkNextLine(t, `^PASS\s+block-number\s+`)
	e.checkNextLine(t, `1 passed, 1 failed`)

	e.RunWithError(t, "rpcprobe", "run", "-c", path, "-n", "no-such-scenario")
	e.RunWithError(t, "rpcprobe", "run", "-c", e.writeConfig(t, "Unknown: 1\n"))
	e.RunWithError(t, "rpcprobe", "run", "-c", e.writeConfig(t, "Expect:\n  EnsureBlankChain: true\n  GenesisBalance: \"\"\n"))
}
