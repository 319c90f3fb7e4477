package scenario

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc"
	"github.com/nspcc-dev/rpcprobe/pkg/oracle"
	"go.uber.org/zap"
)

func peerCount(_ context.Context, e *Env) error {
	n, err := e.Client.GetPeerCount()
	if err != nil {
		return err
	}
	e.Log.Info("peer count", zap.Uint64("peers", n))
	if e.Expect.PeerCount < 0 {
		return nil
	}
	return oracle.AssertEqual("peer count", uint64(e.Expect.PeerCount), n)
}

func blockNumber(ctx context.Context, e *Env) error {
	h0, err := e.Client.GetBlockNumber()
	if err != nil {
		return err
	}
	if err := e.Sleep(ctx, 2); err != nil {
		return err
	}
	h1, err := e.Client.GetBlockNumber()
	if err != nil {
		return err
	}
	if h1 < h0 {
		return oracle.NewViolation("block number", fmt.Sprintf(">= %d", h0), h1)
	}
	if e.Expect.ActiveBlockProduction && h1 == h0 {
		return oracle.NewViolation("block number", fmt.Sprintf("> %d", h0), h1)
	}
	return nil
}

func blockByHash(_ context.Context, e *Env) error {
	for _, full := range []bool{false, true} {
		b0, err := e.Client.GetBlockByNumber(citarpc.Latest, full)
		if err != nil {
			return err
		}
		b1, err := e.Client.GetBlockByHash(b0.Hash, full)
		if err != nil {
			return err
		}
		if err := oracle.AssertBlocksEqual(b0, b1); err != nil {
			return err
		}
	}
	return nil
}

func blockHeader(_ context.Context, e *Env) error {
	h, err := e.Client.GetBlockNumber()
	if err != nil {
		return err
	}
	for _, tag := range []citarpc.BlockTag{citarpc.Latest, citarpc.Height(h)} {
		hdr, err := e.Client.GetBlockHeader(tag)
		if err != nil {
			return err
		}
		if len(hdr) == 0 || string(hdr) == `""` || string(hdr) == `"0x"` {
			return oracle.NewViolation("header of block "+tag.String(), "non-empty", string(hdr))
		}
	}
	return nil
}

func stateProof(_ context.Context, e *Env) error {
	addr := e.Accounts[0].Address()
	proof, err := e.Client.GetStateProof(addr, common.Hash{}, citarpc.Latest)
	if err != nil {
		return err
	}
	if len(proof) == 0 {
		return oracle.NewViolation("state proof of "+addr.Hex(), "non-empty", "empty")
	}
	return nil
}

func filterBlock(ctx context.Context, e *Env) (err error) {
	id, err := e.Client.NewBlockFilter()
	if err != nil {
		return err
	}
	defer func() {
		ok, uErr := e.Client.UninstallFilter(id)
		if err == nil {
			if uErr != nil {
				err = uErr
			} else if !ok {
				err = oracle.NewViolation("uninstallFilter "+id.String(), true, false)
			}
		}
	}()

	var changes [2][]common.Hash
	for i := range changes {
		if err := e.Sleep(ctx, 2); err != nil {
			return err
		}
		changes[i], err = e.Client.GetBlockFilterChanges(id)
		if err != nil {
			return err
		}
		if e.Expect.ActiveBlockProduction && len(changes[i]) == 0 {
			return oracle.NewViolation(fmt.Sprintf("filter changes #%d", i), "new blocks", "none")
		}
	}
	seen := make(map[common.Hash]bool, len(changes[0]))
	for _, h := range changes[0] {
		seen[h] = true
	}
	for _, h := range changes[1] {
		if seen[h] {
			return oracle.NewViolation("filter changes", "only new blocks", "block "+h.Hex()+" reported twice")
		}
	}
	return nil
}
