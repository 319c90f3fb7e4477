package fakenode

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc/result"
	"github.com/nspcc-dev/rpcprobe/pkg/fixture/simplestorage"
)

type params []json.RawMessage

var rpcHandlers = map[string]func(*Node, params) (interface{}, *citarpc.Error){
	"peerCount":             (*Node).peerCount,
	"blockNumber":           (*Node).blockNumber,
	"getBalance":            (*Node).getBalance,
	"sendRawTransaction":    (*Node).sendRawTransaction,
	"getTransactionReceipt": (*Node).getTransactionReceipt,
	"getTransaction":        (*Node).getTransaction,
	"getTransactionCount":   (*Node).getTransactionCount,
	"getBlockByNumber":      (*Node).getBlockByNumber,
	"getBlockByHash":        (*Node).getBlockByHash,
	"getBlockHeader":        (*Node).getBlockHeader,
	"call":                  (*Node).call,
	"getCode":               (*Node).getCode,
	"getStorageAt":          (*Node).getStorageAt,
	"getTransactionProof":   (*Node).getTransactionProof,
	"getStateProof":         (*Node).getStateProof,
	"getLogs":               (*Node).getLogs,
	"newFilter":             (*Node).newFilter,
	"newBlockFilter":        (*Node).newBlockFilter,
	"getFilterChanges":      (*Node).getFilterChanges,
	"uninstallFilter":       (*Node).uninstallFilter,
}

func (p params) value(i int, v interface{}) *citarpc.Error {
	if i >= len(p) {
		return citarpc.NewInvalidParamsError(fmt.Sprintf("missing parameter %d", i))
	}
	if err := json.Unmarshal(p[i], v); err != nil {
		return citarpc.NewInvalidParamsError(fmt.Sprintf("parameter %d: %s", i, err))
	}
	return nil
}

func (p params) address(i int) (common.Address, *citarpc.Error) {
	var s string
	if err := p.value(i, &s); err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, citarpc.NewInvalidParamsError(fmt.Sprintf("invalid address %q", s))
	}
	return common.HexToAddress(s), nil
}

func (p params) hash(i int) (common.Hash, *citarpc.Error) {
	var h common.Hash
	if err := p.value(i, &h); err != nil {
		return common.Hash{}, err
	}
	return h, nil
}

// heightParam reads an optional height parameter, missing one means latest.
// Node lock must be held.
func (n *Node) heightParam(p params, i int) (uint64, *citarpc.Error) {
	var tag string
	if i < len(p) {
		if err := p.value(i, &tag); err != nil {
			var num uint64
			if json.Unmarshal(p[i], &num) != nil {
				return 0, err
			}
			tag = fmt.Sprintf("0x%x", num)
		}
	}
	h, err := n.resolveHeight(tag)
	if err != nil {
		return 0, citarpc.NewInvalidParamsError(err.Error())
	}
	return h, nil
}

func (p params) flag(i int) (bool, *citarpc.Error) {
	if i >= len(p) {
		return false, nil
	}
	var b bool
	if err := p.value(i, &b); err != nil {
		return false, err
	}
	return b, nil
}

func (p params) quantity(i int) (result.Quantity, *citarpc.Error) {
	var q result.Quantity
	if err := p.value(i, &q); err != nil {
		return q, err
	}
	return q, nil
}

func (n *Node) peerCount(_ params) (interface{}, *citarpc.Error) {
	return result.NewQuantity(n.cfg.PeerCount), nil
}

func (n *Node) blockNumber(_ params) (interface{}, *citarpc.Error) {
	return result.NewQuantity(n.Height()), nil
}

func (n *Node) getBalance(p params) (interface{}, *citarpc.Error) {
	addr, err := p.address(0)
	if err != nil {
		return nil, err
	}
	n.lock.RLock()
	defer n.lock.RUnlock()
	h, err := n.heightParam(p, 1)
	if err != nil {
		return nil, err
	}
	return result.QuantityFromInt(n.st.balance(addr, h)), nil
}

func (n *Node) getTransactionCount(p params) (interface{}, *citarpc.Error) {
	addr, err := p.address(0)
	if err != nil {
		return nil, err
	}
	n.lock.RLock()
	defer n.lock.RUnlock()
	h, err := n.heightParam(p, 1)
	if err != nil {
		return nil, err
	}
	return result.NewQuantity(n.st.nonce(addr, h)), nil
}

func (n *Node) sendRawTransaction(p params) (interface{}, *citarpc.Error) {
	var s string
	if err := p.value(0, &s); err != nil {
		return nil, err
	}
	raw, hErr := hexutil.Decode(s)
	if hErr != nil {
		return nil, citarpc.NewInvalidParamsError(hErr.Error())
	}
	h, err := n.SubmitRaw(raw)
	if err != nil {
		return nil, err
	}
	return result.SendResult{Hash: h, Status: "OK"}, nil
}

func (n *Node) getTransactionReceipt(p params) (interface{}, *citarpc.Error) {
	h, err := p.hash(0)
	if err != nil {
		return nil, err
	}
	n.lock.RLock()
	defer n.lock.RUnlock()
	rec, ok := n.txs[h]
	if !ok {
		return nil, nil
	}
	return rec.receipt, nil
}

func (n *Node) fullTransaction(rec *txRecord) *result.Transaction {
	content, _ := json.Marshal(hexutil.Encode(rec.tx.Bytes()))
	return &result.Transaction{
		Hash:        rec.tx.Hash(),
		Content:     content,
		From:        rec.from,
		BlockNumber: result.NewQuantity(rec.height),
		BlockHash:   n.blocks[rec.height].Hash,
		Index:       result.NewQuantity(rec.index),
	}
}

func (n *Node) getTransaction(p params) (interface{}, *citarpc.Error) {
	h, err := p.hash(0)
	if err != nil {
		return nil, err
	}
	n.lock.RLock()
	defer n.lock.RUnlock()
	rec, ok := n.txs[h]
	if !ok {
		return nil, nil
	}
	return n.fullTransaction(rec), nil
}

// renderBlock returns a copy of the block with full transactions if needed.
// Node lock must be held.
func (n *Node) renderBlock(height uint64, full bool) *result.Block {
	b := n.blocks[height].Block
	if !full {
		return &b
	}
	txs := make([]result.BlockTransaction, len(b.Body.Transactions))
	for i, t := range b.Body.Transactions {
		txs[i] = result.BlockTransaction{Hash: t.Hash, Full: n.fullTransaction(n.txs[t.Hash])}
	}
	b.Body.Transactions = txs
	return &b
}

func (n *Node) getBlockByNumber(p params) (interface{}, *citarpc.Error) {
	full, err := p.flag(1)
	if err != nil {
		return nil, err
	}
	n.lock.RLock()
	defer n.lock.RUnlock()
	h, err := n.heightParam(p, 0)
	if err != nil {
		return nil, nil
	}
	return n.renderBlock(h, full), nil
}

func (n *Node) getBlockByHash(p params) (interface{}, *citarpc.Error) {
	bh, err := p.hash(0)
	if err != nil {
		return nil, err
	}
	full, err := p.flag(1)
	if err != nil {
		return nil, err
	}
	n.lock.RLock()
	defer n.lock.RUnlock()
	h, ok := n.byHash[bh]
	if !ok {
		return nil, nil
	}
	return n.renderBlock(h, full), nil
}

func (n *Node) getBlockHeader(p params) (interface{}, *citarpc.Error) {
	n.lock.RLock()
	defer n.lock.RUnlock()
	h, err := n.heightParam(p, 0)
	if err != nil {
		return nil, err
	}
	return hexutil.Bytes(n.blocks[h].headerBytes), nil
}

func (n *Node) call(p params) (interface{}, *citarpc.Error) {
	var req result.CallRequest
	if err := p.value(0, &req); err != nil {
		return nil, err
	}
	n.lock.RLock()
	defer n.lock.RUnlock()
	h, err := n.heightParam(p, 1)
	if err != nil {
		return nil, err
	}
	if !simplestorage.IsRuntimeCode(n.st.code(req.To, h)) {
		return hexutil.Bytes{}, nil
	}
	if len(req.Data) >= 4 && bytes.Equal(req.Data[:4], simplestorage.GetSelector) {
		return hexutil.Bytes(n.st.storage(req.To, simplestorage.ValueSlot, h).Bytes()), nil
	}
	return hexutil.Bytes{}, nil
}

func (n *Node) getCode(p params) (interface{}, *citarpc.Error) {
	addr, err := p.address(0)
	if err != nil {
		return nil, err
	}
	n.lock.RLock()
	defer n.lock.RUnlock()
	h, err := n.heightParam(p, 1)
	if err != nil {
		return nil, err
	}
	return hexutil.Bytes(n.st.code(addr, h)), nil
}

func (n *Node) getStorageAt(p params) (interface{}, *citarpc.Error) {
	addr, err := p.address(0)
	if err != nil {
		return nil, err
	}
	key, err := p.hash(1)
	if err != nil {
		return nil, err
	}
	n.lock.RLock()
	defer n.lock.RUnlock()
	h, err := n.heightParam(p, 2)
	if err != nil {
		return nil, err
	}
	return n.st.storage(addr, key, h), nil
}

func (n *Node) getTransactionProof(p params) (interface{}, *citarpc.Error) {
	th, err := p.hash(0)
	if err != nil {
		return nil, err
	}
	n.lock.RLock()
	defer n.lock.RUnlock()
	rec, ok := n.txs[th]
	if !ok {
		return nil, citarpc.NewInvalidParamsError(fmt.Sprintf("unknown transaction %s", th))
	}
	proof := append([]byte(nil), rec.tx.Bytes()...)
	proof = append(proof, n.blocks[rec.height].headerBytes...)
	proof = binary.BigEndian.AppendUint64(proof, rec.index)
	return hexutil.Bytes(proof), nil
}

func (n *Node) getStateProof(p params) (interface{}, *citarpc.Error) {
	addr, err := p.address(0)
	if err != nil {
		return nil, err
	}
	key, err := p.hash(1)
	if err != nil {
		return nil, err
	}
	n.lock.RLock()
	defer n.lock.RUnlock()
	h, err := n.heightParam(p, 2)
	if err != nil {
		return nil, err
	}
	proof := append([]byte(nil), n.blocks[h].Header.StateRoot.Bytes()...)
	proof = append(proof, addr.Bytes()...)
	proof = append(proof, key.Bytes()...)
	proof = append(proof, n.st.storage(addr, key, h).Bytes()...)
	b := n.st.balance(addr, h).Bytes32()
	proof = append(proof, b[:]...)
	return hexutil.Bytes(proof), nil
}

// logBound resolves a filter block bound. Unlike heightParam it accepts
// heights that are not reached yet. Node lock must be held.
func (n *Node) logBound(tag citarpc.BlockTag) (uint64, *citarpc.Error) {
	if q, err := result.ParseQuantity(string(tag)); err == nil && q.IsUint64() {
		return q.Uint64(), nil
	}
	h, err := n.resolveHeight(string(tag))
	if err != nil {
		return 0, citarpc.NewInvalidParamsError(err.Error())
	}
	return h, nil
}

func followsHead(tag citarpc.BlockTag) bool {
	return tag == "" || tag == citarpc.Latest || tag == "pending"
}

// logs returns logs matching the filter in [from, to]. Node lock must be held.
func (n *Node) logs(f citarpc.LogFilter, from, to uint64) []result.Log {
	res := make([]result.Log, 0)
	for h := from; h <= to && h <= n.height(); h++ {
		for _, tx := range n.blocks[h].Body.Transactions {
			for _, l := range n.txs[tx.Hash].receipt.Logs {
				if f.Matches(l) {
					res = append(res, l)
				}
			}
		}
	}
	return res
}

func (n *Node) getLogs(p params) (interface{}, *citarpc.Error) {
	var f citarpc.LogFilter
	if err := p.value(0, &f); err != nil {
		return nil, err
	}
	n.lock.RLock()
	defer n.lock.RUnlock()
	from, err := n.logBound(f.FromBlock)
	if err != nil {
		return nil, err
	}
	to, err := n.logBound(f.ToBlock)
	if err != nil {
		return nil, err
	}
	return n.logs(f, from, to), nil
}

func (n *Node) newFilter(p params) (interface{}, *citarpc.Error) {
	var f citarpc.LogFilter
	if err := p.value(0, &f); err != nil {
		return nil, err
	}
	n.lock.Lock()
	defer n.lock.Unlock()
	for _, tag := range []citarpc.BlockTag{f.FromBlock, f.ToBlock} {
		if _, err := n.logBound(tag); err != nil {
			return nil, err
		}
	}
	n.lastID++
	n.filters[n.lastID] = &filter{last: n.height(), logs: &f}
	return result.NewQuantity(n.lastID), nil
}

func (n *Node) newBlockFilter(_ params) (interface{}, *citarpc.Error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.lastID++
	n.filters[n.lastID] = &filter{last: n.height()}
	return result.NewQuantity(n.lastID), nil
}

func (n *Node) getFilterChanges(p params) (interface{}, *citarpc.Error) {
	id, err := p.quantity(0)
	if err != nil {
		return nil, err
	}
	n.lock.Lock()
	defer n.lock.Unlock()
	f, ok := n.filters[id.Uint64()]
	if !ok {
		return nil, citarpc.NewInvalidParamsError("filter not found")
	}
	if f.logs != nil {
		// Changes are new blocks anyway, so only fixed bounds narrow them.
		from, to := f.last+1, n.height()
		if !followsHead(f.logs.FromBlock) {
			lo, err := n.logBound(f.logs.FromBlock)
			if err != nil {
				return nil, err
			}
			if lo > from {
				from = lo
			}
		}
		if !followsHead(f.logs.ToBlock) {
			hi, err := n.logBound(f.logs.ToBlock)
			if err != nil {
				return nil, err
			}
			if hi < to {
				to = hi
			}
		}
		f.last = n.height()
		return n.logs(*f.logs, from, to), nil
	}
	res := make([]common.Hash, 0)
	for h := f.last + 1; h <= n.height(); h++ {
		res = append(res, n.blocks[h].Hash)
	}
	f.last = n.height()
	return res, nil
}

func (n *Node) uninstallFilter(p params) (interface{}, *citarpc.Error) {
	id, err := p.quantity(0)
	if err != nil {
		return nil, err
	}
	n.lock.Lock()
	defer n.lock.Unlock()
	_, ok := n.filters[id.Uint64()]
	delete(n.filters, id.Uint64())
	return ok, nil
}
