package rpcclient

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc/result"
	"github.com/nspcc-dev/rpcprobe/pkg/core/transaction"
)

// GetPeerCount returns the number of peers connected to the node.
func (c *Client) GetPeerCount() (uint64, error) {
	var resp result.Quantity
	if err := c.performRequest("peerCount", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Uint64(), nil
}

// GetBlockNumber returns the height of the latest block.
func (c *Client) GetBlockNumber() (uint64, error) {
	var resp result.Quantity
	if err := c.performRequest("blockNumber", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Uint64(), nil
}

// GetBalance returns the balance of the account at the given height.
func (c *Client) GetBalance(addr common.Address, height citarpc.BlockTag) (*uint256.Int, error) {
	var (
		params = []interface{}{addr, height}
		resp   result.Quantity
	)
	if err := c.performRequest("getBalance", params, &resp); err != nil {
		return nil, err
	}
	return resp.Int(), nil
}

// SendRawTransaction submits the signed transaction and returns the hash
// reported by the node.
func (c *Client) SendRawTransaction(tx *transaction.Signed) (common.Hash, error) {
	return c.SendRawTransactionHex(tx.Hex())
}

// SendRawTransactionHex submits a hex-encoded signed transaction.
func (c *Client) SendRawTransactionHex(tx string) (common.Hash, error) {
	var resp result.SendResult
	if err := c.performRequest("sendRawTransaction", []interface{}{tx}, &resp); err != nil {
		return common.Hash{}, err
	}
	if resp.Hash == (common.Hash{}) {
		return common.Hash{}, errors.New("sendRawTransaction: no transaction hash returned")
	}
	return resp.Hash, nil
}

// GetTransactionReceipt returns the receipt of the transaction. Nil receipt
// and nil error mean the node doesn't know the transaction yet.
func (c *Client) GetTransactionReceipt(hash common.Hash) (*result.Receipt, error) {
	var resp *result.Receipt
	if err := c.performRequest("getTransactionReceipt", []interface{}{hash}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetTransaction returns a mined transaction.
func (c *Client) GetTransaction(hash common.Hash) (*result.Transaction, error) {
	var resp *result.Transaction
	if err := c.performRequest("getTransaction", []interface{}{hash}, &resp); err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("getTransaction: transaction %s not found", hash)
	}
	return resp, nil
}

// GetTransactionCount returns the number of transactions sent from the
// account up to the given height.
func (c *Client) GetTransactionCount(addr common.Address, height citarpc.BlockTag) (uint64, error) {
	var resp result.Quantity
	if err := c.performRequest("getTransactionCount", []interface{}{addr, height}, &resp); err != nil {
		return 0, err
	}
	return resp.Uint64(), nil
}

// GetBlockByNumber returns the block at the given height, full transactions
// are included if requested.
func (c *Client) GetBlockByNumber(height citarpc.BlockTag, full bool) (*result.Block, error) {
	return c.getBlock("getBlockByNumber", height, full)
}

// GetBlockByHash returns the block with the given hash.
func (c *Client) GetBlockByHash(hash common.Hash, full bool) (*result.Block, error) {
	return c.getBlock("getBlockByHash", hash, full)
}

func (c *Client) getBlock(method string, param interface{}, full bool) (*result.Block, error) {
	var resp *result.Block
	if err := c.performRequest(method, []interface{}{param, full}, &resp); err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("%s: block %v not found", method, param)
	}
	return resp, nil
}

// GetBlockHeader returns the block header in the node-specific encoding.
func (c *Client) GetBlockHeader(height citarpc.BlockTag) (json.RawMessage, error) {
	var resp json.RawMessage
	if err := c.performRequest("getBlockHeader", []interface{}{height}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Call executes a read-only contract call. No transaction is created.
func (c *Client) Call(req result.CallRequest, height citarpc.BlockTag) ([]byte, error) {
	return c.getBytes("call", req, height)
}

// GetCode returns the runtime code of the contract.
func (c *Client) GetCode(addr common.Address, height citarpc.BlockTag) ([]byte, error) {
	return c.getBytes("getCode", addr, height)
}

// GetStorageAt returns the storage word of the contract.
func (c *Client) GetStorageAt(addr common.Address, key common.Hash, height citarpc.BlockTag) (common.Hash, error) {
	b, err := c.getBytes("getStorageAt", addr, key, height)
	if err != nil {
		return common.Hash{}, err
	}
	if len(b) > common.HashLength {
		return common.Hash{}, fmt.Errorf("getStorageAt: %d bytes returned", len(b))
	}
	return common.BytesToHash(b), nil
}

// GetTransactionProof returns the inclusion proof of the transaction.
func (c *Client) GetTransactionProof(hash common.Hash) ([]byte, error) {
	return c.getBytes("getTransactionProof", hash)
}

// GetStateProof returns the proof of the storage slot of the account.
func (c *Client) GetStateProof(addr common.Address, key common.Hash, height citarpc.BlockTag) ([]byte, error) {
	return c.getBytes("getStateProof", addr, key, height)
}

func (c *Client) getBytes(method string, params ...interface{}) ([]byte, error) {
	var resp hexutil.Bytes
	if err := c.performRequest(method, params, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// NewBlockFilter installs a block filter and returns its ID.
func (c *Client) NewBlockFilter() (result.Quantity, error) {
	var resp result.Quantity
	if err := c.performRequest("newBlockFilter", nil, &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// GetLogs returns logs matching the filter.
func (c *Client) GetLogs(f citarpc.LogFilter) ([]result.Log, error) {
	var resp []result.Log
	if err := c.performRequest("getLogs", []interface{}{f}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// NewFilter installs a log filter and returns its ID.
func (c *Client) NewFilter(f citarpc.LogFilter) (result.Quantity, error) {
	var resp result.Quantity
	if err := c.performRequest("newFilter", []interface{}{f}, &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// GetFilterLogs returns logs matched by the log filter since the last poll.
func (c *Client) GetFilterLogs(id result.Quantity) ([]result.Log, error) {
	var resp []result.Log
	if err := c.performRequest("getFilterChanges", []interface{}{id}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetFilterChanges returns raw changes of the filter since the last poll.
func (c *Client) GetFilterChanges(id result.Quantity) ([]json.RawMessage, error) {
	var resp []json.RawMessage
	if err := c.performRequest("getFilterChanges", []interface{}{id}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetBlockFilterChanges returns hashes of blocks added since the last poll
// of the block filter.
func (c *Client) GetBlockFilterChanges(id result.Quantity) ([]common.Hash, error) {
	var resp []common.Hash
	if err := c.performRequest("getFilterChanges", []interface{}{id}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// UninstallFilter removes the filter.
func (c *Client) UninstallFilter(id result.Quantity) (bool, error) {
	var resp bool
	if err := c.performRequest("uninstallFilter", []interface{}{id}, &resp); err != nil {
		return false, err
	}
	return resp, nil
}
