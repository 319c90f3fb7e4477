package result

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Receipt is the result of getTransactionReceipt. BlockNumber is nil for
// transactions that are not mined yet.
type Receipt struct {
	TransactionHash     common.Hash     `json:"transactionHash"`
	TransactionIndex    Quantity        `json:"transactionIndex"`
	BlockHash           common.Hash     `json:"blockHash"`
	BlockNumber         *Quantity       `json:"blockNumber"`
	CumulativeQuotaUsed Quantity        `json:"cumulativeQuotaUsed"`
	QuotaUsed           Quantity        `json:"quotaUsed"`
	ContractAddress     *common.Address `json:"contractAddress"`
	Logs                []Log           `json:"logs"`
	Root                *string         `json:"root"`
	ErrorMessage        *string         `json:"errorMessage"`
}

// Log is an event emitted during transaction execution.
type Log struct {
	Address             common.Address `json:"address"`
	Topics              []common.Hash  `json:"topics"`
	Data                hexutil.Bytes  `json:"data"`
	BlockHash           common.Hash    `json:"blockHash"`
	BlockNumber         Quantity       `json:"blockNumber"`
	TransactionHash     common.Hash    `json:"transactionHash"`
	TransactionIndex    Quantity       `json:"transactionIndex"`
	LogIndex            Quantity       `json:"logIndex"`
	TransactionLogIndex Quantity       `json:"transactionLogIndex"`
}

// Mined returns true when the receipt has a block number.
func (r *Receipt) Mined() bool {
	return r.BlockNumber != nil
}

// Failed returns true when the node reported an execution error.
func (r *Receipt) Failed() bool {
	return r.ErrorMessage != nil && *r.ErrorMessage != ""
}

// Status returns the execution error message or "OK".
func (r *Receipt) Status() string {
	if r.Failed() {
		return *r.ErrorMessage
	}
	return "OK"
}
