package result

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type (
	// Block is the result of getBlockByNumber and getBlockByHash. Raw keeps
	// the JSON it was decoded from for structural comparisons.
	Block struct {
		Version Quantity    `json:"version"`
		Hash    common.Hash `json:"hash"`
		Header  Header      `json:"header"`
		Body    Body        `json:"body"`

		Raw json.RawMessage `json:"-"`
	}

	// Header is the block header.
	Header struct {
		Timestamp        Quantity        `json:"timestamp"`
		PrevHash         common.Hash     `json:"prevHash"`
		Number           Quantity        `json:"number"`
		StateRoot        common.Hash     `json:"stateRoot"`
		TransactionsRoot common.Hash     `json:"transactionsRoot"`
		ReceiptsRoot     common.Hash     `json:"receiptsRoot"`
		QuotaUsed        Quantity        `json:"quotaUsed"`
		Proof            json.RawMessage `json:"proof,omitempty"`
		Proposer         common.Address  `json:"proposer"`
	}

	// Body holds block transactions.
	Body struct {
		Transactions []BlockTransaction `json:"transactions"`
	}

	// BlockTransaction is either a bare transaction hash or a full
	// transaction, depending on the includeTxs flag of the request.
	BlockTransaction struct {
		Hash common.Hash
		Full *Transaction
	}

	// Transaction is a mined transaction, the result of getTransaction.
	Transaction struct {
		Hash        common.Hash     `json:"hash"`
		Content     json.RawMessage `json:"content"`
		From        common.Address  `json:"from"`
		BlockNumber Quantity        `json:"blockNumber"`
		BlockHash   common.Hash     `json:"blockHash"`
		Index       Quantity        `json:"index"`
	}
)

// UnmarshalJSON implements the json.Unmarshaler interface.
func (b *Block) UnmarshalJSON(data []byte) error {
	type block Block
	var aux block
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*b = Block(aux)
	b.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Number returns block height.
func (b *Block) Number() uint64 {
	return b.Header.Number.Uint64()
}

// TxHashes returns hashes of all block transactions.
func (b *Block) TxHashes() []common.Hash {
	res := make([]common.Hash, len(b.Body.Transactions))
	for i := range b.Body.Transactions {
		res[i] = b.Body.Transactions[i].Hash
	}
	return res
}

// FindTransaction returns the block transaction with the given hash or nil.
func (b *Block) FindTransaction(h common.Hash) *BlockTransaction {
	for i := range b.Body.Transactions {
		if b.Body.Transactions[i].Hash == h {
			return &b.Body.Transactions[i]
		}
	}
	return nil
}

// MarshalJSON implements the json.Marshaler interface.
func (t BlockTransaction) MarshalJSON() ([]byte, error) {
	if t.Full != nil {
		return json.Marshal(t.Full)
	}
	return json.Marshal(t.Hash)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (t *BlockTransaction) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("empty block transaction")
	}
	if data[0] == '"' {
		t.Full = nil
		return json.Unmarshal(data, &t.Hash)
	}
	full := new(Transaction)
	if err := json.Unmarshal(data, full); err != nil {
		return err
	}
	t.Hash = full.Hash
	t.Full = full
	return nil
}

// ContentBytes decodes transaction content that can be either a hex string
// or an array of byte values.
func (t *Transaction) ContentBytes() ([]byte, error) {
	c := bytes.TrimSpace(t.Content)
	if len(c) == 0 || string(c) == "null" {
		return nil, nil
	}
	if c[0] == '"' {
		var s string
		if err := json.Unmarshal(c, &s); err != nil {
			return nil, err
		}
		if s == "" {
			return nil, nil
		}
		if !strings.HasPrefix(s, "0x") {
			s = "0x" + s
		}
		return hexutil.Decode(s)
	}
	var ints []int
	if err := json.Unmarshal(c, &ints); err != nil {
		return nil, fmt.Errorf("unexpected content format: %w", err)
	}
	arr := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("content byte %d out of range: %d", i, v)
		}
		arr[i] = uint8(v)
	}
	return arr, nil
}
