package result

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// CallRequest is the first parameter of the read-only call method.
type CallRequest struct {
	From *common.Address `json:"from,omitempty"`
	To   common.Address  `json:"to"`
	Data hexutil.Bytes   `json:"data,omitempty"`
}

// CLIArgs returns command line flags for the cita-cli call command.
func (c CallRequest) CLIArgs() []string {
	var args []string
	if c.From != nil {
		args = append(args, "--from", c.From.Hex())
	}
	args = append(args, "--to", c.To.Hex())
	if len(c.Data) != 0 {
		args = append(args, "--data", c.Data.String())
	}
	return args
}

// SendResult is the result of sendRawTransaction. Nodes name the hash
// field either "hash" or "transactionHash".
type SendResult struct {
	Hash   common.Hash `json:"hash"`
	Status string      `json:"status"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. A bare hash
// string is accepted too.
func (s *SendResult) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		s.Status = ""
		return json.Unmarshal(data, &s.Hash)
	}
	var aux struct {
		Hash            *common.Hash `json:"hash"`
		TransactionHash *common.Hash `json:"transactionHash"`
		Status          string       `json:"status"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	switch {
	case aux.Hash != nil:
		s.Hash = *aux.Hash
	case aux.TransactionHash != nil:
		s.Hash = *aux.TransactionHash
	default:
		s.Hash = common.Hash{}
	}
	s.Status = aux.Status
	return nil
}
