package citarpc

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc/result"
)

// LogFilter is the parameter of getLogs and newFilter. Empty block bounds
// mean the latest block. Topics are matched by position, a nil topic
// matches anything.
type LogFilter struct {
	FromBlock BlockTag         `json:"fromBlock,omitempty"`
	ToBlock   BlockTag         `json:"toBlock,omitempty"`
	Address   []common.Address `json:"-"`
	Topics    []*common.Hash   `json:"topics,omitempty"`
}

type logFilterAux struct {
	FromBlock BlockTag        `json:"fromBlock,omitempty"`
	ToBlock   BlockTag        `json:"toBlock,omitempty"`
	Address   json.RawMessage `json:"address,omitempty"`
	Topics    []*common.Hash  `json:"topics,omitempty"`
}

// MarshalJSON implements the json.Marshaler interface. A single address is
// encoded as a string, several ones as an array.
func (f LogFilter) MarshalJSON() ([]byte, error) {
	aux := logFilterAux{FromBlock: f.FromBlock, ToBlock: f.ToBlock, Topics: f.Topics}
	var err error
	switch len(f.Address) {
	case 0:
	case 1:
		aux.Address, err = json.Marshal(f.Address[0])
	default:
		aux.Address, err = json.Marshal(f.Address)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(aux)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (f *LogFilter) UnmarshalJSON(data []byte) error {
	var aux logFilterAux
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*f = LogFilter{FromBlock: aux.FromBlock, ToBlock: aux.ToBlock, Topics: aux.Topics}
	if len(aux.Address) == 0 || string(aux.Address) == "null" {
		return nil
	}
	if aux.Address[0] == '[' {
		return json.Unmarshal(aux.Address, &f.Address)
	}
	var a common.Address
	if err := json.Unmarshal(aux.Address, &a); err != nil {
		return fmt.Errorf("bad filter address: %w", err)
	}
	f.Address = []common.Address{a}
	return nil
}

// CLIArgs returns cita-cli flags for the filter. A wildcard topic is
// passed as "null".
func (f LogFilter) CLIArgs() []string {
	var args []string
	for _, a := range f.Address {
		args = append(args, "--address", a.Hex())
	}
	for _, t := range f.Topics {
		if t == nil {
			args = append(args, "--topic", "null")
			continue
		}
		args = append(args, "--topic", t.Hex())
	}
	if f.FromBlock != "" {
		args = append(args, "--from", f.FromBlock.String())
	}
	if f.ToBlock != "" {
		args = append(args, "--to", f.ToBlock.String())
	}
	return args
}

// Matches checks log address and topics (block bounds are not checked).
func (f LogFilter) Matches(l result.Log) bool {
	if len(f.Address) != 0 {
		var found bool
		for _, a := range f.Address {
			if a == l.Address {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Topics) > len(l.Topics) {
		return false
	}
	for i, t := range f.Topics {
		if t != nil && *t != l.Topics[i] {
			return false
		}
	}
	return true
}
