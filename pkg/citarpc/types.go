/*
Package citarpc contains a set of types used for JSON-RPC communication with
CITA-compatible nodes. It defines basic request/response types, the error
type and block height parameters.
*/
package citarpc

import (
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	// JSONRPCVersion is the only JSON-RPC protocol version supported.
	JSONRPCVersion = "2.0"
)

type (
	// Request represents JSON-RPC request. Params are always an array, the
	// client uses numeric identifiers.
	Request struct {
		// JSONRPC is the protocol version, only valid when it contains JSONRPCVersion.
		JSONRPC string `json:"jsonrpc"`
		// Method is the method being called.
		Method string `json:"method"`
		// Params is a set of method-specific parameters passed to the call.
		Params []interface{} `json:"params"`
		// ID is an identifier associated with this request.
		ID uint64 `json:"id"`
	}

	// Header is a generic JSON-RPC 2.0 response header (ID and JSON-RPC version).
	Header struct {
		ID      json.RawMessage `json:"id"`
		JSONRPC string          `json:"jsonrpc"`
	}

	// HeaderAndError adds an Error (that can be empty) to the Header.
	HeaderAndError struct {
		Header
		Error *Error `json:"error,omitempty"`
	}

	// Response represents a standard raw JSON-RPC 2.0 response. Result is
	// kept raw, a literal null stays "null".
	Response struct {
		HeaderAndError
		Result json.RawMessage `json:"result,omitempty"`
	}
)

// NewRequest creates a request with the given ID.
func NewRequest(id uint64, method string, params ...interface{}) *Request {
	if params == nil {
		params = []interface{}{}
	}
	return &Request{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  params,
		ID:      id,
	}
}

// IDMatches checks that the response ID is the given numeric one. Nodes
// may return IDs as numbers or strings.
func (h *Header) IDMatches(id uint64) bool {
	if len(h.ID) == 0 {
		return false
	}
	var n uint64
	if err := json.Unmarshal(h.ID, &n); err == nil {
		return n == id
	}
	var s string
	if err := json.Unmarshal(h.ID, &s); err == nil {
		return s == strconv.FormatUint(id, 10)
	}
	return false
}

// IsNull returns true when there is no result or it's a JSON null.
func (r *Response) IsNull() bool {
	return len(r.Result) == 0 || string(r.Result) == "null"
}

// BlockTag is a block height parameter: "latest", "earliest" or a height.
type BlockTag string

const (
	// Latest is the most recent block.
	Latest BlockTag = "latest"
	// Earliest is the genesis block.
	Earliest BlockTag = "earliest"
)

// Height returns a BlockTag for the given block number.
func Height(n uint64) BlockTag {
	return BlockTag("0x" + strconv.FormatUint(n, 16))
}

// String implements the fmt.Stringer interface.
func (b BlockTag) String() string {
	if b == "" {
		return string(Latest)
	}
	return string(b)
}

// MarshalJSON implements the json.Marshaler interface.
func (b BlockTag) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// ParseBlockTag parses user input: tag names, hex and decimal heights.
func ParseBlockTag(s string) (BlockTag, error) {
	switch BlockTag(s) {
	case "", Latest:
		return Latest, nil
	case Earliest:
		return Earliest, nil
	}
	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return "", fmt.Errorf("invalid block height %q", s)
	}
	return Height(n), nil
}
