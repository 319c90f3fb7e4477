package result

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// Quantity is an unsigned integer of up to 256 bits. Nodes send them as JSON
// numbers, hex strings ("0x1a") or decimal strings, all of these are
// accepted. It's marshaled as a hex string.
type Quantity struct {
	v uint256.Int
}

// NewQuantity creates a Quantity from uint64.
func NewQuantity(n uint64) Quantity {
	var q Quantity
	q.v.SetUint64(n)
	return q
}

// QuantityFromInt creates a Quantity from uint256.Int, nil is zero.
func QuantityFromInt(n *uint256.Int) Quantity {
	var q Quantity
	if n != nil {
		q.v.Set(n)
	}
	return q
}

// ParseQuantity parses a hex (0x-prefixed) or decimal string.
func ParseQuantity(s string) (Quantity, error) {
	var q Quantity
	s = strings.TrimSpace(s)
	if s == "" {
		return q, errors.New("empty quantity")
	}
	var (
		b  *big.Int
		ok bool
	)
	if hex := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"); len(hex) != len(s) {
		if hex == "" {
			return q, nil
		}
		b, ok = new(big.Int).SetString(hex, 16)
	} else {
		b, ok = new(big.Int).SetString(s, 10)
	}
	if !ok {
		return q, fmt.Errorf("invalid quantity %q", s)
	}
	if b.Sign() < 0 {
		return q, fmt.Errorf("negative quantity %q", s)
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return q, fmt.Errorf("quantity %q overflows 256 bits", s)
	}
	q.v = *v
	return q, nil
}

// Int returns a copy of the value.
func (q Quantity) Int() *uint256.Int {
	return new(uint256.Int).Set(&q.v)
}

// Uint64 returns the value truncated to 64 bits.
func (q Quantity) Uint64() uint64 {
	return q.v.Uint64()
}

// IsUint64 reports whether the value fits into uint64.
func (q Quantity) IsUint64() bool {
	return q.v.IsUint64()
}

// Cmp compares two quantities.
func (q Quantity) Cmp(other Quantity) int {
	return q.v.Cmp(&other.v)
}

// Hex returns 0x-prefixed hex representation.
func (q Quantity) Hex() string {
	return q.v.Hex()
}

// String returns the decimal representation.
func (q Quantity) String() string {
	return q.v.ToBig().String()
}

// MarshalJSON implements the json.Marshaler interface.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.v.Hex())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		return nil
	}
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid quantity: %w", err)
		}
		s = n.String()
	}
	v, err := ParseQuantity(s)
	if err != nil {
		return err
	}
	*q = v
	return nil
}
