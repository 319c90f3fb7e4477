/*
Package transaction implements CITA transactions: their protobuf wire format,
signing and sender recovery.
*/
package transaction

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/rpcprobe/pkg/crypto/hash"
	"google.golang.org/protobuf/encoding/protowire"
)

// Supported transaction versions.
const (
	// V0 carries the recipient as a hex string and a numeric chain ID.
	V0 uint32 = 0
	// V1 carries the recipient as raw bytes and a 32-byte chain ID.
	V1 uint32 = 1
)

// Transaction field numbers of the protobuf message.
const (
	fieldTo              protowire.Number = 1
	fieldNonce           protowire.Number = 2
	fieldQuota           protowire.Number = 3
	fieldValidUntilBlock protowire.Number = 4
	fieldData            protowire.Number = 5
	fieldValue           protowire.Number = 6
	fieldChainID         protowire.Number = 7
	fieldVersion         protowire.Number = 8
	fieldToV1            protowire.Number = 9
	fieldChainIDV1       protowire.Number = 10
)

const wordLen = 32

// ErrInvalidFormat is returned when transaction bytes can't be decoded.
var ErrInvalidFormat = errors.New("invalid transaction format")

// Params are the chain-specific validity fields of a transaction.
type Params struct {
	// Nonce is an arbitrary anti-replay string.
	Nonce string
	// ValidUntilBlock is the last block the transaction can be included in.
	ValidUntilBlock uint64
	ChainID         uint64
	Version         uint32
}

// Transaction is an unsigned CITA transaction. To being nil means contract
// creation.
type Transaction struct {
	To              *common.Address
	Nonce           string
	Quota           uint64
	ValidUntilBlock uint64
	Data            []byte
	Value           *uint256.Int
	ChainID         uint64
	Version         uint32
}

// New creates a transaction. Nil value is treated as zero.
func New(to *common.Address, value *uint256.Int, data []byte, quota uint64, p Params) *Transaction {
	if value == nil {
		value = new(uint256.Int)
	}
	var rcpt *common.Address
	if to != nil {
		a := *to
		rcpt = &a
	}
	return &Transaction{
		To:              rcpt,
		Nonce:           p.Nonce,
		Quota:           quota,
		ValidUntilBlock: p.ValidUntilBlock,
		Data:            append([]byte(nil), data...),
		Value:           new(uint256.Int).Set(value),
		ChainID:         p.ChainID,
		Version:         p.Version,
	}
}

// Copy returns a deep copy of the transaction.
func (t *Transaction) Copy() *Transaction {
	return New(t.To, t.Value, t.Data, t.Quota, Params{
		Nonce:           t.Nonce,
		ValidUntilBlock: t.ValidUntilBlock,
		ChainID:         t.ChainID,
		Version:         t.Version,
	})
}

// IsDeploy returns true for contract creation transactions.
func (t *Transaction) IsDeploy() bool {
	return t.To == nil
}

// Bytes returns the protobuf serialization of the transaction. Fields with
// default values are omitted except value which is always a 32-byte word.
func (t *Transaction) Bytes() []byte {
	var b []byte
	if t.Version == V0 && t.To != nil {
		b = protowire.AppendTag(b, fieldTo, protowire.BytesType)
		b = protowire.AppendString(b, hex.EncodeToString(t.To.Bytes()))
	}
	if t.Nonce != "" {
		b = protowire.AppendTag(b, fieldNonce, protowire.BytesType)
		b = protowire.AppendString(b, t.Nonce)
	}
	b = appendVarint(b, fieldQuota, t.Quota)
	b = appendVarint(b, fieldValidUntilBlock, t.ValidUntilBlock)
	if len(t.Data) != 0 {
		b = protowire.AppendTag(b, fieldData, protowire.BytesType)
		b = protowire.AppendBytes(b, t.Data)
	}
	value := t.Value
	if value == nil {
		value = new(uint256.Int)
	}
	word := value.Bytes32()
	b = protowire.AppendTag(b, fieldValue, protowire.BytesType)
	b = protowire.AppendBytes(b, word[:])
	if t.Version == V0 {
		b = appendVarint(b, fieldChainID, t.ChainID)
	}
	b = appendVarint(b, fieldVersion, uint64(t.Version))
	if t.Version != V0 {
		if t.To != nil {
			b = protowire.AppendTag(b, fieldToV1, protowire.BytesType)
			b = protowire.AppendBytes(b, t.To.Bytes())
		}
		chain := uint256.NewInt(t.ChainID).Bytes32()
		b = protowire.AppendTag(b, fieldChainIDV1, protowire.BytesType)
		b = protowire.AppendBytes(b, chain[:])
	}
	return b
}

// MessageHash returns the digest that is signed, Keccak-256 of Bytes.
func (t *Transaction) MessageHash() common.Hash {
	return hash.Keccak256Hash(t.Bytes())
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// Decode parses the protobuf serialization of a transaction.
func Decode(b []byte) (*Transaction, error) {
	t := &Transaction{Value: new(uint256.Int)}
	var (
		toV0 string
		toV1 []byte
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrInvalidFormat, num, protowire.ParseError(n))
			}
			b = b[n:]
			if err := t.setBytes(num, v, &toV0, &toV1); err != nil {
				return nil, err
			}
		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrInvalidFormat, num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldQuota:
				t.Quota = v
			case fieldValidUntilBlock:
				t.ValidUntilBlock = v
			case fieldChainID:
				t.ChainID = v
			case fieldVersion:
				t.Version = uint32(v)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrInvalidFormat, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	switch {
	case t.Version == V0 && toV0 != "":
		raw, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(toV0), "0x"))
		if err != nil || len(raw) != common.AddressLength {
			return nil, fmt.Errorf("%w: bad recipient %q", ErrInvalidFormat, toV0)
		}
		a := common.BytesToAddress(raw)
		t.To = &a
	case t.Version != V0 && len(toV1) != 0:
		if len(toV1) != common.AddressLength {
			return nil, fmt.Errorf("%w: bad recipient length %d", ErrInvalidFormat, len(toV1))
		}
		a := common.BytesToAddress(toV1)
		t.To = &a
	}
	return t, nil
}

func (t *Transaction) setBytes(num protowire.Number, v []byte, toV0 *string, toV1 *[]byte) error {
	switch num {
	case fieldTo:
		*toV0 = string(v)
	case fieldNonce:
		t.Nonce = string(v)
	case fieldData:
		t.Data = append([]byte(nil), v...)
	case fieldValue:
		if len(v) > wordLen {
			return fmt.Errorf("%w: value is %d bytes", ErrInvalidFormat, len(v))
		}
		t.Value = new(uint256.Int).SetBytes(v)
	case fieldToV1:
		*toV1 = append([]byte(nil), v...)
	case fieldChainIDV1:
		if len(v) > wordLen {
			return fmt.Errorf("%w: chain ID is %d bytes", ErrInvalidFormat, len(v))
		}
		id := new(uint256.Int).SetBytes(v)
		if !id.IsUint64() {
			return fmt.Errorf("%w: chain ID overflows uint64", ErrInvalidFormat)
		}
		t.ChainID = id.Uint64()
	}
	return nil
}
