package transaction

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/rpcprobe/pkg/crypto/hash"
	"github.com/nspcc-dev/rpcprobe/pkg/crypto/keys"
	"github.com/nspcc-dev/rpcprobe/pkg/wallet"
	"google.golang.org/protobuf/encoding/protowire"
)

// UnverifiedTransaction field numbers.
const (
	fieldTransaction protowire.Number = 1
	fieldSignature   protowire.Number = 2
	fieldCrypto      protowire.Number = 3
)

// Signed is a transaction with its signature. It can't be changed once
// created, raw bytes and hash are computed at signing time.
type Signed struct {
	tx        *Transaction
	signature []byte
	crypto    uint64
	raw       []byte
	hash      common.Hash
}

// Sign signs the transaction with the given key. The transaction must not be
// modified afterwards.
func (t *Transaction) Sign(key *keys.PrivateKey) (*Signed, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: nil key", keys.ErrInvalidKey)
	}
	sig := key.SignHash(t.MessageHash().Bytes())
	return newSigned(t, sig, 0), nil
}

// Build creates a transaction for the given account and signs it.
func Build(acc *wallet.Account, to *common.Address, value *uint256.Int, data []byte, quota uint64, p Params) (*Signed, error) {
	if acc == nil {
		return nil, fmt.Errorf("%w: no account", keys.ErrInvalidKey)
	}
	return New(to, value, data, quota, p).Sign(acc.PrivateKey())
}

func newSigned(t *Transaction, sig []byte, crypto uint64) *Signed {
	txb := t.Bytes()
	var b []byte
	b = protowire.AppendTag(b, fieldTransaction, protowire.BytesType)
	b = protowire.AppendBytes(b, txb)
	b = protowire.AppendTag(b, fieldSignature, protowire.BytesType)
	b = protowire.AppendBytes(b, sig)
	if crypto != 0 {
		b = protowire.AppendTag(b, fieldCrypto, protowire.VarintType)
		b = protowire.AppendVarint(b, crypto)
	}
	return &Signed{
		tx:        t.Copy(),
		signature: sig,
		crypto:    crypto,
		raw:       b,
		hash:      hash.Keccak256Hash(b),
	}
}

// Transaction returns a copy of the unsigned part.
func (s *Signed) Transaction() *Transaction {
	return s.tx.Copy()
}

// Signature returns the 65-byte r || s || v signature.
func (s *Signed) Signature() []byte {
	return append([]byte(nil), s.signature...)
}

// Bytes returns the serialized UnverifiedTransaction.
func (s *Signed) Bytes() []byte {
	return append([]byte(nil), s.raw...)
}

// Hex returns 0x-prefixed serialized transaction ready for sendRawTransaction.
func (s *Signed) Hex() string {
	return hexutil.Encode(s.raw)
}

// Hash returns the locally computed transaction hash.
func (s *Signed) Hash() common.Hash {
	return s.hash
}

// Sender recovers the address of the signer.
func (s *Signed) Sender(scheme keys.AddressScheme) (common.Address, error) {
	pub, err := keys.RecoverPublicKey(s.tx.MessageHash().Bytes(), s.signature)
	if err != nil {
		return common.Address{}, err
	}
	return pub.Address(scheme), nil
}

// DecodeSigned parses a serialized UnverifiedTransaction.
func DecodeSigned(b []byte) (*Signed, error) {
	var (
		txb    []byte
		sig    []byte
		crypto uint64
		hasTx  bool
	)
	for rest := b; len(rest) > 0; {
		num, typ, n := protowire.ConsumeTag(rest)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, protowire.ParseError(n))
		}
		rest = rest[n:]
		switch {
		case num == fieldTransaction && typ == protowire.BytesType:
			txb, n = protowire.ConsumeBytes(rest)
			hasTx = true
		case num == fieldSignature && typ == protowire.BytesType:
			sig, n = protowire.ConsumeBytes(rest)
		case num == fieldCrypto && typ == protowire.VarintType:
			crypto, n = protowire.ConsumeVarint(rest)
		default:
			n = protowire.ConsumeFieldValue(num, typ, rest)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: field %d: %v", ErrInvalidFormat, num, protowire.ParseError(n))
		}
		rest = rest[n:]
	}
	if !hasTx {
		return nil, fmt.Errorf("%w: no transaction", ErrInvalidFormat)
	}
	if len(sig) != keys.SignatureLen {
		return nil, fmt.Errorf("%w: signature is %d bytes", ErrInvalidFormat, len(sig))
	}
	tx, err := Decode(txb)
	if err != nil {
		return nil, err
	}
	s := &Signed{
		tx:        tx,
		signature: append([]byte(nil), sig...),
		crypto:    crypto,
		raw:       append([]byte(nil), b...),
	}
	s.hash = hash.Keccak256Hash(s.raw)
	return s, nil
}

// DecodeSignedHex is DecodeSigned for 0x-prefixed hex input.
func DecodeSignedHex(str string) (*Signed, error) {
	b, err := hexutil.Decode(str)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return DecodeSigned(b)
}
