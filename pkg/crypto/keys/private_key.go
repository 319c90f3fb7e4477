/*
Package keys wraps secp256k1 keys used to sign CITA-style transactions and to
derive account addresses from them.
*/
package keys

import (
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	// PrivateKeyLen is the length of a serialized private key.
	PrivateKeyLen = 32
	// SignatureLen is the length of a recoverable signature (r || s || v).
	SignatureLen = 65
)

// ErrInvalidKey is returned for private keys that are malformed: of wrong
// length, zero or not less than the curve order.
var ErrInvalidKey = errors.New("invalid private key")

// PrivateKey is a secp256k1 private key.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// NewPrivateKeyFromBytes returns a PrivateKey created from the given 32-byte
// big-endian scalar.
func NewPrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != PrivateKeyLen {
		return nil, fmt.Errorf("%w: expected %d bytes got %d", ErrInvalidKey, PrivateKeyLen, len(b))
	}
	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(b); overflow {
		return nil, fmt.Errorf("%w: scalar exceeds curve order", ErrInvalidKey)
	}
	if s.IsZero() {
		return nil, fmt.Errorf("%w: zero scalar", ErrInvalidKey)
	}
	return &PrivateKey{key: secp256k1.NewPrivateKey(&s)}, nil
}

// NewPrivateKeyFromHex returns a PrivateKey created from the given hex string,
// "0x" prefix is optional.
func NewPrivateKeyFromHex(str string) (*PrivateKey, error) {
	if !strings.HasPrefix(str, "0x") && !strings.HasPrefix(str, "0X") {
		str = "0x" + str
	}
	b, err := hexutil.Decode(str)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return NewPrivateKeyFromBytes(b)
}

// PublicKey derives the public key from the private key.
func (p *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{key: p.key.PubKey()}
}

// Address derives the account address using the given scheme.
func (p *PrivateKey) Address(scheme AddressScheme) common.Address {
	return p.PublicKey().Address(scheme)
}

// SignHash signs the given 32-byte digest and returns a recoverable signature
// in r || s || v form with v being 0 or 1. Nonces are derived
// deterministically (RFC6979), so the same key and digest always produce the
// same signature.
func (p *PrivateKey) SignHash(digest []byte) []byte {
	compact := ecdsa.SignCompact(p.key, digest, false)
	// Compact format is (27 + recovery id) || r || s.
	sig := make([]byte, SignatureLen)
	copy(sig, compact[1:])
	sig[SignatureLen-1] = compact[0] - 27
	return sig
}

// Bytes returns the 32-byte big-endian scalar of the key.
func (p *PrivateKey) Bytes() []byte {
	return p.key.Serialize()
}

// String implements the fmt.Stringer interface.
func (p *PrivateKey) String() string {
	return hexutil.Encode(p.Bytes())
}
