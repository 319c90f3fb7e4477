package keys

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/rpcprobe/pkg/crypto/hash"
)

// AddressScheme selects the way account addresses are derived from public
// keys.
type AddressScheme string

const (
	// MutaScheme takes the last 20 bytes of SHA3-256 over the X coordinate of
	// the public key. This is what muta nodes expect.
	MutaScheme AddressScheme = "muta"
	// EthereumScheme takes the last 20 bytes of Keccak-256 over the
	// uncompressed public key (X || Y).
	EthereumScheme AddressScheme = "ethereum"
)

// Valid checks whether s is a known scheme.
func (s AddressScheme) Valid() bool {
	return s == MutaScheme || s == EthereumScheme
}

// PublicKey is a secp256k1 public key.
type PublicKey struct {
	key *secp256k1.PublicKey
}

// Bytes returns the 64-byte uncompressed X || Y encoding (no 0x04 prefix).
func (p *PublicKey) Bytes() []byte {
	return p.key.SerializeUncompressed()[1:]
}

// Address derives the account address according to the scheme given.
// Unknown schemes fall back to MutaScheme.
func (p *PublicKey) Address(scheme AddressScheme) common.Address {
	raw := p.Bytes()
	if scheme == EthereumScheme {
		return common.BytesToAddress(hash.Keccak256(raw)[12:])
	}
	return common.BytesToAddress(hash.Sha3256(raw[:32])[12:])
}

// Equal returns true if both keys are the same point.
func (p *PublicKey) Equal(other *PublicKey) bool {
	return other != nil && p.key.IsEqual(other.key)
}

// RecoverPublicKey returns the public key that produced the given r || s || v
// signature over digest.
func RecoverPublicKey(digest, sig []byte) (*PublicKey, error) {
	if len(sig) != SignatureLen {
		return nil, fmt.Errorf("invalid signature length: expected %d bytes got %d", SignatureLen, len(sig))
	}
	v := sig[SignatureLen-1]
	if v > 3 {
		return nil, errors.New("invalid signature recovery id")
	}
	compact := make([]byte, SignatureLen)
	compact[0] = 27 + v
	copy(compact[1:], sig[:SignatureLen-1])
	key, _, err := ecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return nil, fmt.Errorf("can't recover public key: %w", err)
	}
	return &PublicKey{key: key}, nil
}
