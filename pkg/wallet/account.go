package wallet

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/rpcprobe/pkg/crypto/keys"
)

// Account represents a test account. It holds the private key and the
// address derived from it, neither can be changed after creation.
type Account struct {
	privateKey *keys.PrivateKey
	address    common.Address
	scheme     keys.AddressScheme
}

// NewAccount creates an Account for the given key using the given address
// scheme.
func NewAccount(key *keys.PrivateKey, scheme keys.AddressScheme) (*Account, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: nil key", keys.ErrInvalidKey)
	}
	if !scheme.Valid() {
		return nil, fmt.Errorf("unknown address scheme %q", scheme)
	}
	return &Account{
		privateKey: key,
		address:    key.Address(scheme),
		scheme:     scheme,
	}, nil
}

// NewAccountFromHex creates an Account from a hex-encoded private key.
func NewAccountFromHex(str string, scheme keys.AddressScheme) (*Account, error) {
	key, err := keys.NewPrivateKeyFromHex(str)
	if err != nil {
		return nil, err
	}
	return NewAccount(key, scheme)
}

// PrivateKey returns the private key of the account.
func (a *Account) PrivateKey() *keys.PrivateKey {
	return a.privateKey
}

// Address returns the account address.
func (a *Account) Address() common.Address {
	return a.address
}

// Scheme returns the address scheme used to derive the address.
func (a *Account) Scheme() keys.AddressScheme {
	return a.scheme
}

// SignHash signs the given digest with the account key.
func (a *Account) SignHash(digest []byte) []byte {
	return a.privateKey.SignHash(digest)
}

// String implements the fmt.Stringer interface.
func (a *Account) String() string {
	return a.address.Hex()
}
