package wallet

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/rpcprobe/pkg/crypto/keys"
)

// DefaultKeys are the well-known keys test chains are usually pre-funded for.
// The first one is normally the block proposer as well.
var DefaultKeys = []string{
	"0x028590ad352d54387a9c8a0ecf7e180e68c4840c72f958fc5917657f506caa80",
	"0x028590ad352d54387a9c8a0ecf7e180e68c4840c72f958fc5917657f506caa81",
	"0x028590ad352d54387a9c8a0ecf7e180e68c4840c72f958fc5917657f506caa82",
	"0x028590ad352d54387a9c8a0ecf7e180e68c4840c72f958fc5917657f506caa83",
}

// ErrDuplicateAccount is returned when the same key is given twice.
var ErrDuplicateAccount = errors.New("duplicate account")

// Wallet is an ordered set of accounts.
type Wallet struct {
	Accounts []*Account
}

// NewWallet creates a wallet from hex-encoded private keys. Empty list means
// DefaultKeys.
func NewWallet(hexKeys []string, scheme keys.AddressScheme) (*Wallet, error) {
	if len(hexKeys) == 0 {
		hexKeys = DefaultKeys
	}
	w := &Wallet{Accounts: make([]*Account, 0, len(hexKeys))}
	for i, k := range hexKeys {
		acc, err := NewAccountFromHex(k, scheme)
		if err != nil {
			return nil, fmt.Errorf("account #%d: %w", i, err)
		}
		if w.GetAccount(acc.Address()) != nil {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAccount, acc.Address())
		}
		w.Accounts = append(w.Accounts, acc)
	}
	return w, nil
}

// GetAccount returns the account with the given address or nil.
func (w *Wallet) GetAccount(addr common.Address) *Account {
	for _, acc := range w.Accounts {
		if acc.Address() == addr {
			return acc
		}
	}
	return nil
}

// Addresses returns addresses of all accounts in order.
func (w *Wallet) Addresses() []common.Address {
	res := make([]common.Address, len(w.Accounts))
	for i := range w.Accounts {
		res[i] = w.Accounts[i].Address()
	}
	return res
}
