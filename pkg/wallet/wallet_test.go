package wallet

import (
	"testing"

	"github.com/nspcc-dev/rpcprobe/pkg/crypto/keys"
	"github.com/stretchr/testify/require"
)

func TestNewWallet(t *testing.T) {
	w, err := NewWallet(nil, keys.MutaScheme)
	require.NoError(t, err)
	require.Len(t, w.Accounts, len(DefaultKeys))

	addrs := w.Addresses()
	seen := make(map[string]bool)
	for i, a := range addrs {
		require.False(t, seen[a.Hex()])
		seen[a.Hex()] = true
		require.Equal(t, w.Accounts[i], w.GetAccount(a))
		require.Equal(t, keys.MutaScheme, w.Accounts[i].Scheme())
	}

	t.Run("duplicate", func(t *testing.T) {
		_, err := NewWallet([]string{DefaultKeys[0], DefaultKeys[0]}, keys.MutaScheme)
		require.ErrorIs(t, err, ErrDuplicateAccount)
	})
	t.Run("invalid key", func(t *testing.T) {
		_, err := NewWallet([]string{"0x00"}, keys.MutaScheme)
		require.ErrorIs(t, err, keys.ErrInvalidKey)
	})
}

func TestAccount(t *testing.T) {
	muta, err := NewAccountFromHex(DefaultKeys[1], keys.MutaScheme)
	require.NoError(t, err)
	eth, err := NewAccountFromHex(DefaultKeys[1], keys.EthereumScheme)
	require.NoError(t, err)

	require.Equal(t, muta.PrivateKey().Bytes(), eth.PrivateKey().Bytes())
	require.NotEqual(t, muta.Address(), eth.Address())
	require.Equal(t, muta.Address().Hex(), muta.String())

	digest := make([]byte, 32)
	sig := muta.SignHash(digest)
	pub, err := keys.RecoverPublicKey(digest, sig)
	require.NoError(t, err)
	require.Equal(t, muta.Address(), pub.Address(keys.MutaScheme))

	_, err = NewAccount(muta.PrivateKey(), "unknown")
	require.Error(t, err)
	_, err = NewAccount(nil, keys.MutaScheme)
	require.ErrorIs(t, err, keys.ErrInvalidKey)
}
