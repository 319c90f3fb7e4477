package keys

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/rpcprobe/pkg/crypto/hash"
	"github.com/stretchr/testify/require"
)

const testKey = "0x028590ad352d54387a9c8a0ecf7e180e68c4840c72f958fc5917657f506caa81"

func TestNewPrivateKeyFromHex(t *testing.T) {
	k, err := NewPrivateKeyFromHex(testKey)
	require.NoError(t, err)
	require.Equal(t, testKey, k.String())

	k2, err := NewPrivateKeyFromHex(testKey[2:])
	require.NoError(t, err)
	require.Equal(t, k.Bytes(), k2.Bytes())
}

func TestInvalidKeys(t *testing.T) {
	for name, str := range map[string]string{
		"not hex":      "0xzz",
		"short":        "0x0102",
		"long":         testKey + "00",
		"zero":         "0x0000000000000000000000000000000000000000000000000000000000000000",
		"curve order":  "0xfffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141",
		"above order":  "0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
		"empty string": "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewPrivateKeyFromHex(str)
			require.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestAddress(t *testing.T) {
	one := make([]byte, 32)
	one[31] = 1
	k, err := NewPrivateKeyFromBytes(one)
	require.NoError(t, err)

	require.Equal(t, common.HexToAddress("0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"), k.Address(EthereumScheme))

	gx := common.FromHex("0x79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798")
	require.Equal(t, gx, k.PublicKey().Bytes()[:32])
	require.Equal(t, common.BytesToAddress(hash.Sha3256(gx)[12:]), k.Address(MutaScheme))
	require.NotEqual(t, k.Address(MutaScheme), k.Address(EthereumScheme))

	// Same key always gives the same address.
	k2, err := NewPrivateKeyFromBytes(one)
	require.NoError(t, err)
	require.Equal(t, k.Address(MutaScheme), k2.Address(MutaScheme))
}

func TestKnownMutaAddress(t *testing.T) {
	k, err := NewPrivateKeyFromHex(testKey)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0x2ae83ce578e4bb7968104b5d7c034af36a771a35"), k.Address(MutaScheme))
	require.Equal(t, "0x2ae83ce578e4bb7968104b5d7c034af36a771a35", strings.ToLower(k.Address(MutaScheme).Hex()))
}

func TestSignRecover(t *testing.T) {
	k, err := NewPrivateKeyFromHex(testKey)
	require.NoError(t, err)
	digest := hash.Keccak256([]byte("transaction"))

	sig := k.SignHash(digest)
	require.Len(t, sig, SignatureLen)
	require.True(t, sig[64] == 0 || sig[64] == 1)
	require.True(t, bytes.Equal(sig, k.SignHash(digest)), "signing must be deterministic")

	pub, err := RecoverPublicKey(digest, sig)
	require.NoError(t, err)
	require.True(t, pub.Equal(k.PublicKey()))
	require.Equal(t, k.Address(MutaScheme), pub.Address(MutaScheme))

	other := hash.Keccak256([]byte("other"))
	pub, err = RecoverPublicKey(other, sig)
	if err == nil {
		require.False(t, pub.Equal(k.PublicKey()))
	}

	_, err = RecoverPublicKey(digest, sig[:64])
	require.Error(t, err)

	bad := append([]byte{}, sig...)
	bad[64] = 7
	_, err = RecoverPublicKey(digest, bad)
	require.Error(t, err)
}

func TestAddressScheme(t *testing.T) {
	require.True(t, MutaScheme.Valid())
	require.True(t, EthereumScheme.Valid())
	require.False(t, AddressScheme("bitcoin").Valid())
}
