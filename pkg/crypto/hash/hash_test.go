package hash

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeccak256(t *testing.T) {
	// Well-known values, empty input and ABI selectors.
	require.Equal(t, "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		hex.EncodeToString(Keccak256()))
	require.Equal(t, "60fe47b1", hex.EncodeToString(Keccak256([]byte("set(uint256)"))[:4]))
	require.Equal(t, "6d4ce63c", hex.EncodeToString(Keccak256([]byte("get()"))[:4]))
	require.Equal(t, Keccak256([]byte("getbalance")), Keccak256([]byte("get"), []byte("balance")))
	require.Equal(t, Keccak256([]byte("get()")), Keccak256Hash([]byte("get()")).Bytes())
}

func TestSha3256(t *testing.T) {
	require.Equal(t, "a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a",
		hex.EncodeToString(Sha3256(nil)))
	require.NotEqual(t, Keccak256([]byte("abc")), Sha3256([]byte("abc")))
}
