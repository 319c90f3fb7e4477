/*
Package hash contains the hash functions used by CITA-compatible chains:
Keccak-256 for transaction and contract address hashing and FIPS-202
SHA3-256 for muta-style account addresses.
*/
package hash

import (
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Keccak256 hashes the concatenation of the given byte slices using the
// legacy (pre-FIPS) Keccak-256 function.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		_, _ = h.Write(b)
	}
	return h.Sum(nil)
}

// Keccak256Hash is the same as Keccak256, but returns common.Hash.
func Keccak256Hash(data ...[]byte) common.Hash {
	return common.BytesToHash(Keccak256(data...))
}

// Sha3256 hashes the given data using FIPS-202 SHA3-256.
func Sha3256(data []byte) []byte {
	sum := sha3.Sum256(data)
	return sum[:]
}
