package fakenode

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/syndtr/goleveldb/leveldb/comparer"
	"github.com/syndtr/goleveldb/leveldb/memdb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// keyPrefix is a state item type, every item is versioned by the height it
// was written at.
type keyPrefix byte

const (
	stBalance keyPrefix = 0x01
	stNonce   keyPrefix = 0x02
	stCode    keyPrefix = 0x03
	stStorage keyPrefix = 0x04
)

// state is a versioned account state. Keys are
// prefix | address | [slot] | height(BE) so that the value at some height
// is the last one written at or below it.
type state struct {
	db *memdb.DB
}

func newState() *state {
	return &state{db: memdb.New(comparer.DefaultComparer, 0)}
}

func itemKey(p keyPrefix, addr common.Address, slot *common.Hash) []byte {
	k := make([]byte, 0, 1+common.AddressLength+common.HashLength+8)
	k = append(k, byte(p))
	k = append(k, addr.Bytes()...)
	if slot != nil {
		k = append(k, slot.Bytes()...)
	}
	return k
}

func withHeight(k []byte, height uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte(nil), k...), height)
}

func (s *state) put(p keyPrefix, addr common.Address, slot *common.Hash, height uint64, v []byte) {
	// memdb only fails on a closed database.
	_ = s.db.Put(withHeight(itemKey(p, addr, slot), height), v)
}

func (s *state) get(p keyPrefix, addr common.Address, slot *common.Hash, height uint64) []byte {
	k := itemKey(p, addr, slot)
	rng := &util.Range{Start: withHeight(k, 0)}
	if height < ^uint64(0) {
		rng.Limit = withHeight(k, height+1)
	} else {
		rng.Limit = util.BytesPrefix(k).Limit
	}
	it := s.db.NewIterator(rng)
	defer it.Release()
	if !it.Last() {
		return nil
	}
	return append([]byte(nil), it.Value()...)
}

func (s *state) balance(addr common.Address, height uint64) *uint256.Int {
	return new(uint256.Int).SetBytes(s.get(stBalance, addr, nil, height))
}

func (s *state) setBalance(addr common.Address, height uint64, v *uint256.Int) {
	b := v.Bytes32()
	s.put(stBalance, addr, nil, height, b[:])
}

func (s *state) nonce(addr common.Address, height uint64) uint64 {
	b := s.get(stNonce, addr, nil, height)
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (s *state) setNonce(addr common.Address, height uint64, n uint64) {
	s.put(stNonce, addr, nil, height, binary.BigEndian.AppendUint64(nil, n))
}

func (s *state) code(addr common.Address, height uint64) []byte {
	return s.get(stCode, addr, nil, height)
}

func (s *state) setCode(addr common.Address, height uint64, code []byte) {
	s.put(stCode, addr, nil, height, code)
}

func (s *state) storage(addr common.Address, key common.Hash, height uint64) common.Hash {
	return common.BytesToHash(s.get(stStorage, addr, &key, height))
}

func (s *state) setStorage(addr common.Address, key common.Hash, height uint64, v common.Hash) {
	s.put(stStorage, addr, &key, height, v.Bytes())
}
