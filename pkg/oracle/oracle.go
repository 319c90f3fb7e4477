/*
Package oracle tracks the chain state a scenario expects and compares it
with the state observed through RPC.

Balances follow these rules: a transfer debits the sender by value and fee
and credits the recipient by value only, the fee goes to the fee model
beneficiary (or is burned). Money leaving the set of tracked accounts is
accounted as outflow, so that the sum of tracked balances is conserved.
*/
package oracle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc/result"
	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"
)

// Reader provides the observed state.
type Reader interface {
	GetBalance(addr common.Address, height citarpc.BlockTag) (*uint256.Int, error)
	GetStorageAt(addr common.Address, key common.Hash, height citarpc.BlockTag) (common.Hash, error)
}

type storageKey struct {
	contract common.Address
	key      common.Hash
}

// Oracle holds the expected state of a single scenario. It's safe for
// concurrent use.
type Oracle struct {
	reader Reader
	fee    FeeModel
	log    *zap.Logger

	lock     sync.Mutex
	order    []common.Address
	expected map[common.Address]*uint256.Int
	baseline map[common.Address]*uint256.Int
	excluded map[common.Address]bool
	initial  *uint256.Int
	inflow   *uint256.Int
	outflow  *uint256.Int
	burned   *uint256.Int
	feesPaid *uint256.Int
	storage  map[storageKey]common.Hash
	errs     []error
}

// New creates an Oracle using the given reader for observations.
func New(reader Reader, fee FeeModel, log *zap.Logger) *Oracle {
	if log == nil {
		log = zap.NewNop()
	}
	return &Oracle{
		reader:   reader,
		fee:      fee,
		log:      log,
		expected: make(map[common.Address]*uint256.Int),
		baseline: make(map[common.Address]*uint256.Int),
		excluded: make(map[common.Address]bool),
		initial:  new(uint256.Int),
		inflow:   new(uint256.Int),
		outflow:  new(uint256.Int),
		burned:   new(uint256.Int),
		feesPaid: new(uint256.Int),
		storage:  make(map[storageKey]common.Hash),
	}
}

// FeeModel returns the fee model used.
func (o *Oracle) FeeModel() FeeModel {
	return o.fee
}

// Track snapshots current balances of the given accounts as their baseline.
// Already tracked accounts are not touched.
func (o *Oracle) Track(addrs ...common.Address) error {
	for _, a := range addrs {
		o.lock.Lock()
		_, ok := o.expected[a]
		o.lock.Unlock()
		if ok {
			continue
		}
		bal, err := o.reader.GetBalance(a, citarpc.Latest)
		if err != nil {
			return fmt.Errorf("can't track %s: %w", a, err)
		}
		o.lock.Lock()
		if _, ok := o.expected[a]; !ok {
			o.expected[a] = bal
			o.baseline[a] = new(uint256.Int).Set(bal)
			o.order = append(o.order, a)
			o.initial.Add(o.initial, bal)
		}
		o.lock.Unlock()
		o.log.Debug("tracking account", zap.Stringer("address", a), zap.String("balance", bal.ToBig().String()))
	}
	return nil
}

// Exclude stops asserting the balance of the account, it's treated as
// external from now on. It's used for accounts changed by concurrent
// activity, like a shared fee beneficiary. It should be called before any
// transactions are recorded.
func (o *Oracle) Exclude(addr common.Address) {
	o.lock.Lock()
	defer o.lock.Unlock()
	if o.excluded[addr] {
		return
	}
	o.excluded[addr] = true
	if bal, ok := o.baseline[addr]; ok {
		o.initial.Sub(o.initial, bal)
	}
}

func (o *Oracle) tracked(addr common.Address) bool {
	_, ok := o.expected[addr]
	return ok && !o.excluded[addr]
}

func (o *Oracle) credit(addr common.Address, amount *uint256.Int) {
	if !o.tracked(addr) {
		o.outflow.Add(o.outflow, amount)
		return
	}
	o.expected[addr].Add(o.expected[addr], amount)
}

func (o *Oracle) debit(addr common.Address, amount *uint256.Int) {
	if !o.tracked(addr) {
		o.inflow.Add(o.inflow, amount)
		return
	}
	bal := o.expected[addr]
	if bal.Lt(amount) {
		o.errs = append(o.errs, violation("balance of "+addr.Hex(),
			"at least "+amount.ToBig().String(), bal.ToBig().String()))
		bal.Clear()
		return
	}
	bal.Sub(bal, amount)
}

func (o *Oracle) chargeFee(from common.Address, quotaUsed uint64) {
	fee := o.fee.Fee(quotaUsed)
	o.debit(from, fee)
	o.feesPaid.Add(o.feesPaid, fee)
	if o.fee.Beneficiary == nil {
		o.burned.Add(o.burned, fee)
		o.outflow.Add(o.outflow, fee)
		return
	}
	o.credit(*o.fee.Beneficiary, fee)
}

// RecordTransfer records a confirmed value transfer.
func (o *Oracle) RecordTransfer(from, to common.Address, value *uint256.Int, quotaUsed uint64) {
	if value == nil {
		value = new(uint256.Int)
	}
	o.lock.Lock()
	defer o.lock.Unlock()
	o.debit(from, value)
	o.credit(to, value)
	o.chargeFee(from, quotaUsed)
	o.log.Debug("transfer recorded", zap.Stringer("from", from), zap.Stringer("to", to),
		zap.String("value", value.ToBig().String()), zap.Uint64("quota used", quotaUsed))
}

// RecordContractCall records a confirmed contract call with the storage
// writes it's known to make.
func (o *Oracle) RecordContractCall(from, contract common.Address, value *uint256.Int, quotaUsed uint64, writes map[common.Hash]common.Hash) {
	o.RecordTransfer(from, contract, value, quotaUsed)
	for k, v := range writes {
		o.RecordStorage(contract, k, v)
	}
}

// RecordFailure records a transaction that was mined but failed, only the fee
// is charged.
func (o *Oracle) RecordFailure(from common.Address, quotaUsed uint64) {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.chargeFee(from, quotaUsed)
}

// RecordStorage sets the expected value of the contract storage slot.
func (o *Oracle) RecordStorage(contract common.Address, key, value common.Hash) {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.storage[storageKey{contract, key}] = value
}

// Expected returns the expected balance of the tracked account or nil.
func (o *Oracle) Expected(addr common.Address) *uint256.Int {
	o.lock.Lock()
	defer o.lock.Unlock()
	if !o.tracked(addr) {
		return nil
	}
	return new(uint256.Int).Set(o.expected[addr])
}

// FeesPaid returns the sum of all recorded fees.
func (o *Oracle) FeesPaid() *uint256.Int {
	o.lock.Lock()
	defer o.lock.Unlock()
	return new(uint256.Int).Set(o.feesPaid)
}

// Burned returns the sum of fees burned.
func (o *Oracle) Burned() *uint256.Int {
	o.lock.Lock()
	defer o.lock.Unlock()
	return new(uint256.Int).Set(o.burned)
}

// AssertBalance compares the expected balance of the account with the
// observed one.
func (o *Oracle) AssertBalance(addr common.Address) error {
	expected := o.Expected(addr)
	if expected == nil {
		return fmt.Errorf("account %s is not tracked", addr)
	}
	observed, err := o.reader.GetBalance(addr, citarpc.Latest)
	if err != nil {
		return err
	}
	if !expected.Eq(observed) {
		return violation("balance of "+addr.Hex(), expected.ToBig().String(), observed.ToBig().String())
	}
	return nil
}

// AssertBalances checks balances of all tracked accounts. Recording errors
// (like debits beyond the expected balance) are reported too.
func (o *Oracle) AssertBalances() error {
	o.lock.Lock()
	errs := append([]error(nil), o.errs...)
	var addrs []common.Address
	for _, a := range o.order {
		if !o.excluded[a] {
			addrs = append(addrs, a)
		}
	}
	o.lock.Unlock()

	for _, a := range addrs {
		if err := o.AssertBalance(a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AssertConservation checks that the observed sum of tracked balances
// equals the initial sum adjusted by money that entered or left the tracked
// set (burned fees included).
func (o *Oracle) AssertConservation() error {
	o.lock.Lock()
	var addrs []common.Address
	for _, a := range o.order {
		if !o.excluded[a] {
			addrs = append(addrs, a)
		}
	}
	expected := new(uint256.Int).Add(o.initial, o.inflow)
	outflow := new(uint256.Int).Set(o.outflow)
	o.lock.Unlock()

	observed := new(uint256.Int)
	for _, a := range addrs {
		bal, err := o.reader.GetBalance(a, citarpc.Latest)
		if err != nil {
			return err
		}
		observed.Add(observed, bal)
	}
	observed.Add(observed, outflow)
	if !observed.Eq(expected) {
		return violation("tracked supply", expected.ToBig().String(), observed.ToBig().String())
	}
	return nil
}

// AssertStorage compares the expected storage word with the observed one.
func (o *Oracle) AssertStorage(contract common.Address, key common.Hash) error {
	o.lock.Lock()
	expected, ok := o.storage[storageKey{contract, key}]
	o.lock.Unlock()
	if !ok {
		return fmt.Errorf("no expected value for %s at %s", key, contract)
	}
	observed, err := o.reader.GetStorageAt(contract, key, citarpc.Latest)
	if err != nil {
		return err
	}
	if observed != expected {
		return violation(fmt.Sprintf("storage %s of %s", key, contract), expected.Hex(), observed.Hex())
	}
	return nil
}

// AssertQuotaUsed checks that a simple transfer consumed exactly the
// intrinsic quota for its payload.
func (o *Oracle) AssertQuotaUsed(r *result.Receipt, payload []byte) error {
	expected := o.fee.IntrinsicQuota(payload)
	if !r.QuotaUsed.IsUint64() || r.QuotaUsed.Uint64() != expected {
		return violation("quota used by "+r.TransactionHash.Hex(), expected, r.QuotaUsed.String())
	}
	return nil
}

// AssertEqual is a generic equality check producing InvariantViolation.
func (o *Oracle) AssertEqual(subject string, expected, observed interface{}) error {
	return AssertEqual(subject, expected, observed)
}

// AssertBlocksEqual compares blocks structurally using their raw JSON.
func (o *Oracle) AssertBlocksEqual(a, b *result.Block) error {
	return AssertBlocksEqual(a, b)
}

// AssertEqual returns InvariantViolation if the values are not deeply equal.
func AssertEqual(subject string, expected, observed interface{}) error {
	if eb, ok := expected.([]byte); ok {
		if ob, ok := observed.([]byte); ok && bytes.Equal(eb, ob) {
			return nil
		}
	} else if reflect.DeepEqual(expected, observed) {
		return nil
	}
	return violation(subject, expected, observed)
}

// AssertBlocksEqual returns InvariantViolation with a diff if the blocks
// differ structurally.
func AssertBlocksEqual(a, b *result.Block) error {
	ja, err := canonical(a)
	if err != nil {
		return err
	}
	jb, err := canonical(b)
	if err != nil {
		return err
	}
	if ja == jb {
		return nil
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(ja),
		B:        difflib.SplitLines(jb),
		FromFile: "Expected",
		ToFile:   "Observed",
		Context:  1,
	})
	v := violation("block "+a.Hash.Hex(), a.Hash.Hex(), b.Hash.Hex())
	v.Diff = diff
	return v
}

// canonical returns indented JSON with sorted keys.
func canonical(b *result.Block) (string, error) {
	raw := []byte(b.Raw)
	if len(raw) == 0 {
		var err error
		raw, err = json.Marshal(b)
		if err != nil {
			return "", err
		}
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}
