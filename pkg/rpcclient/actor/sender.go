package actor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc/result"
	"github.com/nspcc-dev/rpcprobe/pkg/core/transaction"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient/waiter"
	"go.uber.org/zap"
)

// State is a transaction lifecycle state.
type State byte

// Transaction lifecycle states. Confirmed, TimedOut and Rejected are
// terminal.
const (
	Built State = iota
	Signed
	Submitted
	Pending
	Confirmed
	TimedOut
	Rejected
)

var stateNames = [...]string{
	Built:     "built",
	Signed:    "signed",
	Submitted: "submitted",
	Pending:   "pending",
	Confirmed: "confirmed",
	TimedOut:  "timed out",
	Rejected:  "rejected",
}

// String implements fmt.Stringer interface.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("unknown(%d)", byte(s))
}

// IsFinal returns true for terminal states.
func (s State) IsFinal() bool {
	return s >= Confirmed
}

// Submission tracks a signed transaction through its lifecycle. It's safe
// for concurrent reads.
type Submission struct {
	tx *transaction.Signed

	lock    sync.RWMutex
	state   State
	hash    common.Hash
	receipt *result.Receipt
	err     error
}

// NewSubmission creates a Submission in Signed state.
func NewSubmission(tx *transaction.Signed) *Submission {
	return &Submission{tx: tx, state: Signed}
}

// Transaction returns the submitted transaction.
func (s *Submission) Transaction() *transaction.Signed {
	return s.tx
}

// State returns the current state.
func (s *Submission) State() State {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.state
}

// Hash returns the hash reported by the node, zero until submitted.
func (s *Submission) Hash() common.Hash {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.hash
}

// Receipt returns the receipt of a confirmed transaction.
func (s *Submission) Receipt() *result.Receipt {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.receipt
}

// Err returns the error that moved the submission into TimedOut or
// Rejected state.
func (s *Submission) Err() error {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.err
}

func (s *Submission) set(st State) {
	s.lock.Lock()
	s.state = st
	s.lock.Unlock()
}

func (s *Submission) fail(err error) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if errors.Is(err, waiter.ErrConfirmationTimeout) {
		s.state = TimedOut
	} else {
		s.state = Rejected
	}
	s.err = err
	return err
}

// Send submits the transaction and returns the hash reported by the node.
func (a *Actor) Send(tx *transaction.Signed) (common.Hash, error) {
	h, err := a.client.SendRawTransaction(tx)
	if err != nil {
		a.log.Debug("transaction rejected", zap.Stringer("hash", tx.Hash()), zap.Error(err))
		return common.Hash{}, err
	}
	if local := tx.Hash(); h != local {
		a.log.Warn("node reported a different transaction hash",
			zap.Stringer("node", h), zap.Stringer("local", local))
	} else {
		a.log.Debug("transaction sent", zap.Stringer("hash", h))
	}
	return h, nil
}

// Submit sends the transaction and waits for its receipt, the returned
// Submission is always in a terminal state. The error is the same as the
// one Submission.Err returns.
func (a *Actor) Submit(ctx context.Context, tx *transaction.Signed) (*Submission, error) {
	s := NewSubmission(tx)
	s.set(Submitted)
	h, err := a.Send(tx)
	if err != nil {
		return s, s.fail(err)
	}
	s.lock.Lock()
	s.hash = h
	s.state = Pending
	s.lock.Unlock()

	rcpt, err := a.WaitForReceipt(ctx, h)
	if err != nil {
		return s, s.fail(err)
	}
	s.lock.Lock()
	s.receipt = rcpt
	s.state = Confirmed
	s.lock.Unlock()
	return s, nil
}

// SendAndWait sends the transaction and waits for its receipt.
func (a *Actor) SendAndWait(ctx context.Context, tx *transaction.Signed) (*result.Receipt, error) {
	s, err := a.Submit(ctx, tx)
	if err != nil {
		return nil, err
	}
	return s.Receipt(), nil
}

// SendTransfer creates and sends a transfer transaction.
func (a *Actor) SendTransfer(to common.Address, value *uint256.Int, data []byte) (common.Hash, error) {
	tx, err := a.MakeTransfer(to, value, data)
	if err != nil {
		return common.Hash{}, err
	}
	return a.Send(tx)
}

// Transfer creates a transfer transaction, sends it and waits for the
// receipt.
func (a *Actor) Transfer(ctx context.Context, to common.Address, value *uint256.Int, data []byte) (*result.Receipt, error) {
	tx, err := a.MakeTransfer(to, value, data)
	if err != nil {
		return nil, err
	}
	return a.SendAndWait(ctx, tx)
}
