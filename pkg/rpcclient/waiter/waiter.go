/*
Package waiter implements awaiting of transaction confirmation. Transactions
are considered confirmed once the node returns a receipt with a block number.
*/
package waiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc/result"
)

const (
	// DefaultPollInterval is the default delay between receipt queries,
	// it's the usual block interval of test chains.
	DefaultPollInterval = 3 * time.Second
	// DefaultMaxAttempts is the default number of receipt queries made
	// before giving up.
	DefaultMaxAttempts = 10
)

var (
	// ErrConfirmationTimeout is returned when no receipt with a block number
	// was received after all attempts.
	ErrConfirmationTimeout = errors.New("transaction was not confirmed")
	// ErrReceiptMismatch is returned when the node returns a receipt for
	// some other transaction.
	ErrReceiptMismatch = errors.New("receipt doesn't match transaction")
	// ErrContextDone is returned when Waiter context has been done in the middle
	// of transaction awaiting process and no result was received yet.
	ErrContextDone = errors.New("waiter context done")
	// ErrAwaitingNotSupported is returned from Wait method if Waiter instance
	// doesn't support transaction awaiting.
	ErrAwaitingNotSupported = errors.New("awaiting not supported")
)

type (
	// Waiter is an interface providing transaction awaiting functionality.
	Waiter interface {
		// Wait allows to wait until transaction will be accepted to the chain. It can be
		// used as a wrapper for Send and accepts transaction hash and an error. A non-nil
		// error is returned as is.
		Wait(h common.Hash, err error) (*result.Receipt, error)
		// WaitForReceipt waits for the transaction receipt. It uses the RPC client
		// context to interrupt awaiting process, but additional ctx can be passed
		// as an argument for the same purpose.
		WaitForReceipt(ctx context.Context, h common.Hash) (*result.Receipt, error)
	}
	// RPCPollingBased is an interface that enables transaction awaiting
	// functionality based on periodical receipt polls.
	RPCPollingBased interface {
		// Context should return the RPC client context to be able to gracefully
		// shut down all running processes (if so).
		Context() context.Context
		GetTransactionReceipt(hash common.Hash) (*result.Receipt, error)
	}
)

// Null is a Waiter stub that doesn't support transaction awaiting functionality.
type Null struct{}

// PollingBased is a polling-based Waiter.
type PollingBased struct {
	polling RPCPollingBased
	config  PollConfig
}

// PollConfig is a configuration for PollingBased waiter.
type PollConfig struct {
	// PollInterval is a time interval between subsequent polls,
	// DefaultPollInterval if not set.
	PollInterval time.Duration
	// MaxAttempts is the number of receipt queries made before
	// ErrConfirmationTimeout is returned, DefaultMaxAttempts if not set.
	MaxAttempts int
}

// TimeoutError is returned when the transaction is not confirmed after all
// attempts. It wraps ErrConfirmationTimeout.
type TimeoutError struct {
	Hash     common.Hash
	Attempts int
	Elapsed  time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: %s after %d attempts (%s)", ErrConfirmationTimeout, e.Hash, e.Attempts, e.Elapsed.Round(time.Millisecond))
}

// Unwrap returns ErrConfirmationTimeout.
func (e *TimeoutError) Unwrap() error {
	return ErrConfirmationTimeout
}

// MismatchError is returned when the receipt returned by the node belongs to
// a different transaction. It wraps ErrReceiptMismatch.
type MismatchError struct {
	Expected common.Hash
	Got      common.Hash
}

// Error implements the error interface.
func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", ErrReceiptMismatch, e.Expected, e.Got)
}

// Unwrap returns ErrReceiptMismatch.
func (e *MismatchError) Unwrap() error {
	return ErrReceiptMismatch
}

// New creates a Waiter. It returns polling-based waiter for RPCPollingBased
// implementations and a stub otherwise.
func New(base interface{}, config PollConfig) Waiter {
	if pollW, ok := base.(RPCPollingBased); ok {
		return NewPollingBased(pollW, config)
	}
	return NewNull()
}

// NewNull creates an instance of Waiter stub.
func NewNull() Null {
	return Null{}
}

// Wait implements Waiter interface.
func (Null) Wait(h common.Hash, err error) (*result.Receipt, error) {
	return nil, ErrAwaitingNotSupported
}

// WaitForReceipt implements Waiter interface.
func (Null) WaitForReceipt(ctx context.Context, h common.Hash) (*result.Receipt, error) {
	return nil, ErrAwaitingNotSupported
}

// NewPollingBased creates an instance of Waiter supporting poll-based
// transaction awaiting. Zero config values are replaced with defaults.
func NewPollingBased(waiter RPCPollingBased, config PollConfig) *PollingBased {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	return &PollingBased{
		polling: waiter,
		config:  config,
	}
}

// Config returns the effective poll configuration.
func (w *PollingBased) Config() PollConfig {
	return w.config
}

// Wait implements Waiter interface.
func (w *PollingBased) Wait(h common.Hash, err error) (*result.Receipt, error) {
	if err != nil {
		return nil, err
	}
	return w.WaitForReceipt(context.TODO(), h)
}

// WaitForReceipt implements Waiter interface. Every attempt waits for one
// poll interval and then queries the receipt. Missing receipts and receipts
// without a block number continue polling, node errors and receipts of
// other transactions are returned immediately.
func (w *PollingBased) WaitForReceipt(ctx context.Context, h common.Hash) (*result.Receipt, error) {
	start := time.Now()
	timer := time.NewTimer(w.config.PollInterval)
	defer timer.Stop()
	for attempt := 1; attempt <= w.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			timer.Reset(w.config.PollInterval)
		}
		select {
		case <-timer.C:
		case <-w.polling.Context().Done():
			return nil, fmt.Errorf("%w: %w", ErrContextDone, w.polling.Context().Err())
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrContextDone, ctx.Err())
		}
		receipt, err := w.polling.GetTransactionReceipt(h)
		if err != nil {
			return nil, fmt.Errorf("failed to get receipt: %w", err)
		}
		if receipt == nil {
			continue
		}
		if receipt.TransactionHash != h {
			return nil, &MismatchError{Expected: h, Got: receipt.TransactionHash}
		}
		if !receipt.Mined() {
			continue
		}
		return receipt, nil
	}
	return nil, &TimeoutError{Hash: h, Attempts: w.config.MaxAttempts, Elapsed: time.Since(start)}
}
