package scenario

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nspcc-dev/rpcprobe/pkg/wallet"
)

// ErrNotEnoughAccounts is returned when more accounts are requested than
// the pool has.
var ErrNotEnoughAccounts = errors.New("not enough accounts")

// AccountPool hands out disjoint account sets to concurrently running
// scenarios.
type AccountPool struct {
	accounts []*wallet.Account

	lock     sync.Mutex
	busy     []bool
	released chan struct{}
}

// NewAccountPool creates a pool of the given accounts.
func NewAccountPool(accs []*wallet.Account) *AccountPool {
	return &AccountPool{
		accounts: accs,
		busy:     make([]bool, len(accs)),
		released: make(chan struct{}),
	}
}

// Size returns the number of accounts in the pool.
func (p *AccountPool) Size() int {
	return len(p.accounts)
}

// Lease takes n free accounts, blocking until there are enough of them.
// Accounts are taken in pool order.
func (p *AccountPool) Lease(ctx context.Context, n int) ([]*wallet.Account, error) {
	if n > len(p.accounts) {
		return nil, fmt.Errorf("%w: %d requested, %d available", ErrNotEnoughAccounts, n, len(p.accounts))
	}
	if n <= 0 {
		return nil, nil
	}
	for {
		p.lock.Lock()
		if res := p.take(n); res != nil {
			p.lock.Unlock()
			return res, nil
		}
		released := p.released
		p.lock.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-released:
		}
	}
}

// take marks n free accounts busy and returns them, nil if there are not
// enough of them. Pool lock must be held.
func (p *AccountPool) take(n int) []*wallet.Account {
	idx := make([]int, 0, n)
	for i := range p.busy {
		if !p.busy[i] {
			idx = append(idx, i)
			if len(idx) == n {
				break
			}
		}
	}
	if len(idx) < n {
		return nil
	}
	res := make([]*wallet.Account, n)
	for j, i := range idx {
		p.busy[i] = true
		res[j] = p.accounts[i]
	}
	return res
}

// Release returns accounts to the pool.
func (p *AccountPool) Release(accs []*wallet.Account) {
	if len(accs) == 0 {
		return
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	for _, acc := range accs {
		for i := range p.accounts {
			if p.accounts[i] == acc {
				p.busy[i] = false
			}
		}
	}
	close(p.released)
	p.released = make(chan struct{})
}
