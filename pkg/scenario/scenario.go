/*
Package scenario contains the conformance checks run against a node and the
runner executing them.

Every scenario is a sequence of RPC calls and transactions followed by
assertions made with the oracle. Scenarios are independent of each other,
each one gets its own set of accounts, so they can be run concurrently.
*/
package scenario

import (
	"context"
	"errors"
	"fmt"
)

// Scenario is a single named check.
type Scenario struct {
	Name        string
	Description string
	// Accounts is the number of accounts leased for the scenario.
	Accounts int
	Run      func(ctx context.Context, e *Env) error
}

// ErrUnknownScenario is returned for names not present in the registry.
var ErrUnknownScenario = errors.New("unknown scenario")

// registry is ordered, scenarios are run in this order unless a different
// one is requested.
var registry = []Scenario{
	{Name: "peer-count", Description: "peerCount returns the expected number of peers", Run: peerCount},
	{Name: "block-number", Description: "blockNumber grows over time", Run: blockNumber},
	{Name: "transfer-balance", Description: "simple transfer moves value and charges the intrinsic fee", Accounts: 2, Run: transferBalance},
	{Name: "block-by-hash", Description: "getBlockByHash returns the same block as getBlockByNumber", Run: blockByHash},
	{Name: "block-by-number", Description: "getBlockByNumber includes mined transaction hashes or full transactions", Accounts: 2, Run: blockByNumber},
	{Name: "transfer-with-data", Description: "transfer with payload charges per-byte quota", Accounts: 2, Run: transferWithData},
	{Name: "get-logs", Description: "getLogs returns the emitted event by block, address and topics", Accounts: 1, Run: getLogs},
	{Name: "contract-call", Description: "deployed contract keeps the value set and returns it via call", Accounts: 1, Run: contractCall},
	{Name: "get-transaction", Description: "getTransaction returns the mined transaction with its sender", Accounts: 2, Run: getTransaction},
	{Name: "get-code", Description: "getCode returns the deployed runtime code", Accounts: 1, Run: getCode},
	{Name: "block-header", Description: "getBlockHeader returns header data", Run: blockHeader},
	{Name: "storage-at", Description: "getStorageAt returns the stored word", Accounts: 1, Run: storageAt},
	{Name: "transaction-count", Description: "getTransactionCount grows with every sent transaction", Accounts: 2, Run: transactionCount},
	{Name: "state-proof", Description: "getStateProof returns a proof", Accounts: 1, Run: stateProof},
	{Name: "transaction-proof", Description: "getTransactionProof returns a proof for a mined transaction", Accounts: 2, Run: transactionProof},
	{Name: "filter-block", Description: "block filter reports new blocks once", Run: filterBlock},
	{Name: "filter-logs", Description: "log filter reports the emitted event once", Accounts: 1, Run: filterLogs},
	{Name: "insufficient-quota", Description: "transaction with quota below the intrinsic cost is not executed", Accounts: 2, Run: insufficientQuota},
	{Name: "fee-destination", Description: "fees go to the configured beneficiary or are burned", Accounts: 2, Run: feeDestination},
}

// All returns all scenarios in the default order.
func All() []Scenario {
	return append([]Scenario(nil), registry...)
}

// Names returns names of all scenarios in the default order.
func Names() []string {
	res := make([]string, len(registry))
	for i := range registry {
		res[i] = registry[i].Name
	}
	return res
}

// Get returns the scenario with the given name.
func Get(name string) (Scenario, error) {
	for _, s := range registry {
		if s.Name == name {
			return s, nil
		}
	}
	return Scenario{}, fmt.Errorf("%w: %s", ErrUnknownScenario, name)
}

// Select returns scenarios with the given names in the given order, all of
// them if names is empty.
func Select(names []string) ([]Scenario, error) {
	if len(names) == 0 {
		return All(), nil
	}
	res := make([]Scenario, 0, len(names))
	for _, n := range names {
		s, err := Get(n)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, nil
}
