/*
Package emitter provides a fixture for a minimal event-emitting contract. Any
call to it emits

	event Emitted(address indexed sender, uint256 indexed value, uint256 height);

where sender is the caller, value is the first word of the call input and
height is the number of the block including the call. The contract has no
storage and no functions, its code is assembled by hand.
*/
package emitter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc/result"
	"github.com/nspcc-dev/rpcprobe/pkg/oracle"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient/actor"
)

const (
	// RuntimeCodeLen is the length of the deployed code.
	RuntimeCodeLen = 47
	// DefaultDeployQuota is the quota limit used for deployment.
	DefaultDeployQuota = 200000
	// DefaultEmitQuota is the quota limit used for emitting calls.
	DefaultEmitQuota = 100000

	// ABIJSON is the contract ABI.
	ABIJSON = `[
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"sender","type":"address"},
		{"indexed":true,"name":"value","type":"uint256"},
		{"indexed":false,"name":"height","type":"uint256"}
	],"name":"Emitted","type":"event"}
]`
)

var (
	// EventID is the first topic of every log the contract emits.
	EventID common.Hash
	// RuntimeCode is the code getCode returns for a deployed contract.
	RuntimeCode []byte
	// CreationCode is the contract creation code.
	CreationCode []byte

	// ErrDeployFailed is returned when the deployment receipt has an error.
	ErrDeployFailed = errors.New("contract deployment failed")

	contractABI abi.ABI
)

func init() {
	var err error
	contractABI, err = abi.JSON(strings.NewReader(ABIJSON))
	if err != nil {
		panic(err)
	}
	EventID = contractABI.Events["Emitted"].ID

	// NUMBER; PUSH1 0; MSTORE; PUSH1 0; CALLDATALOAD; CALLER; PUSH32 EventID;
	// PUSH1 32; PUSH1 0; LOG3; STOP
	RuntimeCode = append([]byte{0x43, 0x60, 0x00, 0x52, 0x60, 0x00, 0x35, 0x33, 0x7f}, EventID.Bytes()...)
	RuntimeCode = append(RuntimeCode, 0x60, 0x20, 0x60, 0x00, 0xa3, 0x00)
	if len(RuntimeCode) != RuntimeCodeLen {
		panic("bad runtime code length")
	}
	// PUSH1 len; DUP1; PUSH1 11; PUSH1 0; CODECOPY; PUSH1 0; RETURN
	CreationCode = append([]byte{0x60, RuntimeCodeLen, 0x80, 0x60, 0x0b, 0x60, 0x00, 0x39, 0x60, 0x00, 0xf3}, RuntimeCode...)
}

// Contract is a deployed emitter bound to an actor.
type Contract struct {
	address common.Address
	actor   *actor.Actor
}

// NewContract binds an already deployed contract.
func NewContract(addr common.Address, act *actor.Actor) *Contract {
	return &Contract{address: addr, actor: act}
}

// Deploy deploys a new contract instance and waits for it to be included.
func Deploy(ctx context.Context, act *actor.Actor, quota uint64) (*Contract, *result.Receipt, error) {
	if quota == 0 {
		quota = DefaultDeployQuota
	}
	tx, addr, err := act.MakeDeploy(CreationCode, quota)
	if err != nil {
		return nil, nil, err
	}
	rcpt, err := act.SendAndWait(ctx, tx)
	if err != nil {
		return nil, nil, fmt.Errorf("deploy: %w", err)
	}
	if rcpt.Failed() {
		return nil, rcpt, fmt.Errorf("%w: %s", ErrDeployFailed, *rcpt.ErrorMessage)
	}
	if rcpt.ContractAddress != nil {
		if err := oracle.AssertEqual("contract address", addr, *rcpt.ContractAddress); err != nil {
			return nil, rcpt, err
		}
	}
	return NewContract(addr, act), rcpt, nil
}

// Address returns contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// Emit calls the contract with the given value and waits for the
// transaction to be included.
func (c *Contract) Emit(ctx context.Context, value *uint256.Int) (*result.Receipt, error) {
	input := value.Bytes32()
	tx, err := c.actor.MakeCall(c.address, input[:], DefaultEmitQuota)
	if err != nil {
		return nil, err
	}
	rcpt, err := c.actor.SendAndWait(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("emit(%s): %w", value, err)
	}
	return rcpt, nil
}

// Topics returns the topics of the log emitted for the sender and value.
func Topics(sender common.Address, value *uint256.Int) []common.Hash {
	return []common.Hash{EventID, common.BytesToHash(sender.Bytes()), value.Bytes32()}
}

// UnpackHeight decodes the non-indexed part of the log.
func UnpackHeight(data []byte) (uint64, error) {
	out, err := contractABI.Unpack("Emitted", data)
	if err != nil {
		return 0, fmt.Errorf("bad Emitted data %x: %w", data, err)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unexpected Emitted data type %T", out[0])
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("height overflows: %s", v)
	}
	return v.Uint64(), nil
}

// IsRuntimeCode checks whether the given code is the emitter runtime code.
func IsRuntimeCode(code []byte) bool {
	return bytes.Equal(code, RuntimeCode)
}
