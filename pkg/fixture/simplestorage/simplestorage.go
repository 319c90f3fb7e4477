/*
Package simplestorage provides a fixture for the MyStore contract, a contract
keeping a single uint256 word in storage slot 0:

	contract MyStore {
	    uint value;
	    constructor() public {
	        value = 9999999;
	    }
	    function set(uint x) public {
	        value = x;
	    }
	    function get() public constant returns (uint) {
	        return value;
	    }
	}
*/
package simplestorage

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
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc/result"
	"github.com/nspcc-dev/rpcprobe/pkg/oracle"
	"github.com/nspcc-dev/rpcprobe/pkg/rpcclient/actor"
)

const (
	// InitialValue is the value stored by the constructor.
	InitialValue = 9999999
	// RuntimeCodeLen is the length of the deployed code.
	RuntimeCodeLen = 223
	// DefaultDeployQuota is the quota limit used for deployment.
	DefaultDeployQuota = 1000000
	// DefaultCallQuota is the quota limit used for set calls.
	DefaultCallQuota = 100000

	// ABIJSON is the contract ABI.
	ABIJSON = `[
	{"constant":false,"inputs":[{"name":"x","type":"uint256"}],"name":"set","outputs":[],"payable":false,"stateMutability":"nonpayable","type":"function"},
	{"constant":true,"inputs":[],"name":"get","outputs":[{"name":"","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"},
	{"inputs":[],"payable":false,"stateMutability":"nonpayable","type":"constructor"}
]`
)

const creationHex = "608060405234801561001057600080fd5b506298967f60008190555060df806100296000396000f300" +
	"6080604052600436106049576000357c0100000000000000000000000000000000000000000000000000000000900463ffffffff" +
	"16806360fe47b114604e5780636d4ce63c146078575b600080fd5b348015605957600080fd5b50607660048036038101908080" +
	"35906020019092919050505060a0565b005b348015608357600080fd5b50608a60aa565b604051808281526020019150506040" +
	"5180910390f35b8060008190555050565b600080549050905600a165627a7a72305820b3ccec4d8cbe393844da31834b7464f2" +
	"3d3b81b24f36ce7e18bb09601f2eb8660029"

var (
	// CreationCode is the contract creation (constructor) code.
	CreationCode = common.FromHex(creationHex)
	// RuntimeCode is the code getCode returns for a deployed contract.
	RuntimeCode = CreationCode[len(CreationCode)-RuntimeCodeLen:]

	// SetSelector is the selector of set(uint256).
	SetSelector = []byte{0x60, 0xfe, 0x47, 0xb1}
	// GetSelector is the selector of get().
	GetSelector = []byte{0x6d, 0x4c, 0xe6, 0x3c}

	// ValueSlot is the storage key of the stored value.
	ValueSlot = common.Hash{}

	// ErrDeployFailed is returned when the deployment receipt has an error.
	ErrDeployFailed = errors.New("contract deployment failed")

	contractABI = mustParseABI()
)

func mustParseABI() abi.ABI {
	a, err := abi.JSON(strings.NewReader(ABIJSON))
	if err != nil {
		panic(err)
	}
	return a
}

// Reader is the read-only part of the RPC client the contract needs.
type Reader interface {
	Call(req result.CallRequest, height citarpc.BlockTag) ([]byte, error)
	GetCode(addr common.Address, height citarpc.BlockTag) ([]byte, error)
	GetStorageAt(addr common.Address, key common.Hash, height citarpc.BlockTag) (common.Hash, error)
}

// Contract is a deployed MyStore instance bound to an actor.
type Contract struct {
	address common.Address
	actor   *actor.Actor
	reader  Reader
}

// NewContract binds an already deployed contract.
func NewContract(addr common.Address, act *actor.Actor, r Reader) *Contract {
	return &Contract{address: addr, actor: act, reader: r}
}

// PackSet returns the input of a set(value) call.
func PackSet(value *uint256.Int) ([]byte, error) {
	return contractABI.Pack("set", value.ToBig())
}

// PackGet returns the input of a get() call.
func PackGet() []byte {
	b, err := contractABI.Pack("get")
	if err != nil {
		panic(err)
	}
	return b
}

// UnpackGet decodes get() output.
func UnpackGet(data []byte) (*uint256.Int, error) {
	out, err := contractABI.Unpack("get", data)
	if err != nil {
		return nil, fmt.Errorf("bad get() output %x: %w", data, err)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected get() output type %T", out[0])
	}
	res, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("get() output overflows: %s", v)
	}
	return res, nil
}

// Deploy deploys a new contract instance and waits for it to be included.
// The predicted contract address is checked against the one reported in
// the receipt, if any.
func Deploy(ctx context.Context, act *actor.Actor, r Reader, quota uint64) (*Contract, *result.Receipt, error) {
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
	return NewContract(addr, act, r), rcpt, nil
}

// Address returns contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// Set stores the value and waits for the transaction to be included.
func (c *Contract) Set(ctx context.Context, value *uint256.Int) (*result.Receipt, error) {
	input, err := PackSet(value)
	if err != nil {
		return nil, err
	}
	tx, err := c.actor.MakeCall(c.address, input, DefaultCallQuota)
	if err != nil {
		return nil, err
	}
	rcpt, err := c.actor.SendAndWait(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("set(%s): %w", value, err)
	}
	return rcpt, nil
}

// GetRaw performs get() call without a transaction and returns raw output.
func (c *Contract) GetRaw() ([]byte, error) {
	from := c.actor.Address()
	return c.reader.Call(result.CallRequest{
		From: &from,
		To:   c.address,
		Data: PackGet(),
	}, citarpc.Latest)
}

// Get performs get() call and decodes the value.
func (c *Contract) Get() (*uint256.Int, error) {
	raw, err := c.GetRaw()
	if err != nil {
		return nil, err
	}
	return UnpackGet(raw)
}

// Slot returns the value of storage slot 0 as seen by getStorageAt.
func (c *Contract) Slot() (common.Hash, error) {
	return c.reader.GetStorageAt(c.address, ValueSlot, citarpc.Latest)
}

// Code returns the deployed code.
func (c *Contract) Code() ([]byte, error) {
	return c.reader.GetCode(c.address, citarpc.Latest)
}

// IsRuntimeCode checks whether the given code is the MyStore runtime code.
func IsRuntimeCode(code []byte) bool {
	return bytes.Equal(code, RuntimeCode)
}
