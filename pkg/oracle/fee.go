package oracle

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Default fee model values.
const (
	DefaultBaseQuota    = 21000
	DefaultPerByteQuota = 68
	DefaultQuotaPrice   = 1
)

// FeeModel describes how transaction fees are computed and where they go.
type FeeModel struct {
	// BaseQuota is the quota every transaction consumes.
	BaseQuota uint64
	// PerByteQuota is the quota consumed by every payload byte.
	PerByteQuota uint64
	// QuotaPrice converts used quota into the fee.
	QuotaPrice uint64
	// Beneficiary is credited with every fee, nil means fees are burned.
	Beneficiary *common.Address
}

// DefaultFeeModel returns the fee model with fees burned.
func DefaultFeeModel() FeeModel {
	return FeeModel{
		BaseQuota:    DefaultBaseQuota,
		PerByteQuota: DefaultPerByteQuota,
		QuotaPrice:   DefaultQuotaPrice,
	}
}

// IntrinsicQuota returns the minimal quota a simple transfer with the given
// payload consumes.
func (f FeeModel) IntrinsicQuota(payload []byte) uint64 {
	return f.BaseQuota + f.PerByteQuota*uint64(len(payload))
}

// Fee converts used quota into the amount charged from the sender.
func (f FeeModel) Fee(quotaUsed uint64) *uint256.Int {
	price := f.QuotaPrice
	if price == 0 {
		price = DefaultQuotaPrice
	}
	return new(uint256.Int).Mul(uint256.NewInt(quotaUsed), uint256.NewInt(price))
}

// WithBeneficiary returns a copy of the model crediting fees to addr.
func (f FeeModel) WithBeneficiary(addr *common.Address) FeeModel {
	if addr != nil {
		a := *addr
		addr = &a
	}
	f.Beneficiary = addr
	return f
}
