package policy

import (
	"errors"

	"cashless/internal/money"
	"cashless/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrBelowMinimum = errors.New("amount below minimum transfer")
	ErrAboveMaximum = errors.New("amount above maximum allowed")
)

// Policy holds the fee and bonus rules. All amounts are minor units.
type Policy struct {
	MinTransfer     int64
	MaxAmount       int64
	FeeThreshold    int64
	FlatTransferFee int64
	CashOutFeeRate  decimal.Decimal
	AgentBonus      int64
	UserBonus       int64

	// AgentReimbursementOnCashIn debits the approving agent when a cash-in
	// is approved. Off by default: agents are settled out of band.
	AgentReimbursementOnCashIn bool
}

func Default() Policy {
	return Policy{
		MinTransfer:     money.Units(50),
		MaxAmount:       money.Units(10_000_000),
		FeeThreshold:    money.Units(100),
		FlatTransferFee: money.Units(5),
		CashOutFeeRate:  decimal.RequireFromString("0.015"),
		AgentBonus:      money.Units(10000),
		UserBonus:       money.Units(40),
	}
}

func (p Policy) CheckTransferAmount(amount int64) error {
	if amount < p.MinTransfer {
		return ErrBelowMinimum
	}
	return p.checkMax(amount)
}

// CheckRequestAmount bounds cash-in and cash-out amounts. There is no minimum
// beyond a positive amount.
func (p Policy) CheckRequestAmount(amount int64) error {
	if amount <= 0 {
		return ErrBelowMinimum
	}
	return p.checkMax(amount)
}

func (p Policy) checkMax(amount int64) error {
	if p.MaxAmount > 0 && amount > p.MaxAmount {
		return ErrAboveMaximum
	}
	return nil
}

// TransferFee charges the flat fee only when amount is strictly above the threshold.
func (p Policy) TransferFee(amount int64) int64 {
	if amount > p.FeeThreshold {
		return p.FlatTransferFee
	}
	return 0
}

func (p Policy) CashOutFee(amount int64) int64 {
	return money.ApplyRate(amount, p.CashOutFeeRate)
}

// TransferTotal is what the sender pays: amount plus the flat fee.
func (p Policy) TransferTotal(amount int64) (fee, total int64, err error) {
	if err := p.CheckTransferAmount(amount); err != nil {
		return 0, 0, err
	}
	fee = p.TransferFee(amount)
	total, err = money.Add(amount, fee)
	return fee, total, err
}

// CashOutTotal is what a cash-out approval deducts from the requester.
func (p Policy) CashOutTotal(amount int64) (int64, error) {
	if err := p.CheckRequestAmount(amount); err != nil {
		return 0, err
	}
	return money.Add(amount, p.CashOutFee(amount))
}

// ActivationBonus returns the bonus owed for a status change, or 0.
func (p Policy) ActivationBonus(prev, next models.Status, role models.Role) int64 {
	if next != models.StatusActive || prev == models.StatusActive {
		return 0
	}
	if role == models.RoleAgent {
		return p.AgentBonus
	}
	return p.UserBonus
}
