// Package fee computes the charge on each kind of money movement and decides
// where collected fees go.
package fee

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/mobile_money/internal/account"
	"github.com/congo-pay/mobile_money/internal/ledger"
	"github.com/congo-pay/mobile_money/internal/money"
)

// ErrBelowMinimum is returned for transfers under TransferMinimum.
var ErrBelowMinimum = errors.New("amount is below the transfer minimum")

var (
	// TransferMinimum is the smallest amount a transfer may move.
	TransferMinimum = decimal.NewFromInt(50)
	// TransferFlatFeeThreshold is the amount above which transfers pay TransferFlatFee.
	TransferFlatFeeThreshold = decimal.NewFromInt(100)
	// TransferFlatFee is the flat charge on large transfers.
	TransferFlatFee = decimal.NewFromInt(5)
	// CashOutRate is the proportional charge on cash-out.
	CashOutRate = decimal.RequireFromString("0.015")
)

// Disposal says what happens to a fee once it has been debited.
type Disposal string

const (
	// Burn removes the fee from circulation.
	Burn Disposal = "burn"
	// Collect credits the fee to the platform fee account.
	Collect Disposal = "collect"
)

// ParseDisposal reads a disposal name; the empty string means Burn.
func ParseDisposal(s string) (Disposal, error) {
	switch d := Disposal(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return Burn, nil
	case Burn, Collect:
		return d, nil
	default:
		return "", fmt.Errorf("unknown fee disposal %q", s)
	}
}

// Policy is the fee schedule plus its disposal rule.
type Policy struct {
	Disposal Disposal
	// AccountID is the system account credited under Collect.
	AccountID string
}

// NewPolicy builds a policy. Collect requires an account id.
func NewPolicy(disposal Disposal, accountID string) (Policy, error) {
	if disposal == "" {
		disposal = Burn
	}
	if disposal == Collect && accountID == "" {
		return Policy{}, errors.New("fee account id is required to collect fees")
	}
	return Policy{Disposal: disposal, AccountID: accountID}, nil
}

// CheckMinimum rejects amounts under the minimum for the kind. Cash kinds
// carry no minimum.
func (Policy) CheckMinimum(kind ledger.Kind, amount decimal.Decimal) error {
	if kind == ledger.KindTransfer && amount.LessThan(TransferMinimum) {
		return fmt.Errorf("%s of %s: %w", kind, amount.StringFixed(money.Places), ErrBelowMinimum)
	}
	return nil
}

// Compute returns the fee charged on amount.
func (Policy) Compute(kind ledger.Kind, amount decimal.Decimal) decimal.Decimal {
	switch kind {
	case ledger.KindTransfer:
		if amount.GreaterThan(TransferFlatFeeThreshold) {
			return TransferFlatFee
		}
	case ledger.KindCashOut:
		return money.Round(amount.Mul(CashOutRate))
	}
	return money.Zero
}

// Collects reports whether fees are credited to the fee account.
func (p Policy) Collects() bool {
	return p.Disposal == Collect && p.AccountID != ""
}

// Dispose handles a fee the caller has already debited. It must run inside
// the unit that debited it.
func (p Policy) Dispose(ctx context.Context, store account.Store, amount decimal.Decimal) error {
	if !amount.IsPositive() || !p.Collects() {
		return nil
	}
	if _, err := account.Credit(ctx, store, p.AccountID, amount); err != nil {
		return fmt.Errorf("collect fee: %w", err)
	}
	return nil
}

// LockIDs returns the accounts Dispose touches so callers can lock them with
// the other parties of the unit.
func (p Policy) LockIDs() []string {
	if p.Collects() {
		return []string{p.AccountID}
	}
	return nil
}
