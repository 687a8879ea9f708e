// Package money holds the amount rules shared by every money-moving
// operation. Amounts are exact decimals with minor-unit precision.
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits a valid amount may carry.
const Places = 2

// ErrInvalidAmount is returned for non-positive amounts or amounts finer than
// the minor unit.
var ErrInvalidAmount = errors.New("amount must be positive with at most 2 decimal places")

// Zero is the zero amount.
var Zero = decimal.Zero

// Validate checks that amount can be moved.
func Validate(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(Places)) {
		return ErrInvalidAmount
	}
	return nil
}

// Round rounds half away from zero to minor-unit precision.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(Places)
}
