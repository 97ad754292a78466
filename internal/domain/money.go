package domain

import (
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits carried by balances and amounts.
const MoneyScale = 2

// MaxDeposit caps a single deposit. It is a policy guard, not a limit on balances.
var MaxDeposit = decimal.NewFromInt(10_000_000)

// Amounts outside this exponent window are rejected before any rescaling.
const (
	minAmountExponent = -18
	maxAmountExponent = 18
)

// InRange reports whether d's exponent is small enough to rescale cheaply.
func InRange(d decimal.Decimal) bool {
	e := d.Exponent()
	return e >= minAmountExponent && e <= maxAmountExponent
}

// IsMoney reports whether d is strictly positive and has at most MoneyScale fractional digits.
func IsMoney(d decimal.Decimal) bool {
	return InRange(d) && d.IsPositive() && d.Equal(d.Truncate(MoneyScale))
}

// CheckAmount validates a monetary input. A zero max means no upper bound.
func CheckAmount(field string, amount, max decimal.Decimal) error {
	if !InRange(amount) {
		return Invalid(field, "money", "is out of range")
	}
	if !amount.IsPositive() {
		return Invalid(field, "gt", "must be greater than 0")
	}
	if !amount.Equal(amount.Truncate(MoneyScale)) {
		return Invalid(field, "money", "must have at most 2 decimal places")
	}
	if !max.IsZero() && amount.GreaterThan(max) {
		return Invalid(field, "lte", "must be less than or equal to "+max.String())
	}
	return nil
}

// ParseAmount parses a decimal string and validates it as a positive amount.
func ParseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, Invalid(field, "decimal", "must be a decimal number")
	}
	if err := CheckAmount(field, d, decimal.Zero); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}
