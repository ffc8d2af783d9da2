package domain

import (
	"github.com/shopspring/decimal"
)

// FormatAmount renders an amount with exactly two decimal places, as printed on statements.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// IsPositive reports whether amount is strictly greater than zero.
func IsPositive(amount decimal.Decimal) bool {
	return amount.GreaterThan(decimal.Zero)
}

// CanDebit reports whether balance covers amount without going negative.
func CanDebit(balance, amount decimal.Decimal) bool {
	return balance.GreaterThanOrEqual(amount)
}
