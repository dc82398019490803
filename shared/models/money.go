package models

import "github.com/shopspring/decimal"

// MoneyScale is the number of fractional digits carried by every amount.
const MoneyScale = 2

var minorUnitsPerMajor = decimal.NewFromInt(100)

// ToMinorUnits converts an amount to the provider's integer minor units (kobo).
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(minorUnitsPerMajor).Round(0).IntPart()
}

// FromMinorUnits converts integer minor units back to a two-decimal amount.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -MoneyScale)
}

// HasMoneyScale reports whether amount has no more than two fractional digits.
func HasMoneyScale(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(MoneyScale))
}

// FormatMoney renders amount with exactly two fractional digits.
func FormatMoney(amount decimal.Decimal) string {
	return amount.StringFixed(MoneyScale)
}
