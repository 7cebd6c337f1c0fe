// Package money converts between gateway minor units (kobo, int64) and
// major-unit decimals for display. All arithmetic in the service happens on
// int64 kobo; decimals exist only at the API edge.
package money

import "github.com/shopspring/decimal"

const minorUnitsPerMajor = 100

// ToMajor converts an amount in kobo to a naira decimal (two places).
func ToMajor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// ToMajorString renders kobo as a fixed two-decimal naira string, e.g.
// 500000 -> "5000.00".
func ToMajorString(minor int64) string {
	return ToMajor(minor).StringFixed(2)
}

// FromMajor converts a major-unit decimal to kobo, truncating any precision
// beyond two decimal places. Caller-supplied amounts with sub-kobo precision
// are rejected upstream by validation.
func FromMajor(major decimal.Decimal) int64 {
	return major.Mul(decimal.NewFromInt(minorUnitsPerMajor)).IntPart()
}
