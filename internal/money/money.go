// Package money converts decimal currency amounts to integer minor units
// (centavos) so that all funding comparisons are exact. Binary floating
// point must never be compared directly anywhere funding math happens;
// convert first, compare cents.
package money

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// brl renders amounts the way guests expect to read them (1.234,56).
var brl = message.NewPrinter(language.BrazilianPortuguese)

// ToMinorUnits converts a decimal currency amount to integer minor units,
// rounding half up (0.005 -> 1 cent). The conversion goes through
// shopspring/decimal so values like 0.1 or 19.99 survive exactly.
func ToMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts integer minor units back to a decimal amount.
func FromMinorUnits(cents int64) float64 {
	f, _ := decimal.New(cents, -2).Float64()
	return f
}

// FormatBRL renders minor units as a pt-BR currency string, e.g. "R$ 600,00".
// Used in user-facing validation messages.
func FormatBRL(cents int64) string {
	v, _ := decimal.New(cents, -2).Float64()
	return brl.Sprintf("R$ %.2f", v)
}
