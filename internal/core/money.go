// Package core provides money parsing and handling utilities.
//
// Amounts are exact decimals. Parsing accepts both dot (12.34) and comma (12,34)
// separators and rounds half-up to cents; currency codes are checked against the
// ISO 4217 table shipped with go-money.
package core

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseAmount converts a decimal string to a positive amount rounded to cents.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,34")  -> 12.34
//	ParseAmount("12.345") -> 12.35 (half-up)
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, BadRequest("amount is required")
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		// Only positive values allowed
		return decimal.Zero, BadRequest("invalid amount %q", s)
	}
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, BadRequest("invalid amount %q", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, BadRequest("invalid amount %q", s)
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, BadRequest("amount must be positive")
	}
	return d, nil
}

// ParseSignedAmount is ParseAmount for balances, where zero and negative values are legal.
func ParseSignedAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, BadRequest("invalid amount %q", s)
	}
	return d.Round(2), nil
}

// ValidateCurrency normalizes an ISO 4217 code and rejects unknown ones.
func ValidateCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", BadRequest("currency is required")
	}
	if money.GetCurrency(code) == nil {
		return "", BadRequest("unknown currency %q", code)
	}
	return code, nil
}

// FormatAmount renders amount in the currency's display format, e.g. "$1,234.50".
// Unknown currencies fall back to the plain decimal and the code.
func FormatAmount(amount decimal.Decimal, code string) string {
	cur := money.GetCurrency(code)
	if cur == nil {
		return amount.StringFixed(2) + " " + code
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}

// Percent returns part/whole rounded to 4 places and scaled to a percentage,
// so 150/1000 gives 15. A zero whole yields 0.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.DivRound(whole, 4).Mul(hundred)
}
