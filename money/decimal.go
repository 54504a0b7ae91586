// Package money provides arbitrary-precision decimal helpers shared by the
// rates, fees, quote, transaction, and billpayment packages. Spec §3 and §9
// require canonical decimal strings end to end; binary floats are never used
// for amounts, rates, or fees, including in log output.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PegTolerance is the default maximum allowed deviation from 1 for the
// (NGN, cNGN) pair, per spec §4.D.
const PegTolerance = "0.0001"

// Parse parses a canonical decimal string. It never accepts binary float
// literals implicitly — callers must already have a string.
func Parse(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("money: empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("money: invalid decimal %q: %w", s, err)
	}
	return d, nil
}

// MustParse is Parse, panicking on error. Reserved for constants and tests.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String renders d as a canonical decimal string.
func String(d decimal.Decimal) string {
	return d.String()
}

// IsNonNegative reports whether s parses to a value >= 0, per the amount
// invariant in spec §3.
func IsNonNegative(s string) bool {
	d, err := Parse(s)
	if err != nil {
		return false
	}
	return !d.IsNegative()
}

// RoundDisplay rounds d half-to-even to the given number of decimal places.
// Spec §4.C: rounding happens only at the API boundary; internal values keep
// full precision.
func RoundDisplay(d decimal.Decimal, places int32) decimal.Decimal {
	return d.RoundBank(places)
}

// WithinTolerance reports whether |value - target| <= tolerance, all as
// decimal strings. Used to validate the cNGN peg (spec §4.D).
func WithinTolerance(value, target, tolerance string) (bool, error) {
	v, err := Parse(value)
	if err != nil {
		return false, err
	}
	t, err := Parse(target)
	if err != nil {
		return false, err
	}
	tol, err := Parse(tolerance)
	if err != nil {
		return false, err
	}
	diff := v.Sub(t).Abs()
	return diff.LessThanOrEqual(tol), nil
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
