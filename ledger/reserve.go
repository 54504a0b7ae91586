package ledger

import (
	"github.com/shopspring/decimal"
)

// baseReserve and the per-entry reserve multiplier are the network-wide
// constants spec §4.A references for native-asset reserve accounting.
var (
	baseReserve     = decimal.RequireFromString("1")
	perEntryReserve = decimal.RequireFromString("0.5")
	nativePrecision = int32(7)
)

// AvailableNativeBalance computes the spendable native (XLM) balance given
// the account's total balance and its number of subentries (trustlines,
// offers, signers, data entries), per spec §4.A:
//
//	available = total - (1 + 0.5*trustline_count)
//
// The result is rounded to 7 fractional digits, matching native asset
// precision.
func AvailableNativeBalance(totalBalance string, subentryCount int32) (string, error) {
	total, err := decimal.NewFromString(totalBalance)
	if err != nil {
		return "", err
	}
	reserve := baseReserve.Add(perEntryReserve.Mul(decimal.NewFromInt32(subentryCount)))
	available := total.Sub(reserve)
	if available.IsNegative() {
		available = decimal.Zero
	}
	return available.Round(nativePrecision).String(), nil
}
