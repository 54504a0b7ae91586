package ledger

import "strings"

// BillMemoPrefix and RefundMemoPrefix implement the wire-level memo protocol
// from spec §6: incoming cNGN payments tagged BILL-{uuid}, outgoing refunds
// tagged REFUND-{uuid}. Comparison is case-insensitive; the canonical form
// has the uppercase prefix followed by the lowercase id.
const (
	BillMemoPrefix   = "BILL-"
	RefundMemoPrefix = "REFUND-"
)

// BuildBillMemo returns the canonical bill-receipt memo for a transaction
// id: "BILL-" followed by the lowercased id.
func BuildBillMemo(transactionID string) string {
	return BillMemoPrefix + strings.ToLower(transactionID)
}

// BuildRefundMemo returns the canonical refund memo for a transaction id:
// "REFUND-" followed by the lowercased id.
func BuildRefundMemo(transactionID string) string {
	return RefundMemoPrefix + strings.ToLower(transactionID)
}

// ParseBillMemo extracts the transaction id from a bill memo, case
// insensitively. ok is false if memo does not carry the BILL- prefix.
func ParseBillMemo(memo string) (transactionID string, ok bool) {
	return parseMemo(memo, BillMemoPrefix)
}

// ParseRefundMemo extracts the transaction id from a refund memo, case
// insensitively. ok is false if memo does not carry the REFUND- prefix.
func ParseRefundMemo(memo string) (transactionID string, ok bool) {
	return parseMemo(memo, RefundMemoPrefix)
}

func parseMemo(memo, prefix string) (string, bool) {
	if len(memo) <= len(prefix) {
		return "", false
	}
	if !strings.EqualFold(memo[:len(prefix)], prefix) {
		return "", false
	}
	return strings.ToLower(memo[len(prefix):]), true
}
