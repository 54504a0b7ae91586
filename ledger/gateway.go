// Package ledger provides the narrow abstraction over the Stellar ledger
// that the rest of the core consumes (spec §4.A, component A). Nothing
// outside this package talks to Horizon directly.
package ledger

import (
	"context"
	"time"
)

// Balance is a point-in-time snapshot of an account's holdings of one asset.
// It is never treated as authoritative by callers; every consumer re-checks
// by transaction hash before acting on it (spec §4.A).
type Balance struct {
	AssetCode string
	Issuer    string // empty for the native asset
	Amount    string // canonical decimal string
}

// SubmitResult is returned by Gateway.SubmitPayment on success.
type SubmitResult struct {
	TxHash         string
	LedgerSequence int64
}

// Operation is a single payment-shaped operation inside a fetched
// transaction, as required by Gateway.GetTransaction.
type Operation struct {
	From      string
	To        string
	AssetCode string
	Issuer    string
	Amount    string
}

// TransactionResult is the outcome of Gateway.GetTransaction.
type TransactionResult struct {
	Successful     bool
	Memo           string
	Operations     []Operation
	LedgerSequence int64
}

// IncomingPayment is one entry from Gateway.ScanIncoming.
type IncomingPayment struct {
	TxHash    string
	From      string
	AssetCode string
	Issuer    string
	Amount    string
	Memo      string
	Timestamp time.Time
	Cursor    string
}

// Gateway is the complete surface the core requires from the ledger, per
// spec §4.A. Implementations: HorizonGateway (production), MemoryGateway
// (tests).
type Gateway interface {
	// AccountExists reports whether address is a funded account on the
	// ledger.
	AccountExists(ctx context.Context, address string) (bool, error)

	// GetBalances returns the account's balances across all held assets.
	GetBalances(ctx context.Context, address string) ([]Balance, error)

	// SubmitPayment submits a pre-signed transaction envelope (base64 XDR)
	// and returns its hash and the ledger sequence it landed in.
	SubmitPayment(ctx context.Context, signedEnvelopeXDR string) (*SubmitResult, error)

	// GetTransaction fetches a previously-submitted transaction by hash.
	GetTransaction(ctx context.Context, txHash string) (*TransactionResult, error)

	// ScanIncoming returns a bounded batch of payments made to systemAddress
	// since sinceCursor, in ascending ledger order. Callers loop, passing
	// back the last IncomingPayment.Cursor, until a short batch signals
	// they have caught up. It never blocks waiting for new payments.
	ScanIncoming(ctx context.Context, systemAddress string, sinceCursor string, limit int) ([]IncomingPayment, error)
}

// PaymentBuilder constructs and signs the payment envelope Gateway.SubmitPayment
// expects. It is a separate concern from Gateway so that payment construction
// (asset, destination, memo, signer) stays testable without a live ledger.
type PaymentBuilder interface {
	BuildSignedPayment(ctx context.Context, req PaymentRequest) (string, error)
}

// Signer is the minimal contract for proving identity and authorizing the
// system wallet's payments. The gateway does not manage keys; it is handed a
// Signer (a keypair-backed one, or one that delegates to an HSM/custodial
// API via a callback) and uses it to sign outgoing payments.
type Signer interface {
	// PublicKey returns the Stellar address (G...) of the system wallet.
	PublicKey() string

	// SignTransaction signs a transaction envelope (base64 XDR) and returns
	// the signed envelope as base64 XDR.
	SignTransaction(ctx context.Context, xdr string, networkPassphrase string) (string, error)
}

// PaymentRequest describes a single-asset payment from the system account.
type PaymentRequest struct {
	Destination string
	AssetCode   string
	Issuer      string
	Amount      string
	Memo        string
}
