// Package errors defines the error taxonomy for the payment-orchestration
// core.
//
// All errors are represented as BridgeError, which provides:
//   - Code: Machine-readable error identifier
//   - Message: Human-readable error description
//   - Layer: Which component layer produced the error
//   - Kind: Validation, Transient, Permanent, or Invariant (spec §7)
//   - Cause: Underlying error, if any
//   - Context: Additional error details (transaction id, provider, etc.)
//
// Use the provided constructor functions (NewLedgerError, NewRatesError,
// ...) to create properly typed errors with automatic layer assignment.
package errors

import "fmt"

// Code is a machine-readable error identifier.
type Code string

// Kind classifies an error per spec §7: whether the caller should retry,
// surface it immediately, or route to a compensating flow.
type Kind string

const (
	KindValidation Kind = "validation"
	KindTransient  Kind = "transient_external"
	KindPermanent  Kind = "permanent_external"
	KindInvariant  Kind = "internal_invariant"
)

// Error codes - Ledger Gateway layer
const (
	NETWORK_ERROR     Code = "NETWORK_ERROR"
	ACCOUNT_NOT_FOUND Code = "ACCOUNT_NOT_FOUND"
	SUBMIT_REJECTED   Code = "SUBMIT_REJECTED"
	TX_NOT_FOUND      Code = "TX_NOT_FOUND"
	SIGNER_ERROR      Code = "SIGNER_ERROR"
)

// Error codes - shared HTTP client layer (netclient)
const (
	REQUEST_FAILED Code = "REQUEST_FAILED"
	CIRCUIT_OPEN   Code = "CIRCUIT_OPEN"
)

// Error codes - Rates / Fees layer
const (
	RATE_UNAVAILABLE    Code = "RATE_UNAVAILABLE"
	RATE_OUT_OF_BAND    Code = "RATE_OUT_OF_BAND"
	FEE_NO_MATCH        Code = "FEE_NO_MATCH"
	FEE_AMBIGUOUS_MATCH Code = "FEE_AMBIGUOUS_MATCH"
	FEE_RANGE_OVERLAP   Code = "FEE_RANGE_OVERLAP"
)

// Error codes - Quote layer
const (
	QUOTE_NOT_FOUND        Code = "QUOTE_NOT_FOUND"
	QUOTE_ALREADY_CONSUMED Code = "QUOTE_ALREADY_CONSUMED"
	QUOTE_EXPIRED          Code = "QUOTE_EXPIRED"
)

// Error codes - Transaction layer
const (
	STORE_ERROR        Code = "STORE_ERROR"
	TRANSITION_INVALID Code = "TRANSITION_INVALID"
	CAS_MISS           Code = "CAS_MISS"
	VALIDATION_FAILED  Code = "VALIDATION_FAILED"
)

// Error codes - Webhook layer
const (
	SIGNATURE_INVALID Code = "SIGNATURE_INVALID"
	BODY_MALFORMED    Code = "BODY_MALFORMED"
	EVENT_DUPLICATE   Code = "EVENT_DUPLICATE"
	DISPATCH_FAILED   Code = "DISPATCH_FAILED"
)

// Error codes - Orchestrator layer
const (
	TRANSACTION_NOT_READY Code = "TRANSACTION_NOT_READY"
	RETRYABLE_FAILURE     Code = "RETRYABLE_FAILURE"
)

// Error codes - Bill processor layer
const (
	AMOUNT_MISMATCH  Code = "AMOUNT_MISMATCH"
	ACCOUNT_INVALID  Code = "ACCOUNT_INVALID"
	PROVIDER_FAILURE Code = "PROVIDER_FAILURE"
	TOKEN_TIMEOUT    Code = "TOKEN_TIMEOUT"
	REFUND_FAILED    Code = "REFUND_FAILED"
)

// Error codes - Config layer
const (
	CONFIG_INVALID Code = "CONFIG_INVALID"
)

// BridgeError is the base error type for all core errors.
type BridgeError struct {
	Code    Code
	Message string
	Layer   string // "ledger", "rates", "fees", "quote", "transaction", "webhook", "orchestrator", "billpayment", "cache"
	Kind    Kind
	Cause   error
	Context map[string]any
}

// Error returns a formatted error string.
func (e *BridgeError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Layer, e.Code, e.Message)
	if e.Cause != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause error, enabling error chain inspection.
func (e *BridgeError) Unwrap() error {
	return e.Cause
}

func newError(layer string, kind Kind, code Code, message string, cause error) *BridgeError {
	return &BridgeError{
		Code:    code,
		Message: message,
		Layer:   layer,
		Kind:    kind,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// NewLedgerError creates a ledger-gateway layer error.
func NewLedgerError(kind Kind, code Code, message string, cause error) *BridgeError {
	return newError("ledger", kind, code, message, cause)
}

// NewRatesError creates a rates/fees layer error.
func NewRatesError(kind Kind, code Code, message string, cause error) *BridgeError {
	return newError("rates", kind, code, message, cause)
}

// NewFeesError creates a fee-engine layer error.
func NewFeesError(kind Kind, code Code, message string, cause error) *BridgeError {
	return newError("fees", kind, code, message, cause)
}

// NewQuoteError creates a quote-store layer error.
func NewQuoteError(kind Kind, code Code, message string, cause error) *BridgeError {
	return newError("quote", kind, code, message, cause)
}

// NewTransactionError creates a transaction-store layer error.
func NewTransactionError(kind Kind, code Code, message string, cause error) *BridgeError {
	return newError("transaction", kind, code, message, cause)
}

// NewWebhookError creates a webhook-ingest layer error.
func NewWebhookError(kind Kind, code Code, message string, cause error) *BridgeError {
	return newError("webhook", kind, code, message, cause)
}

// NewOrchestratorError creates a payment-orchestrator layer error.
func NewOrchestratorError(kind Kind, code Code, message string, cause error) *BridgeError {
	return newError("orchestrator", kind, code, message, cause)
}

// NewBillPaymentError creates a bill-processor layer error.
func NewBillPaymentError(kind Kind, code Code, message string, cause error) *BridgeError {
	return newError("billpayment", kind, code, message, cause)
}

// NewNetClientError creates an error for the shared HTTP client layer, used
// by every outbound caller (ledger, rates, billpayment) that goes through
// netclient.Client.
func NewNetClientError(kind Kind, code Code, message string, cause error) *BridgeError {
	return newError("netclient", kind, code, message, cause)
}

// NewConfigError creates an error for the composition-root config loader.
func NewConfigError(code Code, message string, cause error) *BridgeError {
	return newError("config", KindValidation, code, message, cause)
}

// NewCacheError creates a cache layer error. Consumers must never propagate
// these to callers; they log and fall through to the authoritative store.
func NewCacheError(code Code, message string, cause error) *BridgeError {
	return newError("cache", KindTransient, code, message, cause)
}

// Is checks if the target error is a BridgeError with the same code.
func (e *BridgeError) Is(target error) bool {
	if target == nil {
		return false
	}
	other, ok := target.(*BridgeError)
	if !ok {
		return false
	}
	return e.Code == other.Code
}

// As checks if target is a BridgeError and assigns it.
func As(err error, target **BridgeError) bool {
	if err == nil {
		return false
	}
	if v, ok := err.(*BridgeError); ok {
		*target = v
		return true
	}
	return false
}

// ErrCASMiss is returned by TransactionStore.UpdateCAS (and the analogous
// compare-and-swap updates in quote and billpayment stores) when the row's
// current status no longer matches the expected one: another worker already
// moved it. Callers re-read the row and retry their read-compute-update a
// bounded number of times (maxCASRetries in orchestrator and billpayment).
var ErrCASMiss = NewTransactionError(KindTransient, CAS_MISS, "no row matched the expected status", nil)

// IsRetryable reports whether the error's Kind indicates a caller should
// retry (transient) versus fail fast (validation, permanent) or escalate
// loudly (invariant).
func IsRetryable(err error) bool {
	var be *BridgeError
	if !As(err, &be) {
		return false
	}
	return be.Kind == KindTransient
}
