// Package bridge defines the domain types and store/provider interfaces shared
// across the payment-orchestration core: transactions, bill payments, webhook
// events, exchange rates, quotes, and the ledger/cache/rate-provider
// abstractions the workers are built on. Concrete implementations live in the
// sibling packages (transaction, billpayment, webhook, rates, quote, ledger,
// cache); this package only fixes the contracts between them so that a
// Postgres-backed store and an in-memory one are interchangeable.
package bridge

import (
	"context"
	"time"
)

// TransactionType distinguishes the three user-visible flows.
type TransactionType string

const (
	TypeOnramp      TransactionType = "onramp"
	TypeOfframp     TransactionType = "offramp"
	TypeBillPayment TransactionType = "bill_payment"
)

// TransactionStatus is stored in an open lookup table; the set below is the
// minimal seed. Legality of transitions between them is enforced by the
// transaction package's state machine, not the database.
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusProcessing TransactionStatus = "processing"
	StatusCompleted  TransactionStatus = "completed"
	StatusFailed     TransactionStatus = "failed"
	StatusCancelled  TransactionStatus = "cancelled"
)

// Transaction is the canonical record of every onramp/offramp/bill operation.
// Amounts are canonical decimal strings; see package money for arithmetic.
type Transaction struct {
	TransactionID    string
	WalletAddress    string
	Type             TransactionType
	FromCurrency     string
	ToCurrency       string
	FromAmount       string
	ToAmount         string
	CNGNAmount       string
	Status           TransactionStatus
	PaymentProvider  string
	PaymentRef       string
	BlockchainTxHash string
	ErrorMessage     string
	Metadata         map[string]any
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TransactionUpdate carries the mutable subset of Transaction. Only non-nil
// fields are applied by a Store's Update/UpdateCAS.
type TransactionUpdate struct {
	Status           *TransactionStatus
	ToAmount         *string
	CNGNAmount       *string
	PaymentProvider  *string
	PaymentRef       *string
	BlockchainTxHash *string
	ErrorMessage     *string
	MetadataPatch    map[string]any
	HistoryEntry     *TransactionHistoryEntry
}

// TransactionHistoryEntry is appended to Transaction.Metadata["history"] on
// every mutation, per spec §4.F.
type TransactionHistoryEntry struct {
	At     time.Time         `json:"at"`
	From   TransactionStatus `json:"from"`
	To     TransactionStatus `json:"to"`
	Reason string            `json:"reason,omitempty"`
}

// TransactionFilters narrows TransactionStore.List.
type TransactionFilters struct {
	WalletAddress string
	Type          *TransactionType
	Status        *TransactionStatus
	PaymentRef    string
	Limit         int
	Offset        int
}

// TransactionStore is the persistence contract for component F.
type TransactionStore interface {
	Create(ctx context.Context, tx *Transaction) error
	FindByID(ctx context.Context, id string) (*Transaction, error)
	FindByPaymentRef(ctx context.Context, ref string) (*Transaction, error)
	List(ctx context.Context, filters TransactionFilters) ([]*Transaction, error)
	// UpdateCAS applies update only if the row's current status equals
	// expectedStatus. A zero-row update returns ErrCASMiss.
	UpdateCAS(ctx context.Context, id string, expectedStatus TransactionStatus, update *TransactionUpdate) error
}

// Wallet caches advisory, never-authoritative balance information for a
// (wallet_address, chain) pair.
type Wallet struct {
	WalletAddress    string
	Chain            string
	UserID           string
	HasCNGNTrustline bool
	CNGNBalance      string
	LastBalanceCheck time.Time
}

// WalletStore persists Wallet rows.
type WalletStore interface {
	FindByAddress(ctx context.Context, address, chain string) (*Wallet, error)
	Upsert(ctx context.Context, w *Wallet) error
}

// BillType enumerates the utility categories the bill processor supports.
type BillType string

const (
	BillTypeElectricity BillType = "electricity"
	BillTypeAirtime     BillType = "airtime"
	BillTypeData        BillType = "data"
	BillTypeCableTV     BillType = "cable_tv"
)

// BillStatus is the fine-grained bill sub-state (spec §4.I), distinct from
// and never contradicting the coarse TransactionStatus of its parent row.
type BillStatus string

const (
	BillStatusPendingPayment     BillStatus = "pending_payment"
	BillStatusCNGNReceived       BillStatus = "cngn_received"
	BillStatusVerifyingAccount   BillStatus = "verifying_account"
	BillStatusAccountInvalid     BillStatus = "account_invalid"
	BillStatusProcessingBill     BillStatus = "processing_bill"
	BillStatusProviderProcessing BillStatus = "provider_processing"
	BillStatusCompleted          BillStatus = "completed"
	BillStatusRetryScheduled     BillStatus = "retry_scheduled"
	BillStatusProviderFailed     BillStatus = "provider_failed"
	BillStatusRefundInitiated    BillStatus = "refund_initiated"
	BillStatusRefundProcessing   BillStatus = "refund_processing"
	BillStatusRefunded           BillStatus = "refunded"
)

// BillPayment is the one-to-one adjunct to a transaction row of type
// bill_payment (spec §3).
type BillPayment struct {
	TransactionID     string
	ProviderName      string
	AccountNumber     string
	BillType          BillType
	Status            BillStatus
	ProviderReference string
	Token             string
	ProviderResponse  map[string]any
	RetryCount        int
	LastRetryAt       *time.Time
	ErrorMessage      string
	RefundTxHash      string
	AccountVerified   bool
	VerificationData  map[string]any
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// BillPaymentUpdate carries the mutable subset of BillPayment.
type BillPaymentUpdate struct {
	Status            *BillStatus
	ProviderName      *string
	ProviderReference *string
	Token             *string
	ProviderResponse  map[string]any
	RetryCount        *int
	LastRetryAt       *time.Time
	ClearLastRetryAt  bool
	ErrorMessage      *string
	RefundTxHash      *string
	AccountVerified   *bool
	VerificationData  map[string]any
}

// CursorStore persists the single global cursor the receipt-verification
// stage uses to resume Gateway.ScanIncoming across ticks and restarts.
type CursorStore interface {
	GetCursor(ctx context.Context, name string) (string, error)
	SetCursor(ctx context.Context, name, value string) error
}

// BillPaymentFilters narrows BillPaymentStore.ListByStatus.
type BillPaymentFilters struct {
	Status BillStatus
	Limit  int
}

// BillPaymentStore is the persistence contract for the bill_payments
// adjunct table.
type BillPaymentStore interface {
	Create(ctx context.Context, bp *BillPayment) error
	FindByTransactionID(ctx context.Context, transactionID string) (*BillPayment, error)
	ListByStatus(ctx context.Context, filters BillPaymentFilters) ([]*BillPayment, error)
	// UpdateCAS applies update only if the row's current status equals
	// expectedStatus, mirroring TransactionStore's CAS discipline.
	UpdateCAS(ctx context.Context, transactionID string, expectedStatus BillStatus, update *BillPaymentUpdate) error
}
