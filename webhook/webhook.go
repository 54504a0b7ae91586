// Package webhook implements provider webhook ingestion (spec §4.G):
// per-provider signature verification, idempotent insert keyed by
// (provider, event_id), and dispatch to the payment orchestrator.
package webhook

import (
	"context"
	"time"
)

// Provider identifies a webhook source.
type Provider string

const (
	ProviderFlutterwave Provider = "flutterwave"
	ProviderPaystack    Provider = "paystack"
)

// Status is the webhook row lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed" // dead-letter, spec §4.J
)

// Event is a persisted webhook delivery.
type Event struct {
	Provider      Provider
	EventID       string
	EventType     string
	Payload       []byte
	Signature     string
	Status        Status
	TransactionID string // nullable: may arrive before the transaction exists
	ProcessedAt   *time.Time
	RetryCount    int
	ErrorMessage  string
	CreatedAt     time.Time
}

// Store is the persistence contract for component G/J.
type Store interface {
	// Insert attempts INSERT ... ON CONFLICT (provider, event_id) DO
	// NOTHING. inserted reports whether this call created the row; if
	// false, the event had already been seen.
	Insert(ctx context.Context, e *Event) (inserted bool, err error)
	MarkCompleted(ctx context.Context, provider Provider, eventID string) error
	MarkFailed(ctx context.Context, provider Provider, eventID string, errMsg string) error
	// ListPendingForRetry returns up to limit pending rows with
	// retry_count < maxRetries, ordered by created_at (spec §4.J).
	ListPendingForRetry(ctx context.Context, maxRetries, limit int) ([]*Event, error)
	IncrementRetry(ctx context.Context, provider Provider, eventID string, errMsg string) error
}

// Outcome is the tri-state result of Ingest, used to choose the HTTP
// response without leaking internal status names across the boundary
// (spec §6: the inbound webhook surface).
type Outcome string

const (
	OutcomeAccepted         Outcome = "accepted"
	OutcomeDuplicateIgnored Outcome = "duplicate_ignored"
	OutcomeRejected         Outcome = "rejected"
)
