// Package quote implements the time-bounded conversion quote store (spec
// §4.E): created lazily, consumed at most once via a single guarded UPDATE,
// and swept to expired by a periodic background task.
package quote

import (
	"context"
	"time"

	"github.com/cngnbridge/core/errors"
)

// Status is the quote lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusConsumed Status = "consumed"
	StatusExpired  Status = "expired"
)

// Quote is a snapshot of a conversion offer at creation time.
type Quote struct {
	QuoteID      string
	FromCurrency string
	ToCurrency   string
	Amount       string
	ExchangeRate string
	Gross        string
	Fee          string
	Net          string
	Status       Status
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// IsExpired reports whether the quote's expiry has passed at t. A quote
// with ExpiresAt == t counts as expired (spec §8 boundary behaviour).
func (q *Quote) IsExpired(t time.Time) bool {
	return !t.Before(q.ExpiresAt)
}

// Store is the persistence contract for component E.
type Store interface {
	Create(ctx context.Context, q *Quote) error
	// Consume atomically moves a pending, unexpired quote to consumed and
	// returns it. It is the only operation that advances a quote past
	// pending.
	Consume(ctx context.Context, quoteID string) (*Quote, error)
	FindByID(ctx context.Context, quoteID string) (*Quote, error)
	// SweepExpired moves every past-due pending row to expired and returns
	// how many rows were swept.
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// ErrAlreadyConsumed and friends classify Consume's failure modes as
// distinct, caller-checkable errors rather than opaque ones.
var (
	ErrAlreadyConsumed = errors.NewQuoteError(errors.KindPermanent, errors.QUOTE_ALREADY_CONSUMED, "quote already consumed", nil)
	ErrExpired         = errors.NewQuoteError(errors.KindPermanent, errors.QUOTE_EXPIRED, "quote has expired", nil)
	ErrNotFound        = errors.NewQuoteError(errors.KindPermanent, errors.QUOTE_NOT_FOUND, "quote not found", nil)
)
