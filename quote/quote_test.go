package quote

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newQuote(id string, expiresAt time.Time) *Quote {
	return &Quote{
		QuoteID:      id,
		FromCurrency: "NGN",
		ToCurrency:   "cNGN",
		Amount:       "1000",
		ExchangeRate: "1",
		Gross:        "1000",
		Fee:          "10",
		Net:          "990",
		Status:       StatusPending,
		ExpiresAt:    expiresAt,
		CreatedAt:    time.Now(),
	}
}

func TestConsumeSucceedsOncePending(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newQuote("q-1", time.Now().Add(time.Hour))))

	consumed, err := store.Consume(ctx, "q-1")
	require.NoError(t, err)
	require.Equal(t, StatusConsumed, consumed.Status)
}

func TestConsumeRejectsSecondCall(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newQuote("q-2", time.Now().Add(time.Hour))))

	_, err := store.Consume(ctx, "q-2")
	require.NoError(t, err)

	_, err = store.Consume(ctx, "q-2")
	require.ErrorIs(t, err, ErrAlreadyConsumed)
}

func TestConsumeRejectsExpiredQuote(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newQuote("q-3", time.Now().Add(-time.Minute))))

	_, err := store.Consume(ctx, "q-3")
	require.ErrorIs(t, err, ErrExpired)
}

func TestConsumeRejectsUnknownQuote(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Consume(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestIsExpiredBoundaryCountsAsExpired(t *testing.T) {
	now := time.Now()
	q := newQuote("q-4", now)
	require.True(t, q.IsExpired(now), "ExpiresAt == t must count as expired")
}

func TestSweepExpiredMovesOnlyPastDuePendingRows(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newQuote("q-5", time.Now().Add(-time.Minute))))
	require.NoError(t, store.Create(ctx, newQuote("q-6", time.Now().Add(time.Hour))))

	count, err := store.SweepExpired(ctx, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, count)

	expired, err := store.FindByID(ctx, "q-5")
	require.NoError(t, err)
	require.Equal(t, StatusExpired, expired.Status)

	stillPending, err := store.FindByID(ctx, "q-6")
	require.NoError(t, err)
	require.Equal(t, StatusPending, stillPending.Status)
}

func TestSweeperRunSweepsOnTick(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newQuote("q-7", time.Now().Add(-time.Minute))))

	sweeper := NewSweeper(store, 10*time.Millisecond)
	runCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	sweeper.Run(runCtx)

	q, err := store.FindByID(ctx, "q-7")
	require.NoError(t, err)
	require.Equal(t, StatusExpired, q.Status)
}
