package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestRetryWorker(dispatcher Dispatcher) (*RetryWorker, Store) {
	store := NewMemoryStore()
	references := map[Provider]ReferenceExtractor{ProviderFlutterwave: FlutterwaveReferenceExtractor{}}
	w := NewRetryWorker(store, dispatcher, references)
	w.interval = time.Millisecond
	w.batchSize = 10
	return w, store
}

func TestRetryWorkerRedispatchesPendingEvent(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	w, store := newTestRetryWorker(dispatcher)
	ctx := context.Background()

	_, err := store.Insert(ctx, &Event{
		Provider:  ProviderFlutterwave,
		EventID:   "1",
		EventType: "charge.completed",
		Payload:   flutterwaveChargeCompleted("1", "tx-9"),
		Status:    StatusPending,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	w.sweep(ctx)

	require.Equal(t, []string{"tx-9"}, dispatcher.paymentSuccesses)
	pending, err := store.ListPendingForRetry(ctx, 5, 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestRetryWorkerIncrementsOnFailure(t *testing.T) {
	dispatcher := &fakeDispatcher{failNext: errDispatchUnavailable}
	w, store := newTestRetryWorker(dispatcher)
	ctx := context.Background()

	_, err := store.Insert(ctx, &Event{
		Provider:  ProviderFlutterwave,
		EventID:   "2",
		EventType: "charge.completed",
		Payload:   flutterwaveChargeCompleted("2", "tx-10"),
		Status:    StatusPending,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	w.sweep(ctx)

	pending, err := store.ListPendingForRetry(ctx, 5, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, 1, pending[0].RetryCount)
}

func TestRetryWorkerDeadLettersAfterExhaustingBudget(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	store := NewMemoryStore()
	references := map[Provider]ReferenceExtractor{ProviderFlutterwave: FlutterwaveReferenceExtractor{}}
	w := NewRetryWorker(store, dispatcher, references)
	ctx := context.Background()

	_, err := store.Insert(ctx, &Event{
		Provider:  ProviderFlutterwave,
		EventID:   "3",
		EventType: "charge.completed",
		Payload:   flutterwaveChargeCompleted("3", "tx-11"),
		Status:    StatusPending,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		dispatcher.failNext = errDispatchUnavailable
		w.sweep(ctx)
	}
	require.Empty(t, dispatcher.paymentSuccesses)

	pending, err := store.ListPendingForRetry(ctx, 5, 10)
	require.NoError(t, err)
	require.Empty(t, pending, "row with retry_count >= maxRetries must drop out of the retry pool")
}
