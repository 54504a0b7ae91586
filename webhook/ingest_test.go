package webhook

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var errDispatchUnavailable = errors.New("dispatch unavailable")

type fakeDispatcher struct {
	paymentSuccesses []string
	paymentFailures  []string
	failNext         error
}

func (d *fakeDispatcher) PaymentSuccess(_ context.Context, ref string) error {
	if d.failNext != nil {
		err := d.failNext
		d.failNext = nil
		return err
	}
	d.paymentSuccesses = append(d.paymentSuccesses, ref)
	return nil
}

func (d *fakeDispatcher) PaymentFailure(_ context.Context, ref, reason string) error {
	d.paymentFailures = append(d.paymentFailures, ref)
	return nil
}

func (d *fakeDispatcher) WithdrawalSuccess(context.Context, string) error         { return nil }
func (d *fakeDispatcher) WithdrawalFailure(context.Context, string, string) error { return nil }

var _ Dispatcher = (*fakeDispatcher)(nil)

func newTestIngester(dispatcher Dispatcher) (*Ingester, Store) {
	store := NewMemoryStore()
	verifiers := map[Provider]Verifier{ProviderFlutterwave: &FlutterwaveVerifier{Secret: "shh"}}
	eventIDs := map[Provider]EventIDExtractor{ProviderFlutterwave: FlutterwaveEventIDExtractor{}}
	references := map[Provider]ReferenceExtractor{ProviderFlutterwave: FlutterwaveReferenceExtractor{}}
	return New(store, dispatcher, verifiers, eventIDs, references), store
}

func flutterwaveChargeCompleted(id, ref string) []byte {
	return []byte(`{"id":` + id + `,"event":"charge.completed","data":{"tx_ref":"` + ref + `","status":"successful"}}`)
}

func TestIngestRejectsUnverifiedSignature(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	ingester, _ := newTestIngester(dispatcher)

	outcome, err := ingester.Ingest(context.Background(), ProviderFlutterwave,
		flutterwaveChargeCompleted("1", "tx-1"), map[string]string{"verif-hash": "wrong"})
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, outcome)
}

func TestIngestDispatchesAndMarksCompleted(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	ingester, store := newTestIngester(dispatcher)

	outcome, err := ingester.Ingest(context.Background(), ProviderFlutterwave,
		flutterwaveChargeCompleted("1", "tx-1"), map[string]string{"verif-hash": "shh"})
	require.NoError(t, err)
	require.Equal(t, OutcomeAccepted, outcome)
	require.Equal(t, []string{"tx-1"}, dispatcher.paymentSuccesses)

	pending, err := store.ListPendingForRetry(context.Background(), 5, 10)
	require.NoError(t, err)
	require.Empty(t, pending, "completed events should not show up as pending")
}

func TestIngestDedupesSameEventID(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	ingester, _ := newTestIngester(dispatcher)
	ctx := context.Background()
	headers := map[string]string{"verif-hash": "shh"}

	outcome1, err := ingester.Ingest(ctx, ProviderFlutterwave, flutterwaveChargeCompleted("1", "tx-1"), headers)
	require.NoError(t, err)
	require.Equal(t, OutcomeAccepted, outcome1)

	outcome2, err := ingester.Ingest(ctx, ProviderFlutterwave, flutterwaveChargeCompleted("1", "tx-1"), headers)
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicateIgnored, outcome2)
	require.Len(t, dispatcher.paymentSuccesses, 1, "dispatch must not run twice for the same event id")
}

func TestIngestLeavesPendingOnDispatchFailure(t *testing.T) {
	dispatcher := &fakeDispatcher{failNext: errDispatchUnavailable}
	ingester, store := newTestIngester(dispatcher)

	outcome, err := ingester.Ingest(context.Background(), ProviderFlutterwave,
		flutterwaveChargeCompleted("2", "tx-2"), map[string]string{"verif-hash": "shh"})
	require.NoError(t, err)
	require.Equal(t, OutcomeAccepted, outcome, "provider must see success even when dispatch fails")

	pending, err := store.ListPendingForRetry(context.Background(), 5, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}
