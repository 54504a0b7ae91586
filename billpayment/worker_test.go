package billpayment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cngnbridge/core/bridge"
	"github.com/cngnbridge/core/ledger"
	"github.com/cngnbridge/core/transaction"
)

type fakeProvider struct {
	name         string
	submitResult *SubmitResult
	submitErr    error
	pollResult   *PollResult
	verifyResult *VerifyResult
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) VerifyAccount(context.Context, SubmitRequest) (*VerifyResult, error) {
	if f.verifyResult != nil {
		return f.verifyResult, nil
	}
	return &VerifyResult{Active: true}, nil
}

func (f *fakeProvider) Submit(context.Context, SubmitRequest) (*SubmitResult, error) {
	return f.submitResult, f.submitErr
}

func (f *fakeProvider) Poll(context.Context, string) (*PollResult, error) {
	return f.pollResult, nil
}

var _ Provider = (*fakeProvider)(nil)

// fakeBuilder hands PaymentRequest straight to the gateway's RecordSubmission
// and returns a placeholder envelope, since MemoryGateway never constructs a
// real signed XDR.
type fakeBuilder struct {
	lg *ledger.MemoryGateway
}

func (b *fakeBuilder) BuildSignedPayment(_ context.Context, req ledger.PaymentRequest) (string, error) {
	b.lg.RecordSubmission(req)
	return "fake-xdr-envelope", nil
}

var _ ledger.PaymentBuilder = (*fakeBuilder)(nil)

func newTestWorker(t *testing.T, provider Provider) (*Worker, *ledger.MemoryGateway, bridge.BillPaymentStore, bridge.TransactionStore) {
	t.Helper()
	bills := NewMemoryStore()
	transactions := transaction.NewMemoryStore()
	lg := ledger.NewMemoryGateway()
	builder := &fakeBuilder{lg: lg}
	registry := NewRegistry(provider)
	cursors := NewMemoryCursorStore()
	w := NewWorker(bills, transactions, lg, builder, registry, cursors, "GSYSTEMADDRESS", "GISSUERADDRESS")
	w.batchSize = 10
	return w, lg, bills, transactions
}

func seedTransaction(t *testing.T, store bridge.TransactionStore, id, cngnAmount string) {
	t.Helper()
	err := store.Create(context.Background(), &bridge.Transaction{
		TransactionID: id,
		WalletAddress: "GUSERWALLET",
		Type:          bridge.TypeBillPayment,
		FromCurrency:  "NGN",
		ToCurrency:    "NGN",
		ToAmount:      "1000",
		CNGNAmount:    cngnAmount,
		Status:        bridge.StatusProcessing,
	})
	require.NoError(t, err)
}

func TestReceiptVerificationMatchesAmount(t *testing.T) {
	w, lg, bills, transactions := newTestWorker(t, &fakeProvider{name: "flutterwave"})
	ctx := context.Background()

	seedTransaction(t, transactions, "tx-1", "1000")
	require.NoError(t, bills.Create(ctx, &bridge.BillPayment{
		TransactionID: "tx-1",
		AccountNumber: "08012345678",
		BillType:      bridge.BillTypeAirtime,
		Status:        bridge.BillStatusPendingPayment,
	}))

	lg.SeedIncoming(ledger.IncomingPayment{
		TxHash:    "hash-1",
		From:      "GUSERWALLET",
		Amount:    "1000",
		AssetCode: "cNGN",
		Issuer:    "GISSUERADDRESS",
		Memo:      ledger.BuildBillMemo("tx-1"),
		Cursor:    "1",
	})

	w.receiptVerification(ctx)

	bp, err := bills.FindByTransactionID(ctx, "tx-1")
	require.NoError(t, err)
	require.Equal(t, bridge.BillStatusCNGNReceived, bp.Status)
}

func TestReceiptVerificationRoutesMismatchToRefund(t *testing.T) {
	w, lg, bills, transactions := newTestWorker(t, &fakeProvider{name: "flutterwave"})
	ctx := context.Background()

	seedTransaction(t, transactions, "tx-2", "1000")
	require.NoError(t, bills.Create(ctx, &bridge.BillPayment{
		TransactionID: "tx-2",
		AccountNumber: "08012345678",
		BillType:      bridge.BillTypeAirtime,
		Status:        bridge.BillStatusPendingPayment,
	}))

	lg.SeedIncoming(ledger.IncomingPayment{
		TxHash:    "hash-2",
		From:      "GUSERWALLET",
		Amount:    "999.5", // short by 0.5, exact-match required
		AssetCode: "cNGN",
		Issuer:    "GISSUERADDRESS",
		Memo:      ledger.BuildBillMemo("tx-2"),
		Cursor:    "1",
	})

	w.receiptVerification(ctx)

	bp, err := bills.FindByTransactionID(ctx, "tx-2")
	require.NoError(t, err)
	require.Equal(t, bridge.BillStatusRefundInitiated, bp.Status)
}

func TestReceiptVerificationRejectsWrongAsset(t *testing.T) {
	w, lg, bills, transactions := newTestWorker(t, &fakeProvider{name: "flutterwave"})
	ctx := context.Background()

	seedTransaction(t, transactions, "tx-asset", "1000")
	require.NoError(t, bills.Create(ctx, &bridge.BillPayment{
		TransactionID: "tx-asset",
		AccountNumber: "08012345678",
		BillType:      bridge.BillTypeAirtime,
		Status:        bridge.BillStatusPendingPayment,
	}))

	lg.SeedIncoming(ledger.IncomingPayment{
		TxHash:    "hash-asset",
		From:      "GUSERWALLET",
		Amount:    "1000",
		AssetCode: "XLM",
		Issuer:    "",
		Memo:      ledger.BuildBillMemo("tx-asset"),
		Cursor:    "1",
	})

	w.receiptVerification(ctx)

	bp, err := bills.FindByTransactionID(ctx, "tx-asset")
	require.NoError(t, err)
	require.Equal(t, bridge.BillStatusRefundInitiated, bp.Status, "non-cNGN payment must be refunded, not treated as a valid receipt")
}

func TestReceiptVerificationRefundsUnknownMemo(t *testing.T) {
	w, lg, _, _ := newTestWorker(t, &fakeProvider{name: "flutterwave"})
	ctx := context.Background()

	lg.SeedIncoming(ledger.IncomingPayment{
		TxHash:    "hash-3",
		From:      "GUSERWALLET",
		Amount:    "500",
		AssetCode: "cNGN",
		Issuer:    "GISSUERADDRESS",
		Memo:      ledger.BuildBillMemo("tx-does-not-exist"),
		Cursor:    "1",
	})

	w.receiptVerification(ctx)

	submitted := lg.Submitted()
	require.Len(t, submitted, 1)
	require.Equal(t, "GUSERWALLET", submitted[0].Destination)
}

func TestAccountReverificationRejectsBadFormat(t *testing.T) {
	w, _, bills, transactions := newTestWorker(t, &fakeProvider{name: "vtpass"})
	ctx := context.Background()

	seedTransaction(t, transactions, "tx-4", "1000")
	require.NoError(t, bills.Create(ctx, &bridge.BillPayment{
		TransactionID: "tx-4",
		AccountNumber: "not-a-phone-number",
		BillType:      bridge.BillTypeAirtime,
		Status:        bridge.BillStatusCNGNReceived,
	}))

	w.accountReverification(ctx)

	bp, err := bills.FindByTransactionID(ctx, "tx-4")
	require.NoError(t, err)
	require.Equal(t, bridge.BillStatusRefundInitiated, bp.Status)
}

func TestSubmitBillTransitionsToCompletedOnToken(t *testing.T) {
	provider := &fakeProvider{
		name: "vtpass",
		submitResult: &SubmitResult{
			Outcome:           SubmitSuccessToken,
			ProviderReference: "ref-123",
			Token:             "tok-abc",
		},
	}
	w, _, bills, transactions := newTestWorker(t, provider)
	ctx := context.Background()

	seedTransaction(t, transactions, "tx-5", "1000")
	require.NoError(t, bills.Create(ctx, &bridge.BillPayment{
		TransactionID: "tx-5",
		AccountNumber: "08012345678",
		BillType:      bridge.BillTypeAirtime,
		Status:        bridge.BillStatusProcessingBill,
	}))

	w.submitBill(ctx)

	bp, err := bills.FindByTransactionID(ctx, "tx-5")
	require.NoError(t, err)
	require.Equal(t, bridge.BillStatusCompleted, bp.Status)
	require.Equal(t, "tok-abc", bp.Token)

	tx, err := transactions.FindByID(ctx, "tx-5")
	require.NoError(t, err)
	require.Equal(t, bridge.StatusCompleted, tx.Status)
}

func TestRetryGateRoutesExhaustedRowsToRefund(t *testing.T) {
	w, _, bills, transactions := newTestWorker(t, &fakeProvider{name: "vtpass"})
	ctx := context.Background()

	seedTransaction(t, transactions, "tx-6", "1000")
	require.NoError(t, bills.Create(ctx, &bridge.BillPayment{
		TransactionID: "tx-6",
		AccountNumber: "08012345678",
		BillType:      bridge.BillTypeAirtime,
		Status:        bridge.BillStatusRetryScheduled,
		RetryCount:    MaxRetries,
	}))

	w.retryGate(ctx)

	bp, err := bills.FindByTransactionID(ctx, "tx-6")
	require.NoError(t, err)
	require.Equal(t, bridge.BillStatusRefundInitiated, bp.Status)
}

func TestRetryGateWaitsForBackoff(t *testing.T) {
	w, _, bills, transactions := newTestWorker(t, &fakeProvider{name: "vtpass"})
	ctx := context.Background()

	seedTransaction(t, transactions, "tx-7", "1000")
	justNow := time.Now()
	require.NoError(t, bills.Create(ctx, &bridge.BillPayment{
		TransactionID: "tx-7",
		AccountNumber: "08012345678",
		BillType:      bridge.BillTypeAirtime,
		Status:        bridge.BillStatusRetryScheduled,
		RetryCount:    0,
		LastRetryAt:   &justNow,
	}))

	w.retryGate(ctx)

	bp, err := bills.FindByTransactionID(ctx, "tx-7")
	require.NoError(t, err)
	require.Equal(t, bridge.BillStatusRetryScheduled, bp.Status, "backoff of %ds has not elapsed yet", RetryBackoff[0])
}
