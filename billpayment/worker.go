package billpayment

import (
	"context"
	stderrors "errors"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/cngnbridge/core/bridge"
	"github.com/cngnbridge/core/errors"
	"github.com/cngnbridge/core/ledger"
	"github.com/cngnbridge/core/logging"
	"github.com/cngnbridge/core/money"
)

const receiptCursorName = "bill_receipt"

// maxCASRetries bounds the read-compute-update loop for a single logical
// bill payment update; exceeding it is an internal invariant violation.
const maxCASRetries = 5

// Worker is the bill-payment processor (spec §4.I): a cooperative loop that
// wakes on a timer and runs six independently-bounded stages over the
// bill_payments table each tick, in order, without guaranteeing more than
// one stage hop per row per tick.
type Worker struct {
	bills         bridge.BillPaymentStore
	transactions  bridge.TransactionStore
	ledgerGW      ledger.Gateway
	builder       ledger.PaymentBuilder
	registry      *Registry
	cursors       bridge.CursorStore
	systemAddress string
	cngnIssuer    string
	batchSize     int
	tickInterval  time.Duration
	stopped       atomic.Bool
	log           *logging.Entry
}

// NewWorker builds a Worker with spec defaults: 10s tick, 50 rows per stage.
func NewWorker(
	bills bridge.BillPaymentStore,
	transactions bridge.TransactionStore,
	ledgerGW ledger.Gateway,
	builder ledger.PaymentBuilder,
	registry *Registry,
	cursors bridge.CursorStore,
	systemAddress, cngnIssuer string,
) *Worker {
	return &Worker{
		bills:         bills,
		transactions:  transactions,
		ledgerGW:      ledgerGW,
		builder:       builder,
		registry:      registry,
		cursors:       cursors,
		systemAddress: systemAddress,
		cngnIssuer:    cngnIssuer,
		batchSize:     50,
		tickInterval:  10 * time.Second,
		log:           logging.For("billworker"),
	}
}

// Run blocks, ticking until ctx is cancelled or Stop is called. Shutdown is
// observed at the boundary between stages, never mid-stage, so an in-flight
// ledger submit always finishes (spec §9).
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
			if w.stopped.Load() {
				return
			}
		}
	}
}

// Stop signals Run to exit at the next stage boundary.
func (w *Worker) Stop() {
	w.stopped.Store(true)
}

func (w *Worker) tick(ctx context.Context) {
	stages := []func(context.Context){
		w.receiptVerification,
		w.accountReverification,
		w.submitBill,
		w.pollStatus,
		w.retryGate,
		w.processRefunds,
	}
	for _, stage := range stages {
		if w.stopped.Load() {
			return
		}
		stage(ctx)
	}
}

// receiptVerification is stage 1: scan incoming cNGN payments tagged
// BILL-{uuid}, match against the referenced transaction's cNGN amount
// exactly, and advance pending_payment -> cngn_received or route to refund.
func (w *Worker) receiptVerification(ctx context.Context) {
	cursor, err := w.cursors.GetCursor(ctx, receiptCursorName)
	if err != nil {
		w.log.WithError(err).Warn("failed to read receipt cursor")
		return
	}

	payments, err := w.ledgerGW.ScanIncoming(ctx, w.systemAddress, cursor, w.batchSize)
	if err != nil {
		w.log.WithError(err).Warn("failed to scan incoming payments")
		return
	}

	for _, p := range payments {
		transactionID, ok := ledger.ParseBillMemo(p.Memo)
		if !ok {
			cursor = p.Cursor
			continue
		}

		w.verifyReceipt(ctx, transactionID, p)
		cursor = p.Cursor
	}

	if cursor != "" {
		if err := w.cursors.SetCursor(ctx, receiptCursorName, cursor); err != nil {
			w.log.WithError(err).Warn("failed to persist receipt cursor")
		}
	}
}

func (w *Worker) verifyReceipt(ctx context.Context, transactionID string, p ledger.IncomingPayment) {
	bp, err := w.bills.FindByTransactionID(ctx, transactionID)
	if err != nil {
		w.log.WithField("transaction_id", transactionID).WithField("tx_hash", p.TxHash).
			Warn("bill memo refers to unknown transaction, refunding sender directly")
		w.refundUnknown(ctx, p)
		return
	}
	if bp.Status != bridge.BillStatusPendingPayment {
		return
	}

	tx, err := w.transactions.FindByID(ctx, transactionID)
	if err != nil {
		w.log.WithError(err).WithField("transaction_id", transactionID).Warn("bill payment row has no parent transaction")
		return
	}

	if p.AssetCode != "cNGN" || p.Issuer != w.cngnIssuer {
		w.log.WithField("transaction_id", transactionID).WithField("asset_code", p.AssetCode).WithField("issuer", p.Issuer).
			Warn("bill payment received in wrong asset, routing to refund")
		w.transitionBill(ctx, transactionID, bridge.BillStatusPendingPayment, bridge.BillStatusRefundInitiated, "wrong_asset", nil)
		return
	}

	received, err := money.Parse(p.Amount)
	if err != nil {
		w.log.WithError(err).WithField("transaction_id", transactionID).Warn("unparseable incoming payment amount, routing to refund")
		w.transitionBill(ctx, transactionID, bridge.BillStatusPendingPayment, bridge.BillStatusRefundInitiated, "amount_unparseable", nil)
		return
	}
	expected, err := money.Parse(tx.CNGNAmount)
	if err != nil || !received.Equal(expected) {
		w.log.WithField("transaction_id", transactionID).WithField("expected", tx.CNGNAmount).WithField("received", p.Amount).
			Warn("bill payment amount mismatch, routing to refund")
		w.transitionBill(ctx, transactionID, bridge.BillStatusPendingPayment, bridge.BillStatusRefundInitiated, "amount_mismatch", nil)
		return
	}

	w.transitionBill(ctx, transactionID, bridge.BillStatusPendingPayment, bridge.BillStatusCNGNReceived, "receipt_verified", nil)
}

// refundUnknown returns funds for a payment whose memo does not resolve to a
// tracked bill payment row, using the observed tx hash as provenance.
func (w *Worker) refundUnknown(ctx context.Context, p ledger.IncomingPayment) {
	req := ledger.PaymentRequest{
		Destination: p.From,
		AssetCode:   "cNGN",
		Issuer:      w.cngnIssuer,
		Amount:      p.Amount,
		Memo:        "REFUND-unknown-" + p.TxHash,
	}
	signed, err := w.builder.BuildSignedPayment(ctx, req)
	if err != nil {
		w.log.WithError(err).WithField("tx_hash", p.TxHash).Warn("failed to build refund for unmatched bill payment")
		return
	}
	if _, err := w.ledgerGW.SubmitPayment(ctx, signed); err != nil {
		w.log.WithError(err).WithField("tx_hash", p.TxHash).Warn("failed to submit refund for unmatched bill payment")
	}
}

var (
	meterPattern     = regexp.MustCompile(`^\d{10,12}$`)
	phonePattern     = regexp.MustCompile(`^(0|234)(70|80|81|90|91|71)\d{8}$`)
	smartcardPattern = regexp.MustCompile(`^\d{9,12}$`)
)

// formatValid checks the per-bill-type account number shape (spec §4.I step 2).
func formatValid(billType bridge.BillType, accountNumber string) bool {
	switch billType {
	case bridge.BillTypeElectricity:
		return meterPattern.MatchString(accountNumber)
	case bridge.BillTypeAirtime, bridge.BillTypeData:
		return phonePattern.MatchString(accountNumber)
	case bridge.BillTypeCableTV:
		return smartcardPattern.MatchString(accountNumber)
	default:
		return false
	}
}

// accountReverification is stage 2: format-check the account number, and for
// electricity/cable_tv additionally confirm the account is active via the
// provider's read endpoint, before moving to processing_bill or refund.
func (w *Worker) accountReverification(ctx context.Context) {
	rows, err := w.bills.ListByStatus(ctx, bridge.BillPaymentFilters{Status: bridge.BillStatusCNGNReceived, Limit: w.batchSize})
	if err != nil {
		w.log.WithError(err).Warn("failed to list cngn_received bill payments")
		return
	}

	for _, bp := range rows {
		if w.stopped.Load() {
			return
		}
		w.reverifyAccount(ctx, bp)
	}
}

func (w *Worker) reverifyAccount(ctx context.Context, bp *bridge.BillPayment) {
	if err := w.transitionBill(ctx, bp.TransactionID, bridge.BillStatusCNGNReceived, bridge.BillStatusVerifyingAccount, "verification_started", nil); err != nil {
		return
	}

	if !formatValid(bp.BillType, bp.AccountNumber) {
		w.routeAccountInvalid(ctx, bp.TransactionID, "account_number_format_invalid")
		return
	}

	needsProviderCheck := bp.BillType == bridge.BillTypeElectricity || bp.BillType == bridge.BillTypeCableTV
	var verificationData map[string]any
	if needsProviderCheck {
		provider := w.registry.Preferred(bp.BillType)
		if provider == nil {
			w.routeAccountInvalid(ctx, bp.TransactionID, "no_provider_registered")
			return
		}
		result, err := provider.VerifyAccount(ctx, SubmitRequest{
			TransactionID: bp.TransactionID,
			BillType:      bp.BillType,
			AccountNumber: bp.AccountNumber,
		})
		if err != nil {
			w.log.WithError(err).WithField("transaction_id", bp.TransactionID).Warn("account verification request failed")
			w.routeAccountInvalid(ctx, bp.TransactionID, "verification_request_failed")
			return
		}
		verificationData = result.RawResponse
		if !result.Active {
			w.routeAccountInvalid(ctx, bp.TransactionID, "account_not_active")
			return
		}
	}

	verified := true
	w.transitionBill(ctx, bp.TransactionID, bridge.BillStatusVerifyingAccount, bridge.BillStatusProcessingBill, "account_verified", &bridge.BillPaymentUpdate{
		AccountVerified:  &verified,
		VerificationData: verificationData,
	})
}

func (w *Worker) routeAccountInvalid(ctx context.Context, transactionID, reason string) {
	if err := w.transitionBill(ctx, transactionID, bridge.BillStatusVerifyingAccount, bridge.BillStatusAccountInvalid, reason, nil); err != nil {
		return
	}
	w.transitionBill(ctx, transactionID, bridge.BillStatusAccountInvalid, bridge.BillStatusRefundInitiated, reason, nil)
}

// submitBill is stage 3: select the preferred provider and submit, keyed by
// transaction_id for idempotency.
func (w *Worker) submitBill(ctx context.Context) {
	rows, err := w.bills.ListByStatus(ctx, bridge.BillPaymentFilters{Status: bridge.BillStatusProcessingBill, Limit: w.batchSize})
	if err != nil {
		w.log.WithError(err).Warn("failed to list processing_bill payments")
		return
	}

	for _, bp := range rows {
		if w.stopped.Load() {
			return
		}
		w.submitOne(ctx, bp)
	}
}

func (w *Worker) submitOne(ctx context.Context, bp *bridge.BillPayment) {
	provider := w.registry.Preferred(bp.BillType)
	if provider == nil {
		w.log.WithField("transaction_id", bp.TransactionID).Warn("no provider registered for bill type")
		return
	}

	tx, err := w.transactions.FindByID(ctx, bp.TransactionID)
	if err != nil {
		w.log.WithError(err).WithField("transaction_id", bp.TransactionID).Warn("bill payment row has no parent transaction")
		return
	}

	result, err := provider.Submit(ctx, SubmitRequest{
		TransactionID: bp.TransactionID,
		BillType:      bp.BillType,
		AccountNumber: bp.AccountNumber,
		Amount:        tx.ToAmount,
	})
	if err != nil {
		w.log.WithError(err).WithField("transaction_id", bp.TransactionID).Warn("bill submission request failed")
		result = &SubmitResult{Outcome: SubmitFailure, FailureReason: err.Error()}
	}

	providerName := provider.Name()
	switch result.Outcome {
	case SubmitSuccessToken:
		token := result.Token
		providerRef := result.ProviderReference
		w.transitionBill(ctx, bp.TransactionID, bridge.BillStatusProcessingBill, bridge.BillStatusCompleted, "submitted_with_token", &bridge.BillPaymentUpdate{
			ProviderName:      &providerName,
			ProviderReference: &providerRef,
			Token:             &token,
			ProviderResponse:  result.RawResponse,
		})
		w.finalizeTransaction(ctx, bp.TransactionID, bridge.StatusCompleted, "bill_payment_completed")
	case SubmitSuccessPending:
		providerRef := result.ProviderReference
		w.transitionBill(ctx, bp.TransactionID, bridge.BillStatusProcessingBill, bridge.BillStatusProviderProcessing, "submitted_pending", &bridge.BillPaymentUpdate{
			ProviderName:      &providerName,
			ProviderReference: &providerRef,
			ProviderResponse:  result.RawResponse,
		})
	default:
		now := time.Now()
		reason := result.FailureReason
		w.transitionBill(ctx, bp.TransactionID, bridge.BillStatusProcessingBill, bridge.BillStatusRetryScheduled, "submit_failed: "+reason, &bridge.BillPaymentUpdate{
			LastRetryAt:  &now,
			ErrorMessage: &reason,
		})
	}
}

// pollStatus is stage 4: for rows idle longer than the per-bill-type
// threshold since entering provider_processing, poll the provider; beyond
// the 5-minute poll horizon, route to retry_scheduled/token_timeout.
func (w *Worker) pollStatus(ctx context.Context) {
	rows, err := w.bills.ListByStatus(ctx, bridge.BillPaymentFilters{Status: bridge.BillStatusProviderProcessing, Limit: w.batchSize})
	if err != nil {
		w.log.WithError(err).Warn("failed to list provider_processing payments")
		return
	}

	for _, bp := range rows {
		if w.stopped.Load() {
			return
		}
		w.pollOne(ctx, bp)
	}
}

func (w *Worker) pollOne(ctx context.Context, bp *bridge.BillPayment) {
	elapsed := time.Since(bp.UpdatedAt)
	if elapsed >= PollHorizonSeconds*time.Second {
		now := time.Now()
		reason := "token_timeout"
		w.transitionBill(ctx, bp.TransactionID, bridge.BillStatusProviderProcessing, bridge.BillStatusRetryScheduled, reason, &bridge.BillPaymentUpdate{
			LastRetryAt:  &now,
			ErrorMessage: &reason,
		})
		return
	}

	threshold := time.Duration(IdleThresholds[bp.BillType]) * time.Second
	if elapsed < threshold {
		return
	}

	provider := w.registry.Resolve(bp.ProviderName)
	if provider == nil {
		provider = w.registry.Preferred(bp.BillType)
	}
	if provider == nil {
		return
	}

	result, err := provider.Poll(ctx, bp.ProviderReference)
	if err != nil {
		w.log.WithError(err).WithField("transaction_id", bp.TransactionID).Warn("bill status poll failed")
		return
	}
	if !result.Completed {
		return
	}

	token := result.Token
	w.transitionBill(ctx, bp.TransactionID, bridge.BillStatusProviderProcessing, bridge.BillStatusCompleted, "poll_confirmed", &bridge.BillPaymentUpdate{
		Token:            &token,
		ProviderResponse: result.RawResponse,
	})
	w.finalizeTransaction(ctx, bp.TransactionID, bridge.StatusCompleted, "bill_payment_completed")
}

// retryGate is stage 5: route exhausted rows to refund, and otherwise apply
// the backoff schedule before moving back to processing_bill.
func (w *Worker) retryGate(ctx context.Context) {
	rows, err := w.bills.ListByStatus(ctx, bridge.BillPaymentFilters{Status: bridge.BillStatusRetryScheduled, Limit: w.batchSize})
	if err != nil {
		w.log.WithError(err).Warn("failed to list retry_scheduled payments")
		return
	}

	for _, bp := range rows {
		if w.stopped.Load() {
			return
		}
		w.retryOne(ctx, bp)
	}
}

func (w *Worker) retryOne(ctx context.Context, bp *bridge.BillPayment) {
	if bp.RetryCount >= MaxRetries {
		w.transitionBill(ctx, bp.TransactionID, bridge.BillStatusRetryScheduled, bridge.BillStatusRefundInitiated, "max_retries_exceeded", nil)
		return
	}

	if bp.LastRetryAt == nil {
		return
	}
	backoff := time.Duration(RetryBackoff[bp.RetryCount]) * time.Second
	if time.Since(*bp.LastRetryAt) < backoff {
		return
	}

	newCount := bp.RetryCount + 1
	w.transitionBill(ctx, bp.TransactionID, bridge.BillStatusRetryScheduled, bridge.BillStatusProcessingBill, "retry_backoff_elapsed", &bridge.BillPaymentUpdate{
		RetryCount:       &newCount,
		ClearLastRetryAt: true,
	})
}

// processRefunds is stage 6: build and submit a compensating cNGN payment
// back to the originating wallet, memo REFUND-{transaction_id}.
func (w *Worker) processRefunds(ctx context.Context) {
	initiated, err := w.bills.ListByStatus(ctx, bridge.BillPaymentFilters{Status: bridge.BillStatusRefundInitiated, Limit: w.batchSize})
	if err != nil {
		w.log.WithError(err).Warn("failed to list refund_initiated payments")
		return
	}
	for _, bp := range initiated {
		if w.stopped.Load() {
			return
		}
		if err := w.transitionBill(ctx, bp.TransactionID, bridge.BillStatusRefundInitiated, bridge.BillStatusRefundProcessing, "refund_started", nil); err != nil {
			continue
		}
		w.submitRefund(ctx, bp.TransactionID)
	}

	processing, err := w.bills.ListByStatus(ctx, bridge.BillPaymentFilters{Status: bridge.BillStatusRefundProcessing, Limit: w.batchSize})
	if err != nil {
		w.log.WithError(err).Warn("failed to list refund_processing payments")
		return
	}
	for _, bp := range processing {
		if w.stopped.Load() {
			return
		}
		if bp.RefundTxHash != "" {
			continue
		}
		w.submitRefund(ctx, bp.TransactionID)
	}
}

func (w *Worker) submitRefund(ctx context.Context, transactionID string) {
	tx, err := w.transactions.FindByID(ctx, transactionID)
	if err != nil {
		w.log.WithError(err).WithField("transaction_id", transactionID).Warn("refund target has no parent transaction")
		return
	}

	req := ledger.PaymentRequest{
		Destination: tx.WalletAddress,
		AssetCode:   "cNGN",
		Issuer:      w.cngnIssuer,
		Amount:      tx.CNGNAmount,
		Memo:        ledger.BuildRefundMemo(transactionID),
	}
	signed, err := w.builder.BuildSignedPayment(ctx, req)
	if err != nil {
		w.log.WithError(err).WithField("transaction_id", transactionID).Warn("failed to build refund payment")
		return
	}
	result, err := w.ledgerGW.SubmitPayment(ctx, signed)
	if err != nil {
		w.log.WithError(err).WithField("transaction_id", transactionID).Warn("failed to submit refund payment")
		return
	}

	hash := result.TxHash
	w.transitionBill(ctx, transactionID, bridge.BillStatusRefundProcessing, bridge.BillStatusRefunded, "refund_confirmed", &bridge.BillPaymentUpdate{
		RefundTxHash: &hash,
	})
	w.finalizeTransaction(ctx, transactionID, bridge.StatusFailed, "bill_payment_refunded")
}

// transitionBill retries the CAS update up to maxCASRetries times, mirroring
// orchestrator.transitionWithUpdate's read-compute-update discipline.
func (w *Worker) transitionBill(ctx context.Context, transactionID string, expected, to bridge.BillStatus, reason string, update *bridge.BillPaymentUpdate) error {
	if update == nil {
		update = &bridge.BillPaymentUpdate{}
	}
	update.Status = &to

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		err := w.bills.UpdateCAS(ctx, transactionID, expected, update)
		if err == nil {
			return nil
		}
		if !stderrors.Is(err, errors.ErrCASMiss) {
			w.log.WithError(err).WithField("transaction_id", transactionID).WithField("reason", reason).Warn("bill transition failed")
			return err
		}

		current, findErr := w.bills.FindByTransactionID(ctx, transactionID)
		if findErr != nil {
			return findErr
		}
		if current.Status == to {
			return nil
		}
		expected = current.Status
	}

	return errors.NewBillPaymentError(errors.KindInvariant, errors.PROVIDER_FAILURE,
		"bill payment has contended state, exceeded CAS retry budget", nil)
}

// finalizeTransaction advances the parent transaction row once its bill
// payment adjunct reaches a terminal bill state. Unlike transitionBill this
// reads the current status fresh each attempt, since the caller does not
// track the transaction's current coarse status independently.
func (w *Worker) finalizeTransaction(ctx context.Context, transactionID string, to bridge.TransactionStatus, reason string) {
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		tx, err := w.transactions.FindByID(ctx, transactionID)
		if err != nil {
			w.log.WithError(err).WithField("transaction_id", transactionID).Warn("failed to read transaction for finalization")
			return
		}
		if tx.Status == to || tx.Status == bridge.StatusCompleted || tx.Status == bridge.StatusFailed || tx.Status == bridge.StatusCancelled {
			return
		}

		err = w.transactions.UpdateCAS(ctx, transactionID, tx.Status, &bridge.TransactionUpdate{
			Status: &to,
			HistoryEntry: &bridge.TransactionHistoryEntry{
				At:     time.Now(),
				From:   tx.Status,
				To:     to,
				Reason: reason,
			},
		})
		if err == nil {
			return
		}
		if !stderrors.Is(err, errors.ErrCASMiss) {
			w.log.WithError(err).WithField("transaction_id", transactionID).Warn("failed to finalize transaction")
			return
		}
	}
}
