// Package orchestrator drives onramp/offramp transaction state from
// verified webhook events (spec §4.H). It never uses in-process locks —
// every state change is a CAS update on the transaction store, since
// workers run across multiple processes and a local mutex would not
// survive a restart (spec §9).
package orchestrator

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/cngnbridge/core/bridge"
	"github.com/cngnbridge/core/errors"
	"github.com/cngnbridge/core/ledger"
	"github.com/cngnbridge/core/logging"
	"github.com/cngnbridge/core/transaction"
)

// Backoff is the delay schedule for retryable orchestrator failures
// (spec §4.H): 10s, 60s, 300s, capped at maxOrchestratorAttempts. The
// delays are fixed values; no jitter is applied. Nothing in this package
// reads Backoff or maxOrchestratorAttempts.
var Backoff = []time.Duration{10 * time.Second, 60 * time.Second, 300 * time.Second}

const maxOrchestratorAttempts = 3

// maxCASRetries bounds the read-compute-update loop for a single logical
// update; exceeding it is an internal invariant violation, not a retryable
// failure (spec §7).
const maxCASRetries = 5

// Orchestrator handles payment/withdrawal outcomes reported by webhooks.
type Orchestrator struct {
	transactions bridge.TransactionStore
	ledgerGW     ledger.Gateway
	builder      ledger.PaymentBuilder
	hooks        *transaction.HookRegistry
	log          *logging.Entry
}

// New builds an Orchestrator.
func New(transactions bridge.TransactionStore, ledgerGW ledger.Gateway, builder ledger.PaymentBuilder, hooks *transaction.HookRegistry) *Orchestrator {
	if hooks == nil {
		hooks = transaction.NewHookRegistry()
	}
	return &Orchestrator{
		transactions: transactions,
		ledgerGW:     ledgerGW,
		builder:      builder,
		hooks:        hooks,
		log:          logging.For("orchestrator"),
	}
}

// PaymentSuccess advances an onramp transaction identified by
// paymentReference on a successful fiat charge: pending -> processing ->
// completed, submitting the cNGN payout exactly once before the final
// transition (spec §4.H).
func (o *Orchestrator) PaymentSuccess(ctx context.Context, paymentReference string) error {
	tx, err := o.transactions.FindByPaymentRef(ctx, paymentReference)
	if err != nil {
		// The webhook may have raced ahead of the create path; the caller
		// (webhook ingest) leaves the row pending and the retry worker
		// will re-dispatch.
		return errors.NewOrchestratorError(errors.KindTransient, errors.TRANSACTION_NOT_READY,
			"transaction not found for payment reference", err)
	}

	if isTerminal(tx.Status) {
		return nil
	}

	if tx.Status == bridge.StatusPending {
		if err := o.transition(ctx, tx.TransactionID, bridge.StatusPending, bridge.StatusProcessing, "payment_success"); err != nil {
			return err
		}
		tx.Status = bridge.StatusProcessing
	}

	payoutReq := ledger.PaymentRequest{
		Destination: tx.WalletAddress,
		AssetCode:   "cNGN",
		Amount:      tx.CNGNAmount,
		Memo:        "onramp-" + tx.TransactionID,
	}
	signedXDR, err := o.builder.BuildSignedPayment(ctx, payoutReq)
	if err != nil {
		return o.routeToRefund(ctx, tx, "payout construction failed: "+err.Error())
	}

	result, err := o.ledgerGW.SubmitPayment(ctx, signedXDR)
	if err != nil {
		return o.routeToRefund(ctx, tx, "payout submission failed: "+err.Error())
	}

	hash := result.TxHash
	return o.transitionWithUpdate(ctx, tx.TransactionID, bridge.StatusProcessing, bridge.StatusCompleted, "payout confirmed", &bridge.TransactionUpdate{
		BlockchainTxHash: &hash,
	})
}

// PaymentFailure moves an onramp transaction to failed.
func (o *Orchestrator) PaymentFailure(ctx context.Context, paymentReference, reason string) error {
	tx, err := o.transactions.FindByPaymentRef(ctx, paymentReference)
	if err != nil {
		return errors.NewOrchestratorError(errors.KindTransient, errors.TRANSACTION_NOT_READY,
			"transaction not found for payment reference", err)
	}
	if isTerminal(tx.Status) {
		return nil
	}
	return o.transition(ctx, tx.TransactionID, tx.Status, bridge.StatusFailed, "payment_failure: "+reason)
}

// WithdrawalSuccess advances an offramp transaction on confirmed fiat payout.
func (o *Orchestrator) WithdrawalSuccess(ctx context.Context, paymentReference string) error {
	tx, err := o.transactions.FindByPaymentRef(ctx, paymentReference)
	if err != nil {
		return errors.NewOrchestratorError(errors.KindTransient, errors.TRANSACTION_NOT_READY,
			"transaction not found for payment reference", err)
	}
	if isTerminal(tx.Status) {
		return nil
	}
	return o.transition(ctx, tx.TransactionID, tx.Status, bridge.StatusCompleted, "withdrawal_success")
}

// WithdrawalFailure moves an offramp transaction to failed.
func (o *Orchestrator) WithdrawalFailure(ctx context.Context, paymentReference, reason string) error {
	tx, err := o.transactions.FindByPaymentRef(ctx, paymentReference)
	if err != nil {
		return errors.NewOrchestratorError(errors.KindTransient, errors.TRANSACTION_NOT_READY,
			"transaction not found for payment reference", err)
	}
	if isTerminal(tx.Status) {
		return nil
	}
	return o.transition(ctx, tx.TransactionID, tx.Status, bridge.StatusFailed, "withdrawal_failure: "+reason)
}

func isTerminal(status bridge.TransactionStatus) bool {
	return status == bridge.StatusCompleted || status == bridge.StatusFailed || status == bridge.StatusCancelled
}

func (o *Orchestrator) routeToRefund(ctx context.Context, tx *bridge.Transaction, reason string) error {
	o.log.WithField("transaction_id", tx.TransactionID).WithField("reason", reason).Warn("routing onramp payout to refund-intent")
	return o.transition(ctx, tx.TransactionID, tx.Status, bridge.StatusFailed, "refund-intent: "+reason)
}

// transition retries the CAS update up to maxCASRetries times against a
// freshly-read expected status, since another worker may have advanced the
// row between read and write.
func (o *Orchestrator) transition(ctx context.Context, id string, expected, to bridge.TransactionStatus, reason string) error {
	return o.transitionWithUpdate(ctx, id, expected, to, reason, &bridge.TransactionUpdate{})
}

func (o *Orchestrator) transitionWithUpdate(ctx context.Context, id string, expected, to bridge.TransactionStatus, reason string, update *bridge.TransactionUpdate) error {
	update.Status = &to
	update.HistoryEntry = &bridge.TransactionHistoryEntry{
		At:     time.Now(),
		From:   expected,
		To:     to,
		Reason: reason,
	}

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		err := o.transactions.UpdateCAS(ctx, id, expected, update)
		if err == nil {
			if tx, findErr := o.transactions.FindByID(ctx, id); findErr == nil {
				o.hooks.Trigger(transaction.HookStatusChanged, tx)
				if to == bridge.StatusCompleted {
					o.hooks.Trigger(transaction.HookCompleted, tx)
				}
				if to == bridge.StatusFailed {
					o.hooks.Trigger(transaction.HookFailed, tx)
				}
			}
			return nil
		}
		if !stderrors.Is(err, errors.ErrCASMiss) {
			return err
		}

		current, findErr := o.transactions.FindByID(ctx, id)
		if findErr != nil {
			return findErr
		}
		if current.Status == to || isTerminal(current.Status) {
			return nil
		}
		expected = current.Status
		update.HistoryEntry.From = expected
	}

	return errors.NewOrchestratorError(errors.KindInvariant, errors.RETRYABLE_FAILURE,
		"transaction has contended state, exceeded CAS retry budget", nil)
}
