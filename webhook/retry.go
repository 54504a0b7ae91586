package webhook

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cngnbridge/core/logging"
)

// RetryWorker is the periodic sweep of pending webhook events (component J,
// spec §4.J). Wakes every 60s by default, re-dispatches up to 50 rows with
// retry_count < 5, and moves rows that exhaust the budget to dead-letter.
type RetryWorker struct {
	store      Store
	dispatcher Dispatcher
	references map[Provider]ReferenceExtractor
	interval   time.Duration
	maxRetries int
	batchSize  int
	stopped    atomic.Bool
	log        *logging.Entry
}

// NewRetryWorker builds a RetryWorker with spec-default interval (60s),
// maxRetries (5), and batchSize (50).
func NewRetryWorker(store Store, dispatcher Dispatcher, references map[Provider]ReferenceExtractor) *RetryWorker {
	return &RetryWorker{
		store:      store,
		dispatcher: dispatcher,
		references: references,
		interval:   60 * time.Second,
		maxRetries: 5,
		batchSize:  50,
		log:        logging.For("webhook.retry"),
	}
}

// Run blocks, sweeping on each tick until ctx is cancelled or Stop is
// called.
func (w *RetryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.stopped.Load() {
				return
			}
			w.sweep(ctx)
		}
	}
}

func (w *RetryWorker) sweep(ctx context.Context) {
	pending, err := w.store.ListPendingForRetry(ctx, w.maxRetries, w.batchSize)
	if err != nil {
		w.log.WithError(err).Warn("failed to list pending webhooks for retry")
		return
	}

	for _, e := range pending {
		if w.stopped.Load() {
			return
		}
		if err := w.redispatch(ctx, e); err != nil {
			w.log.WithError(err).WithField("event_id", e.EventID).Warn("webhook retry dispatch failed")
			if incErr := w.store.IncrementRetry(ctx, e.Provider, e.EventID, err.Error()); incErr != nil {
				w.log.WithError(incErr).Warn("failed to increment webhook retry count")
			}
			continue
		}
		if err := w.store.MarkCompleted(ctx, e.Provider, e.EventID); err != nil {
			w.log.WithError(err).Warn("failed to mark webhook completed after retry")
		}
	}
}

func (w *RetryWorker) redispatch(ctx context.Context, e *Event) error {
	action, ok := eventTypeActions[e.EventType]
	if !ok {
		return nil
	}
	refExtractor, ok := w.references[e.Provider]
	if !ok {
		return nil
	}
	reference, reason, err := refExtractor.ExtractReference(e.Payload)
	if err != nil {
		return err
	}

	switch action {
	case ActionPaymentSuccess:
		return w.dispatcher.PaymentSuccess(ctx, reference)
	case ActionPaymentFailure:
		return w.dispatcher.PaymentFailure(ctx, reference, reason)
	case ActionWithdrawalSuccess:
		return w.dispatcher.WithdrawalSuccess(ctx, reference)
	case ActionWithdrawalFailure:
		return w.dispatcher.WithdrawalFailure(ctx, reference, reason)
	}
	return nil
}

// Stop signals Run to exit at the next tick boundary.
func (w *RetryWorker) Stop() {
	w.stopped.Store(true)
}
