package webhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cngnbridge/core/logging"
)

// Dispatcher is the subset of the payment orchestrator the ingest path
// needs. Implemented by orchestrator.Orchestrator.
type Dispatcher interface {
	PaymentSuccess(ctx context.Context, paymentReference string) error
	PaymentFailure(ctx context.Context, paymentReference, reason string) error
	WithdrawalSuccess(ctx context.Context, paymentReference string) error
	WithdrawalFailure(ctx context.Context, paymentReference, reason string) error
}

// EventTypeAction maps a provider event type to the dispatcher action it
// should trigger (spec §4.G's design-level mapping table).
type EventTypeAction string

const (
	ActionPaymentSuccess    EventTypeAction = "payment_success"
	ActionPaymentFailure    EventTypeAction = "payment_failure"
	ActionWithdrawalSuccess EventTypeAction = "withdrawal_success"
	ActionWithdrawalFailure EventTypeAction = "withdrawal_failure"
)

var eventTypeActions = map[string]EventTypeAction{
	"charge.completed":   ActionPaymentSuccess,
	"charge.success":     ActionPaymentSuccess,
	"charge.failed":      ActionPaymentFailure,
	"transfer.completed": ActionWithdrawalSuccess,
	"transfer.success":   ActionWithdrawalSuccess,
	"transfer.failed":    ActionWithdrawalFailure,
}

// ReferenceExtractor pulls the payment/transfer reference the dispatcher
// needs out of a provider payload, per event type. Implementations are
// provider-specific since the JSON shape differs.
type ReferenceExtractor interface {
	ExtractReference(payload []byte) (reference, reason string, err error)
}

// Ingester verifies, dedupes, persists, and dispatches webhook deliveries
// (component G).
type Ingester struct {
	store      Store
	verifiers  map[Provider]Verifier
	eventIDs   map[Provider]EventIDExtractor
	references map[Provider]ReferenceExtractor
	dispatcher Dispatcher
	log        *logging.Entry
}

// New builds an Ingester with a closed, pre-registered set of
// per-provider verifiers, event id extractors, and reference extractors.
func New(store Store, dispatcher Dispatcher, verifiers map[Provider]Verifier, eventIDs map[Provider]EventIDExtractor, references map[Provider]ReferenceExtractor) *Ingester {
	return &Ingester{
		store:      store,
		verifiers:  verifiers,
		eventIDs:   eventIDs,
		references: references,
		dispatcher: dispatcher,
		log:        logging.For("webhook.ingest"),
	}
}

// Ingest verifies the delivery, dedupes it, persists it, and dispatches it
// to the orchestrator. It always returns success to the provider once
// verification passes, even if dispatch fails or is deferred (spec §6).
func (i *Ingester) Ingest(ctx context.Context, provider Provider, body []byte, headers map[string]string) (Outcome, error) {
	verifier, ok := i.verifiers[provider]
	if !ok {
		return OutcomeRejected, nil
	}
	if !verifier.Verify(body, headers) {
		return OutcomeRejected, nil
	}

	extractor, ok := i.eventIDs[provider]
	if !ok {
		return OutcomeRejected, nil
	}
	eventID, err := extractor.ExtractEventID(body)
	if err != nil {
		i.log.WithError(err).WithField("provider", provider).Warn("failed to extract event id")
		return OutcomeRejected, nil
	}

	eventType := sniffEventType(body)
	event := &Event{
		Provider:  provider,
		EventID:   eventID,
		EventType: eventType,
		Payload:   body,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}

	inserted, err := i.store.Insert(ctx, event)
	if err != nil {
		return OutcomeRejected, err
	}
	if !inserted {
		// Already seen: respond success without reprocessing.
		return OutcomeDuplicateIgnored, nil
	}

	if err := i.dispatch(ctx, provider, eventType, body); err != nil {
		_ = i.store.MarkFailed(ctx, provider, eventID, err.Error())
		// The row stays pending (MarkFailed in this design only sets the
		// error message, not the terminal dead-letter state — see
		// Store.IncrementRetry for the retry worker's path to dead-letter).
		return OutcomeAccepted, nil
	}

	_ = i.store.MarkCompleted(ctx, provider, eventID)
	return OutcomeAccepted, nil
}

func (i *Ingester) dispatch(ctx context.Context, provider Provider, eventType string, payload []byte) error {
	action, ok := eventTypeActions[eventType]
	if !ok {
		// Unrecognized event types are accepted and recorded but don't
		// map to a dispatcher action.
		return nil
	}

	refExtractor, ok := i.references[provider]
	if !ok {
		return nil
	}
	reference, reason, err := refExtractor.ExtractReference(payload)
	if err != nil {
		return err
	}

	switch action {
	case ActionPaymentSuccess:
		return i.dispatcher.PaymentSuccess(ctx, reference)
	case ActionPaymentFailure:
		return i.dispatcher.PaymentFailure(ctx, reference, reason)
	case ActionWithdrawalSuccess:
		return i.dispatcher.WithdrawalSuccess(ctx, reference)
	case ActionWithdrawalFailure:
		return i.dispatcher.WithdrawalFailure(ctx, reference, reason)
	}
	return nil
}

func sniffEventType(payload []byte) string {
	var body struct {
		Event string `json:"event"`
		Type  string `json:"type"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	if body.Event != "" {
		return body.Event
	}
	return body.Type
}
