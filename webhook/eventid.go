package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// EventIDExtractor derives a stable event_id from a provider's raw payload.
// Kept pluggable per provider so the extraction policy can change without
// touching the ingest core (spec §9 open question on Paystack event ids).
type EventIDExtractor interface {
	ExtractEventID(payload []byte) (string, error)
}

// FlutterwaveEventIDExtractor reads the provider's explicit "id" field,
// which Flutterwave always sends.
type FlutterwaveEventIDExtractor struct{}

func (FlutterwaveEventIDExtractor) ExtractEventID(payload []byte) (string, error) {
	var body struct {
		ID any `json:"id"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", fmt.Errorf("webhook: failed to parse flutterwave payload: %w", err)
	}
	if body.ID == nil {
		return "", fmt.Errorf("webhook: flutterwave payload missing id")
	}
	return fmt.Sprintf("%v", body.ID), nil
}

var _ EventIDExtractor = FlutterwaveEventIDExtractor{}

// PaystackEventIDExtractor prefers the provider's explicit event id when
// present, and falls back to a deterministic hash of
// (reference, event_type, occurred_at) when it is not — Paystack does not
// uniformly send a canonical event id across all event types.
type PaystackEventIDExtractor struct{}

func (PaystackEventIDExtractor) ExtractEventID(payload []byte) (string, error) {
	var body struct {
		Event string `json:"event"`
		ID    any    `json:"id"`
		Data  struct {
			ID        any    `json:"id"`
			Reference string `json:"reference"`
		} `json:"data"`
		CreatedAt string `json:"created_at"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", fmt.Errorf("webhook: failed to parse paystack payload: %w", err)
	}

	if body.ID != nil {
		return fmt.Sprintf("%v", body.ID), nil
	}
	if body.Data.ID != nil {
		return fmt.Sprintf("%v", body.Data.ID), nil
	}

	if body.Data.Reference == "" {
		return "", fmt.Errorf("webhook: paystack payload has no explicit id or reference to derive one from")
	}
	h := sha256.Sum256([]byte(body.Data.Reference + "|" + body.Event + "|" + body.CreatedAt))
	return hex.EncodeToString(h[:]), nil
}

var _ EventIDExtractor = PaystackEventIDExtractor{}
