package webhook

import (
	"encoding/json"
	"fmt"
)

// FlutterwaveReferenceExtractor reads data.tx_ref (charge events) or
// data.reference (transfer events) along with a human-readable failure
// reason when present.
type FlutterwaveReferenceExtractor struct{}

func (FlutterwaveReferenceExtractor) ExtractReference(payload []byte) (string, string, error) {
	var body struct {
		Data struct {
			TxRef     string `json:"tx_ref"`
			Reference string `json:"reference"`
			Status    string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", "", fmt.Errorf("webhook: failed to parse flutterwave payload: %w", err)
	}
	ref := body.Data.TxRef
	if ref == "" {
		ref = body.Data.Reference
	}
	if ref == "" {
		return "", "", fmt.Errorf("webhook: flutterwave payload missing reference")
	}
	return ref, body.Data.Status, nil
}

var _ ReferenceExtractor = FlutterwaveReferenceExtractor{}

// PaystackReferenceExtractor reads data.reference and data.gateway_response
// as the failure reason.
type PaystackReferenceExtractor struct{}

func (PaystackReferenceExtractor) ExtractReference(payload []byte) (string, string, error) {
	var body struct {
		Data struct {
			Reference       string `json:"reference"`
			GatewayResponse string `json:"gateway_response"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", "", fmt.Errorf("webhook: failed to parse paystack payload: %w", err)
	}
	if body.Data.Reference == "" {
		return "", "", fmt.Errorf("webhook: paystack payload missing reference")
	}
	return body.Data.Reference, body.Data.GatewayResponse, nil
}

var _ ReferenceExtractor = PaystackReferenceExtractor{}
