package billpayment

import (
	"fmt"

	"context"

	"github.com/cngnbridge/core/errors"
	"github.com/cngnbridge/core/netclient"
)

// PaystackProvider talks to the Paystack bills API (spec §6). Paystack
// appears in neither the primary nor the secondary slot of
// ProviderPreference, so Registry.Preferred and Registry.Secondary never
// return it; it is reached only through Registry.Resolve by name.
type PaystackProvider struct {
	client  *netclient.Client
	baseURL string
	secret  string
}

// NewPaystackProvider builds a PaystackProvider over an existing netclient.Client.
func NewPaystackProvider(client *netclient.Client, baseURL, secret string) *PaystackProvider {
	return &PaystackProvider{client: client, baseURL: baseURL, secret: secret}
}

func (p *PaystackProvider) Name() string { return "paystack" }

func (p *PaystackProvider) authHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.secret}
}

func (p *PaystackProvider) VerifyAccount(ctx context.Context, req SubmitRequest) (*VerifyResult, error) {
	url := fmt.Sprintf("%s/bill/resolve?code=%s&number=%s", p.baseURL, req.VariationCode, req.AccountNumber)
	resp, err := p.client.Get(ctx, url, p.authHeaders())
	if err != nil {
		return nil, errors.NewBillPaymentError(errors.KindTransient, errors.PROVIDER_FAILURE, "paystack verify request failed", err)
	}

	var body struct {
		Status bool `json:"status"`
		Data   struct {
			AccountName string `json:"account_name"`
		} `json:"data"`
	}
	if err := netclient.DecodeJSON(resp, &body); err != nil {
		return nil, errors.NewBillPaymentError(errors.KindTransient, errors.PROVIDER_FAILURE, "paystack verify response decode failed", err)
	}

	return &VerifyResult{
		Active:      body.Status && body.Data.AccountName != "",
		RawResponse: map[string]any{"account_name": body.Data.AccountName},
	}, nil
}

func (p *PaystackProvider) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	payload := map[string]any{
		"reference":     req.TransactionID,
		"amount":        req.Amount,
		"customer":      req.AccountNumber,
		"provider_code": req.VariationCode,
	}

	resp, err := p.client.PostJSON(ctx, p.baseURL+"/bill/pay", payload, p.authHeaders())
	if err != nil {
		return &SubmitResult{Outcome: SubmitFailure, FailureReason: err.Error()}, nil
	}

	var body struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Reference string `json:"reference"`
			Status    string `json:"status"`
		} `json:"data"`
	}
	if err := netclient.DecodeJSON(resp, &body); err != nil {
		return &SubmitResult{Outcome: SubmitFailure, FailureReason: "decode failed: " + err.Error()}, nil
	}

	raw := map[string]any{"message": body.Message, "provider_status": body.Data.Status}
	if !body.Status {
		return &SubmitResult{Outcome: SubmitFailure, FailureReason: body.Message, RawResponse: raw}, nil
	}
	return &SubmitResult{Outcome: SubmitSuccessPending, ProviderReference: body.Data.Reference, RawResponse: raw}, nil
}

func (p *PaystackProvider) Poll(ctx context.Context, providerReference string) (*PollResult, error) {
	url := fmt.Sprintf("%s/bill/verify/%s", p.baseURL, providerReference)
	resp, err := p.client.Get(ctx, url, p.authHeaders())
	if err != nil {
		return nil, errors.NewBillPaymentError(errors.KindTransient, errors.PROVIDER_FAILURE, "paystack poll request failed", err)
	}

	var body struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := netclient.DecodeJSON(resp, &body); err != nil {
		return nil, errors.NewBillPaymentError(errors.KindTransient, errors.PROVIDER_FAILURE, "paystack poll response decode failed", err)
	}

	return &PollResult{
		Completed:   body.Data.Status == "success",
		RawResponse: map[string]any{"status": body.Data.Status},
	}, nil
}

var _ Provider = (*PaystackProvider)(nil)
