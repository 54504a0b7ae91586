package billpayment

import (
	"context"
	"fmt"

	"github.com/cngnbridge/core/bridge"
	"github.com/cngnbridge/core/errors"
	"github.com/cngnbridge/core/netclient"
)

// FlutterwaveProvider talks to the Flutterwave bills API (spec §6).
type FlutterwaveProvider struct {
	client  *netclient.Client
	baseURL string
	apiKey  string
}

// NewFlutterwaveProvider builds a FlutterwaveProvider over an existing
// netclient.Client.
func NewFlutterwaveProvider(client *netclient.Client, baseURL, apiKey string) *FlutterwaveProvider {
	return &FlutterwaveProvider{client: client, baseURL: baseURL, apiKey: apiKey}
}

func (p *FlutterwaveProvider) Name() string { return "flutterwave" }

func (p *FlutterwaveProvider) authHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.apiKey}
}

func (p *FlutterwaveProvider) VerifyAccount(ctx context.Context, req SubmitRequest) (*VerifyResult, error) {
	url := fmt.Sprintf("%s/bill-items/validate?item_code=%s&code=%s", p.baseURL, req.VariationCode, req.AccountNumber)
	resp, err := p.client.Get(ctx, url, p.authHeaders())
	if err != nil {
		return nil, errors.NewBillPaymentError(errors.KindTransient, errors.PROVIDER_FAILURE, "flutterwave verify request failed", err)
	}

	var body struct {
		Status string `json:"status"`
		Data   struct {
			ResponseCode    string `json:"response_code"`
			ResponseMessage string `json:"response_message"`
		} `json:"data"`
	}
	if err := netclient.DecodeJSON(resp, &body); err != nil {
		return nil, errors.NewBillPaymentError(errors.KindTransient, errors.PROVIDER_FAILURE, "flutterwave verify response decode failed", err)
	}

	return &VerifyResult{
		Active: body.Status == "success" && body.Data.ResponseCode == "00",
		RawResponse: map[string]any{
			"response_code":    body.Data.ResponseCode,
			"response_message": body.Data.ResponseMessage,
		},
	}, nil
}

func (p *FlutterwaveProvider) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	payload := map[string]any{
		"customer":   req.AccountNumber,
		"amount":     req.Amount,
		"recurrence": "ONCE",
		"type":       billTypeCode(req.BillType, req.VariationCode),
		"reference":  req.TransactionID,
	}

	resp, err := p.client.PostJSON(ctx, p.baseURL+"/bills", payload, p.authHeaders())
	if err != nil {
		return &SubmitResult{Outcome: SubmitFailure, FailureReason: err.Error()}, nil
	}

	var body struct {
		Status string `json:"status"`
		Data   struct {
			Reference string `json:"reference"`
			Status    string `json:"status"`
			Token     string `json:"extra,omitempty"`
		} `json:"data"`
	}
	if err := netclient.DecodeJSON(resp, &body); err != nil {
		return &SubmitResult{Outcome: SubmitFailure, FailureReason: "decode failed: " + err.Error()}, nil
	}

	raw := map[string]any{"status": body.Status, "provider_status": body.Data.Status}
	if body.Status != "success" {
		return &SubmitResult{Outcome: SubmitFailure, FailureReason: body.Data.Status, RawResponse: raw}, nil
	}
	if body.Data.Token != "" {
		return &SubmitResult{Outcome: SubmitSuccessToken, ProviderReference: body.Data.Reference, Token: body.Data.Token, RawResponse: raw}, nil
	}
	return &SubmitResult{Outcome: SubmitSuccessPending, ProviderReference: body.Data.Reference, RawResponse: raw}, nil
}

func (p *FlutterwaveProvider) Poll(ctx context.Context, providerReference string) (*PollResult, error) {
	url := fmt.Sprintf("%s/bills/%s", p.baseURL, providerReference)
	resp, err := p.client.Get(ctx, url, p.authHeaders())
	if err != nil {
		return nil, errors.NewBillPaymentError(errors.KindTransient, errors.PROVIDER_FAILURE, "flutterwave poll request failed", err)
	}

	var body struct {
		Data struct {
			Status string `json:"status"`
			Extra  string `json:"extra"`
		} `json:"data"`
	}
	if err := netclient.DecodeJSON(resp, &body); err != nil {
		return nil, errors.NewBillPaymentError(errors.KindTransient, errors.PROVIDER_FAILURE, "flutterwave poll response decode failed", err)
	}

	return &PollResult{
		Completed:   body.Data.Status == "successful",
		Token:       body.Data.Extra,
		RawResponse: map[string]any{"status": body.Data.Status},
	}, nil
}

func billTypeCode(billType bridge.BillType, variationCode string) string {
	switch billType {
	case bridge.BillTypeElectricity:
		if variationCode != "" {
			return variationCode
		}
		return "PREPAID"
	case bridge.BillTypeCableTV:
		return "POSTPAID"
	default:
		return variationCode
	}
}

var _ Provider = (*FlutterwaveProvider)(nil)
