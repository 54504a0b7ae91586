package billpayment

import (
	"context"
	"fmt"

	"github.com/cngnbridge/core/bridge"
	"github.com/cngnbridge/core/errors"
	"github.com/cngnbridge/core/netclient"
)

// VTPassProvider talks to the VTPass bills API (spec §6).
type VTPassProvider struct {
	client    *netclient.Client
	baseURL   string
	apiKey    string
	secretKey string
}

// NewVTPassProvider builds a VTPassProvider over an existing netclient.Client.
func NewVTPassProvider(client *netclient.Client, baseURL, apiKey, secretKey string) *VTPassProvider {
	return &VTPassProvider{client: client, baseURL: baseURL, apiKey: apiKey, secretKey: secretKey}
}

func (p *VTPassProvider) Name() string { return "vtpass" }

func (p *VTPassProvider) authHeaders() map[string]string {
	return map[string]string{
		"api-key":    p.apiKey,
		"secret-key": p.secretKey,
	}
}

func serviceID(billType bridge.BillType, variationCode string) string {
	switch billType {
	case bridge.BillTypeAirtime:
		return "airtime"
	case bridge.BillTypeData:
		if variationCode != "" {
			return variationCode
		}
		return "mtn-data"
	case bridge.BillTypeElectricity:
		return "electricity"
	case bridge.BillTypeCableTV:
		return "cable_tv"
	default:
		return string(billType)
	}
}

func (p *VTPassProvider) VerifyAccount(ctx context.Context, req SubmitRequest) (*VerifyResult, error) {
	payload := map[string]any{
		"serviceID":   serviceID(req.BillType, req.VariationCode),
		"billersCode": req.AccountNumber,
	}
	resp, err := p.client.PostJSON(ctx, p.baseURL+"/merchant-verify", payload, p.authHeaders())
	if err != nil {
		return nil, errors.NewBillPaymentError(errors.KindTransient, errors.PROVIDER_FAILURE, "vtpass verify request failed", err)
	}

	var body struct {
		Code    string `json:"code"`
		Content struct {
			CustomerName string `json:"Customer_Name"`
			Error        string `json:"error"`
		} `json:"content"`
	}
	if err := netclient.DecodeJSON(resp, &body); err != nil {
		return nil, errors.NewBillPaymentError(errors.KindTransient, errors.PROVIDER_FAILURE, "vtpass verify response decode failed", err)
	}

	return &VerifyResult{
		Active:      body.Code == "000" && body.Content.Error == "",
		RawResponse: map[string]any{"code": body.Code, "customer_name": body.Content.CustomerName},
	}, nil
}

func (p *VTPassProvider) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	payload := map[string]any{
		"serviceID":  serviceID(req.BillType, req.VariationCode),
		"amount":     req.Amount,
		"request_id": req.TransactionID,
	}
	switch req.BillType {
	case bridge.BillTypeElectricity:
		payload["meter"] = req.AccountNumber
	case bridge.BillTypeCableTV:
		payload["smartcard"] = req.AccountNumber
	default:
		payload["phone"] = req.AccountNumber
	}
	if req.VariationCode != "" {
		payload["variation_code"] = req.VariationCode
	}

	resp, err := p.client.PostJSON(ctx, p.baseURL+"/pay", payload, p.authHeaders())
	if err != nil {
		return &SubmitResult{Outcome: SubmitFailure, FailureReason: err.Error()}, nil
	}

	var body struct {
		Code     string `json:"code"`
		Response string `json:"response_description"`
		Content  struct {
			TransactionID string `json:"transactionId"`
			Token         string `json:"token"`
		} `json:"content"`
	}
	if err := netclient.DecodeJSON(resp, &body); err != nil {
		return &SubmitResult{Outcome: SubmitFailure, FailureReason: "decode failed: " + err.Error()}, nil
	}

	raw := map[string]any{"code": body.Code, "response_description": body.Response}
	switch body.Code {
	case "000":
		if body.Content.Token != "" {
			return &SubmitResult{Outcome: SubmitSuccessToken, ProviderReference: body.Content.TransactionID, Token: body.Content.Token, RawResponse: raw}, nil
		}
		return &SubmitResult{Outcome: SubmitSuccessPending, ProviderReference: body.Content.TransactionID, RawResponse: raw}, nil
	case "099":
		return &SubmitResult{Outcome: SubmitSuccessPending, ProviderReference: body.Content.TransactionID, RawResponse: raw}, nil
	default:
		return &SubmitResult{Outcome: SubmitFailure, FailureReason: body.Response, RawResponse: raw}, nil
	}
}

func (p *VTPassProvider) Poll(ctx context.Context, providerReference string) (*PollResult, error) {
	payload := map[string]any{"request_id": providerReference}
	resp, err := p.client.PostJSON(ctx, p.baseURL+"/requery", payload, p.authHeaders())
	if err != nil {
		return nil, errors.NewBillPaymentError(errors.KindTransient, errors.PROVIDER_FAILURE, "vtpass poll request failed", err)
	}

	var body struct {
		Code    string `json:"code"`
		Content struct {
			TransactionStatus string `json:"transactionStatus"`
			Token             string `json:"token"`
		} `json:"content"`
	}
	if err := netclient.DecodeJSON(resp, &body); err != nil {
		return nil, errors.NewBillPaymentError(errors.KindTransient, errors.PROVIDER_FAILURE, "vtpass poll response decode failed", err)
	}

	return &PollResult{
		Completed:   body.Code == "000" && body.Content.TransactionStatus == "delivered",
		Token:       body.Content.Token,
		RawResponse: map[string]any{"code": body.Code, "status": fmt.Sprint(body.Content.TransactionStatus)},
	}, nil
}

var _ Provider = (*VTPassProvider)(nil)
