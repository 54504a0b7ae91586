package billpayment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cngnbridge/core/bridge"
	"github.com/cngnbridge/core/netclient"
)

func TestVTPassVerifyAccountActive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/merchant-verify", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("api-key"))
		json.NewEncoder(w).Encode(map[string]any{
			"code":    "000",
			"content": map[string]any{"Customer_Name": "Jane Doe"},
		})
	}))
	defer server.Close()

	provider := NewVTPassProvider(netclient.New(), server.URL, "test-key", "test-secret")
	result, err := provider.VerifyAccount(context.Background(), SubmitRequest{
		BillType:      bridge.BillTypeAirtime,
		AccountNumber: "08012345678",
	})
	require.NoError(t, err)
	require.True(t, result.Active)
}

func TestVTPassSubmitSuccessPendingWithoutToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/pay", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"code":    "000",
			"content": map[string]any{"transactionId": "vt-ref-1"},
		})
	}))
	defer server.Close()

	provider := NewVTPassProvider(netclient.New(), server.URL, "test-key", "test-secret")
	result, err := provider.Submit(context.Background(), SubmitRequest{
		TransactionID: "tx-1",
		BillType:      bridge.BillTypeElectricity,
		AccountNumber: "1234567890",
		Amount:        "5000",
	})
	require.NoError(t, err)
	require.Equal(t, SubmitSuccessPending, result.Outcome)
	require.Equal(t, "vt-ref-1", result.ProviderReference)
}

func TestVTPassSubmitFailureOnNonZeroCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"code":                 "016",
			"response_description": "transaction failed",
		})
	}))
	defer server.Close()

	provider := NewVTPassProvider(netclient.New(), server.URL, "test-key", "test-secret")
	result, err := provider.Submit(context.Background(), SubmitRequest{
		TransactionID: "tx-2",
		BillType:      bridge.BillTypeAirtime,
		AccountNumber: "08012345678",
		Amount:        "500",
	})
	require.NoError(t, err)
	require.Equal(t, SubmitFailure, result.Outcome)
	require.Equal(t, "transaction failed", result.FailureReason)
}

func TestVTPassPollDelivered(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"code":    "000",
			"content": map[string]any{"transactionStatus": "delivered", "token": "tok-9"},
		})
	}))
	defer server.Close()

	provider := NewVTPassProvider(netclient.New(), server.URL, "test-key", "test-secret")
	result, err := provider.Poll(context.Background(), "vt-ref-1")
	require.NoError(t, err)
	require.True(t, result.Completed)
	require.Equal(t, "tok-9", result.Token)
}

func TestServiceIDPrefersVariationCodeForData(t *testing.T) {
	require.Equal(t, "mtn-data", serviceID(bridge.BillTypeData, ""))
	require.Equal(t, "glo-data", serviceID(bridge.BillTypeData, "glo-data"))
	require.Equal(t, "electricity", serviceID(bridge.BillTypeElectricity, ""))
}
