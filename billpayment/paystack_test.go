package billpayment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cngnbridge/core/netclient"
)

func TestPaystackVerifyAccountActive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-secret", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data":   map[string]any{"account_name": "Jane Doe"},
		})
	}))
	defer server.Close()

	provider := NewPaystackProvider(netclient.New(), server.URL, "test-secret")
	result, err := provider.VerifyAccount(context.Background(), SubmitRequest{
		AccountNumber: "1234567890",
		VariationCode: "dstv-code",
	})
	require.NoError(t, err)
	require.True(t, result.Active)
}

func TestPaystackSubmitSuccessPending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bill/pay", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data":   map[string]any{"reference": "ps-ref-1", "status": "pending"},
		})
	}))
	defer server.Close()

	provider := NewPaystackProvider(netclient.New(), server.URL, "test-secret")
	result, err := provider.Submit(context.Background(), SubmitRequest{
		TransactionID: "tx-1",
		AccountNumber: "08012345678",
		Amount:        "500",
	})
	require.NoError(t, err)
	require.Equal(t, SubmitSuccessPending, result.Outcome)
	require.Equal(t, "ps-ref-1", result.ProviderReference)
}

func TestPaystackSubmitFailureOnFalseStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":  false,
			"message": "insufficient balance",
		})
	}))
	defer server.Close()

	provider := NewPaystackProvider(netclient.New(), server.URL, "test-secret")
	result, err := provider.Submit(context.Background(), SubmitRequest{
		TransactionID: "tx-2",
		AccountNumber: "08012345678",
		Amount:        "500",
	})
	require.NoError(t, err)
	require.Equal(t, SubmitFailure, result.Outcome)
	require.Equal(t, "insufficient balance", result.FailureReason)
}

func TestPaystackPollSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, "/bill/verify/")
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"status": "success"},
		})
	}))
	defer server.Close()

	provider := NewPaystackProvider(netclient.New(), server.URL, "test-secret")
	result, err := provider.Poll(context.Background(), "ps-ref-1")
	require.NoError(t, err)
	require.True(t, result.Completed)
}
