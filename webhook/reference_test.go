package webhook

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlutterwaveReferenceExtractorPrefersTxRef(t *testing.T) {
	e := FlutterwaveReferenceExtractor{}
	ref, reason, err := e.ExtractReference([]byte(`{"data":{"tx_ref":"tx-1","reference":"ref-1","status":"failed"}}`))
	require.NoError(t, err)
	require.Equal(t, "tx-1", ref)
	require.Equal(t, "failed", reason)
}

func TestFlutterwaveReferenceExtractorFallsBackToReference(t *testing.T) {
	e := FlutterwaveReferenceExtractor{}
	ref, _, err := e.ExtractReference([]byte(`{"data":{"reference":"ref-1"}}`))
	require.NoError(t, err)
	require.Equal(t, "ref-1", ref)
}

func TestFlutterwaveReferenceExtractorRejectsMissingReference(t *testing.T) {
	e := FlutterwaveReferenceExtractor{}
	_, _, err := e.ExtractReference([]byte(`{"data":{}}`))
	require.Error(t, err)
}

func TestPaystackReferenceExtractorReadsReferenceAndGatewayResponse(t *testing.T) {
	e := PaystackReferenceExtractor{}
	ref, reason, err := e.ExtractReference([]byte(`{"data":{"reference":"ref-9","gateway_response":"Declined"}}`))
	require.NoError(t, err)
	require.Equal(t, "ref-9", ref)
	require.Equal(t, "Declined", reason)
}

func TestPaystackReferenceExtractorRejectsMissingReference(t *testing.T) {
	e := PaystackReferenceExtractor{}
	_, _, err := e.ExtractReference([]byte(`{"data":{}}`))
	require.Error(t, err)
}
