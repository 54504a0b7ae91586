package webhook

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlutterwaveVerifierAcceptsMatchingHash(t *testing.T) {
	v := &FlutterwaveVerifier{Secret: "shh"}
	require.True(t, v.Verify(nil, map[string]string{"verif-hash": "shh"}))
}

func TestFlutterwaveVerifierRejectsMismatch(t *testing.T) {
	v := &FlutterwaveVerifier{Secret: "shh"}
	require.False(t, v.Verify(nil, map[string]string{"verif-hash": "wrong"}))
}

func TestFlutterwaveVerifierRejectsMissingHeader(t *testing.T) {
	v := &FlutterwaveVerifier{Secret: "shh"}
	require.False(t, v.Verify(nil, map[string]string{}))
}

func TestFlutterwaveVerifierRejectsUnconfiguredSecret(t *testing.T) {
	v := &FlutterwaveVerifier{}
	require.False(t, v.Verify(nil, map[string]string{"verif-hash": "anything"}))
}

func paystackSign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaystackVerifierAcceptsValidSignature(t *testing.T) {
	body := []byte(`{"event":"charge.success"}`)
	v := &PaystackVerifier{Secret: "topsecret"}
	sig := paystackSign("topsecret", body)
	require.True(t, v.Verify(body, map[string]string{"x-paystack-signature": sig}))
}

func TestPaystackVerifierRejectsWrongSecret(t *testing.T) {
	body := []byte(`{"event":"charge.success"}`)
	v := &PaystackVerifier{Secret: "topsecret"}
	sig := paystackSign("wrong-secret", body)
	require.False(t, v.Verify(body, map[string]string{"x-paystack-signature": sig}))
}

func TestPaystackVerifierRejectsMalformedHexSignature(t *testing.T) {
	body := []byte(`{"event":"charge.success"}`)
	v := &PaystackVerifier{Secret: "topsecret"}
	require.False(t, v.Verify(body, map[string]string{"x-paystack-signature": "not-hex!"}))
}
