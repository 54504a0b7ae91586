package webhook

import (
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
)

// Verifier checks a provider's signature over a raw webhook body.
// Implementations: one per provider. Per spec §9, this is a closed set of
// variants, not open dynamic dispatch.
type Verifier interface {
	Verify(body []byte, headers map[string]string) bool
}

// FlutterwaveVerifier checks the "verif-hash" header against the
// configured secret with a constant-time compare (spec §4.G).
type FlutterwaveVerifier struct {
	Secret string
}

func (v *FlutterwaveVerifier) Verify(_ []byte, headers map[string]string) bool {
	if v.Secret == "" {
		return false
	}
	got := headers["verif-hash"]
	if got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(v.Secret)) == 1
}

var _ Verifier = (*FlutterwaveVerifier)(nil)

// PaystackVerifier checks the "x-paystack-signature" header against
// HMAC-SHA512(secret, body), hex-encoded, compared in constant time
// (spec §4.G).
type PaystackVerifier struct {
	Secret string
}

func (v *PaystackVerifier) Verify(body []byte, headers map[string]string) bool {
	if v.Secret == "" {
		return false
	}
	sig := headers["x-paystack-signature"]
	if sig == "" {
		return false
	}
	expected, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(v.Secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}

var _ Verifier = (*PaystackVerifier)(nil)
