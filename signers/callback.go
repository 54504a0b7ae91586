package signers

import (
	"context"
	"fmt"

	"github.com/cngnbridge/core/errors"
	"github.com/cngnbridge/core/ledger"
	"github.com/cngnbridge/core/netclient"
)

// callbackSigner wraps a custom signing function for an external signing
// service (HSM, custodial signing API).
type callbackSigner struct {
	publicKey string
	signFunc  func(ctx context.Context, xdr string, networkPassphrase string) (string, error)
}

// FromCallback creates a ledger.Signer from a public key and an arbitrary
// signing function. Intended for wrapping HSMs, custodial APIs, or any
// external signing service that holds the system wallet's key outside this
// process.
func FromCallback(
	publicKey string,
	signFunc func(ctx context.Context, xdr string, networkPassphrase string) (string, error),
) ledger.Signer {
	return &callbackSigner{
		publicKey: publicKey,
		signFunc:  signFunc,
	}
}

// PublicKey returns the Stellar address (G...) for this signer.
func (s *callbackSigner) PublicKey() string {
	return s.publicKey
}

// SignTransaction delegates to the wrapped callback.
func (s *callbackSigner) SignTransaction(ctx context.Context, xdr string, networkPassphrase string) (string, error) {
	return s.signFunc(ctx, xdr, networkPassphrase)
}

var _ ledger.Signer = (*callbackSigner)(nil)

// signRequest and signResponse are the wire shapes FromCallbackURL's
// signFunc exchanges with the external signing service.
type signRequest struct {
	XDR               string `json:"xdr"`
	NetworkPassphrase string `json:"network_passphrase"`
}

type signResponse struct {
	SignedXDR string `json:"signed_xdr"`
	Error     string `json:"error,omitempty"`
}

// FromCallbackURL builds a ledger.Signer that delegates signing to an HTTP
// endpoint: the system wallet's seed never enters this process. publicKey
// is the wallet's known Stellar address (G...), returned from PublicKey
// without a round trip.
func FromCallbackURL(client *netclient.Client, publicKey, url string) ledger.Signer {
	return FromCallback(publicKey, func(ctx context.Context, xdr, networkPassphrase string) (string, error) {
		resp, err := client.PostJSON(ctx, url, signRequest{XDR: xdr, NetworkPassphrase: networkPassphrase}, nil)
		if err != nil {
			return "", errors.NewLedgerError(errors.KindTransient, errors.SIGNER_ERROR, "signing callback request failed", err)
		}
		var body signResponse
		if err := netclient.DecodeJSON(resp, &body); err != nil {
			return "", errors.NewLedgerError(errors.KindTransient, errors.SIGNER_ERROR, "signing callback returned malformed response", err)
		}
		if body.Error != "" {
			return "", errors.NewLedgerError(errors.KindPermanent, errors.SIGNER_ERROR, fmt.Sprintf("signing callback rejected request: %s", body.Error), nil)
		}
		if body.SignedXDR == "" {
			return "", errors.NewLedgerError(errors.KindPermanent, errors.SIGNER_ERROR, "signing callback returned an empty envelope", nil)
		}
		return body.SignedXDR, nil
	})
}
