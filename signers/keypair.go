package signers

import (
	"context"
	"fmt"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"

	"github.com/cngnbridge/core/ledger"
)

// keypairSigner wraps a stellar/go keypair for signing the system wallet's
// transactions in-process.
type keypairSigner struct {
	kp *keypair.Full
}

// FromSecret creates a ledger.Signer from the system wallet's Stellar secret
// key (S...). Intended for deployments that hold the key in the process
// (environment variable or secrets manager), as opposed to an HSM.
// Returns an error if the secret key is invalid.
func FromSecret(secret string) (ledger.Signer, error) {
	kp, err := keypair.ParseFull(secret)
	if err != nil {
		return nil, fmt.Errorf("invalid secret key: %w", err)
	}
	return &keypairSigner{kp: kp}, nil
}

// PublicKey returns the Stellar address (G...) for this keypair.
func (s *keypairSigner) PublicKey() string {
	return s.kp.Address()
}

// SignTransaction signs a transaction envelope (base64 XDR). It parses the
// XDR, signs the transaction with the keypair, and returns the signed
// envelope as base64 XDR.
func (s *keypairSigner) SignTransaction(ctx context.Context, xdr string, networkPassphrase string) (string, error) {
	parsed, err := txnbuild.TransactionFromXDR(xdr)
	if err != nil {
		return "", fmt.Errorf("failed to parse transaction XDR: %w", err)
	}

	tx, ok := parsed.Transaction()
	if !ok {
		return "", fmt.Errorf("expected a Transaction, got a FeeBumpTransaction")
	}

	signedTx, err := tx.Sign(networkPassphrase, s.kp)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	return signedTx.Base64()
}

var _ ledger.Signer = (*keypairSigner)(nil)
