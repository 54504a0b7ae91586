package ledger

import (
	"context"

	"github.com/stellar/go-stellar-sdk/clients/horizonclient"
	"github.com/stellar/go/txnbuild"

	"github.com/cngnbridge/core/errors"
	"github.com/cngnbridge/core/logging"
)

const paymentBaseFee = int64(100)

// StandardPaymentBuilder constructs a single-operation payment transaction
// from the system wallet and hands it to a Signer, the same split the
// teacher keeps between account lookup (horizonclient) and signing
// (txnbuild + Signer) in signers.keypairSigner.
type StandardPaymentBuilder struct {
	client            *horizonclient.Client
	signer            Signer
	networkPassphrase string
	log               *logging.Entry
}

// NewStandardPaymentBuilder builds a PaymentBuilder against the given
// Horizon URL, signing every transaction with signer.
func NewStandardPaymentBuilder(horizonURL string, signer Signer, networkPassphrase string) *StandardPaymentBuilder {
	return &StandardPaymentBuilder{
		client:            &horizonclient.Client{HorizonURL: horizonURL},
		signer:            signer,
		networkPassphrase: networkPassphrase,
		log:               logging.For("ledger.builder"),
	}
}

// BuildSignedPayment fetches the system wallet's current sequence number,
// builds a single payment operation to req.Destination, and returns the
// signed envelope as base64 XDR ready for Gateway.SubmitPayment.
func (b *StandardPaymentBuilder) BuildSignedPayment(ctx context.Context, req PaymentRequest) (string, error) {
	source, err := b.client.AccountDetail(horizonclient.AccountRequest{AccountID: b.signer.PublicKey()})
	if err != nil {
		return "", errors.NewLedgerError(errors.KindTransient, errors.NETWORK_ERROR, "failed to load system wallet account", err)
	}

	asset := txnbuild.Asset(txnbuild.NativeAsset{})
	if req.AssetCode != "" && req.AssetCode != "native" {
		asset = txnbuild.CreditAsset{Code: req.AssetCode, Issuer: req.Issuer}
	}

	ops := []txnbuild.Operation{
		&txnbuild.Payment{
			Destination: req.Destination,
			Asset:       asset,
			Amount:      req.Amount,
		},
	}

	params := txnbuild.TransactionParams{
		SourceAccount:        &horizonAccount{id: source.AccountID, sequence: source.Sequence},
		IncrementSequenceNum: true,
		Operations:           ops,
		BaseFee:              paymentBaseFee,
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewTimeout(300)},
	}
	if req.Memo != "" {
		params.Memo = txnbuild.MemoText(req.Memo)
	}

	tx, err := txnbuild.NewTransaction(params)
	if err != nil {
		return "", errors.NewLedgerError(errors.KindInvariant, errors.SIGNER_ERROR, "failed to build payment transaction", err)
	}

	xdr, err := tx.Base64()
	if err != nil {
		return "", errors.NewLedgerError(errors.KindInvariant, errors.SIGNER_ERROR, "failed to encode transaction", err)
	}

	signed, err := b.signer.SignTransaction(ctx, xdr, b.networkPassphrase)
	if err != nil {
		return "", errors.NewLedgerError(errors.KindPermanent, errors.SIGNER_ERROR, "failed to sign payment transaction", err)
	}
	return signed, nil
}

var _ PaymentBuilder = (*StandardPaymentBuilder)(nil)

// horizonAccount adapts a horizonclient AccountDetail response's identity
// and sequence number to txnbuild.Account, without pulling in the full
// go-stellar-sdk protocol/horizon Account type as a txnbuild dependency.
type horizonAccount struct {
	id       string
	sequence int64
}

func (a *horizonAccount) GetAccountID() string { return a.id }

func (a *horizonAccount) IncrementSequenceNumber() (int64, error) {
	a.sequence++
	return a.sequence, nil
}

func (a *horizonAccount) GetSequenceNumber() (int64, error) {
	return a.sequence, nil
}
