package ledger

import (
	"context"

	"github.com/stellar/go-stellar-sdk/clients/horizonclient"
	"github.com/stellar/go-stellar-sdk/protocols/horizon/operations"

	"github.com/cngnbridge/core/errors"
	"github.com/cngnbridge/core/logging"
)

// HorizonGateway implements Gateway against a live Horizon server, built the
// way the teacher's observer.HorizonObserver and core/account.HorizonAccountFetcher
// talk to horizonclient: a thin struct wrapping *horizonclient.Client, with
// every call mapped onto a Gateway method.
type HorizonGateway struct {
	client *horizonclient.Client
	log    *logging.Entry
}

// NewHorizonGateway creates a Gateway backed by the given Horizon URL.
func NewHorizonGateway(horizonURL string) *HorizonGateway {
	return &HorizonGateway{
		client: &horizonclient.Client{HorizonURL: horizonURL},
		log:    logging.For("ledger"),
	}
}

func (g *HorizonGateway) AccountExists(ctx context.Context, address string) (bool, error) {
	_, err := g.client.AccountDetail(horizonclient.AccountRequest{AccountID: address})
	if err != nil {
		if horizonclient.IsNotFoundError(err) {
			return false, nil
		}
		return false, errors.NewLedgerError(errors.KindTransient, errors.NETWORK_ERROR, "account lookup failed", err)
	}
	return true, nil
}

func (g *HorizonGateway) GetBalances(ctx context.Context, address string) ([]Balance, error) {
	account, err := g.client.AccountDetail(horizonclient.AccountRequest{AccountID: address})
	if err != nil {
		if horizonclient.IsNotFoundError(err) {
			return nil, errors.NewLedgerError(errors.KindPermanent, errors.ACCOUNT_NOT_FOUND, "account not found: "+address, err)
		}
		return nil, errors.NewLedgerError(errors.KindTransient, errors.NETWORK_ERROR, "balance lookup failed", err)
	}

	balances := make([]Balance, 0, len(account.Balances))
	for _, b := range account.Balances {
		code := "native"
		issuer := ""
		if b.Asset.Type != "native" {
			code = b.Asset.Code
			issuer = b.Asset.Issuer
		}
		balances = append(balances, Balance{AssetCode: code, Issuer: issuer, Amount: b.Balance})
	}
	return balances, nil
}

func (g *HorizonGateway) SubmitPayment(ctx context.Context, signedEnvelopeXDR string) (*SubmitResult, error) {
	resp, err := g.client.SubmitTransactionXDR(signedEnvelopeXDR)
	if err != nil {
		if herr, ok := err.(*horizonclient.Error); ok {
			return nil, errors.NewLedgerError(errors.KindPermanent, errors.SUBMIT_REJECTED, "ledger rejected submission", herr)
		}
		return nil, errors.NewLedgerError(errors.KindTransient, errors.NETWORK_ERROR, "submit failed", err)
	}
	return &SubmitResult{TxHash: resp.Hash, LedgerSequence: resp.Ledger}, nil
}

func (g *HorizonGateway) GetTransaction(ctx context.Context, txHash string) (*TransactionResult, error) {
	tx, err := g.client.TransactionDetail(txHash)
	if err != nil {
		if horizonclient.IsNotFoundError(err) {
			return nil, errors.NewLedgerError(errors.KindPermanent, errors.TX_NOT_FOUND, "transaction not found: "+txHash, err)
		}
		return nil, errors.NewLedgerError(errors.KindTransient, errors.NETWORK_ERROR, "transaction lookup failed", err)
	}

	opsPage, err := g.client.Operations(horizonclient.OperationRequest{ForTransaction: txHash})
	if err != nil {
		return nil, errors.NewLedgerError(errors.KindTransient, errors.NETWORK_ERROR, "operation lookup failed", err)
	}

	ops := make([]Operation, 0, len(opsPage.Embedded.Records))
	for _, raw := range opsPage.Embedded.Records {
		if op, ok := asPaymentOperation(raw); ok {
			ops = append(ops, op)
		}
	}

	return &TransactionResult{
		Successful:     tx.Successful,
		Memo:           tx.Memo,
		Operations:     ops,
		LedgerSequence: tx.Ledger,
	}, nil
}

// ScanIncoming returns a single bounded page of payment operations to
// systemAddress, ordered ascending from sinceCursor. It never streams; the
// bill worker drives repeated calls, persisting the returned cursor, per
// spec §4.A's "finite per call, restartable via cursor" requirement.
func (g *HorizonGateway) ScanIncoming(ctx context.Context, systemAddress string, sinceCursor string, limit int) ([]IncomingPayment, error) {
	if limit <= 0 {
		limit = 50
	}
	page, err := g.client.Payments(horizonclient.OperationRequest{
		ForAccount: systemAddress,
		Cursor:     sinceCursor,
		Limit:      uint(limit),
		Order:      horizonclient.OrderAsc,
	})
	if err != nil {
		return nil, errors.NewLedgerError(errors.KindTransient, errors.NETWORK_ERROR, "incoming payment scan failed", err)
	}

	out := make([]IncomingPayment, 0, len(page.Embedded.Records))
	for _, raw := range page.Embedded.Records {
		op, ok := asPaymentOperation(raw)
		if !ok || op.To != systemAddress {
			continue
		}
		base := raw.GetBase()
		memo := ""
		if tx, err := g.client.TransactionDetail(base.TransactionHash); err == nil {
			memo = tx.Memo
		} else {
			g.log.WithError(err).Warn("failed to resolve memo for incoming payment")
		}
		out = append(out, IncomingPayment{
			TxHash:    base.TransactionHash,
			From:      op.From,
			AssetCode: op.AssetCode,
			Issuer:    op.Issuer,
			Amount:    op.Amount,
			Memo:      memo,
			Cursor:    base.PT,
		})
	}
	return out, nil
}

// asPaymentOperation narrows a raw Horizon operation down to the payment
// shape this gateway cares about, mirroring the teacher's
// HorizonObserver.convertToPaymentEvent switch over op.GetType().
func asPaymentOperation(raw operations.Operation) (Operation, bool) {
	switch raw.GetType() {
	case "payment":
		p, ok := raw.(operations.Payment)
		if !ok {
			return Operation{}, false
		}
		code, issuer := "native", ""
		if p.Asset.Type != "native" {
			code, issuer = p.Asset.Code, p.Asset.Issuer
		}
		return Operation{From: p.From, To: p.To, AssetCode: code, Issuer: issuer, Amount: p.Amount}, true
	case "create_account":
		c, ok := raw.(operations.CreateAccount)
		if !ok {
			return Operation{}, false
		}
		return Operation{From: c.Funder, To: c.Account, AssetCode: "native", Amount: c.StartingBalance}, true
	default:
		return Operation{}, false
	}
}

var _ Gateway = (*HorizonGateway)(nil)
