package billpayment

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cngnbridge/core/bridge"
	bridgeerrors "github.com/cngnbridge/core/errors"
)

// PostgresStore is the production bridge.BillPaymentStore, mirroring
// transaction.PostgresStore's single-guarded-UPDATE CAS.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool. The caller owns the pool's
// lifecycle.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, bp *bridge.BillPayment) error {
	providerResponseJSON, err := json.Marshal(bp.ProviderResponse)
	if err != nil {
		return bridgeerrors.NewBillPaymentError(bridgeerrors.KindInvariant, bridgeerrors.STORE_ERROR, "failed to marshal provider response", err)
	}
	verificationJSON, err := json.Marshal(bp.VerificationData)
	if err != nil {
		return bridgeerrors.NewBillPaymentError(bridgeerrors.KindInvariant, bridgeerrors.STORE_ERROR, "failed to marshal verification data", err)
	}

	const query = `
		INSERT INTO bill_payments (
			transaction_id, provider_name, account_number, bill_type, status,
			provider_reference, token, provider_response, retry_count,
			error_message, refund_tx_hash, account_verified, verification_data,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW()
		)
	`
	_, err = s.pool.Exec(ctx, query,
		bp.TransactionID, bp.ProviderName, bp.AccountNumber, bp.BillType, bp.Status,
		bp.ProviderReference, bp.Token, providerResponseJSON, bp.RetryCount,
		bp.ErrorMessage, bp.RefundTxHash, bp.AccountVerified, verificationJSON,
	)
	if err != nil {
		return bridgeerrors.NewBillPaymentError(bridgeerrors.KindTransient, bridgeerrors.STORE_ERROR, "failed to insert bill payment", err)
	}
	return nil
}

const selectBillPaymentColumns = `
	transaction_id, provider_name, account_number, bill_type, status,
	provider_reference, token, provider_response, retry_count, last_retry_at,
	error_message, refund_tx_hash, account_verified, verification_data,
	created_at, updated_at
`

func (s *PostgresStore) FindByTransactionID(ctx context.Context, transactionID string) (*bridge.BillPayment, error) {
	query := "SELECT " + selectBillPaymentColumns + " FROM bill_payments WHERE transaction_id = $1"
	return s.scanOne(s.pool.QueryRow(ctx, query, transactionID))
}

func (s *PostgresStore) scanOne(row pgx.Row) (*bridge.BillPayment, error) {
	var bp bridge.BillPayment
	var providerResponseJSON, verificationJSON []byte
	err := row.Scan(
		&bp.TransactionID, &bp.ProviderName, &bp.AccountNumber, &bp.BillType, &bp.Status,
		&bp.ProviderReference, &bp.Token, &providerResponseJSON, &bp.RetryCount, &bp.LastRetryAt,
		&bp.ErrorMessage, &bp.RefundTxHash, &bp.AccountVerified, &verificationJSON,
		&bp.CreatedAt, &bp.UpdatedAt,
	)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, bridgeerrors.NewBillPaymentError(bridgeerrors.KindPermanent, bridgeerrors.STORE_ERROR, "bill payment not found", nil)
	}
	if err != nil {
		return nil, bridgeerrors.NewBillPaymentError(bridgeerrors.KindTransient, bridgeerrors.STORE_ERROR, "failed to scan bill payment", err)
	}
	if len(providerResponseJSON) > 0 {
		if err := json.Unmarshal(providerResponseJSON, &bp.ProviderResponse); err != nil {
			return nil, bridgeerrors.NewBillPaymentError(bridgeerrors.KindInvariant, bridgeerrors.STORE_ERROR, "failed to unmarshal provider response", err)
		}
	}
	if len(verificationJSON) > 0 {
		if err := json.Unmarshal(verificationJSON, &bp.VerificationData); err != nil {
			return nil, bridgeerrors.NewBillPaymentError(bridgeerrors.KindInvariant, bridgeerrors.STORE_ERROR, "failed to unmarshal verification data", err)
		}
	}
	return &bp, nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, filters bridge.BillPaymentFilters) ([]*bridge.BillPayment, error) {
	query := "SELECT " + selectBillPaymentColumns + " FROM bill_payments WHERE 1=1"
	args := make([]any, 0, 2)
	argN := 1

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argN)
		args = append(args, filters.Status)
		argN++
	}
	query += " ORDER BY updated_at ASC"
	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argN)
		args = append(args, filters.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, bridgeerrors.NewBillPaymentError(bridgeerrors.KindTransient, bridgeerrors.STORE_ERROR, "failed to list bill payments", err)
	}
	defer rows.Close()

	var result []*bridge.BillPayment
	for rows.Next() {
		bp, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, bp)
	}
	return result, rows.Err()
}

// UpdateCAS applies the update in a single guarded UPDATE: WHERE
// transaction_id = $id AND status = $expectedStatus.
func (s *PostgresStore) UpdateCAS(ctx context.Context, transactionID string, expectedStatus bridge.BillStatus, update *bridge.BillPaymentUpdate) error {
	current, err := s.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return err
	}
	if current.Status != expectedStatus {
		return bridgeerrors.ErrCASMiss
	}

	newStatus := current.Status
	if update.Status != nil {
		if err := ValidateTransition(current.Status, *update.Status); err != nil {
			return err
		}
		newStatus = *update.Status
	}

	providerName := applyOrKeepStr(update.ProviderName, current.ProviderName)
	providerReference := applyOrKeepStr(update.ProviderReference, current.ProviderReference)
	token := applyOrKeepStr(update.Token, current.Token)
	retryCount := current.RetryCount
	if update.RetryCount != nil {
		retryCount = *update.RetryCount
	}
	lastRetryAt := current.LastRetryAt
	if update.ClearLastRetryAt {
		lastRetryAt = nil
	} else if update.LastRetryAt != nil {
		lastRetryAt = update.LastRetryAt
	}
	errorMessage := applyOrKeepStr(update.ErrorMessage, current.ErrorMessage)
	refundTxHash := applyOrKeepStr(update.RefundTxHash, current.RefundTxHash)
	accountVerified := current.AccountVerified
	if update.AccountVerified != nil {
		accountVerified = *update.AccountVerified
	}

	providerResponse := current.ProviderResponse
	if update.ProviderResponse != nil {
		providerResponse = update.ProviderResponse
	}
	verificationData := current.VerificationData
	if update.VerificationData != nil {
		verificationData = update.VerificationData
	}

	providerResponseJSON, err := json.Marshal(providerResponse)
	if err != nil {
		return bridgeerrors.NewBillPaymentError(bridgeerrors.KindInvariant, bridgeerrors.STORE_ERROR, "failed to marshal provider response", err)
	}
	verificationJSON, err := json.Marshal(verificationData)
	if err != nil {
		return bridgeerrors.NewBillPaymentError(bridgeerrors.KindInvariant, bridgeerrors.STORE_ERROR, "failed to marshal verification data", err)
	}

	const query = `
		UPDATE bill_payments
		SET status = $1, provider_name = $2, provider_reference = $3, token = $4,
		    provider_response = $5, retry_count = $6, last_retry_at = $7,
		    error_message = $8, refund_tx_hash = $9, account_verified = $10,
		    verification_data = $11, updated_at = $12
		WHERE transaction_id = $13 AND status = $14
	`
	tag, err := s.pool.Exec(ctx, query,
		newStatus, providerName, providerReference, token, providerResponseJSON,
		retryCount, lastRetryAt, errorMessage, refundTxHash,
		accountVerified, verificationJSON, time.Now(),
		transactionID, expectedStatus,
	)
	if err != nil {
		return bridgeerrors.NewBillPaymentError(bridgeerrors.KindTransient, bridgeerrors.STORE_ERROR, "failed to update bill payment", err)
	}
	if tag.RowsAffected() == 0 {
		return bridgeerrors.ErrCASMiss
	}
	return nil
}

func applyOrKeepStr(update *string, current string) string {
	if update != nil {
		return *update
	}
	return current
}

var _ bridge.BillPaymentStore = (*PostgresStore)(nil)

// PostgresCursorStore persists the receipt-verification scan cursor in a
// single-row-per-name table, upserted on every advance.
type PostgresCursorStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCursorStore wraps an existing pool.
func NewPostgresCursorStore(pool *pgxpool.Pool) *PostgresCursorStore {
	return &PostgresCursorStore{pool: pool}
}

func (s *PostgresCursorStore) GetCursor(ctx context.Context, name string) (string, error) {
	const query = `SELECT value FROM worker_cursors WHERE name = $1`
	var value string
	err := s.pool.QueryRow(ctx, query, name).Scan(&value)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", bridgeerrors.NewBillPaymentError(bridgeerrors.KindTransient, bridgeerrors.STORE_ERROR, "failed to read cursor", err)
	}
	return value, nil
}

func (s *PostgresCursorStore) SetCursor(ctx context.Context, name, value string) error {
	const query = `
		INSERT INTO worker_cursors (name, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	_, err := s.pool.Exec(ctx, query, name, value)
	if err != nil {
		return bridgeerrors.NewBillPaymentError(bridgeerrors.KindTransient, bridgeerrors.STORE_ERROR, "failed to persist cursor", err)
	}
	return nil
}

var _ bridge.CursorStore = (*PostgresCursorStore)(nil)
