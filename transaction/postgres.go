package transaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cngnbridge/core/bridge"
	bridgeerrors "github.com/cngnbridge/core/errors"
)

// PostgresStore is the production bridge.TransactionStore. The
// UpdateCAS method is the only place in the system that mutates a
// transaction's status, and it does so with a single guarded UPDATE rather
// than an in-process lock, since workers run across multiple processes and
// a local mutex would not see updates made elsewhere (spec §7).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool. The caller owns the pool's
// lifecycle.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, tx *bridge.Transaction) error {
	metadataJSON, err := json.Marshal(tx.Metadata)
	if err != nil {
		return bridgeerrors.NewTransactionError(bridgeerrors.KindInvariant, bridgeerrors.STORE_ERROR, "failed to marshal metadata", err)
	}

	const query = `
		INSERT INTO transactions (
			transaction_id, wallet_address, type, from_currency, to_currency,
			from_amount, to_amount, cngn_amount, status, payment_provider,
			payment_ref, blockchain_tx_hash, error_message, metadata,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW()
		)
	`
	_, err = s.pool.Exec(ctx, query,
		tx.TransactionID, tx.WalletAddress, tx.Type, tx.FromCurrency, tx.ToCurrency,
		tx.FromAmount, tx.ToAmount, tx.CNGNAmount, tx.Status, tx.PaymentProvider,
		tx.PaymentRef, tx.BlockchainTxHash, tx.ErrorMessage, metadataJSON,
	)
	if err != nil {
		return bridgeerrors.NewTransactionError(bridgeerrors.KindTransient, bridgeerrors.STORE_ERROR, "failed to insert transaction", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*bridge.Transaction, error) {
	const query = `
		SELECT transaction_id, wallet_address, type, from_currency, to_currency,
		       from_amount, to_amount, cngn_amount, status, payment_provider,
		       payment_ref, blockchain_tx_hash, error_message, metadata,
		       created_at, updated_at
		FROM transactions WHERE transaction_id = $1
	`
	return s.scanOne(s.pool.QueryRow(ctx, query, id))
}

func (s *PostgresStore) FindByPaymentRef(ctx context.Context, ref string) (*bridge.Transaction, error) {
	const query = `
		SELECT transaction_id, wallet_address, type, from_currency, to_currency,
		       from_amount, to_amount, cngn_amount, status, payment_provider,
		       payment_ref, blockchain_tx_hash, error_message, metadata,
		       created_at, updated_at
		FROM transactions WHERE payment_ref = $1
	`
	return s.scanOne(s.pool.QueryRow(ctx, query, ref))
}

func (s *PostgresStore) scanOne(row pgx.Row) (*bridge.Transaction, error) {
	var tx bridge.Transaction
	var metadataJSON []byte
	err := row.Scan(
		&tx.TransactionID, &tx.WalletAddress, &tx.Type, &tx.FromCurrency, &tx.ToCurrency,
		&tx.FromAmount, &tx.ToAmount, &tx.CNGNAmount, &tx.Status, &tx.PaymentProvider,
		&tx.PaymentRef, &tx.BlockchainTxHash, &tx.ErrorMessage, &metadataJSON,
		&tx.CreatedAt, &tx.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, bridgeerrors.NewTransactionError(bridgeerrors.KindPermanent, bridgeerrors.STORE_ERROR, "transaction not found", nil)
	}
	if err != nil {
		return nil, bridgeerrors.NewTransactionError(bridgeerrors.KindTransient, bridgeerrors.STORE_ERROR, "failed to scan transaction", err)
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &tx.Metadata); err != nil {
			return nil, bridgeerrors.NewTransactionError(bridgeerrors.KindInvariant, bridgeerrors.STORE_ERROR, "failed to unmarshal metadata", err)
		}
	}
	return &tx, nil
}

func (s *PostgresStore) List(ctx context.Context, filters bridge.TransactionFilters) ([]*bridge.Transaction, error) {
	query := `
		SELECT transaction_id, wallet_address, type, from_currency, to_currency,
		       from_amount, to_amount, cngn_amount, status, payment_provider,
		       payment_ref, blockchain_tx_hash, error_message, metadata,
		       created_at, updated_at
		FROM transactions WHERE 1=1
	`
	args := make([]any, 0, 6)
	argN := 1

	if filters.WalletAddress != "" {
		query += fmtArg(" AND wallet_address = $%d", argN)
		args = append(args, filters.WalletAddress)
		argN++
	}
	if filters.Type != nil {
		query += fmtArg(" AND type = $%d", argN)
		args = append(args, *filters.Type)
		argN++
	}
	if filters.Status != nil {
		query += fmtArg(" AND status = $%d", argN)
		args = append(args, *filters.Status)
		argN++
	}
	if filters.PaymentRef != "" {
		query += fmtArg(" AND payment_ref = $%d", argN)
		args = append(args, filters.PaymentRef)
		argN++
	}
	query += " ORDER BY created_at DESC"
	if filters.Limit > 0 {
		query += fmtArg(" LIMIT $%d", argN)
		args = append(args, filters.Limit)
		argN++
	}
	if filters.Offset > 0 {
		query += fmtArg(" OFFSET $%d", argN)
		args = append(args, filters.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, bridgeerrors.NewTransactionError(bridgeerrors.KindTransient, bridgeerrors.STORE_ERROR, "failed to list transactions", err)
	}
	defer rows.Close()

	var result []*bridge.Transaction
	for rows.Next() {
		tx, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

// UpdateCAS applies the update in a single guarded UPDATE: WHERE
// transaction_id = $id AND status = $expectedStatus. Zero rows affected
// means another process already moved the row, and the caller receives
// errors.ErrCASMiss rather than a false success.
func (s *PostgresStore) UpdateCAS(ctx context.Context, id string, expectedStatus bridge.TransactionStatus, update *bridge.TransactionUpdate) error {
	current, err := s.FindByID(ctx, id)
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

	toAmount := applyOrKeep(update.ToAmount, current.ToAmount)
	cngnAmount := applyOrKeep(update.CNGNAmount, current.CNGNAmount)
	paymentProvider := applyOrKeep(update.PaymentProvider, current.PaymentProvider)
	paymentRef := applyOrKeep(update.PaymentRef, current.PaymentRef)
	blockchainTxHash := applyOrKeep(update.BlockchainTxHash, current.BlockchainTxHash)
	errorMessage := applyOrKeep(update.ErrorMessage, current.ErrorMessage)

	if current.Metadata == nil {
		current.Metadata = make(map[string]any)
	}
	for k, v := range update.MetadataPatch {
		current.Metadata[k] = v
	}
	if update.HistoryEntry != nil {
		history, _ := current.Metadata["history"].([]any)
		entryJSON, _ := json.Marshal(update.HistoryEntry)
		var entryMap map[string]any
		_ = json.Unmarshal(entryJSON, &entryMap)
		current.Metadata["history"] = append(history, entryMap)
	}
	metadataJSON, err := json.Marshal(current.Metadata)
	if err != nil {
		return bridgeerrors.NewTransactionError(bridgeerrors.KindInvariant, bridgeerrors.STORE_ERROR, "failed to marshal metadata", err)
	}

	const query = `
		UPDATE transactions
		SET status = $1, to_amount = $2, cngn_amount = $3, payment_provider = $4,
		    payment_ref = $5, blockchain_tx_hash = $6, error_message = $7,
		    metadata = $8, updated_at = $9
		WHERE transaction_id = $10 AND status = $11
	`
	tag, err := s.pool.Exec(ctx, query,
		newStatus, toAmount, cngnAmount, paymentProvider, paymentRef,
		blockchainTxHash, errorMessage, metadataJSON, time.Now(),
		id, expectedStatus,
	)
	if err != nil {
		return bridgeerrors.NewTransactionError(bridgeerrors.KindTransient, bridgeerrors.STORE_ERROR, "failed to update transaction", err)
	}
	if tag.RowsAffected() == 0 {
		return bridgeerrors.ErrCASMiss
	}
	return nil
}

func applyOrKeep(update *string, current string) string {
	if update != nil {
		return *update
	}
	return current
}

func fmtArg(format string, n int) string {
	return fmt.Sprintf(format, n)
}

var _ bridge.TransactionStore = (*PostgresStore)(nil)
