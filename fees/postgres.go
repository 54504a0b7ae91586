package fees

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	bridgeerrors "github.com/cngnbridge/core/errors"
	"github.com/cngnbridge/core/logging"
)

// PostgresStore is the production fee Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) FindActive(ctx context.Context, txType, provider, method string) ([]*FeeStructure, error) {
	const query = `
		SELECT transaction_type, payment_provider, payment_method,
		       min_amount, max_amount, provider_fee_percent, provider_fee_flat,
		       provider_fee_cap, platform_fee_percent, platform_fee_flat,
		       is_active, effective_from, effective_until
		FROM fee_structures
		WHERE transaction_type = $1 AND payment_provider = $2 AND payment_method = $3
		  AND is_active = true
	`
	rows, err := s.pool.Query(ctx, query, txType, provider, method)
	if err != nil {
		return nil, bridgeerrors.NewFeesError(bridgeerrors.KindTransient, bridgeerrors.FEE_NO_MATCH, "failed to query fee structures", err)
	}
	defer rows.Close()

	var result []*FeeStructure
	for rows.Next() {
		var row FeeStructure
		var maxAmount *decimal.Decimal
		var providerFeeCap *decimal.Decimal
		var effectiveUntil *time.Time

		if err := rows.Scan(
			&row.TransactionType, &row.PaymentProvider, &row.PaymentMethod,
			&row.MinAmount, &maxAmount, &row.ProviderFeePercent, &row.ProviderFeeFlat,
			&providerFeeCap, &row.PlatformFeePercent, &row.PlatformFeeFlat,
			&row.IsActive, &row.EffectiveFrom, &effectiveUntil,
		); err != nil {
			return nil, bridgeerrors.NewFeesError(bridgeerrors.KindTransient, bridgeerrors.FEE_NO_MATCH, "failed to scan fee structure", err)
		}
		row.MaxAmount = maxAmount
		row.ProviderFeeCap = providerFeeCap
		row.EffectiveUntil = effectiveUntil
		result = append(result, &row)
	}
	return result, rows.Err()
}

var _ Store = (*PostgresStore)(nil)

// PostgresAuditSink writes one row per fee computation to
// fee_calculation_audit, in keeping with spec §4.C's "every computation
// writes an audit log row" requirement.
type PostgresAuditSink struct {
	pool *pgxpool.Pool
	log  *logging.Entry
}

// NewPostgresAuditSink wraps an existing pool.
func NewPostgresAuditSink(pool *pgxpool.Pool) *PostgresAuditSink {
	return &PostgresAuditSink{pool: pool, log: logging.For("fees.audit")}
}

func (s *PostgresAuditSink) RecordFeeComputation(ctx context.Context, entry AuditEntry) {
	breakdownJSON, err := json.Marshal(entry.Breakdown)
	if err != nil {
		s.log.WithError(err).Warn("failed to marshal fee breakdown for audit")
		return
	}

	const query = `
		INSERT INTO fee_calculation_audit (
			transaction_type, payment_provider, payment_method, amount, breakdown, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.pool.Exec(ctx, query, entry.TransactionType, entry.Provider, entry.Method, entry.Amount, breakdownJSON, entry.At); err != nil {
		// Audit logging is best-effort; it must never block or fail the
		// caller's fee computation.
		s.log.WithError(err).Warn("failed to write fee calculation audit row")
	}
}

var _ AuditSink = (*PostgresAuditSink)(nil)
