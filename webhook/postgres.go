package webhook

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	bridgeerrors "github.com/cngnbridge/core/errors"
)

// postgresUniqueViolation is the SQLSTATE for a unique constraint
// violation, used as a belt-and-suspenders check alongside the explicit
// ON CONFLICT clause.
const postgresUniqueViolation = "23505"

// PostgresStore is the production Store. Insert relies on the database's
// UNIQUE(provider, event_id) constraint as the single source of idempotency
// truth (spec §5), not an application-level check.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Insert(ctx context.Context, e *Event) (bool, error) {
	const query = `
		INSERT INTO webhook_events (
			provider, event_id, event_type, payload, signature, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (provider, event_id) DO NOTHING
	`
	tag, err := s.pool.Exec(ctx, query, e.Provider, e.EventID, e.EventType, e.Payload, e.Signature, e.Status, e.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == postgresUniqueViolation {
			return false, nil
		}
		return false, bridgeerrors.NewWebhookError(bridgeerrors.KindTransient, bridgeerrors.DISPATCH_FAILED, "failed to insert webhook event", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) MarkCompleted(ctx context.Context, provider Provider, eventID string) error {
	const query = `
		UPDATE webhook_events SET status = $1, processed_at = $2, error_message = ''
		WHERE provider = $3 AND event_id = $4
	`
	_, err := s.pool.Exec(ctx, query, StatusCompleted, time.Now(), provider, eventID)
	if err != nil {
		return bridgeerrors.NewWebhookError(bridgeerrors.KindTransient, bridgeerrors.DISPATCH_FAILED, "failed to mark webhook completed", err)
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, provider Provider, eventID string, errMsg string) error {
	const query = `UPDATE webhook_events SET error_message = $1 WHERE provider = $2 AND event_id = $3`
	_, err := s.pool.Exec(ctx, query, errMsg, provider, eventID)
	if err != nil {
		return bridgeerrors.NewWebhookError(bridgeerrors.KindTransient, bridgeerrors.DISPATCH_FAILED, "failed to mark webhook failed", err)
	}
	return nil
}

func (s *PostgresStore) ListPendingForRetry(ctx context.Context, maxRetries, limit int) ([]*Event, error) {
	const query = `
		SELECT provider, event_id, event_type, payload, signature, status,
		       transaction_id, processed_at, retry_count, error_message, created_at
		FROM webhook_events
		WHERE status = $1 AND retry_count < $2
		ORDER BY created_at ASC
		LIMIT $3
	`
	rows, err := s.pool.Query(ctx, query, StatusPending, maxRetries, limit)
	if err != nil {
		return nil, bridgeerrors.NewWebhookError(bridgeerrors.KindTransient, bridgeerrors.DISPATCH_FAILED, "failed to list pending webhooks", err)
	}
	defer rows.Close()

	var result []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, bridgeerrors.NewWebhookError(bridgeerrors.KindTransient, bridgeerrors.DISPATCH_FAILED, "failed to scan webhook event", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *PostgresStore) IncrementRetry(ctx context.Context, provider Provider, eventID string, errMsg string) error {
	const query = `
		UPDATE webhook_events
		SET retry_count = retry_count + 1,
		    error_message = $1,
		    status = CASE WHEN retry_count + 1 >= 5 THEN $2 ELSE status END
		WHERE provider = $3 AND event_id = $4
	`
	_, err := s.pool.Exec(ctx, query, errMsg, StatusFailed, provider, eventID)
	if err != nil {
		return bridgeerrors.NewWebhookError(bridgeerrors.KindTransient, bridgeerrors.DISPATCH_FAILED, "failed to increment webhook retry count", err)
	}
	return nil
}

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(
		&e.Provider, &e.EventID, &e.EventType, &e.Payload, &e.Signature, &e.Status,
		&e.TransactionID, &e.ProcessedAt, &e.RetryCount, &e.ErrorMessage, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

var _ Store = (*PostgresStore)(nil)
