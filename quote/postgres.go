package quote

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cngnbridge/core/errors"
)

// PostgresStore is the production Store. Consume is a single UPDATE guarded
// by `status = 'pending' AND expires_at > now()`, per spec §4.E — the only
// concurrency primitive used here, no row locks.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, q *Quote) error {
	const query = `
		INSERT INTO quotes (
			quote_id, from_currency, to_currency, amount, exchange_rate,
			gross, fee, net, status, expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`
	_, err := s.pool.Exec(ctx, query,
		q.QuoteID, q.FromCurrency, q.ToCurrency, q.Amount, q.ExchangeRate,
		q.Gross, q.Fee, q.Net, q.Status, q.ExpiresAt,
	)
	if err != nil {
		return errors.NewQuoteError(errors.KindTransient, errors.QUOTE_NOT_FOUND, "failed to create quote", err)
	}
	return nil
}

func (s *PostgresStore) Consume(ctx context.Context, quoteID string) (*Quote, error) {
	const query = `
		UPDATE quotes SET status = $1
		WHERE quote_id = $2 AND status = $3 AND expires_at > $4
		RETURNING quote_id, from_currency, to_currency, amount, exchange_rate,
		          gross, fee, net, status, expires_at, created_at
	`
	row := s.pool.QueryRow(ctx, query, StatusConsumed, quoteID, StatusPending, time.Now())
	q, err := scanQuote(row)
	if stderrors.Is(err, pgx.ErrNoRows) {
		// The guarded UPDATE matched zero rows: figure out why for the
		// caller (not found, already consumed, or expired) with a plain
		// read — this read is informational only, not part of the CAS.
		existing, lookupErr := s.FindByID(ctx, quoteID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if existing.Status == StatusConsumed {
			return nil, ErrAlreadyConsumed
		}
		return nil, ErrExpired
	}
	if err != nil {
		return nil, errors.NewQuoteError(errors.KindTransient, errors.QUOTE_NOT_FOUND, "failed to consume quote", err)
	}
	return q, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, quoteID string) (*Quote, error) {
	const query = `
		SELECT quote_id, from_currency, to_currency, amount, exchange_rate,
		       gross, fee, net, status, expires_at, created_at
		FROM quotes WHERE quote_id = $1
	`
	q, err := scanQuote(s.pool.QueryRow(ctx, query, quoteID))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.NewQuoteError(errors.KindTransient, errors.QUOTE_NOT_FOUND, "failed to find quote", err)
	}
	return q, nil
}

func (s *PostgresStore) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	const query = `
		UPDATE quotes SET status = $1 WHERE status = $2 AND expires_at <= $3
	`
	tag, err := s.pool.Exec(ctx, query, StatusExpired, StatusPending, now)
	if err != nil {
		return 0, errors.NewQuoteError(errors.KindTransient, errors.QUOTE_NOT_FOUND, "failed to sweep expired quotes", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanQuote(row pgx.Row) (*Quote, error) {
	var q Quote
	err := row.Scan(
		&q.QuoteID, &q.FromCurrency, &q.ToCurrency, &q.Amount, &q.ExchangeRate,
		&q.Gross, &q.Fee, &q.Net, &q.Status, &q.ExpiresAt, &q.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

var _ Store = (*PostgresStore)(nil)
