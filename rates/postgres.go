package rates

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	bridgeerrors "github.com/cngnbridge/core/errors"
)

// PostgresStore is the production Store. Exchange-rate writes are
// admin-serialized (spec §5), so Upsert is a plain INSERT ... ON CONFLICT,
// not a CAS update.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, from, to string) (*Rate, error) {
	const query = `
		SELECT from_currency, to_currency, rate, source, created_at, updated_at
		FROM exchange_rates WHERE from_currency = $1 AND to_currency = $2
	`
	return s.scanOne(s.pool.QueryRow(ctx, query, from, to))
}

func (s *PostgresStore) scanOne(row pgx.Row) (*Rate, error) {
	var r Rate
	err := row.Scan(&r.FromCurrency, &r.ToCurrency, &r.Rate, &r.Source, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, bridgeerrors.NewRatesError(bridgeerrors.KindTransient, bridgeerrors.RATE_UNAVAILABLE, "failed to scan rate", err)
	}
	return &r, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, rate *Rate) error {
	const query = `
		INSERT INTO exchange_rates (from_currency, to_currency, rate, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (from_currency, to_currency)
		DO UPDATE SET rate = $3, source = $4, updated_at = NOW()
	`
	_, err := s.pool.Exec(ctx, query, rate.FromCurrency, rate.ToCurrency, rate.Rate, rate.Source)
	if err != nil {
		return bridgeerrors.NewRatesError(bridgeerrors.KindTransient, bridgeerrors.RATE_UNAVAILABLE, "failed to upsert rate", err)
	}

	const historyQuery = `
		INSERT INTO exchange_rate_history (from_currency, to_currency, rate, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`
	if _, err := s.pool.Exec(ctx, historyQuery, rate.FromCurrency, rate.ToCurrency, rate.Rate, rate.Source); err != nil {
		return bridgeerrors.NewRatesError(bridgeerrors.KindTransient, bridgeerrors.RATE_UNAVAILABLE, "failed to append rate history", err)
	}
	return nil
}

func (s *PostgresStore) GetHistorical(ctx context.Context, from, to string, at time.Time) (*Rate, error) {
	const query = `
		SELECT from_currency, to_currency, rate, source, created_at, updated_at
		FROM exchange_rate_history
		WHERE from_currency = $1 AND to_currency = $2 AND updated_at <= $3
		ORDER BY updated_at DESC LIMIT 1
	`
	return s.scanOne(s.pool.QueryRow(ctx, query, from, to, at))
}

var _ Store = (*PostgresStore)(nil)
