package rates

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cngnbridge/core/cache"
	"github.com/cngnbridge/core/errors"
	"github.com/cngnbridge/core/fees"
	"github.com/cngnbridge/core/logging"
	"github.com/cngnbridge/core/money"
)

// Direction is which side of a conversion the caller wants.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// ConversionRequest describes a calculate_conversion call (spec §4.D).
type ConversionRequest struct {
	From      string
	To        string
	Amount    decimal.Decimal
	Direction Direction
	Provider  string
	Method    string
}

// ConversionResult is the outcome of calculate_conversion.
type ConversionResult struct {
	Rate      decimal.Decimal
	Gross     decimal.Decimal
	Fees      fees.Breakdown
	Net       decimal.Decimal
	ExpiresAt time.Time
}

// Service is the cached rate lookup and conversion pipeline (component D).
type Service struct {
	provider     Provider
	store        Store
	cache        cache.Cache
	feeEngine    *fees.Engine
	cacheTTL     time.Duration
	pegTolerance string
	quoteExpiry  time.Duration
	log          *logging.Entry
}

// NewService builds a Service. cacheTTL defaults to 60s, quoteExpiry to
// 300s, pegTolerance to money.PegTolerance, matching spec §4.D defaults.
func NewService(provider Provider, store Store, c cache.Cache, feeEngine *fees.Engine, cacheTTL, quoteExpiry time.Duration, pegTolerance string) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 60 * time.Second
	}
	if quoteExpiry <= 0 {
		quoteExpiry = 300 * time.Second
	}
	if pegTolerance == "" {
		pegTolerance = money.PegTolerance
	}
	return &Service{
		provider:     provider,
		store:        store,
		cache:        c,
		feeEngine:    feeEngine,
		cacheTTL:     cacheTTL,
		pegTolerance: pegTolerance,
		quoteExpiry:  quoteExpiry,
		log:          logging.For("rates.service"),
	}
}

func cacheKey(from, to string) string {
	return fmt.Sprintf("v1:rate:%s:%s", from, to)
}

// GetRate resolves a rate via cache, falling through to the provider set and
// then the store. Cache failures are never propagated; a failed cache read
// is treated as a miss, and only a failed cache write after a provider
// fetch is logged.
func (s *Service) GetRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	key := cacheKey(from, to)

	if v, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		if rate, parseErr := money.Parse(v); parseErr == nil {
			return rate, nil
		}
	}

	rate, err := s.provider.GetRate(ctx, from, to)
	if err == nil {
		s.persistAndCache(ctx, from, to, rate, "provider")
		return rate, nil
	}
	s.log.WithError(err).WithFields(logging.Fields{"from": from, "to": to}).Warn("rate provider unavailable, falling back to store")

	stored, storeErr := s.store.Get(ctx, from, to)
	if storeErr != nil || stored == nil {
		return decimal.Zero, errors.NewRatesError(errors.KindTransient, errors.RATE_UNAVAILABLE,
			"no rate available from provider or store", err)
	}

	storedRate, parseErr := money.Parse(stored.Rate)
	if parseErr != nil {
		return decimal.Zero, errors.NewRatesError(errors.KindInvariant, errors.RATE_OUT_OF_BAND, "stored rate is not a valid decimal", parseErr)
	}

	if isPegPair(from, to) {
		ok, _ := money.WithinTolerance(storedRate.String(), "1", s.pegTolerance)
		if !ok {
			s.log.WithFields(logging.Fields{"from": from, "to": to, "rate": storedRate.String()}).
				Warn("stored peg rate out of band, falling back to 1")
			return decimal.NewFromInt(1), nil
		}
	}

	_ = s.cache.Set(ctx, key, storedRate.String(), s.cacheTTL)
	return storedRate, nil
}

func (s *Service) persistAndCache(ctx context.Context, from, to string, rate decimal.Decimal, source string) {
	_ = s.store.Upsert(ctx, &Rate{
		FromCurrency: from,
		ToCurrency:   to,
		Rate:         rate.String(),
		Source:       source,
		UpdatedAt:    time.Now(),
	})
	if err := s.cache.Set(ctx, cacheKey(from, to), rate.String(), s.cacheTTL); err != nil {
		s.log.WithError(err).Warn("failed to populate rate cache")
	}
}

func isPegPair(from, to string) bool {
	return (from == "NGN" && to == "cNGN") || (from == "cNGN" && to == "NGN")
}

// CalculateConversion computes the full conversion pipeline: rate lookup,
// gross amount, fee breakdown, net, and quote expiry (spec §4.D).
func (s *Service) CalculateConversion(ctx context.Context, req ConversionRequest) (*ConversionResult, error) {
	rate, err := s.GetRate(ctx, req.From, req.To)
	if err != nil {
		return nil, err
	}

	gross := req.Amount.Mul(rate)

	txType := "onramp"
	if req.Direction == DirectionSell {
		txType = "offramp"
	}

	row, err := s.feeEngine.Select(ctx, txType, req.Provider, req.Method, gross)
	if err != nil {
		return nil, err
	}
	breakdown, err := s.feeEngine.Compute(ctx, txType, req.Provider, req.Method, gross, row)
	if err != nil {
		return nil, err
	}

	return &ConversionResult{
		Rate:      rate,
		Gross:     gross,
		Fees:      breakdown,
		Net:       breakdown.Net,
		ExpiresAt: time.Now().Add(s.quoteExpiry),
	}, nil
}

// XLMToNGN satisfies fees.XLMRateSource, letting the fee engine price the
// absorbed Stellar network fee through the same rate pipeline rather than a
// bespoke lookup.
func (s *Service) XLMToNGN(ctx context.Context) (decimal.Decimal, error) {
	return s.GetRate(ctx, "XLM", "NGN")
}

// GetHistoricalRate looks up the most recent stored rate with UpdatedAt <= at.
func (s *Service) GetHistoricalRate(ctx context.Context, from, to string, at time.Time) (decimal.Decimal, error) {
	r, err := s.store.GetHistorical(ctx, from, to, at)
	if err != nil {
		return decimal.Zero, errors.NewRatesError(errors.KindTransient, errors.RATE_UNAVAILABLE, "failed to load historical rate", err)
	}
	if r == nil {
		return decimal.Zero, errors.NewRatesError(errors.KindPermanent, errors.RATE_UNAVAILABLE, "no historical rate found before cutoff", nil)
	}
	return money.Parse(r.Rate)
}

// UpdateRate validates, stores, and invalidates the cache key for (from, to).
func (s *Service) UpdateRate(ctx context.Context, from, to string, rate decimal.Decimal, source string) error {
	if isPegPair(from, to) {
		ok, err := money.WithinTolerance(rate.String(), "1", s.pegTolerance)
		if err != nil {
			return errors.NewRatesError(errors.KindValidation, errors.RATE_OUT_OF_BAND, "invalid rate value", err)
		}
		if !ok {
			return errors.NewRatesError(errors.KindValidation, errors.RATE_OUT_OF_BAND,
				fmt.Sprintf("rate %s deviates from peg by more than %s", rate.String(), s.pegTolerance), nil)
		}
	}

	if err := s.store.Upsert(ctx, &Rate{
		FromCurrency: from,
		ToCurrency:   to,
		Rate:         rate.String(),
		Source:       source,
		UpdatedAt:    time.Now(),
	}); err != nil {
		return errors.NewRatesError(errors.KindTransient, errors.RATE_UNAVAILABLE, "failed to persist rate", err)
	}

	if err := s.cache.DeletePattern(ctx, cacheKey(from, to)); err != nil {
		s.log.WithError(err).Warn("failed to invalidate rate cache")
	}
	return nil
}
