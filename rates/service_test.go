package rates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cngnbridge/core/cache"
	"github.com/cngnbridge/core/fees"
)

func newTestFeeEngine(t *testing.T) *fees.Engine {
	t.Helper()
	store := fees.NewMemoryStore()
	store.Add(&fees.FeeStructure{
		TransactionType:    "onramp",
		PaymentProvider:    "flutterwave",
		PaymentMethod:      "card",
		MinAmount:          decimal.Zero,
		ProviderFeePercent: decimal.RequireFromString("1"),
		ProviderFeeFlat:    decimal.Zero,
		PlatformFeePercent: decimal.Zero,
		PlatformFeeFlat:    decimal.Zero,
		IsActive:           true,
		EffectiveFrom:      time.Now().Add(-time.Hour),
	})
	store.Add(&fees.FeeStructure{
		TransactionType:    "offramp",
		PaymentProvider:    "flutterwave",
		PaymentMethod:      "card",
		MinAmount:          decimal.Zero,
		ProviderFeePercent: decimal.RequireFromString("1"),
		ProviderFeeFlat:    decimal.Zero,
		PlatformFeePercent: decimal.Zero,
		PlatformFeeFlat:    decimal.Zero,
		IsActive:           true,
		EffectiveFrom:      time.Now().Add(-time.Hour),
	})
	return fees.NewEngine(store, nil, nil, time.Minute, time.Minute)
}

func TestGetRateUsesProviderAndCaches(t *testing.T) {
	provider := NewFixedProvider("NGN", "cNGN")
	store := NewMemoryStore()
	c := cache.NewMemoryCache()
	svc := NewService(provider, store, c, newTestFeeEngine(t), time.Minute, time.Minute, "")

	rate, err := svc.GetRate(context.Background(), "NGN", "cNGN")
	require.NoError(t, err)
	require.True(t, rate.Equal(decimal.NewFromInt(1)))

	cached, ok, err := c.Get(context.Background(), cacheKey("NGN", "cNGN"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", cached)
}

type failingProvider struct{}

func (failingProvider) GetRate(context.Context, string, string) (decimal.Decimal, error) {
	return decimal.Zero, errProviderUnavailable
}
func (failingProvider) IsHealthy(context.Context) bool { return false }

var errProviderUnavailable = errors.New("provider unavailable")

func TestGetRateFallsBackToStoreWhenProviderFails(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Upsert(context.Background(), &Rate{
		FromCurrency: "USD",
		ToCurrency:   "NGN",
		Rate:         "1500",
		Source:       "manual",
		UpdatedAt:    time.Now(),
	}))

	provider := NewAggregatedProvider(CombineFirst) // no children, always fails
	c := cache.NewMemoryCache()
	svc := NewService(provider, store, c, newTestFeeEngine(t), time.Minute, time.Minute, "")

	rate, err := svc.GetRate(context.Background(), "USD", "NGN")
	require.NoError(t, err)
	require.True(t, rate.Equal(decimal.RequireFromString("1500")))
}

func TestGetRateClampsPegOutOfBandStoredRate(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Upsert(context.Background(), &Rate{
		FromCurrency: "NGN",
		ToCurrency:   "cNGN",
		Rate:         "1.5", // way outside peg tolerance
		Source:       "manual",
		UpdatedAt:    time.Now(),
	}))

	provider := NewAggregatedProvider(CombineFirst)
	c := cache.NewMemoryCache()
	svc := NewService(provider, store, c, newTestFeeEngine(t), time.Minute, time.Minute, "0.0001")

	rate, err := svc.GetRate(context.Background(), "NGN", "cNGN")
	require.NoError(t, err)
	require.True(t, rate.Equal(decimal.NewFromInt(1)))
}

func TestCalculateConversionComputesNet(t *testing.T) {
	provider := NewFixedProvider("NGN", "cNGN")
	store := NewMemoryStore()
	c := cache.NewMemoryCache()
	svc := NewService(provider, store, c, newTestFeeEngine(t), time.Minute, time.Minute, "")

	result, err := svc.CalculateConversion(context.Background(), ConversionRequest{
		From:      "NGN",
		To:        "cNGN",
		Amount:    decimal.RequireFromString("1000"),
		Direction: DirectionBuy,
		Provider:  "flutterwave",
		Method:    "card",
	})
	require.NoError(t, err)
	require.True(t, result.Gross.Equal(decimal.RequireFromString("1000")))
	require.True(t, result.Net.LessThan(result.Gross))
	require.True(t, result.ExpiresAt.After(time.Now()))
}

func TestUpdateRateRejectsOutOfBandPeg(t *testing.T) {
	provider := NewFixedProvider("NGN", "cNGN")
	store := NewMemoryStore()
	c := cache.NewMemoryCache()
	svc := NewService(provider, store, c, newTestFeeEngine(t), time.Minute, time.Minute, "0.0001")

	err := svc.UpdateRate(context.Background(), "NGN", "cNGN", decimal.RequireFromString("1.2"), "manual")
	require.Error(t, err)
}

func TestUpdateRateAcceptsValidRate(t *testing.T) {
	provider := NewFixedProvider("NGN", "cNGN")
	store := NewMemoryStore()
	c := cache.NewMemoryCache()
	svc := NewService(provider, store, c, newTestFeeEngine(t), time.Minute, time.Minute, "")

	err := svc.UpdateRate(context.Background(), "USD", "NGN", decimal.RequireFromString("1600"), "manual")
	require.NoError(t, err)

	stored, err := store.Get(context.Background(), "USD", "NGN")
	require.NoError(t, err)
	require.Equal(t, "1600", stored.Rate)
}

func TestGetHistoricalRateReturnsMostRecentBeforeCutoff(t *testing.T) {
	store := NewMemoryStore()
	older := time.Now().Add(-2 * time.Hour)
	newer := time.Now().Add(-1 * time.Hour)
	require.NoError(t, store.Upsert(context.Background(), &Rate{FromCurrency: "USD", ToCurrency: "NGN", Rate: "1400", UpdatedAt: older}))
	require.NoError(t, store.Upsert(context.Background(), &Rate{FromCurrency: "USD", ToCurrency: "NGN", Rate: "1500", UpdatedAt: newer}))

	provider := NewFixedProvider("NGN", "cNGN")
	c := cache.NewMemoryCache()
	svc := NewService(provider, store, c, newTestFeeEngine(t), time.Minute, time.Minute, "")

	rate, err := svc.GetHistoricalRate(context.Background(), "USD", "NGN", time.Now())
	require.NoError(t, err)
	require.True(t, rate.Equal(decimal.RequireFromString("1500")))
}

func TestAggregatedProviderMedianSkipsFailingChildren(t *testing.T) {
	ok1 := fixedRateProvider{rate: decimal.RequireFromString("100")}
	ok2 := fixedRateProvider{rate: decimal.RequireFromString("200")}
	ok3 := fixedRateProvider{rate: decimal.RequireFromString("300")}
	bad := failingProvider{}

	agg := NewAggregatedProvider(CombineMedian, ok1, ok2, ok3, bad)
	rate, err := agg.GetRate(context.Background(), "X", "Y")
	require.NoError(t, err)
	require.True(t, rate.Equal(decimal.RequireFromString("200")))
}

type fixedRateProvider struct {
	rate decimal.Decimal
}

func (p fixedRateProvider) GetRate(context.Context, string, string) (decimal.Decimal, error) {
	return p.rate, nil
}
func (p fixedRateProvider) IsHealthy(context.Context) bool { return true }
