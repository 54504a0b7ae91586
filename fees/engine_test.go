package fees

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func activeRow(min, max string) *FeeStructure {
	row := &FeeStructure{
		TransactionType:    "onramp",
		PaymentProvider:    "flutterwave",
		PaymentMethod:      "card",
		MinAmount:          decimal.RequireFromString(min),
		ProviderFeePercent: decimal.RequireFromString("1.5"),
		ProviderFeeFlat:    decimal.RequireFromString("50"),
		PlatformFeePercent: decimal.RequireFromString("0.5"),
		PlatformFeeFlat:    decimal.Zero,
		IsActive:           true,
		EffectiveFrom:      time.Now().Add(-time.Hour),
	}
	if max != "" {
		m := decimal.RequireFromString(max)
		row.MaxAmount = &m
	}
	return row
}

func TestSelectReturnsSoleMatch(t *testing.T) {
	store := NewMemoryStore()
	store.Add(activeRow("0", "10000"))
	engine := NewEngine(store, nil, nil, time.Minute, time.Minute)

	row, err := engine.Select(context.Background(), "onramp", "flutterwave", "card", decimal.RequireFromString("5000"))
	require.NoError(t, err)
	require.NotNil(t, row)
}

func TestSelectNoMatchErrors(t *testing.T) {
	store := NewMemoryStore()
	store.Add(activeRow("0", "1000"))
	engine := NewEngine(store, nil, nil, time.Minute, time.Minute)

	_, err := engine.Select(context.Background(), "onramp", "flutterwave", "card", decimal.RequireFromString("5000"))
	require.Error(t, err)
}

func TestSelectAmbiguousMatchErrors(t *testing.T) {
	store := NewMemoryStore()
	store.Add(activeRow("0", "10000"))
	store.Add(activeRow("0", "")) // open-ended, overlaps the one above
	engine := NewEngine(store, nil, nil, time.Minute, time.Minute)

	_, err := engine.Select(context.Background(), "onramp", "flutterwave", "card", decimal.RequireFromString("5000"))
	require.Error(t, err)
}

func TestSelectIgnoresInactiveRows(t *testing.T) {
	store := NewMemoryStore()
	inactive := activeRow("0", "10000")
	inactive.IsActive = false
	store.Add(inactive)
	engine := NewEngine(store, nil, nil, time.Minute, time.Minute)

	_, err := engine.Select(context.Background(), "onramp", "flutterwave", "card", decimal.RequireFromString("5000"))
	require.Error(t, err)
}

func TestComputeAppliesCapAndRecordsAudit(t *testing.T) {
	store := NewMemoryStore()
	row := activeRow("0", "10000")
	cap := decimal.RequireFromString("60")
	row.ProviderFeeCap = &cap
	store.Add(row)

	audit := NewMemoryAuditSink()
	engine := NewEngine(store, nil, audit, time.Minute, time.Minute)

	amount := decimal.RequireFromString("1000")
	breakdown, err := engine.Compute(context.Background(), "onramp", "flutterwave", "card", amount, row)
	require.NoError(t, err)

	// raw provider fee = 1.5% of 1000 + 50 = 65, capped at 60
	require.True(t, breakdown.ProviderFee.Equal(decimal.RequireFromString("60")))
	require.True(t, breakdown.PlatformFee.Equal(decimal.RequireFromString("5")))
	require.True(t, breakdown.Total.Equal(decimal.RequireFromString("65")))
	require.True(t, breakdown.Net.Equal(amount.Sub(breakdown.Total)))

	require.Len(t, audit.Entries(), 1)
}

type fakeXLMRate struct {
	rate decimal.Decimal
	err  error
	hits int
}

func (f *fakeXLMRate) XLMToNGN(context.Context) (decimal.Decimal, error) {
	f.hits++
	return f.rate, f.err
}

func TestComputeFallsBackToDefaultXLMRateOnError(t *testing.T) {
	store := NewMemoryStore()
	row := activeRow("0", "")
	store.Add(row)

	badSource := &fakeXLMRate{rate: decimal.Zero, err: assertError{}}
	engine := NewEngine(store, badSource, nil, time.Minute, time.Minute)

	breakdown, err := engine.Compute(context.Background(), "onramp", "flutterwave", "card", decimal.RequireFromString("1000"), row)
	require.NoError(t, err)
	require.True(t, breakdown.StellarFeeNGN.Equal(StellarFeeXLM.Mul(DefaultXLMRate)))
}

type assertError struct{}

func (assertError) Error() string { return "xlm rate unavailable" }

func TestComputeCachesXLMRate(t *testing.T) {
	store := NewMemoryStore()
	row := activeRow("0", "")
	store.Add(row)

	source := &fakeXLMRate{rate: decimal.RequireFromString("60")}
	engine := NewEngine(store, source, nil, time.Minute, time.Minute)

	_, err := engine.Compute(context.Background(), "onramp", "flutterwave", "card", decimal.RequireFromString("1000"), row)
	require.NoError(t, err)
	_, err = engine.Compute(context.Background(), "onramp", "flutterwave", "card", decimal.RequireFromString("1000"), row)
	require.NoError(t, err)

	require.Equal(t, 1, source.hits, "second call should hit the cache")
}

func TestSetXLMRateSourceWiresAfterConstruction(t *testing.T) {
	store := NewMemoryStore()
	row := activeRow("0", "")
	store.Add(row)
	engine := NewEngine(store, nil, nil, time.Minute, time.Minute)

	source := &fakeXLMRate{rate: decimal.RequireFromString("75")}
	engine.SetXLMRateSource(source)

	breakdown, err := engine.Compute(context.Background(), "onramp", "flutterwave", "card", decimal.RequireFromString("1000"), row)
	require.NoError(t, err)
	require.True(t, breakdown.StellarFeeNGN.Equal(StellarFeeXLM.Mul(decimal.RequireFromString("75"))))
}

func TestInvalidateTiersForcesReload(t *testing.T) {
	store := NewMemoryStore()
	store.Add(activeRow("0", "10000"))
	engine := NewEngine(store, nil, nil, time.Hour, time.Hour)

	_, err := engine.Select(context.Background(), "onramp", "flutterwave", "card", decimal.RequireFromString("5000"))
	require.NoError(t, err)

	store.Add(activeRow("0", "")) // now ambiguous, but cache would hide it
	engine.InvalidateTiers("onramp", "flutterwave", "card")

	_, err = engine.Select(context.Background(), "onramp", "flutterwave", "card", decimal.RequireFromString("5000"))
	require.Error(t, err)
}
