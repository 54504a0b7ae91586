// Package rates implements the pluggable rate-provider surface and the
// cached rate service that sits in front of it (spec §4.B, §4.D).
package rates

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/cngnbridge/core/errors"
)

// Provider is a single source of exchange rates. The set of implementations
// is closed by design (spec §9: "prefer a sum of variants... not open
// dynamic dispatch") — FixedProvider and AggregatedProvider are the only two
// that ship; a third would be added here, not plugged in via reflection.
type Provider interface {
	GetRate(ctx context.Context, from, to string) (decimal.Decimal, error)
	IsHealthy(ctx context.Context) bool
}

// FixedProvider returns exactly 1 for the pegged (NGN, cNGN) pair in either
// direction, and Unavailable otherwise.
type FixedProvider struct {
	From string
	To   string
}

// NewFixedProvider creates a provider pegging From/To at 1:1.
func NewFixedProvider(from, to string) *FixedProvider {
	return &FixedProvider{From: from, To: to}
}

func (p *FixedProvider) GetRate(_ context.Context, from, to string) (decimal.Decimal, error) {
	if (from == p.From && to == p.To) || (from == p.To && to == p.From) {
		return decimal.NewFromInt(1), nil
	}
	return decimal.Zero, errors.NewRatesError(errors.KindPermanent, errors.RATE_UNAVAILABLE,
		"fixed provider only covers the pegged pair", nil)
}

func (p *FixedProvider) IsHealthy(_ context.Context) bool {
	return true
}

var _ Provider = (*FixedProvider)(nil)

// CombineStrategy selects how AggregatedProvider merges its children's
// results.
type CombineStrategy string

const (
	CombineFirst   CombineStrategy = "first"
	CombineAverage CombineStrategy = "average"
	CombineMedian  CombineStrategy = "median"
)

// AggregatedProvider fans out to a fixed set of child providers in parallel
// and combines their successful results. A failing child is skipped, not
// fatal; zero successes fails the call.
type AggregatedProvider struct {
	children []Provider
	strategy CombineStrategy
}

// NewAggregatedProvider builds an AggregatedProvider over children, combined
// per strategy.
func NewAggregatedProvider(strategy CombineStrategy, children ...Provider) *AggregatedProvider {
	return &AggregatedProvider{children: children, strategy: strategy}
}

func (p *AggregatedProvider) GetRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	type result struct {
		rate decimal.Decimal
		err  error
	}

	results := make([]result, len(p.children))
	var wg sync.WaitGroup
	for i, child := range p.children {
		wg.Add(1)
		go func(i int, child Provider) {
			defer wg.Done()
			rate, err := child.GetRate(ctx, from, to)
			results[i] = result{rate: rate, err: err}
		}(i, child)
	}
	wg.Wait()

	var successes []decimal.Decimal
	for _, r := range results {
		if r.err == nil {
			successes = append(successes, r.rate)
		}
	}

	if len(successes) == 0 {
		return decimal.Zero, errors.NewRatesError(errors.KindTransient, errors.RATE_UNAVAILABLE,
			"no rate provider returned a value", nil)
	}

	switch p.strategy {
	case CombineFirst:
		return successes[0], nil
	case CombineAverage:
		return average(successes), nil
	case CombineMedian:
		return median(successes), nil
	default:
		return decimal.Zero, errors.NewRatesError(errors.KindInvariant, errors.RATE_UNAVAILABLE,
			"unknown combine strategy", nil)
	}
}

func (p *AggregatedProvider) IsHealthy(ctx context.Context) bool {
	for _, child := range p.children {
		if child.IsHealthy(ctx) {
			return true
		}
	}
	return false
}

var _ Provider = (*AggregatedProvider)(nil)

func average(values []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}

func median(values []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1].Add(sorted[n/2]).Div(decimal.NewFromInt(2))
}
