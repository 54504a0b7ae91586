// Package fees implements the tiered fee engine (spec §4.C): selecting the
// single matching fee row for a transaction and computing its breakdown in
// decimal arithmetic end to end.
package fees

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cngnbridge/core/errors"
	"github.com/cngnbridge/core/logging"
	"github.com/cngnbridge/core/money"
)

// StellarFeeXLM is the constant network fee absorbed by the platform and
// never surfaced to the user (spec §4.C).
var StellarFeeXLM = decimal.RequireFromString("0.00001")

// FeeStructure is a tiered fee row (spec §3).
type FeeStructure struct {
	TransactionType    string
	PaymentProvider    string
	PaymentMethod      string
	MinAmount          decimal.Decimal
	MaxAmount          *decimal.Decimal // nil means open upper bound
	ProviderFeePercent decimal.Decimal
	ProviderFeeFlat    decimal.Decimal
	ProviderFeeCap     *decimal.Decimal
	PlatformFeePercent decimal.Decimal
	PlatformFeeFlat    decimal.Decimal
	IsActive           bool
	EffectiveFrom      time.Time
	EffectiveUntil     *time.Time
}

// Breakdown is the result of Compute.
type Breakdown struct {
	ProviderFeeRaw decimal.Decimal
	ProviderFee    decimal.Decimal
	PlatformFee    decimal.Decimal
	StellarFeeXLM  decimal.Decimal
	StellarFeeNGN  decimal.Decimal
	Total          decimal.Decimal
	Net            decimal.Decimal
	EffectiveRate  decimal.Decimal
}

// Store persists and queries FeeStructure rows.
type Store interface {
	// FindActive returns every active row for (txType, provider, method).
	FindActive(ctx context.Context, txType, provider, method string) ([]*FeeStructure, error)
}

// XLMRateSource resolves the XLM→NGN conversion factor used to compute the
// absorbed Stellar fee. In production this is backed by the rate service;
// a constant default is used if unavailable.
type XLMRateSource interface {
	XLMToNGN(ctx context.Context) (decimal.Decimal, error)
}

// DefaultXLMRate is used when no XLMRateSource is configured or it fails.
var DefaultXLMRate = decimal.RequireFromString("50")

// Engine selects and computes fees, caching active rows in memory with a
// TTL (spec §4.C). It never caches the decimal computation itself — only
// the tier lookup, since computation is cheap and must always use the
// caller's exact amount.
type Engine struct {
	store     Store
	xlmRate   XLMRateSource
	ttl       time.Duration
	xlmTTL    time.Duration
	log       *logging.Entry
	mu        sync.Mutex
	tierCache map[string]tierCacheEntry
	xlmCache  *xlmCacheEntry
	auditSink AuditSink
}

type tierCacheEntry struct {
	rows      []*FeeStructure
	fetchedAt time.Time
}

type xlmCacheEntry struct {
	rate      decimal.Decimal
	fetchedAt time.Time
}

// AuditSink receives one entry per fee computation (spec §4.C: "every
// computation writes an audit log row with inputs and outputs").
type AuditSink interface {
	RecordFeeComputation(ctx context.Context, entry AuditEntry)
}

// AuditEntry is one fee-computation audit row.
type AuditEntry struct {
	TransactionType string
	Provider        string
	Method          string
	Amount          string
	Breakdown       Breakdown
	At              time.Time
}

// NewEngine builds an Engine. ttl defaults to 5 minutes if zero; xlmTTL
// defaults to 5 minutes per spec §4.C.
func NewEngine(store Store, xlmRate XLMRateSource, auditSink AuditSink, ttl, xlmTTL time.Duration) *Engine {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if xlmTTL <= 0 {
		xlmTTL = 5 * time.Minute
	}
	return &Engine{
		store:     store,
		xlmRate:   xlmRate,
		ttl:       ttl,
		xlmTTL:    xlmTTL,
		log:       logging.For("fees.engine"),
		tierCache: make(map[string]tierCacheEntry),
		auditSink: auditSink,
	}
}

// Select finds the single active fee row matching (txType, provider,
// method, amount). Zero matches is an error; more than one is a
// configuration error (spec §4.C).
func (e *Engine) Select(ctx context.Context, txType, provider, method string, amount decimal.Decimal) (*FeeStructure, error) {
	rows, err := e.activeRows(ctx, txType, provider, method)
	if err != nil {
		return nil, err
	}

	var matches []*FeeStructure
	for _, row := range rows {
		if amount.LessThan(row.MinAmount) {
			continue
		}
		if row.MaxAmount != nil && amount.GreaterThan(*row.MaxAmount) {
			continue
		}
		matches = append(matches, row)
	}

	switch len(matches) {
	case 0:
		return nil, errors.NewFeesError(errors.KindPermanent, errors.FEE_NO_MATCH,
			"no active fee tier matches the given amount", nil)
	case 1:
		return matches[0], nil
	default:
		return nil, errors.NewFeesError(errors.KindInvariant, errors.FEE_AMBIGUOUS_MATCH,
			"more than one active fee tier matches the given amount", nil)
	}
}

func (e *Engine) activeRows(ctx context.Context, txType, provider, method string) ([]*FeeStructure, error) {
	key := txType + "|" + provider + "|" + method

	e.mu.Lock()
	entry, ok := e.tierCache[key]
	e.mu.Unlock()
	if ok && time.Since(entry.fetchedAt) < e.ttl {
		return entry.rows, nil
	}

	rows, err := e.store.FindActive(ctx, txType, provider, method)
	if err != nil {
		return nil, errors.NewFeesError(errors.KindTransient, errors.FEE_NO_MATCH, "failed to load fee tiers", err)
	}

	e.mu.Lock()
	e.tierCache[key] = tierCacheEntry{rows: rows, fetchedAt: time.Now()}
	e.mu.Unlock()

	return rows, nil
}

// SetXLMRateSource wires the XLM→NGN rate source after construction. This
// exists because the rate service that normally plays this role itself
// depends on an Engine for conversion fee breakdowns — callers build the
// Engine first, then the rate service, then close the loop here.
func (e *Engine) SetXLMRateSource(source XLMRateSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.xlmRate = source
}

// InvalidateTiers drops the cached tier set for (txType, provider, method),
// forcing the next Select to reload from the store.
func (e *Engine) InvalidateTiers(txType, provider, method string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.tierCache, txType+"|"+provider+"|"+method)
}

// Compute applies the fee formula from spec §4.C to amount under row,
// writing an audit entry if a sink is configured.
func (e *Engine) Compute(ctx context.Context, txType, provider, method string, amount decimal.Decimal, row *FeeStructure) (Breakdown, error) {
	hundred := decimal.NewFromInt(100)

	providerFeeRaw := amount.Mul(row.ProviderFeePercent).Div(hundred).Add(row.ProviderFeeFlat)
	providerFee := providerFeeRaw
	if row.ProviderFeeCap != nil {
		providerFee = money.Min(providerFeeRaw, *row.ProviderFeeCap)
	}

	platformFee := amount.Mul(row.PlatformFeePercent).Div(hundred).Add(row.PlatformFeeFlat)

	xlmRate, err := e.xlmToNGN(ctx)
	if err != nil {
		e.log.WithError(err).Warn("xlm rate unavailable, using default")
		xlmRate = DefaultXLMRate
	}
	stellarFeeNGN := StellarFeeXLM.Mul(xlmRate)

	total := providerFee.Add(platformFee)
	net := amount.Sub(total)

	var effectiveRate decimal.Decimal
	if amount.IsZero() {
		effectiveRate = decimal.Zero
	} else {
		effectiveRate = total.Div(amount).Mul(hundred)
	}

	breakdown := Breakdown{
		ProviderFeeRaw: providerFeeRaw,
		ProviderFee:    providerFee,
		PlatformFee:    platformFee,
		StellarFeeXLM:  StellarFeeXLM,
		StellarFeeNGN:  stellarFeeNGN,
		Total:          total,
		Net:            net,
		EffectiveRate:  effectiveRate,
	}

	if e.auditSink != nil {
		e.auditSink.RecordFeeComputation(ctx, AuditEntry{
			TransactionType: txType,
			Provider:        provider,
			Method:          method,
			Amount:          amount.String(),
			Breakdown:       breakdown,
			At:              time.Now(),
		})
	}

	return breakdown, nil
}

func (e *Engine) xlmToNGN(ctx context.Context) (decimal.Decimal, error) {
	e.mu.Lock()
	cached := e.xlmCache
	e.mu.Unlock()
	if cached != nil && time.Since(cached.fetchedAt) < e.xlmTTL {
		return cached.rate, nil
	}

	if e.xlmRate == nil {
		return DefaultXLMRate, nil
	}
	rate, err := e.xlmRate.XLMToNGN(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	e.mu.Lock()
	e.xlmCache = &xlmCacheEntry{rate: rate, fetchedAt: time.Now()}
	e.mu.Unlock()

	return rate, nil
}
