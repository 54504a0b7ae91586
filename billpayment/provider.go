package billpayment

import (
	"context"

	"github.com/cngnbridge/core/bridge"
)

// SubmitRequest is the normalized shape every bill Provider accepts,
// translated by each implementation into its own wire format (spec §6).
type SubmitRequest struct {
	TransactionID string // doubles as the provider idempotency key
	BillType      bridge.BillType
	AccountNumber string
	Amount        string
	VariationCode string
}

// SubmitOutcome classifies a provider's response to a bill submission.
type SubmitOutcome string

const (
	SubmitSuccessToken   SubmitOutcome = "success_token"
	SubmitSuccessPending SubmitOutcome = "success_pending"
	SubmitFailure        SubmitOutcome = "failure"
)

// SubmitResult is the result of Provider.Submit.
type SubmitResult struct {
	Outcome           SubmitOutcome
	ProviderReference string
	Token             string
	RawResponse       map[string]any
	FailureReason     string
}

// PollResult is the result of Provider.Poll.
type PollResult struct {
	Completed   bool
	Token       string
	RawResponse map[string]any
}

// VerifyResult is the result of Provider.VerifyAccount.
type VerifyResult struct {
	Active      bool
	RawResponse map[string]any
}

// Provider is the closed set of bill-payment providers (spec §9: a small
// capability surface, not open dynamic dispatch). Implementations:
// FlutterwaveProvider, VTPassProvider, PaystackProvider.
type Provider interface {
	Name() string
	// VerifyAccount calls the provider's read-only endpoint to confirm an
	// account is active. Only electricity and cable_tv call this (spec
	// §4.I step 2).
	VerifyAccount(ctx context.Context, req SubmitRequest) (*VerifyResult, error)
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
	Poll(ctx context.Context, providerReference string) (*PollResult, error)
}

// Registry resolves a Provider by name and exposes the primary/secondary
// preference per bill type (spec §4.I step 3).
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a Registry from the given named providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Resolve returns the provider for name, or nil if unregistered.
func (r *Registry) Resolve(name string) Provider {
	return r.providers[name]
}

// Preferred returns the primary provider for billType, falling back to the
// secondary if the primary is unregistered.
func (r *Registry) Preferred(billType bridge.BillType) Provider {
	pref, ok := ProviderPreference[billType]
	if !ok {
		return nil
	}
	if p := r.providers[pref[0]]; p != nil {
		return p
	}
	return r.providers[pref[1]]
}

// Secondary returns the secondary provider for billType, for use after the
// primary has failed and exhausted its retries.
func (r *Registry) Secondary(billType bridge.BillType) Provider {
	pref, ok := ProviderPreference[billType]
	if !ok {
		return nil
	}
	return r.providers[pref[1]]
}
