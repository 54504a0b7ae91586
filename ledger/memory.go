package ledger

import (
	"context"
	"sync"

	"github.com/cngnbridge/core/errors"
)

// MemoryGateway is an in-memory Gateway fake for tests, in the spirit of the
// teacher's store/memory package: a mutex-guarded map with no external
// dependency, seeded and inspected directly by test code rather than driven
// through a live network.
type MemoryGateway struct {
	mu        sync.Mutex
	accounts  map[string][]Balance
	submitted []PaymentRequest
	txByHash  map[string]*TransactionResult
	incoming  []IncomingPayment
	nextHash  int
}

// NewMemoryGateway creates an empty in-memory gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		accounts: make(map[string][]Balance),
		txByHash: make(map[string]*TransactionResult),
	}
}

// SeedAccount registers an account as existing with the given balances.
func (m *MemoryGateway) SeedAccount(address string, balances []Balance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[address] = balances
}

// SeedIncoming appends payments ScanIncoming will return in order.
func (m *MemoryGateway) SeedIncoming(payments ...IncomingPayment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incoming = append(m.incoming, payments...)
}

// Submitted returns every payment request SubmitPayment has observed, in
// call order, for test assertions.
func (m *MemoryGateway) Submitted() []PaymentRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PaymentRequest, len(m.submitted))
	copy(out, m.submitted)
	return out
}

func (m *MemoryGateway) AccountExists(ctx context.Context, address string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.accounts[address]
	return ok, nil
}

func (m *MemoryGateway) GetBalances(ctx context.Context, address string) ([]Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balances, ok := m.accounts[address]
	if !ok {
		return nil, errors.NewLedgerError(errors.KindPermanent, errors.ACCOUNT_NOT_FOUND, "account not found: "+address, nil)
	}
	return balances, nil
}

// SubmitPayment records the request via RecordSubmission (test helper set up
// by the caller) and fabricates a deterministic hash. Real signing/envelope
// construction is exercised by signers, not this fake.
func (m *MemoryGateway) SubmitPayment(ctx context.Context, signedEnvelopeXDR string) (*SubmitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextHash++
	hash := fakeHash(m.nextHash)
	m.txByHash[hash] = &TransactionResult{Successful: true}
	return &SubmitResult{TxHash: hash, LedgerSequence: int64(m.nextHash)}, nil
}

func (m *MemoryGateway) GetTransaction(ctx context.Context, txHash string) (*TransactionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txByHash[txHash]
	if !ok {
		return nil, errors.NewLedgerError(errors.KindPermanent, errors.TX_NOT_FOUND, "transaction not found: "+txHash, nil)
	}
	return tx, nil
}

func (m *MemoryGateway) ScanIncoming(ctx context.Context, systemAddress string, sinceCursor string, limit int) ([]IncomingPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := 0
	for i, p := range m.incoming {
		if p.Cursor == sinceCursor {
			start = i + 1
			break
		}
	}
	if start >= len(m.incoming) {
		return nil, nil
	}
	end := start + limit
	if limit <= 0 || end > len(m.incoming) {
		end = len(m.incoming)
	}
	return append([]IncomingPayment(nil), m.incoming[start:end]...), nil
}

// RecordSubmission lets a PaymentBuilder fake (or the test itself) register
// what SubmitPayment would have sent, since the fake never constructs a real
// XDR envelope.
func (m *MemoryGateway) RecordSubmission(req PaymentRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted = append(m.submitted, req)
}

func fakeHash(n int) string {
	const hexdigits = "0123456789abcdef"
	b := make([]byte, 64)
	for i := range b {
		b[i] = hexdigits[(n+i)%16]
	}
	return string(b)
}

var _ Gateway = (*MemoryGateway)(nil)
