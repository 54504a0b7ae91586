package billpayment

import (
	"context"
	"sync"
	"time"

	"github.com/cngnbridge/core/bridge"
	"github.com/cngnbridge/core/errors"
)

// MemoryStore is an in-memory bridge.BillPaymentStore, mirroring
// transaction.MemoryStore's map-wide-lock CAS discipline.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]*bridge.BillPayment
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]*bridge.BillPayment)}
}

func (s *MemoryStore) Create(_ context.Context, bp *bridge.BillPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[bp.TransactionID]; exists {
		return errors.NewBillPaymentError(errors.KindInvariant, errors.STORE_ERROR, "bill payment already exists", nil)
	}
	cp := *bp
	s.rows[bp.TransactionID] = &cp
	return nil
}

func (s *MemoryStore) FindByTransactionID(_ context.Context, transactionID string) (*bridge.BillPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bp, exists := s.rows[transactionID]
	if !exists {
		return nil, errors.NewBillPaymentError(errors.KindPermanent, errors.STORE_ERROR, "bill payment not found", nil)
	}
	cp := *bp
	return &cp, nil
}

func (s *MemoryStore) ListByStatus(_ context.Context, filters bridge.BillPaymentFilters) ([]*bridge.BillPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*bridge.BillPayment
	for _, bp := range s.rows {
		if filters.Status != "" && bp.Status != filters.Status {
			continue
		}
		cp := *bp
		result = append(result, &cp)
	}
	if filters.Limit > 0 && filters.Limit < len(result) {
		result = result[:filters.Limit]
	}
	return result, nil
}

// UpdateCAS applies update only if the row's current status equals
// expectedStatus, validating the transition via ValidateTransition first.
func (s *MemoryStore) UpdateCAS(_ context.Context, transactionID string, expectedStatus bridge.BillStatus, update *bridge.BillPaymentUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bp, exists := s.rows[transactionID]
	if !exists {
		return errors.NewBillPaymentError(errors.KindPermanent, errors.STORE_ERROR, "bill payment not found", nil)
	}
	if bp.Status != expectedStatus {
		return errors.ErrCASMiss
	}

	if update.Status != nil {
		if err := ValidateTransition(bp.Status, *update.Status); err != nil {
			return err
		}
		bp.Status = *update.Status
	}
	if update.ProviderName != nil {
		bp.ProviderName = *update.ProviderName
	}
	if update.ProviderReference != nil {
		bp.ProviderReference = *update.ProviderReference
	}
	if update.Token != nil {
		bp.Token = *update.Token
	}
	if update.ProviderResponse != nil {
		bp.ProviderResponse = update.ProviderResponse
	}
	if update.RetryCount != nil {
		bp.RetryCount = *update.RetryCount
	}
	if update.ClearLastRetryAt {
		bp.LastRetryAt = nil
	} else if update.LastRetryAt != nil {
		bp.LastRetryAt = update.LastRetryAt
	}
	if update.ErrorMessage != nil {
		bp.ErrorMessage = *update.ErrorMessage
	}
	if update.RefundTxHash != nil {
		bp.RefundTxHash = *update.RefundTxHash
	}
	if update.AccountVerified != nil {
		bp.AccountVerified = *update.AccountVerified
	}
	if update.VerificationData != nil {
		bp.VerificationData = update.VerificationData
	}

	bp.UpdatedAt = time.Now()
	return nil
}

var _ bridge.BillPaymentStore = (*MemoryStore)(nil)

// MemoryCursorStore is an in-memory bridge.CursorStore.
type MemoryCursorStore struct {
	mu      sync.Mutex
	cursors map[string]string
}

// NewMemoryCursorStore creates an empty MemoryCursorStore.
func NewMemoryCursorStore() *MemoryCursorStore {
	return &MemoryCursorStore{cursors: make(map[string]string)}
}

func (s *MemoryCursorStore) GetCursor(_ context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors[name], nil
}

func (s *MemoryCursorStore) SetCursor(_ context.Context, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[name] = value
	return nil
}

var _ bridge.CursorStore = (*MemoryCursorStore)(nil)
