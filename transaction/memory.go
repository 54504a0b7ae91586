package transaction

import (
	"context"
	"sync"
	"time"

	"github.com/cngnbridge/core/bridge"
	"github.com/cngnbridge/core/errors"
)

// MemoryStore is an in-memory bridge.TransactionStore, modeled on the
// teacher's store/memory.TransferStore. UpdateCAS takes the same map-wide
// lock a single Postgres row lock would provide, so the compare-and-swap
// semantics hold even though there is no real database underneath.
type MemoryStore struct {
	mu           sync.Mutex
	transactions map[string]*bridge.Transaction
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions: make(map[string]*bridge.Transaction),
	}
}

func (s *MemoryStore) Create(_ context.Context, tx *bridge.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[tx.TransactionID]; exists {
		return errors.NewTransactionError(errors.KindInvariant, errors.STORE_ERROR, "transaction already exists", nil)
	}
	cp := *tx
	s.transactions[tx.TransactionID] = &cp
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*bridge.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, exists := s.transactions[id]
	if !exists {
		return nil, errors.NewTransactionError(errors.KindPermanent, errors.STORE_ERROR, "transaction not found", nil)
	}
	cp := *tx
	return &cp, nil
}

func (s *MemoryStore) FindByPaymentRef(_ context.Context, ref string) (*bridge.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range s.transactions {
		if tx.PaymentRef == ref {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, errors.NewTransactionError(errors.KindPermanent, errors.STORE_ERROR, "transaction not found for payment ref", nil)
}

func (s *MemoryStore) List(_ context.Context, filters bridge.TransactionFilters) ([]*bridge.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*bridge.Transaction
	for _, tx := range s.transactions {
		if filters.WalletAddress != "" && tx.WalletAddress != filters.WalletAddress {
			continue
		}
		if filters.Type != nil && tx.Type != *filters.Type {
			continue
		}
		if filters.Status != nil && tx.Status != *filters.Status {
			continue
		}
		if filters.PaymentRef != "" && tx.PaymentRef != filters.PaymentRef {
			continue
		}
		cp := *tx
		result = append(result, &cp)
	}

	if filters.Offset > 0 && filters.Offset < len(result) {
		result = result[filters.Offset:]
	} else if filters.Offset >= len(result) {
		result = nil
	}
	if filters.Limit > 0 && filters.Limit < len(result) {
		result = result[:filters.Limit]
	}
	return result, nil
}

// UpdateCAS applies update only if the row's current status equals
// expectedStatus, validating the transition via ValidateTransition first.
func (s *MemoryStore) UpdateCAS(_ context.Context, id string, expectedStatus bridge.TransactionStatus, update *bridge.TransactionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, exists := s.transactions[id]
	if !exists {
		return errors.NewTransactionError(errors.KindPermanent, errors.STORE_ERROR, "transaction not found", nil)
	}
	if tx.Status != expectedStatus {
		return errors.ErrCASMiss
	}

	if update.Status != nil {
		if err := ValidateTransition(tx.Status, *update.Status); err != nil {
			return err
		}
		tx.Status = *update.Status
	}
	if update.ToAmount != nil {
		tx.ToAmount = *update.ToAmount
	}
	if update.CNGNAmount != nil {
		tx.CNGNAmount = *update.CNGNAmount
	}
	if update.PaymentProvider != nil {
		tx.PaymentProvider = *update.PaymentProvider
	}
	if update.PaymentRef != nil {
		tx.PaymentRef = *update.PaymentRef
	}
	if update.BlockchainTxHash != nil {
		tx.BlockchainTxHash = *update.BlockchainTxHash
	}
	if update.ErrorMessage != nil {
		tx.ErrorMessage = *update.ErrorMessage
	}
	if tx.Metadata == nil {
		tx.Metadata = make(map[string]any)
	}
	for k, v := range update.MetadataPatch {
		tx.Metadata[k] = v
	}
	if update.HistoryEntry != nil {
		history, _ := tx.Metadata["history"].([]bridge.TransactionHistoryEntry)
		tx.Metadata["history"] = append(history, *update.HistoryEntry)
	}

	tx.UpdatedAt = time.Now()
	return nil
}

var _ bridge.TransactionStore = (*MemoryStore)(nil)
