package memory

import (
	"context"
	"sort"
	"sync"

	"spl-rewards-token/internal/domain"
	"spl-rewards-token/internal/storage"
)

// TransferStore is an in-memory implementation of storage.TransferStore.
type TransferStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TransferRecord // keyed by transfer_id
}

// NewTransferStore creates a new in-memory transfer store.
func NewTransferStore() *TransferStore {
	return &TransferStore{
		data: make(map[string]*domain.TransferRecord),
	}
}

// Insert adds a new transfer. Returns ErrDuplicateKey if exists.
func (s *TransferStore) Insert(_ context.Context, t *domain.TransferRecord) error {
	if t == nil || t.TransferID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TransferID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[t.TransferID] = &copy
	return nil
}

// GetByID retrieves a transfer by its ID. Returns ErrNotFound if not exists.
func (s *TransferStore) GetByID(_ context.Context, transferID string) (*domain.TransferRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[transferID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *t
	return &copy, nil
}

// GetByMint retrieves all transfers for a mint, ordered by timestamp ASC.
func (s *TransferStore) GetByMint(_ context.Context, mint string) ([]*domain.TransferRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransferRecord
	for _, t := range s.data {
		if t.Mint == mint {
			copy := *t
			result = append(result, &copy)
		}
	}

	sortTransfers(result)
	return result, nil
}

// GetByTimeRange retrieves transfers for a mint within [start, end] (inclusive).
func (s *TransferStore) GetByTimeRange(_ context.Context, mint string, start, end int64) ([]*domain.TransferRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransferRecord
	for _, t := range s.data {
		if t.Mint == mint && t.Timestamp >= start && t.Timestamp <= end {
			copy := *t
			result = append(result, &copy)
		}
	}

	sortTransfers(result)
	return result, nil
}

// sortTransfers orders by timestamp, then transfer_id for stability.
func sortTransfers(transfers []*domain.TransferRecord) {
	sort.Slice(transfers, func(i, j int) bool {
		if transfers[i].Timestamp != transfers[j].Timestamp {
			return transfers[i].Timestamp < transfers[j].Timestamp
		}
		return transfers[i].TransferID < transfers[j].TransferID
	})
}

var _ storage.TransferStore = (*TransferStore)(nil)
