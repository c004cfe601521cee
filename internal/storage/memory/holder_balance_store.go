package memory

import (
	"context"
	"sort"
	"sync"

	"spl-rewards-token/internal/domain"
	"spl-rewards-token/internal/storage"
)

// HolderBalanceStore is an in-memory implementation of storage.HolderBalanceStore.
type HolderBalanceStore struct {
	mu   sync.RWMutex
	data map[string]*domain.HolderBalanceRecord // keyed by holder
}

// NewHolderBalanceStore creates a new in-memory holder balance store.
func NewHolderBalanceStore() *HolderBalanceStore {
	return &HolderBalanceStore{
		data: make(map[string]*domain.HolderBalanceRecord),
	}
}

// Upsert writes the holder's latest balance snapshot.
func (s *HolderBalanceStore) Upsert(_ context.Context, b *domain.HolderBalanceRecord) error {
	if b == nil || b.Holder == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *b
	s.data[b.Holder] = &copy
	return nil
}

// GetByHolder retrieves a holder's snapshot. Returns ErrNotFound if not exists.
func (s *HolderBalanceStore) GetByHolder(_ context.Context, holder string) (*domain.HolderBalanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.data[holder]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *b
	return &copy, nil
}

// GetAll retrieves all snapshots, ordered by holder ASC.
func (s *HolderBalanceStore) GetAll(_ context.Context) ([]*domain.HolderBalanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.HolderBalanceRecord, 0, len(s.data))
	for _, b := range s.data {
		copy := *b
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Holder < result[j].Holder
	})

	return result, nil
}

var _ storage.HolderBalanceStore = (*HolderBalanceStore)(nil)
