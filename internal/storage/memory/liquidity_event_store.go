package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"spl-rewards-token/internal/domain"
	"spl-rewards-token/internal/storage"
)

// LiquidityEventStore is an in-memory implementation of storage.LiquidityEventStore.
type LiquidityEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.LiquidityRecord // keyed by composite key
}

// NewLiquidityEventStore creates a new in-memory liquidity event store.
func NewLiquidityEventStore() *LiquidityEventStore {
	return &LiquidityEventStore{
		data: make(map[string]*domain.LiquidityRecord),
	}
}

// liquidityKey generates a unique key for an event.
func liquidityKey(pool string, requestedAt int64) string {
	return fmt.Sprintf("%s|%d", pool, requestedAt)
}

// Insert adds a new event. Returns ErrDuplicateKey if exists.
func (s *LiquidityEventStore) Insert(_ context.Context, e *domain.LiquidityRecord) error {
	if e == nil || e.Pool == "" {
		return storage.ErrInvalidInput
	}

	key := liquidityKey(e.Pool, e.RequestedAt)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *e
	s.data[key] = &copy
	return nil
}

// GetByPool retrieves all events for a pool, ordered by requested_at ASC.
func (s *LiquidityEventStore) GetByPool(_ context.Context, pool string) ([]*domain.LiquidityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.LiquidityRecord
	for _, e := range s.data {
		if e.Pool == pool {
			copy := *e
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].RequestedAt < result[j].RequestedAt
	})

	return result, nil
}

var _ storage.LiquidityEventStore = (*LiquidityEventStore)(nil)
