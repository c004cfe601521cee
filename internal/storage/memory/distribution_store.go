package memory

import (
	"context"
	"sort"
	"sync"

	"spl-rewards-token/internal/domain"
	"spl-rewards-token/internal/storage"
)

// DistributionStore is an in-memory implementation of storage.DistributionStore.
type DistributionStore struct {
	mu   sync.RWMutex
	data []*domain.DistributionRecord
}

// NewDistributionStore creates a new in-memory distribution store.
func NewDistributionStore() *DistributionStore {
	return &DistributionStore{}
}

// InsertBulk adds all legs of one distribution. Fails entire batch on error.
func (s *DistributionStore) InsertBulk(_ context.Context, legs []*domain.DistributionRecord) error {
	if len(legs) == 0 {
		return nil
	}
	for _, leg := range legs {
		if leg == nil || leg.Pool == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, leg := range legs {
		copy := *leg
		s.data = append(s.data, &copy)
	}
	return nil
}

// GetByPool retrieves all legs for a pool, ordered by distributed_at ASC.
func (s *DistributionStore) GetByPool(_ context.Context, pool string) ([]*domain.DistributionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DistributionRecord
	for _, leg := range s.data {
		if leg.Pool == pool {
			copy := *leg
			result = append(result, &copy)
		}
	}

	sortDistributions(result)
	return result, nil
}

// GetByTimeRange retrieves legs for a pool within [start, end] (inclusive).
func (s *DistributionStore) GetByTimeRange(_ context.Context, pool string, start, end int64) ([]*domain.DistributionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DistributionRecord
	for _, leg := range s.data {
		if leg.Pool == pool && leg.DistributedAt >= start && leg.DistributedAt <= end {
			copy := *leg
			result = append(result, &copy)
		}
	}

	sortDistributions(result)
	return result, nil
}

// sortDistributions orders by distributed_at, then holder for stability.
// The reserve leg's empty holder sorts first within a distribution.
func sortDistributions(legs []*domain.DistributionRecord) {
	sort.Slice(legs, func(i, j int) bool {
		if legs[i].DistributedAt != legs[j].DistributedAt {
			return legs[i].DistributedAt < legs[j].DistributedAt
		}
		return legs[i].Holder < legs[j].Holder
	})
}

var _ storage.DistributionStore = (*DistributionStore)(nil)
