package postgres

import (
	"context"
	"fmt"

	"spl-rewards-token/internal/domain"
	"spl-rewards-token/internal/storage"
)

// LiquidityEventStore implements storage.LiquidityEventStore using PostgreSQL.
type LiquidityEventStore struct {
	pool *Pool
}

// NewLiquidityEventStore creates a new LiquidityEventStore.
func NewLiquidityEventStore(pool *Pool) *LiquidityEventStore {
	return &LiquidityEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LiquidityEventStore = (*LiquidityEventStore)(nil)

// Insert adds a new event. Returns ErrDuplicateKey if (pool, requested_at) exists.
func (s *LiquidityEventStore) Insert(ctx context.Context, e *domain.LiquidityRecord) error {
	query := `
		INSERT INTO liquidity_events (pool, reserve_wallet, requested_at)
		VALUES ($1, $2, $3)
	`

	_, err := s.pool.Exec(ctx, query, e.Pool, e.ReserveWallet, e.RequestedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert liquidity event: %w", err)
	}
	return nil
}

// GetByPool retrieves all events for a pool, ordered by requested_at ASC.
func (s *LiquidityEventStore) GetByPool(ctx context.Context, pool string) ([]*domain.LiquidityRecord, error) {
	query := `
		SELECT pool, reserve_wallet, requested_at
		FROM liquidity_events
		WHERE pool = $1
		ORDER BY requested_at ASC
	`

	rows, err := s.pool.Query(ctx, query, pool)
	if err != nil {
		return nil, fmt.Errorf("get liquidity events by pool: %w", err)
	}
	defer rows.Close()

	var events []*domain.LiquidityRecord
	for rows.Next() {
		var e domain.LiquidityRecord
		if err := rows.Scan(&e.Pool, &e.ReserveWallet, &e.RequestedAt); err != nil {
			return nil, fmt.Errorf("scan liquidity event row: %w", err)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate liquidity event rows: %w", err)
	}

	return events, nil
}
