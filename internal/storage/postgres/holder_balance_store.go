package postgres

import (
	"context"
	"fmt"

	"spl-rewards-token/internal/domain"
	"spl-rewards-token/internal/storage"
)

// HolderBalanceStore implements storage.HolderBalanceStore using PostgreSQL.
type HolderBalanceStore struct {
	pool *Pool
}

// NewHolderBalanceStore creates a new HolderBalanceStore.
func NewHolderBalanceStore(pool *Pool) *HolderBalanceStore {
	return &HolderBalanceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.HolderBalanceStore = (*HolderBalanceStore)(nil)

// Upsert writes the holder's latest balance snapshot.
func (s *HolderBalanceStore) Upsert(ctx context.Context, b *domain.HolderBalanceRecord) error {
	query := `
		INSERT INTO holder_balances (holder, balance, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (holder) DO UPDATE
		SET balance = EXCLUDED.balance, updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query, b.Holder, int64(b.Balance), b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert holder balance: %w", err)
	}
	return nil
}

// GetByHolder retrieves a holder's snapshot. Returns ErrNotFound if not exists.
func (s *HolderBalanceStore) GetByHolder(ctx context.Context, holder string) (*domain.HolderBalanceRecord, error) {
	query := `
		SELECT holder, balance, updated_at
		FROM holder_balances
		WHERE holder = $1
	`

	var b domain.HolderBalanceRecord
	var balance int64
	err := s.pool.QueryRow(ctx, query, holder).Scan(&b.Holder, &balance, &b.UpdatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get holder balance: %w", err)
	}
	b.Balance = uint64(balance)

	return &b, nil
}

// GetAll retrieves all snapshots, ordered by holder ASC.
func (s *HolderBalanceStore) GetAll(ctx context.Context) ([]*domain.HolderBalanceRecord, error) {
	query := `
		SELECT holder, balance, updated_at
		FROM holder_balances
		ORDER BY holder ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all holder balances: %w", err)
	}
	defer rows.Close()

	var balances []*domain.HolderBalanceRecord
	for rows.Next() {
		var b domain.HolderBalanceRecord
		var balance int64
		if err := rows.Scan(&b.Holder, &balance, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan holder balance row: %w", err)
		}
		b.Balance = uint64(balance)
		balances = append(balances, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holder balance rows: %w", err)
	}

	return balances, nil
}
