package storage

import (
	"context"

	"spl-rewards-token/internal/domain"
)

// TransferStore provides access to transfers storage.
type TransferStore interface {
	// Insert adds a new transfer. Returns ErrDuplicateKey if transfer_id exists.
	Insert(ctx context.Context, t *domain.TransferRecord) error

	// GetByID retrieves a transfer by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, transferID string) (*domain.TransferRecord, error)

	// GetByMint retrieves all transfers for a mint, ordered by timestamp ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.TransferRecord, error)

	// GetByTimeRange retrieves transfers for a mint within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.TransferRecord, error)
}

// HolderBalanceStore provides access to holder_balances storage. Unlike
// the transfer log this is a latest-wins snapshot per holder.
type HolderBalanceStore interface {
	// Upsert writes the holder's latest balance snapshot.
	Upsert(ctx context.Context, b *domain.HolderBalanceRecord) error

	// GetByHolder retrieves a holder's snapshot. Returns ErrNotFound if not exists.
	GetByHolder(ctx context.Context, holder string) (*domain.HolderBalanceRecord, error)

	// GetAll retrieves all snapshots, ordered by holder ASC.
	GetAll(ctx context.Context) ([]*domain.HolderBalanceRecord, error)
}

// DistributionStore provides access to distributions storage.
type DistributionStore interface {
	// InsertBulk adds all legs of one distribution. Fails entire batch on error.
	InsertBulk(ctx context.Context, legs []*domain.DistributionRecord) error

	// GetByPool retrieves all legs for a pool, ordered by distributed_at ASC.
	GetByPool(ctx context.Context, pool string) ([]*domain.DistributionRecord, error)

	// GetByTimeRange retrieves legs for a pool within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, pool string, start, end int64) ([]*domain.DistributionRecord, error)
}

// LiquidityEventStore provides access to liquidity_events storage.
type LiquidityEventStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if (pool, requested_at) exists.
	Insert(ctx context.Context, e *domain.LiquidityRecord) error

	// GetByPool retrieves all events for a pool, ordered by requested_at ASC.
	GetByPool(ctx context.Context, pool string) ([]*domain.LiquidityRecord, error)
}
