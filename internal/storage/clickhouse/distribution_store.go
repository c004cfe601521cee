package clickhouse

import (
	"context"
	"fmt"

	"spl-rewards-token/internal/domain"
	"spl-rewards-token/internal/storage"
)

// DistributionStore implements storage.DistributionStore using ClickHouse.
// Distribution legs are analytics data: high-volume appends, range reads.
type DistributionStore struct {
	conn *Conn
}

// NewDistributionStore creates a new DistributionStore.
func NewDistributionStore(conn *Conn) *DistributionStore {
	return &DistributionStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DistributionStore = (*DistributionStore)(nil)

// InsertBulk adds all legs of one distribution. Fails entire batch on error.
func (s *DistributionStore) InsertBulk(ctx context.Context, legs []*domain.DistributionRecord) error {
	if len(legs) == 0 {
		return nil
	}
	for _, leg := range legs {
		if leg == nil || leg.Pool == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO distributions (
			pool, holder, amount, pool_total, distributed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, leg := range legs {
		err = batch.Append(
			leg.Pool, leg.Holder, leg.Amount, leg.PoolTotal, leg.DistributedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByPool retrieves all legs for a pool, ordered by distributed_at ASC.
func (s *DistributionStore) GetByPool(ctx context.Context, pool string) ([]*domain.DistributionRecord, error) {
	query := `
		SELECT pool, holder, amount, pool_total, distributed_at
		FROM distributions
		WHERE pool = ?
		ORDER BY distributed_at ASC, holder ASC
	`

	rows, err := s.conn.Query(ctx, query, pool)
	if err != nil {
		return nil, fmt.Errorf("query by pool: %w", err)
	}
	defer rows.Close()

	return scanDistributions(rows)
}

// GetByTimeRange retrieves legs for a pool within [start, end] (inclusive).
func (s *DistributionStore) GetByTimeRange(ctx context.Context, pool string, start, end int64) ([]*domain.DistributionRecord, error) {
	query := `
		SELECT pool, holder, amount, pool_total, distributed_at
		FROM distributions
		WHERE pool = ? AND distributed_at >= ? AND distributed_at <= ?
		ORDER BY distributed_at ASC, holder ASC
	`

	rows, err := s.conn.Query(ctx, query, pool, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanDistributions(rows)
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanDistributions scans multiple rows into a slice.
func scanDistributions(rows chRows) ([]*domain.DistributionRecord, error) {
	var legs []*domain.DistributionRecord

	for rows.Next() {
		var leg domain.DistributionRecord

		err := rows.Scan(
			&leg.Pool, &leg.Holder, &leg.Amount, &leg.PoolTotal, &leg.DistributedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan distribution row: %w", err)
		}

		legs = append(legs, &leg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distribution rows: %w", err)
	}

	return legs, nil
}
