package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"spl-rewards-token/internal/domain"
	"spl-rewards-token/internal/storage"
)

// TransferStore implements storage.TransferStore using PostgreSQL.
type TransferStore struct {
	pool *Pool
}

// NewTransferStore creates a new TransferStore.
func NewTransferStore(pool *Pool) *TransferStore {
	return &TransferStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransferStore = (*TransferStore)(nil)

// Insert adds a new transfer. Returns ErrDuplicateKey if transfer_id exists.
func (s *TransferStore) Insert(ctx context.Context, t *domain.TransferRecord) error {
	query := `
		INSERT INTO transfers (
			transfer_id, mint, source, destination, authority, amount, fee, side, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		t.TransferID,
		t.Mint,
		t.Source,
		t.Destination,
		t.Authority,
		int64(t.Amount),
		int64(t.Fee),
		t.Side,
		t.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// GetByID retrieves a transfer by its ID. Returns ErrNotFound if not exists.
func (s *TransferStore) GetByID(ctx context.Context, transferID string) (*domain.TransferRecord, error) {
	query := `
		SELECT transfer_id, mint, source, destination, authority, amount, fee, side, timestamp
		FROM transfers
		WHERE transfer_id = $1
	`

	row := s.pool.QueryRow(ctx, query, transferID)

	var t domain.TransferRecord
	var amount, fee int64
	err := row.Scan(
		&t.TransferID,
		&t.Mint,
		&t.Source,
		&t.Destination,
		&t.Authority,
		&amount,
		&fee,
		&t.Side,
		&t.Timestamp,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get transfer by id: %w", err)
	}
	t.Amount = uint64(amount)
	t.Fee = uint64(fee)

	return &t, nil
}

// GetByMint retrieves all transfers for a mint, ordered by timestamp ASC.
func (s *TransferStore) GetByMint(ctx context.Context, mint string) ([]*domain.TransferRecord, error) {
	query := `
		SELECT transfer_id, mint, source, destination, authority, amount, fee, side, timestamp
		FROM transfers
		WHERE mint = $1
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("get transfers by mint: %w", err)
	}
	defer rows.Close()

	return scanTransfers(rows)
}

// GetByTimeRange retrieves transfers for a mint within [start, end] (inclusive).
func (s *TransferStore) GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.TransferRecord, error) {
	query := `
		SELECT transfer_id, mint, source, destination, authority, amount, fee, side, timestamp
		FROM transfers
		WHERE mint = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, mint, start, end)
	if err != nil {
		return nil, fmt.Errorf("get transfers by time range: %w", err)
	}
	defer rows.Close()

	return scanTransfers(rows)
}

// scanTransfers scans multiple rows into a slice of TransferRecord.
func scanTransfers(rows pgx.Rows) ([]*domain.TransferRecord, error) {
	var transfers []*domain.TransferRecord

	for rows.Next() {
		var t domain.TransferRecord
		var amount, fee int64

		err := rows.Scan(
			&t.TransferID,
			&t.Mint,
			&t.Source,
			&t.Destination,
			&t.Authority,
			&amount,
			&fee,
			&t.Side,
			&t.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transfer row: %w", err)
		}
		t.Amount = uint64(amount)
		t.Fee = uint64(fee)

		transfers = append(transfers, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer rows: %w", err)
	}

	return transfers, nil
}
