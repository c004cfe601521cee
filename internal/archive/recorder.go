// Package archive persists applied-operation events to the configured
// stores. The recorder sits behind the engine as a domain.Sink: it must
// not fail the operation that produced the event, so storage errors are
// logged and counted, never propagated.
package archive

import (
	"context"
	"errors"
	"log"
	"time"

	"spl-rewards-token/internal/domain"
	"spl-rewards-token/internal/idhash"
	"spl-rewards-token/internal/observability"
	"spl-rewards-token/internal/storage"
)

// Recorder writes engine events to storage. Any store may be nil, in
// which case that record type is not archived.
type Recorder struct {
	transfers     storage.TransferStore
	balances      storage.HolderBalanceStore
	distributions storage.DistributionStore
	liquidity     storage.LiquidityEventStore
	timeout       time.Duration
}

// Options for creating a Recorder.
type Options struct {
	Transfers     storage.TransferStore
	Balances      storage.HolderBalanceStore
	Distributions storage.DistributionStore
	Liquidity     storage.LiquidityEventStore

	// WriteTimeout bounds each storage write. Defaults to 5s.
	WriteTimeout time.Duration
}

// NewRecorder creates a Recorder.
func NewRecorder(opts Options) *Recorder {
	timeout := opts.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Recorder{
		transfers:     opts.Transfers,
		balances:      opts.Balances,
		distributions: opts.Distributions,
		liquidity:     opts.Liquidity,
		timeout:       timeout,
	}
}

// TransferApplied persists one transfer record, assigning its
// deterministic ID. Replayed events dedupe on that ID.
func (r *Recorder) TransferApplied(rec domain.TransferRecord) {
	if r.transfers == nil {
		return
	}
	rec.TransferID = idhash.ComputeTransferID(rec.Mint, rec.Source, rec.Destination, rec.Amount, rec.Timestamp)

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	err := r.transfers.Insert(ctx, &rec)
	if errors.Is(err, storage.ErrDuplicateKey) {
		err = nil // replay
	}
	if err != nil {
		log.Printf("archive: insert transfer %s: %v", rec.TransferID, err)
	}
	observability.RecordArchive("transfer", err)
}

// HolderBalanceUpdated persists the holder's latest snapshot.
func (r *Recorder) HolderBalanceUpdated(rec domain.HolderBalanceRecord) {
	if r.balances == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	err := r.balances.Upsert(ctx, &rec)
	if err != nil {
		log.Printf("archive: upsert holder balance %s: %v", rec.Holder, err)
	}
	observability.RecordArchive("holder_balance", err)
}

// RewardsDistributed persists all legs of one distribution.
func (r *Recorder) RewardsDistributed(legs []domain.DistributionRecord) {
	if r.distributions == nil || len(legs) == 0 {
		return
	}

	records := make([]*domain.DistributionRecord, len(legs))
	var units uint64
	for i := range legs {
		records[i] = &legs[i]
		units += legs[i].Amount
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	err := r.distributions.InsertBulk(ctx, records)
	if err != nil {
		log.Printf("archive: insert %d distribution legs: %v", len(legs), err)
	}
	observability.RecordArchive("distribution", err)
	if err == nil {
		observability.RecordDistribution(len(legs), units)
	}
}

// LiquidityAdded persists one liquidity request.
func (r *Recorder) LiquidityAdded(rec domain.LiquidityRecord) {
	if r.liquidity == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	err := r.liquidity.Insert(ctx, &rec)
	if errors.Is(err, storage.ErrDuplicateKey) {
		err = nil // replay
	}
	if err != nil {
		log.Printf("archive: insert liquidity event for %s: %v", rec.Pool, err)
	}
	observability.RecordArchive("liquidity", err)
	if err == nil {
		observability.RecordLiquidityRequest()
	}
}

var _ domain.Sink = (*Recorder)(nil)
