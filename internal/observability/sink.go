package observability

import "spl-rewards-token/internal/domain"

// Sink feeds transfer metrics from applied-operation events, so the
// fee counters carry the fee each transfer actually charged under the
// mint's stored schedule. Distribution and liquidity counters are
// recorded at their call sites and stay out of this sink.
type Sink struct{}

func (Sink) TransferApplied(r domain.TransferRecord) {
	RecordTransfer(r.Fee)
}

func (Sink) HolderBalanceUpdated(domain.HolderBalanceRecord) {}

func (Sink) RewardsDistributed([]domain.DistributionRecord) {}

func (Sink) LiquidityAdded(domain.LiquidityRecord) {}

var _ domain.Sink = Sink{}
