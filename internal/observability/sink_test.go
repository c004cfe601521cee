package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"spl-rewards-token/internal/domain"
)

func TestSinkTransferAppliedCountsActualFee(t *testing.T) {
	transfersBefore := testutil.ToFloat64(DefaultMetrics.TransfersApplied)
	feesBefore := testutil.ToFloat64(DefaultMetrics.FeesCollected)
	unitsBefore := testutil.ToFloat64(DefaultMetrics.FeeUnitsCollected)

	// The record carries the fee the transfer path charged; the sink
	// must count that value, not one re-derived from default rates.
	Sink{}.TransferApplied(domain.TransferRecord{
		TransferID: "t-1",
		Amount:     100_000,
		Fee:        1_234,
		Side:       domain.TransferSideSell,
	})

	if got := testutil.ToFloat64(DefaultMetrics.TransfersApplied) - transfersBefore; got != 1 {
		t.Errorf("transfers applied delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(DefaultMetrics.FeesCollected) - feesBefore; got != 1 {
		t.Errorf("fees collected delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(DefaultMetrics.FeeUnitsCollected) - unitsBefore; got != 1_234 {
		t.Errorf("fee units delta = %v, want 1234", got)
	}
}

func TestSinkZeroFeeTransfer(t *testing.T) {
	transfersBefore := testutil.ToFloat64(DefaultMetrics.TransfersApplied)
	feesBefore := testutil.ToFloat64(DefaultMetrics.FeesCollected)

	Sink{}.TransferApplied(domain.TransferRecord{TransferID: "t-2", Amount: 1})

	if got := testutil.ToFloat64(DefaultMetrics.TransfersApplied) - transfersBefore; got != 1 {
		t.Errorf("transfers applied delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(DefaultMetrics.FeesCollected) - feesBefore; got != 0 {
		t.Errorf("fees collected delta = %v, want 0", got)
	}
}

func TestSinkIgnoresNonTransferEvents(t *testing.T) {
	distBefore := testutil.ToFloat64(DefaultMetrics.DistributionsCompleted)
	liqBefore := testutil.ToFloat64(DefaultMetrics.LiquidityRequests)

	var s Sink
	s.HolderBalanceUpdated(domain.HolderBalanceRecord{Holder: "h", Balance: 10})
	s.RewardsDistributed([]domain.DistributionRecord{{Pool: "p", Amount: 5}})
	s.LiquidityAdded(domain.LiquidityRecord{Pool: "p"})

	if got := testutil.ToFloat64(DefaultMetrics.DistributionsCompleted) - distBefore; got != 0 {
		t.Errorf("distributions delta = %v, want 0", got)
	}
	if got := testutil.ToFloat64(DefaultMetrics.LiquidityRequests) - liqBefore; got != 0 {
		t.Errorf("liquidity requests delta = %v, want 0", got)
	}
}
