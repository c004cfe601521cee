package domain

// Sink consumes applied-operation events. Implementations must not
// block the caller for long and must not fail the operation; anything
// fallible (storage, network) handles its own errors.
type Sink interface {
	TransferApplied(r TransferRecord)
	HolderBalanceUpdated(r HolderBalanceRecord)
	RewardsDistributed(legs []DistributionRecord)
	LiquidityAdded(r LiquidityRecord)
}

// MultiSink fans events out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) TransferApplied(r TransferRecord) {
	for _, s := range m {
		s.TransferApplied(r)
	}
}

func (m MultiSink) HolderBalanceUpdated(r HolderBalanceRecord) {
	for _, s := range m {
		s.HolderBalanceUpdated(r)
	}
}

func (m MultiSink) RewardsDistributed(legs []DistributionRecord) {
	for _, s := range m {
		s.RewardsDistributed(legs)
	}
}

func (m MultiSink) LiquidityAdded(r LiquidityRecord) {
	for _, s := range m {
		s.LiquidityAdded(r)
	}
}

var _ Sink = (MultiSink)(nil)
