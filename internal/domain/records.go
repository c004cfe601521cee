// Package domain holds the off-chain records the engine emits for each
// applied operation. Identities are base58 strings here; the canonical
// on-region state lives in the processors' account buffers.
package domain

// Transfer side constants.
const (
	TransferSideBuy  = "buy"
	TransferSideSell = "sell"
)

// TransferRecord captures one applied fee-aware transfer.
type TransferRecord struct {
	TransferID  string // deterministic SHA256 key
	Mint        string
	Source      string
	Destination string
	Authority   string
	Amount      uint64 // gross amount requested
	Fee         uint64 // units routed to the fee collector
	Side        string // "buy" | "sell"
	Timestamp   int64  // unix seconds at application time
}

// HolderBalanceRecord is one holder-ledger entry snapshot.
type HolderBalanceRecord struct {
	Holder    string
	Balance   uint64
	UpdatedAt int64 // unix seconds
}

// DistributionRecord is one leg of a rewards distribution. The reserve
// leg carries an empty Holder.
type DistributionRecord struct {
	Pool          string
	Holder        string // empty for the reserve-wallet leg
	Amount        uint64
	PoolTotal     uint64 // pool balance the shares were computed from
	DistributedAt int64  // unix seconds
}

// LiquidityRecord captures one liquidity contribution request.
type LiquidityRecord struct {
	Pool          string
	ReserveWallet string
	RequestedAt   int64 // unix seconds
}
