// Package rewards implements the rewards pool state machine: fee
// swap-in, time-gated pro-rata distribution, liquidity contribution,
// and the holder balance ledger the distribution reads.
package rewards

import (
	"encoding/binary"
	"fmt"
	"sort"

	"spl-rewards-token/internal/token"
)

// Pool timing and sizing constants.
const (
	// DistributionInterval is the minimum elapsed time between
	// distributions, in seconds.
	DistributionInterval = 1800

	// LiquidityInterval is the minimum elapsed time between liquidity
	// additions, in seconds.
	LiquidityInterval = 1800

	// DefaultLiquidityThreshold is the initial liquidity threshold:
	// 0.1 units of an 8-decimal reference asset.
	DefaultLiquidityThreshold = 100_000_000
)

const poolLayoutVersion = 1

// PoolHeaderLen = version(1) + last distribution time(8) +
// total balance(8) + reserve wallet(32) + last liquidity time(8) +
// threshold(8) + holder count(4).
const PoolHeaderLen = 1 + 8 + 8 + 32 + 8 + 8 + 4

// holderEntryLen = holder key(32) + balance(8).
const holderEntryLen = token.PublicKeyLen + 8

// Pool is the rewards pool record. One instance per deployment.
type Pool struct {
	LastDistributionTime       int64
	TotalReferenceAssetBalance uint64
	TokenHolders               map[token.PublicKey]uint64
	ReserveWallet              token.PublicKey
	LastLiquidityAddTime       int64
	LiquidityThreshold         uint64
}

// NewPool returns a freshly initialized pool for the given reserve
// wallet: zeroed counters and the default liquidity threshold.
func NewPool(reserveWallet token.PublicKey) *Pool {
	return &Pool{
		TokenHolders:       make(map[token.PublicKey]uint64),
		ReserveWallet:      reserveWallet,
		LiquidityThreshold: DefaultLiquidityThreshold,
	}
}

// EncodedLen returns the serialized size of the pool record.
func (p *Pool) EncodedLen() int {
	return PoolHeaderLen + len(p.TokenHolders)*holderEntryLen
}

// HolderBalance is one ledger entry.
type HolderBalance struct {
	Holder  token.PublicKey
	Balance uint64
}

// SortedHolders returns the ledger entries in ascending key order.
// This is the iteration order of serialization and distribution, so
// positional holder-account lists stay stable across runs.
func (p *Pool) SortedHolders() []HolderBalance {
	entries := make([]HolderBalance, 0, len(p.TokenHolders))
	for holder, balance := range p.TokenHolders {
		entries = append(entries, HolderBalance{Holder: holder, Balance: balance})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Holder.Less(entries[j].Holder)
	})
	return entries
}

// Encode writes the pool record into dst, which must hold EncodedLen()
// bytes. Holder entries are written sorted by key.
func (p *Pool) Encode(dst []byte) error {
	need := p.EncodedLen()
	if len(dst) < need {
		return fmt.Errorf("pool region too small: need %d bytes, have %d", need, len(dst))
	}

	dst[0] = poolLayoutVersion
	binary.LittleEndian.PutUint64(dst[1:9], uint64(p.LastDistributionTime))
	binary.LittleEndian.PutUint64(dst[9:17], p.TotalReferenceAssetBalance)
	copy(dst[17:49], p.ReserveWallet[:])
	binary.LittleEndian.PutUint64(dst[49:57], uint64(p.LastLiquidityAddTime))
	binary.LittleEndian.PutUint64(dst[57:65], p.LiquidityThreshold)
	binary.LittleEndian.PutUint32(dst[65:69], uint32(len(p.TokenHolders)))

	offset := PoolHeaderLen
	for _, entry := range p.SortedHolders() {
		copy(dst[offset:offset+token.PublicKeyLen], entry.Holder[:])
		binary.LittleEndian.PutUint64(dst[offset+token.PublicKeyLen:offset+holderEntryLen], entry.Balance)
		offset += holderEntryLen
	}
	return nil
}

// DecodePool reads a pool record from the start of src.
func DecodePool(src []byte) (*Pool, error) {
	if len(src) < PoolHeaderLen {
		return nil, fmt.Errorf("pool data too short: need %d bytes, have %d", PoolHeaderLen, len(src))
	}
	if src[0] != poolLayoutVersion {
		return nil, fmt.Errorf("unsupported pool layout version %d", src[0])
	}

	p := &Pool{
		LastDistributionTime:       int64(binary.LittleEndian.Uint64(src[1:9])),
		TotalReferenceAssetBalance: binary.LittleEndian.Uint64(src[9:17]),
		LastLiquidityAddTime:       int64(binary.LittleEndian.Uint64(src[49:57])),
		LiquidityThreshold:         binary.LittleEndian.Uint64(src[57:65]),
		TokenHolders:               make(map[token.PublicKey]uint64),
	}
	copy(p.ReserveWallet[:], src[17:49])

	count := binary.LittleEndian.Uint32(src[65:69])
	need := PoolHeaderLen + int(count)*holderEntryLen
	if len(src) < need {
		return nil, fmt.Errorf("pool data too short for %d holders: need %d bytes, have %d", count, need, len(src))
	}

	offset := PoolHeaderLen
	for i := uint32(0); i < count; i++ {
		holder, err := token.PublicKeyFromBytes(src[offset : offset+token.PublicKeyLen])
		if err != nil {
			return nil, fmt.Errorf("holder %d: %w", i, err)
		}
		p.TokenHolders[holder] = binary.LittleEndian.Uint64(src[offset+token.PublicKeyLen : offset+holderEntryLen])
		offset += holderEntryLen
	}
	return p, nil
}
