package instruction

import (
	"encoding/binary"
	"fmt"

	"spl-rewards-token/internal/program"
	"spl-rewards-token/internal/token"
)

// Rewards program instruction tags.
const (
	TagInitializeRewardsPool      = 0
	TagSwapFeesForReferenceAsset  = 1
	TagDistributeRewards          = 2
	TagAddLiquidity               = 3
	TagRewardsUpdateHolderBalance = 4
)

// RewardsInstruction is one decoded rewards-program request.
type RewardsInstruction interface {
	Tag() byte
}

// InitializeRewardsPool creates the pool record. Wire: tag only.
type InitializeRewardsPool struct{}

func (InitializeRewardsPool) Tag() byte { return TagInitializeRewardsPool }

// SwapFeesForReferenceAsset converts collected fees into the reference
// asset via the external swap program. Wire: tag only.
type SwapFeesForReferenceAsset struct{}

func (SwapFeesForReferenceAsset) Tag() byte { return TagSwapFeesForReferenceAsset }

// DistributeRewards pays the pooled reference asset out to the reserve
// wallet and holders. Wire: tag only.
type DistributeRewards struct{}

func (DistributeRewards) Tag() byte { return TagDistributeRewards }

// AddLiquidity contributes reserve funds to the liquidity pool via the
// external DEX program. Wire: tag only.
type AddLiquidity struct{}

func (AddLiquidity) Tag() byte { return TagAddLiquidity }

// RewardsUpdateHolderBalance writes one holder-ledger entry. This is
// the instruction the token program forwards after a transfer.
// Wire: tag(1) + holder(32) + balance(8 LE).
type RewardsUpdateHolderBalance struct {
	Holder  token.PublicKey
	Balance uint64
}

func (RewardsUpdateHolderBalance) Tag() byte { return TagRewardsUpdateHolderBalance }

// UnpackRewards decodes a rewards-program instruction.
func UnpackRewards(data []byte) (RewardsInstruction, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty instruction", program.ErrInvalidInstructionData)
	}
	tag, rest := data[0], data[1:]

	switch tag {
	case TagInitializeRewardsPool:
		return InitializeRewardsPool{}, nil
	case TagSwapFeesForReferenceAsset:
		return SwapFeesForReferenceAsset{}, nil
	case TagDistributeRewards:
		return DistributeRewards{}, nil
	case TagAddLiquidity:
		return AddLiquidity{}, nil
	case TagRewardsUpdateHolderBalance:
		if len(rest) < token.PublicKeyLen {
			return nil, fmt.Errorf("%w: holder balance update needs holder key",
				program.ErrInvalidInstructionData)
		}
		holder, err := token.PublicKeyFromBytes(rest[:token.PublicKeyLen])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", program.ErrInvalidInstructionData, err)
		}
		balance, err := readUint64(rest[token.PublicKeyLen:])
		if err != nil {
			return nil, err
		}
		return RewardsUpdateHolderBalance{Holder: holder, Balance: balance}, nil
	default:
		return nil, fmt.Errorf("%w: unknown rewards instruction tag %d",
			program.ErrInvalidInstructionData, tag)
	}
}

// PackRewards encodes a rewards-program instruction.
func PackRewards(ix RewardsInstruction) []byte {
	switch v := ix.(type) {
	case RewardsUpdateHolderBalance:
		data := make([]byte, 0, 1+token.PublicKeyLen+8)
		data = append(data, TagRewardsUpdateHolderBalance)
		data = append(data, v.Holder[:]...)
		var balance [8]byte
		binary.LittleEndian.PutUint64(balance[:], v.Balance)
		return append(data, balance[:]...)
	default:
		return []byte{v.Tag()}
	}
}
