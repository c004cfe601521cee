// Package instruction encodes and decodes the binary wire format of
// the token and rewards programs. Layout is a single tag byte followed
// by fixed-width little-endian fields, no length prefixes, no padding.
package instruction

import (
	"encoding/binary"
	"fmt"

	"spl-rewards-token/internal/program"
	"spl-rewards-token/internal/token"
)

// Token program instruction tags.
const (
	TagInitializeMint      = 0
	TagMintTo              = 1
	TagTransfer            = 2
	TagUpdateHolderBalance = 3
)

// TokenInstruction is one decoded token-program request.
type TokenInstruction interface {
	// Tag returns the wire tag byte.
	Tag() byte
}

// InitializeMint creates the mint record and its fee schedule.
// Wire: tag(1) + decimals(1) + authority(32, all-zero means absent).
type InitializeMint struct {
	Decimals      uint8
	MintAuthority *token.PublicKey
}

func (InitializeMint) Tag() byte { return TagInitializeMint }

// MintTo mints new units to a destination.
// Wire: tag(1) + amount(8 LE).
type MintTo struct {
	Amount uint64
}

func (MintTo) Tag() byte { return TagMintTo }

// Transfer moves units with a direction-dependent fee.
// Wire: tag(1) + amount(8 LE) + is-buy(1, optional; missing means false).
type Transfer struct {
	Amount uint64
	IsBuy  bool
}

func (Transfer) Tag() byte { return TagTransfer }

// UpdateHolderBalance relays a holder-ledger update to the rewards
// program. Wire: tag(1) + holder(32) + balance(8 LE).
type UpdateHolderBalance struct {
	Holder  token.PublicKey
	Balance uint64
}

func (UpdateHolderBalance) Tag() byte { return TagUpdateHolderBalance }

// UnpackToken decodes a token-program instruction.
func UnpackToken(data []byte) (TokenInstruction, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty instruction", program.ErrInvalidInstructionData)
	}
	tag, rest := data[0], data[1:]

	switch tag {
	case TagInitializeMint:
		if len(rest) < 1+token.PublicKeyLen {
			return nil, fmt.Errorf("%w: initialize mint needs %d bytes, got %d",
				program.ErrInvalidInstructionData, 1+token.PublicKeyLen, len(rest))
		}
		ix := InitializeMint{Decimals: rest[0]}
		authority, err := token.PublicKeyFromBytes(rest[1 : 1+token.PublicKeyLen])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", program.ErrInvalidInstructionData, err)
		}
		if !authority.IsZero() {
			ix.MintAuthority = &authority
		}
		return ix, nil

	case TagMintTo:
		amount, err := readUint64(rest)
		if err != nil {
			return nil, err
		}
		return MintTo{Amount: amount}, nil

	case TagTransfer:
		amount, err := readUint64(rest)
		if err != nil {
			return nil, err
		}
		ix := Transfer{Amount: amount}
		if len(rest) > 8 {
			ix.IsBuy = rest[8] != 0
		}
		return ix, nil

	case TagUpdateHolderBalance:
		if len(rest) < token.PublicKeyLen {
			return nil, fmt.Errorf("%w: update holder balance needs holder key",
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
		return UpdateHolderBalance{Holder: holder, Balance: balance}, nil

	default:
		return nil, fmt.Errorf("%w: unknown token instruction tag %d",
			program.ErrInvalidInstructionData, tag)
	}
}

// PackToken encodes a token-program instruction. The inverse of
// UnpackToken for every valid instruction.
func PackToken(ix TokenInstruction) []byte {
	switch v := ix.(type) {
	case InitializeMint:
		data := make([]byte, 0, 2+token.PublicKeyLen)
		data = append(data, TagInitializeMint, v.Decimals)
		var authority token.PublicKey
		if v.MintAuthority != nil {
			authority = *v.MintAuthority
		}
		return append(data, authority[:]...)

	case MintTo:
		data := make([]byte, 9)
		data[0] = TagMintTo
		binary.LittleEndian.PutUint64(data[1:], v.Amount)
		return data

	case Transfer:
		data := make([]byte, 10)
		data[0] = TagTransfer
		binary.LittleEndian.PutUint64(data[1:9], v.Amount)
		if v.IsBuy {
			data[9] = 1
		}
		return data

	case UpdateHolderBalance:
		data := make([]byte, 0, 1+token.PublicKeyLen+8)
		data = append(data, TagUpdateHolderBalance)
		data = append(data, v.Holder[:]...)
		var amount [8]byte
		binary.LittleEndian.PutUint64(amount[:], v.Balance)
		return append(data, amount[:]...)

	default:
		return nil
	}
}

// readUint64 slices an exact little-endian uint64 off the front of data.
func readUint64(data []byte) (uint64, error) {
	if len(data) < 8 {
		return 0, fmt.Errorf("%w: need 8 bytes for amount, got %d",
			program.ErrInvalidInstructionData, len(data))
	}
	return binary.LittleEndian.Uint64(data[:8]), nil
}
