// Package program defines the execution surface shared by the token and
// rewards processors: error kinds, accounts (storage regions), and the
// host capabilities injected into every operation.
package program

import (
	"errors"
	"fmt"
)

// Error kinds reported by processors. Every fallible step fails fast
// with one of these; retries belong to the caller.
var (
	// ErrInvalidInstructionData is returned for malformed or
	// undecodable instruction bytes and for stored records that fail
	// deserialization.
	ErrInvalidInstructionData = errors.New("invalid instruction data")

	// ErrIncorrectProgramID is returned when a storage region is not
	// owned by the expected program, or a declared program identity
	// does not match the one on record.
	ErrIncorrectProgramID = errors.New("incorrect program id")

	// ErrOverflow is returned on arithmetic overflow or underflow in
	// fee or share computation.
	ErrOverflow = errors.New("arithmetic overflow")

	// ErrNotEnoughAccounts is returned when an operation needs more
	// accounts than the caller supplied.
	ErrNotEnoughAccounts = errors.New("not enough accounts")

	// ErrInsufficientFunds is reported by the token backend when a
	// source balance cannot cover a movement.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Gate errors wrap ErrInvalidInstructionData so callers matching the
// coarse kind still succeed, while the specific cause stays visible.
var (
	// ErrDistributionGateClosed is returned when a distribution is
	// attempted before the minimum interval has elapsed.
	ErrDistributionGateClosed = fmt.Errorf("%w: distribution interval not elapsed", ErrInvalidInstructionData)

	// ErrLiquidityGateClosed is returned when a liquidity addition is
	// attempted before the minimum interval has elapsed.
	ErrLiquidityGateClosed = fmt.Errorf("%w: liquidity interval not elapsed", ErrInvalidInstructionData)
)
