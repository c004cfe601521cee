package program

import (
	"context"

	"spl-rewards-token/internal/token"
)

// Instruction is a request routed to a program: opaque data bytes plus
// the keys of the accounts the target operation should receive.
type Instruction struct {
	ProgramID token.PublicKey
	Accounts  []token.PublicKey
	Data      []byte
}

// TokenBackend is the external token-movement primitive. It is the
// only component that actually debits and credits balances; processors
// construct requests and check the reported failure.
type TokenBackend interface {
	// Transfer moves amount units from source to destination under the
	// given authority.
	Transfer(ctx context.Context, programID, source, destination, authority token.PublicKey, amount uint64) error

	// MintTo creates amount new units of mint in destination under the
	// mint authority.
	MintTo(ctx context.Context, programID, mint, destination, authority token.PublicKey, amount uint64) error
}

// Invoker dispatches a cross-program instruction. The host guarantees
// the invoked operation is atomic with the enclosing invocation.
type Invoker interface {
	Invoke(ctx context.Context, ix Instruction, accounts []*Account) error
}

// Clock supplies wall-clock time for the elapsed-time gates. Injected
// so processors stay deterministic under test.
type Clock interface {
	// Now returns the current unix time in seconds.
	Now() int64
}

// Processor executes one instruction against caller-supplied accounts.
// Both the token program and the rewards program implement this.
type Processor interface {
	ID() token.PublicKey
	Process(ctx context.Context, accounts []*Account, data []byte) error
}
