// Package host provides an in-memory stand-in for the execution host:
// account registry, token balance book, program registry, settable
// clock, and atomic instruction execution. The core processors never
// depend on it; it exists so they can run without a real host.
package host

import (
	"context"
	"fmt"
	"sync"

	"spl-rewards-token/internal/program"
	"spl-rewards-token/internal/token"
)

// ManualClock is a settable clock for deterministic runs.
type ManualClock struct {
	mu  sync.Mutex
	now int64
}

// NewManualClock creates a clock starting at the given unix time.
func NewManualClock(now int64) *ManualClock {
	return &ManualClock{now: now}
}

// Now returns the current time in unix seconds.
func (c *ManualClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to the given unix time.
func (c *ManualClock) Set(now int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Advance moves the clock forward by d seconds.
func (c *ManualClock) Advance(d int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

// Runtime owns accounts, balances, and registered programs, and
// executes instructions with all-or-nothing semantics: if any step of
// an invocation fails, every account and balance mutation it made is
// rolled back. Invocations are serialized.
type Runtime struct {
	// execMu serializes top-level executions and WithAccount access.
	// Processors mutate account bytes while an instruction is in
	// flight, so nothing else may touch account data concurrently.
	execMu sync.Mutex

	mu       sync.Mutex
	accounts map[token.PublicKey]*program.Account
	balances map[token.PublicKey]uint64
	programs map[token.PublicKey]program.Processor
	clock    *ManualClock
}

// NewRuntime creates an empty runtime with the given clock.
func NewRuntime(clock *ManualClock) *Runtime {
	return &Runtime{
		accounts: make(map[token.PublicKey]*program.Account),
		balances: make(map[token.PublicKey]uint64),
		programs: make(map[token.PublicKey]program.Processor),
		clock:    clock,
	}
}

// Clock returns the runtime's clock.
func (r *Runtime) Clock() *ManualClock { return r.clock }

// CreateAccount allocates a zeroed storage region. The allocator is
// responsible for sizing the region for whatever records it will hold.
func (r *Runtime) CreateAccount(key, owner token.PublicKey, size int) *program.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := program.NewAccount(key, owner, size)
	r.accounts[key] = a
	return a
}

// Account returns a registered account, or nil.
func (r *Runtime) Account(key token.PublicKey) *program.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[key]
}

// RegisterProgram makes a processor invokable by its program id.
func (r *Runtime) RegisterProgram(p program.Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs[p.ID()] = p
}

// SetBalance seeds the balance book for an account key.
func (r *Runtime) SetBalance(key token.PublicKey, amount uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[key] = amount
}

// Balance returns the tracked balance for an account key.
func (r *Runtime) Balance(key token.PublicKey) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances[key]
}

// Transfer implements program.TokenBackend.
func (r *Runtime) Transfer(_ context.Context, _, source, destination, _ token.PublicKey, amount uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.balances[source] < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", program.ErrInsufficientFunds, source, r.balances[source], amount)
	}
	r.balances[source] -= amount
	r.balances[destination] += amount
	return nil
}

// MintTo implements program.TokenBackend.
func (r *Runtime) MintTo(_ context.Context, _, _, destination, _ token.PublicKey, amount uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := r.balances[destination] + amount
	if sum < r.balances[destination] {
		return program.ErrOverflow
	}
	r.balances[destination] = sum
	return nil
}

// Invoke implements program.Invoker: a nested cross-program call. It
// shares the fate of the enclosing Execute; no snapshot is taken here.
func (r *Runtime) Invoke(ctx context.Context, ix program.Instruction, accounts []*program.Account) error {
	r.mu.Lock()
	target, ok := r.programs[ix.ProgramID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: no program %s", program.ErrIncorrectProgramID, ix.ProgramID)
	}
	return target.Process(ctx, accounts, ix.Data)
}

// WithAccount runs fn against a registered account under the
// execution lock, for host-level reads and writes of account data
// that must not interleave with an in-flight instruction.
func (r *Runtime) WithAccount(key token.PublicKey, fn func(*program.Account) error) error {
	r.execMu.Lock()
	defer r.execMu.Unlock()

	r.mu.Lock()
	a, ok := r.accounts[key]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("no account %s", key)
	}
	return fn(a)
}

// Execute runs one top-level instruction atomically: the execution
// lock is held for the whole dispatch, and account data and the
// balance book are snapshotted first and restored on any failure, so
// no partial effects are observable.
func (r *Runtime) Execute(ctx context.Context, ix program.Instruction) error {
	r.execMu.Lock()
	defer r.execMu.Unlock()

	accounts := make([]*program.Account, 0, len(ix.Accounts))
	r.mu.Lock()
	for _, key := range ix.Accounts {
		a, ok := r.accounts[key]
		if !ok {
			// Program and sysvar placeholders need no backing region.
			a = program.NewAccount(key, token.PublicKey{}, 0)
			r.accounts[key] = a
		}
		accounts = append(accounts, a)
	}

	dataSnapshot := make(map[token.PublicKey][]byte, len(r.accounts))
	for key, a := range r.accounts {
		dataSnapshot[key] = append([]byte(nil), a.Data...)
	}
	balanceSnapshot := make(map[token.PublicKey]uint64, len(r.balances))
	for key, amount := range r.balances {
		balanceSnapshot[key] = amount
	}
	r.mu.Unlock()

	if err := r.Invoke(ctx, ix, accounts); err != nil {
		r.mu.Lock()
		for key, data := range dataSnapshot {
			copy(r.accounts[key].Data, data)
		}
		r.balances = balanceSnapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

// NoopProgram is a registered placeholder for external collaborators
// (swap and DEX programs) whose internals are out of scope.
type NoopProgram struct {
	id token.PublicKey
}

// NewNoopProgram creates a placeholder program with the given id.
func NewNoopProgram(id token.PublicKey) *NoopProgram {
	return &NoopProgram{id: id}
}

// ID returns the program identity.
func (n *NoopProgram) ID() token.PublicKey { return n.id }

// Process accepts any instruction and does nothing.
func (n *NoopProgram) Process(context.Context, []*program.Account, []byte) error {
	return nil
}

var (
	_ program.TokenBackend = (*Runtime)(nil)
	_ program.Invoker      = (*Runtime)(nil)
	_ program.Clock        = (*ManualClock)(nil)
	_ program.Processor    = (*NoopProgram)(nil)
)
