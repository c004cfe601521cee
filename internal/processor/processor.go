// Package processor implements the fee-aware token program: mint
// initialization, minting, transfers with direction-dependent fees,
// and the holder-balance relay to the rewards program.
package processor

import (
	"context"
	"fmt"

	"spl-rewards-token/internal/arith"
	"spl-rewards-token/internal/domain"
	"spl-rewards-token/internal/instruction"
	"spl-rewards-token/internal/program"
	"spl-rewards-token/internal/token"
)

// Processor executes token-program instructions.
type Processor struct {
	id      token.PublicKey
	backend program.TokenBackend
	invoker program.Invoker
	clock   program.Clock
	sink    domain.Sink
}

// Options for creating a Processor.
type Options struct {
	// ProgramID is this program's identity; storage regions it writes
	// must be owned by it.
	ProgramID token.PublicKey

	// Backend is the external token-movement primitive.
	Backend program.TokenBackend

	// Invoker dispatches cross-program instructions.
	Invoker program.Invoker

	// Clock supplies timestamps for emitted records.
	Clock program.Clock

	// Sink receives applied-operation events. Optional.
	Sink domain.Sink
}

// New creates a token-program processor.
func New(opts Options) *Processor {
	return &Processor{
		id:      opts.ProgramID,
		backend: opts.Backend,
		invoker: opts.Invoker,
		clock:   opts.Clock,
		sink:    opts.Sink,
	}
}

// ID returns the program identity.
func (p *Processor) ID() token.PublicKey { return p.id }

// Process decodes and dispatches one instruction.
func (p *Processor) Process(ctx context.Context, accounts []*program.Account, data []byte) error {
	ix, err := instruction.UnpackToken(data)
	if err != nil {
		return err
	}

	switch v := ix.(type) {
	case instruction.InitializeMint:
		return p.initializeMint(accounts, v)
	case instruction.MintTo:
		return p.mintTo(ctx, accounts, v)
	case instruction.Transfer:
		return p.transfer(ctx, accounts, v)
	case instruction.UpdateHolderBalance:
		return p.updateHolderBalance(ctx, accounts, v)
	default:
		return fmt.Errorf("%w: unhandled instruction %T", program.ErrInvalidInstructionData, ix)
	}
}

// initializeMint writes the mint record and its fee schedule into the
// mint storage region.
//
// Accounts: mint region, rent placeholder (unused, host compatibility),
// fee collector, rewards program.
func (p *Processor) initializeMint(accounts []*program.Account, ix instruction.InitializeMint) error {
	it := program.NewAccountIter(accounts)
	mintAccount, err := it.Next()
	if err != nil {
		return err
	}
	if _, err := it.Next(); err != nil { // rent placeholder
		return err
	}
	feeCollector, err := it.Next()
	if err != nil {
		return err
	}
	rewardsProgram, err := it.Next()
	if err != nil {
		return err
	}

	if mintAccount.Owner != p.id {
		return fmt.Errorf("%w: mint region owned by %s", program.ErrIncorrectProgramID, mintAccount.Owner)
	}

	mint := &token.Mint{
		Decimals:      ix.Decimals,
		MintAuthority: ix.MintAuthority,
		IsInitialized: true,
	}
	if len(mintAccount.Data) < token.MintLen+token.FeeScheduleLen {
		return fmt.Errorf("%w: mint region too small", program.ErrInvalidInstructionData)
	}
	if err := mint.Encode(mintAccount.Data); err != nil {
		return fmt.Errorf("%w: %v", program.ErrInvalidInstructionData, err)
	}

	schedule := &token.FeeSchedule{
		BuyFeeBps:      token.DefaultBuyFeeBps,
		SellFeeBps:     token.DefaultSellFeeBps,
		FeeCollector:   feeCollector.Key,
		RewardsProgram: rewardsProgram.Key,
	}
	if err := schedule.Encode(mintAccount.Data[token.MintLen:]); err != nil {
		return fmt.Errorf("%w: %v", program.ErrInvalidInstructionData, err)
	}
	return nil
}

// mintTo issues one external mint call.
//
// Accounts: mint region, destination, authority, token program.
func (p *Processor) mintTo(ctx context.Context, accounts []*program.Account, ix instruction.MintTo) error {
	it := program.NewAccountIter(accounts)
	mintAccount, err := it.Next()
	if err != nil {
		return err
	}
	destination, err := it.Next()
	if err != nil {
		return err
	}
	authority, err := it.Next()
	if err != nil {
		return err
	}
	tokenProgram, err := it.Next()
	if err != nil {
		return err
	}

	if mintAccount.Owner != p.id {
		return fmt.Errorf("%w: mint region owned by %s", program.ErrIncorrectProgramID, mintAccount.Owner)
	}

	return p.backend.MintTo(ctx, tokenProgram.Key, mintAccount.Key, destination.Key, authority.Key, ix.Amount)
}

// transfer applies the direction-dependent fee and issues the three
// dependent movements: fee leg, principal leg, holder notification.
//
// Accounts: source, destination, authority, token program, mint region,
// fee collector, rewards program, rewards pool region.
func (p *Processor) transfer(ctx context.Context, accounts []*program.Account, ix instruction.Transfer) error {
	it := program.NewAccountIter(accounts)
	source, err := it.Next()
	if err != nil {
		return err
	}
	destination, err := it.Next()
	if err != nil {
		return err
	}
	authority, err := it.Next()
	if err != nil {
		return err
	}
	tokenProgram, err := it.Next()
	if err != nil {
		return err
	}
	mintAccount, err := it.Next()
	if err != nil {
		return err
	}

	schedule, err := readFeeSchedule(mintAccount)
	if err != nil {
		return err
	}

	fee, remaining, err := ComputeFee(ix.Amount, schedule.RateFor(ix.IsBuy))
	if err != nil {
		return err
	}

	feeCollector, err := it.Next()
	if err != nil {
		return err
	}
	if feeCollector.Key != schedule.FeeCollector {
		return fmt.Errorf("%w: fee collector %s not on schedule", program.ErrIncorrectProgramID, feeCollector.Key)
	}

	if err := p.backend.Transfer(ctx, tokenProgram.Key, source.Key, feeCollector.Key, authority.Key, fee); err != nil {
		return fmt.Errorf("fee leg: %w", err)
	}
	if err := p.backend.Transfer(ctx, tokenProgram.Key, source.Key, destination.Key, authority.Key, remaining); err != nil {
		return fmt.Errorf("principal leg: %w", err)
	}

	// Notify the rewards program of the destination's received amount
	// through this program's own relay, as a nested invocation.
	rewardsProgram, err := it.Next()
	if err != nil {
		return err
	}
	poolAccount, err := it.Next()
	if err != nil {
		return err
	}

	notify := program.Instruction{
		ProgramID: p.id,
		Accounts:  []token.PublicKey{mintAccount.Key, rewardsProgram.Key, poolAccount.Key},
		Data: instruction.PackToken(instruction.UpdateHolderBalance{
			Holder:  destination.Key,
			Balance: remaining,
		}),
	}
	if err := p.invoker.Invoke(ctx, notify, []*program.Account{mintAccount, rewardsProgram, poolAccount}); err != nil {
		return fmt.Errorf("holder balance notification: %w", err)
	}

	if p.sink != nil {
		side := domain.TransferSideSell
		if ix.IsBuy {
			side = domain.TransferSideBuy
		}
		p.sink.TransferApplied(domain.TransferRecord{
			Mint:        mintAccount.Key.String(),
			Source:      source.Key.String(),
			Destination: destination.Key.String(),
			Authority:   authority.Key.String(),
			Amount:      ix.Amount,
			Fee:         fee,
			Side:        side,
			Timestamp:   p.clock.Now(),
		})
	}
	return nil
}

// updateHolderBalance relays a holder-ledger write to the rewards
// program after verifying the declared program identity against the
// fee schedule. The rewards program is the sole writer of the ledger.
//
// Accounts: mint region, rewards program, rewards pool region.
func (p *Processor) updateHolderBalance(ctx context.Context, accounts []*program.Account, ix instruction.UpdateHolderBalance) error {
	it := program.NewAccountIter(accounts)
	mintAccount, err := it.Next()
	if err != nil {
		return err
	}
	rewardsProgram, err := it.Next()
	if err != nil {
		return err
	}
	poolAccount, err := it.Next()
	if err != nil {
		return err
	}

	schedule, err := readFeeSchedule(mintAccount)
	if err != nil {
		return err
	}
	if rewardsProgram.Key != schedule.RewardsProgram {
		return fmt.Errorf("%w: rewards program %s not on schedule", program.ErrIncorrectProgramID, rewardsProgram.Key)
	}

	forward := program.Instruction{
		ProgramID: rewardsProgram.Key,
		Accounts:  []token.PublicKey{poolAccount.Key},
		Data: instruction.PackRewards(instruction.RewardsUpdateHolderBalance{
			Holder:  ix.Holder,
			Balance: ix.Balance,
		}),
	}
	return p.invoker.Invoke(ctx, forward, []*program.Account{poolAccount})
}

// readFeeSchedule decodes the fee schedule stored after the mint
// record in the mint's storage region.
func readFeeSchedule(mintAccount *program.Account) (*token.FeeSchedule, error) {
	if len(mintAccount.Data) < token.MintLen+token.FeeScheduleLen {
		return nil, fmt.Errorf("%w: mint region too small for fee schedule", program.ErrInvalidInstructionData)
	}
	if _, err := token.DecodeMint(mintAccount.Data); err != nil {
		return nil, fmt.Errorf("%w: %v", program.ErrInvalidInstructionData, err)
	}
	schedule, err := token.DecodeFeeSchedule(mintAccount.Data[token.MintLen:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", program.ErrInvalidInstructionData, err)
	}
	return schedule, nil
}

// ComputeFee splits amount into fee and remainder for the given rate.
// The rate must not exceed 100%; the subtraction is checked explicitly
// rather than assumed safe.
func ComputeFee(amount uint64, rateBps uint16) (fee, remaining uint64, err error) {
	if rateBps > token.MaxBasisPoints {
		return 0, 0, fmt.Errorf("%w: fee rate %d exceeds %d bps", program.ErrOverflow, rateBps, token.MaxBasisPoints)
	}
	fee, err = arith.MulDiv(amount, uint64(rateBps), token.MaxBasisPoints)
	if err != nil {
		return 0, 0, err
	}
	remaining, err = arith.CheckedSub(amount, fee)
	if err != nil {
		return 0, 0, err
	}
	return fee, remaining, nil
}

var _ program.Processor = (*Processor)(nil)
