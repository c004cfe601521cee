package rewards

import (
	"context"
	"fmt"

	"spl-rewards-token/internal/arith"
	"spl-rewards-token/internal/domain"
	"spl-rewards-token/internal/instruction"
	"spl-rewards-token/internal/program"
	"spl-rewards-token/internal/token"
)

// BalanceUpdatePolicy selects what a holder balance update's numeric
// argument means. The upstream transfer notification carries the
// just-transferred amount, so Replace loses any prior balance; whether
// that is intended is unresolved, and both readings are implemented.
type BalanceUpdatePolicy int

const (
	// BalanceUpdateReplace overwrites the holder's tracked balance
	// with the supplied value.
	BalanceUpdateReplace BalanceUpdatePolicy = iota

	// BalanceUpdateAccumulate adds the supplied value to the holder's
	// tracked balance.
	BalanceUpdateAccumulate
)

// Processor executes rewards-program instructions against the pool
// storage region.
type Processor struct {
	id      token.PublicKey
	backend program.TokenBackend
	invoker program.Invoker
	clock   program.Clock
	policy  BalanceUpdatePolicy
	sink    domain.Sink
}

// Options for creating a Processor.
type Options struct {
	ProgramID token.PublicKey
	Backend   program.TokenBackend
	Invoker   program.Invoker
	Clock     program.Clock

	// BalanceUpdatePolicy defaults to BalanceUpdateReplace.
	BalanceUpdatePolicy BalanceUpdatePolicy

	// Sink receives applied-operation events. Optional.
	Sink domain.Sink
}

// New creates a rewards-program processor.
func New(opts Options) *Processor {
	return &Processor{
		id:      opts.ProgramID,
		backend: opts.Backend,
		invoker: opts.Invoker,
		clock:   opts.Clock,
		policy:  opts.BalanceUpdatePolicy,
		sink:    opts.Sink,
	}
}

// ID returns the program identity.
func (p *Processor) ID() token.PublicKey { return p.id }

// Process decodes and dispatches one instruction.
func (p *Processor) Process(ctx context.Context, accounts []*program.Account, data []byte) error {
	ix, err := instruction.UnpackRewards(data)
	if err != nil {
		return err
	}

	switch v := ix.(type) {
	case instruction.InitializeRewardsPool:
		return p.initializePool(accounts)
	case instruction.SwapFeesForReferenceAsset:
		return p.swapFees(ctx, accounts)
	case instruction.DistributeRewards:
		return p.distribute(ctx, accounts)
	case instruction.AddLiquidity:
		return p.addLiquidity(ctx, accounts)
	case instruction.RewardsUpdateHolderBalance:
		return p.updateHolderBalance(accounts, v)
	default:
		return fmt.Errorf("%w: unhandled instruction %T", program.ErrInvalidInstructionData, ix)
	}
}

// initializePool writes the initial pool record.
//
// Accounts: pool region, reference asset mint (unused by logic),
// reference asset account (unused by logic), reserve wallet.
func (p *Processor) initializePool(accounts []*program.Account) error {
	it := program.NewAccountIter(accounts)
	poolAccount, err := it.Next()
	if err != nil {
		return err
	}
	if _, err := it.Next(); err != nil { // reference asset mint
		return err
	}
	if _, err := it.Next(); err != nil { // reference asset account
		return err
	}
	reserveWallet, err := it.Next()
	if err != nil {
		return err
	}

	if poolAccount.Owner != p.id {
		return fmt.Errorf("%w: pool region owned by %s", program.ErrIncorrectProgramID, poolAccount.Owner)
	}

	pool := NewPool(reserveWallet.Key)
	if err := pool.Encode(poolAccount.Data); err != nil {
		return fmt.Errorf("%w: %v", program.ErrInvalidInstructionData, err)
	}
	return nil
}

// swapFees asks the external swap program to convert fee-collector
// holdings into the reference asset. Pricing belongs entirely to the
// collaborator; this operation only constructs the request.
//
// Accounts: pool region, fee collector, reference asset mint,
// reference asset account, swap program.
func (p *Processor) swapFees(ctx context.Context, accounts []*program.Account) error {
	it := program.NewAccountIter(accounts)
	poolAccount, err := it.Next()
	if err != nil {
		return err
	}
	feeCollector, err := it.Next()
	if err != nil {
		return err
	}
	if _, err := it.Next(); err != nil { // reference asset mint
		return err
	}
	referenceAssetAccount, err := it.Next()
	if err != nil {
		return err
	}
	swapProgram, err := it.Next()
	if err != nil {
		return err
	}

	if _, err := readPool(poolAccount); err != nil {
		return err
	}

	swap := program.Instruction{
		ProgramID: swapProgram.Key,
		Accounts:  []token.PublicKey{feeCollector.Key, referenceAssetAccount.Key, poolAccount.Key},
	}
	if err := p.invoker.Invoke(ctx, swap, []*program.Account{feeCollector, referenceAssetAccount, poolAccount}); err != nil {
		return fmt.Errorf("swap: %w", err)
	}

	// TODO: credit TotalReferenceAssetBalance once the swap program
	// reports the received amount; today the pool record is left
	// untouched and the balance is maintained out of band.
	return nil
}

// distribute pays out the pool: half to the reserve wallet, the rest
// pro-rata to holders in ascending key order. Holder destination
// accounts follow the fixed accounts positionally in that same order.
//
// Accounts: pool region, reference asset account, reserve wallet,
// then one destination account per ledger holder.
func (p *Processor) distribute(ctx context.Context, accounts []*program.Account) error {
	it := program.NewAccountIter(accounts)
	poolAccount, err := it.Next()
	if err != nil {
		return err
	}
	referenceAssetAccount, err := it.Next()
	if err != nil {
		return err
	}
	reserveWallet, err := it.Next()
	if err != nil {
		return err
	}

	pool, err := readPool(poolAccount)
	if err != nil {
		return err
	}

	now := p.clock.Now()
	if now-pool.LastDistributionTime < DistributionInterval {
		return program.ErrDistributionGateClosed
	}

	holders := pool.SortedHolders()
	if it.Remaining() < len(holders) {
		return fmt.Errorf("%w: need %d holder accounts, have %d",
			program.ErrNotEnoughAccounts, len(holders), it.Remaining())
	}

	distribution := pool.TotalReferenceAssetBalance / 2

	if err := p.backend.Transfer(ctx, p.id, referenceAssetAccount.Key, reserveWallet.Key, poolAccount.Key, distribution); err != nil {
		return fmt.Errorf("reserve leg: %w", err)
	}

	legs := make([]domain.DistributionRecord, 0, len(holders)+1)
	legs = append(legs, domain.DistributionRecord{
		Pool:          poolAccount.Key.String(),
		Amount:        distribution,
		PoolTotal:     pool.TotalReferenceAssetBalance,
		DistributedAt: now,
	})

	for _, entry := range holders {
		destination, err := it.Next()
		if err != nil {
			return err
		}

		share, err := arith.MulDiv(distribution, entry.Balance, pool.TotalReferenceAssetBalance)
		if err != nil {
			return err
		}

		if err := p.backend.Transfer(ctx, p.id, referenceAssetAccount.Key, destination.Key, poolAccount.Key, share); err != nil {
			return fmt.Errorf("holder %s leg: %w", entry.Holder, err)
		}

		legs = append(legs, domain.DistributionRecord{
			Pool:          poolAccount.Key.String(),
			Holder:        entry.Holder.String(),
			Amount:        share,
			PoolTotal:     pool.TotalReferenceAssetBalance,
			DistributedAt: now,
		})
	}

	pool.TotalReferenceAssetBalance = 0
	pool.LastDistributionTime = now
	if err := pool.Encode(poolAccount.Data); err != nil {
		return fmt.Errorf("%w: %v", program.ErrInvalidInstructionData, err)
	}

	if p.sink != nil {
		p.sink.RewardsDistributed(legs)
	}
	return nil
}

// addLiquidity asks the external DEX program to contribute reserve
// funds to the liquidity pool, then advances the liquidity gate.
// LiquidityThreshold is recorded on the pool but not yet consulted
// here.
//
// Accounts: pool region, reserve wallet, DEX program.
func (p *Processor) addLiquidity(ctx context.Context, accounts []*program.Account) error {
	it := program.NewAccountIter(accounts)
	poolAccount, err := it.Next()
	if err != nil {
		return err
	}
	reserveWallet, err := it.Next()
	if err != nil {
		return err
	}
	dexProgram, err := it.Next()
	if err != nil {
		return err
	}

	pool, err := readPool(poolAccount)
	if err != nil {
		return err
	}

	now := p.clock.Now()
	if now-pool.LastLiquidityAddTime < LiquidityInterval {
		return program.ErrLiquidityGateClosed
	}

	add := program.Instruction{
		ProgramID: dexProgram.Key,
		Accounts:  []token.PublicKey{reserveWallet.Key, poolAccount.Key},
	}
	if err := p.invoker.Invoke(ctx, add, []*program.Account{reserveWallet, poolAccount}); err != nil {
		return fmt.Errorf("add liquidity: %w", err)
	}

	pool.LastLiquidityAddTime = now
	if err := pool.Encode(poolAccount.Data); err != nil {
		return fmt.Errorf("%w: %v", program.ErrInvalidInstructionData, err)
	}

	if p.sink != nil {
		p.sink.LiquidityAdded(domain.LiquidityRecord{
			Pool:          poolAccount.Key.String(),
			ReserveWallet: reserveWallet.Key.String(),
			RequestedAt:   now,
		})
	}
	return nil
}

// updateHolderBalance writes one ledger entry under the configured
// policy. Only this program writes the ledger.
//
// Accounts: pool region.
func (p *Processor) updateHolderBalance(accounts []*program.Account, ix instruction.RewardsUpdateHolderBalance) error {
	it := program.NewAccountIter(accounts)
	poolAccount, err := it.Next()
	if err != nil {
		return err
	}

	if poolAccount.Owner != p.id {
		return fmt.Errorf("%w: pool region owned by %s", program.ErrIncorrectProgramID, poolAccount.Owner)
	}

	pool, err := readPool(poolAccount)
	if err != nil {
		return err
	}

	switch p.policy {
	case BalanceUpdateAccumulate:
		updated, err := arith.CheckedAdd(pool.TokenHolders[ix.Holder], ix.Balance)
		if err != nil {
			return err
		}
		pool.TokenHolders[ix.Holder] = updated
	default:
		pool.TokenHolders[ix.Holder] = ix.Balance
	}

	if err := pool.Encode(poolAccount.Data); err != nil {
		return fmt.Errorf("%w: %v", program.ErrInvalidInstructionData, err)
	}

	if p.sink != nil {
		p.sink.HolderBalanceUpdated(domain.HolderBalanceRecord{
			Holder:    ix.Holder.String(),
			Balance:   pool.TokenHolders[ix.Holder],
			UpdatedAt: p.clock.Now(),
		})
	}
	return nil
}

// readPool decodes the pool record from its storage region.
func readPool(poolAccount *program.Account) (*Pool, error) {
	pool, err := DecodePool(poolAccount.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", program.ErrInvalidInstructionData, err)
	}
	return pool, nil
}

var _ program.Processor = (*Processor)(nil)
