// Package main runs a scripted end-to-end scenario against the
// in-memory host: initialize the mint and rewards pool, mint supply,
// apply fee-charging transfers, then swap, distribute, and add
// liquidity once the time gates open. Output is deterministic.
package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"

	"spl-rewards-token/internal/archive"
	"spl-rewards-token/internal/host"
	"spl-rewards-token/internal/instruction"
	"spl-rewards-token/internal/program"
	"spl-rewards-token/internal/rewards"
	"spl-rewards-token/internal/storage/memory"
	"spl-rewards-token/internal/token"

	tokenprocessor "spl-rewards-token/internal/processor"
)

func main() {
	// Parse flags
	startTime := flag.Int64("start-time", 1_700_000_000, "Scenario start time (unix seconds)")
	holders := flag.Int("holders", 3, "Number of holder wallets")
	mintAmount := flag.Uint64("mint-amount", 10_000_000, "Units minted to the treasury")
	transferAmount := flag.Uint64("transfer-amount", 100_000, "Units sent to each holder")
	poolSeed := flag.Uint64("pool-seed", 1_000_000, "Reference asset units seeded into the pool")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	if *holders < 1 {
		fmt.Fprintln(os.Stderr, "--holders must be at least 1")
		os.Exit(1)
	}

	ctx := context.Background()

	// Derive deterministic account keys from labels.
	tokenProgramID := keyFor("program/token")
	rewardsProgramID := keyFor("program/rewards")
	splTokenProgram := keyFor("program/spl-token")
	swapProgram := keyFor("program/swap")
	dexProgram := keyFor("program/dex")

	mintKey := keyFor("account/mint")
	poolKey := keyFor("account/pool")
	rentKey := keyFor("account/rent")
	authority := keyFor("wallet/authority")
	treasury := keyFor("wallet/treasury")
	feeCollector := keyFor("wallet/fee-collector")
	reserveWallet := keyFor("wallet/reserve")
	refMint := keyFor("account/reference-mint")
	refAccount := keyFor("account/reference-asset")

	holderKeys := make([]token.PublicKey, *holders)
	for i := range holderKeys {
		holderKeys[i] = keyFor(fmt.Sprintf("wallet/holder-%d", i))
	}

	// Memory stores behind the archive recorder.
	transferStore := memory.NewTransferStore()
	balanceStore := memory.NewHolderBalanceStore()
	distributionStore := memory.NewDistributionStore()
	liquidityStore := memory.NewLiquidityEventStore()

	recorder := archive.NewRecorder(archive.Options{
		Transfers:     transferStore,
		Balances:      balanceStore,
		Distributions: distributionStore,
		Liquidity:     liquidityStore,
	})

	// Build the runtime and register the programs.
	clock := host.NewManualClock(*startTime)
	rt := host.NewRuntime(clock)

	rt.RegisterProgram(tokenprocessor.New(tokenprocessor.Options{
		ProgramID: tokenProgramID,
		Backend:   rt,
		Invoker:   rt,
		Clock:     clock,
		Sink:      recorder,
	}))
	rt.RegisterProgram(rewards.New(rewards.Options{
		ProgramID: rewardsProgramID,
		Backend:   rt,
		Invoker:   rt,
		Clock:     clock,
		Sink:      recorder,
	}))
	rt.RegisterProgram(host.NewNoopProgram(splTokenProgram))
	rt.RegisterProgram(host.NewNoopProgram(swapProgram))
	rt.RegisterProgram(host.NewNoopProgram(dexProgram))

	// Allocate the storage regions.
	rt.CreateAccount(mintKey, tokenProgramID, token.MintLen+token.FeeScheduleLen)
	// The treasury joins the ledger on the buy-side transfer, so the
	// region holds one entry beyond the holder wallets.
	poolSize := rewards.PoolHeaderLen + (*holders+1)*(token.PublicKeyLen+8)
	rt.CreateAccount(poolKey, rewardsProgramID, poolSize)

	fmt.Println("=== Fee Token Engine ===")
	fmt.Printf("Token program:   %s\n", tokenProgramID)
	fmt.Printf("Rewards program: %s\n", rewardsProgramID)

	// Initialize the mint and the rewards pool.
	run(ctx, rt, "initialize mint", program.Instruction{
		ProgramID: tokenProgramID,
		Accounts:  []token.PublicKey{mintKey, rentKey, feeCollector, rewardsProgramID},
		Data: instruction.PackToken(instruction.InitializeMint{
			Decimals:      9,
			MintAuthority: &authority,
		}),
	})
	run(ctx, rt, "initialize rewards pool", program.Instruction{
		ProgramID: rewardsProgramID,
		Accounts:  []token.PublicKey{poolKey, refMint, refAccount, reserveWallet},
		Data:      instruction.PackRewards(instruction.InitializeRewardsPool{}),
	})

	// Mint the supply to the treasury.
	run(ctx, rt, "mint supply", program.Instruction{
		ProgramID: tokenProgramID,
		Accounts:  []token.PublicKey{mintKey, treasury, authority, splTokenProgram},
		Data:      instruction.PackToken(instruction.MintTo{Amount: *mintAmount}),
	})

	// Sell-side transfers to every holder, one second apart.
	for i, holder := range holderKeys {
		clock.Advance(1)
		run(ctx, rt, fmt.Sprintf("transfer to holder %d", i), program.Instruction{
			ProgramID: tokenProgramID,
			Accounts: []token.PublicKey{
				treasury, holder, treasury, splTokenProgram,
				mintKey, feeCollector, rewardsProgramID, poolKey,
			},
			Data: instruction.PackToken(instruction.Transfer{Amount: *transferAmount}),
		})
		if *verbose {
			fmt.Printf("  holder %d (%s): balance %d\n", i, holder, rt.Balance(holder))
		}
	}

	// One buy-side transfer back from the first holder.
	clock.Advance(1)
	run(ctx, rt, "buy-side transfer", program.Instruction{
		ProgramID: tokenProgramID,
		Accounts: []token.PublicKey{
			holderKeys[0], treasury, holderKeys[0], splTokenProgram,
			mintKey, feeCollector, rewardsProgramID, poolKey,
		},
		Data: instruction.PackToken(instruction.Transfer{Amount: *transferAmount / 2, IsBuy: true}),
	})

	// Swap collected fees for the reference asset.
	run(ctx, rt, "swap fees", program.Instruction{
		ProgramID: rewardsProgramID,
		Accounts:  []token.PublicKey{poolKey, feeCollector, refMint, refAccount, swapProgram},
		Data:      instruction.PackRewards(instruction.SwapFeesForReferenceAsset{}),
	})

	// The swap collaborator prices and settles externally, so the pool
	// balance is credited out of band before distributing.
	seedPool(rt, poolKey, refAccount, *poolSeed)

	// Distribution and liquidity gates open after the interval.
	clock.Advance(rewards.DistributionInterval)

	distributeAccounts := []token.PublicKey{poolKey, refAccount, reserveWallet}
	distributeAccounts = append(distributeAccounts, sortedLedgerHolders(rt, poolKey)...)
	run(ctx, rt, "distribute rewards", program.Instruction{
		ProgramID: rewardsProgramID,
		Accounts:  distributeAccounts,
		Data:      instruction.PackRewards(instruction.DistributeRewards{}),
	})

	run(ctx, rt, "add liquidity", program.Instruction{
		ProgramID: rewardsProgramID,
		Accounts:  []token.PublicKey{poolKey, reserveWallet, dexProgram},
		Data:      instruction.PackRewards(instruction.AddLiquidity{}),
	})

	// Summarize the run from the archive.
	fmt.Println("\n=== Summary ===")
	fmt.Printf("Treasury balance:      %d\n", rt.Balance(treasury))
	fmt.Printf("Fee collector balance: %d\n", rt.Balance(feeCollector))
	fmt.Printf("Reserve wallet:        %d reference units\n", rt.Balance(reserveWallet))
	for i, holder := range holderKeys {
		fmt.Printf("Holder %d:              %d units\n", i, rt.Balance(holder))
	}

	transfers, err := transferStore.GetByMint(ctx, mintKey.String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "read transfers: %v\n", err)
		os.Exit(1)
	}
	legs, err := distributionStore.GetByPool(ctx, poolKey.String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "read distributions: %v\n", err)
		os.Exit(1)
	}
	events, err := liquidityStore.GetByPool(ctx, poolKey.String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "read liquidity events: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nArchived: %d transfers, %d distribution legs, %d liquidity events\n",
		len(transfers), len(legs), len(events))
	if *verbose {
		for _, tr := range transfers {
			fmt.Printf("  %s %s -> %s amount=%d fee=%d\n",
				tr.Side, tr.Source, tr.Destination, tr.Amount, tr.Fee)
		}
		for _, leg := range legs {
			who := leg.Holder
			if who == "" {
				who = "(reserve)"
			}
			fmt.Printf("  payout %s amount=%d of %d\n", who, leg.Amount, leg.PoolTotal)
		}
	}
}

// run executes one instruction and exits on failure.
func run(ctx context.Context, rt *host.Runtime, name string, ix program.Instruction) {
	if err := rt.Execute(ctx, ix); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		os.Exit(1)
	}
	fmt.Printf("ok: %s\n", name)
}

// seedPool credits the pool record and the reference asset account
// with swapped funds, standing in for the external swap settlement.
func seedPool(rt *host.Runtime, poolKey, refAccount token.PublicKey, amount uint64) {
	err := rt.WithAccount(poolKey, func(a *program.Account) error {
		pool, err := rewards.DecodePool(a.Data)
		if err != nil {
			return err
		}
		pool.TotalReferenceAssetBalance = amount
		return pool.Encode(a.Data)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed pool: %v\n", err)
		os.Exit(1)
	}
	rt.SetBalance(refAccount, amount)
}

// sortedLedgerHolders returns the pool's holder keys in ledger order,
// the order distribution pays them in.
func sortedLedgerHolders(rt *host.Runtime, poolKey token.PublicKey) []token.PublicKey {
	var keys []token.PublicKey
	err := rt.WithAccount(poolKey, func(a *program.Account) error {
		pool, err := rewards.DecodePool(a.Data)
		if err != nil {
			return err
		}
		entries := pool.SortedHolders()
		keys = make([]token.PublicKey, len(entries))
		for i, e := range entries {
			keys[i] = e.Holder
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode pool: %v\n", err)
		os.Exit(1)
	}
	return keys
}

// keyFor derives a stable 32-byte key from a label.
func keyFor(label string) token.PublicKey {
	return token.PublicKey(sha256.Sum256([]byte(label)))
}
