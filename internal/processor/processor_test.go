package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"spl-rewards-token/internal/domain"
	"spl-rewards-token/internal/instruction"
	"spl-rewards-token/internal/program"
	"spl-rewards-token/internal/token"
)

func key(b byte) token.PublicKey {
	var k token.PublicKey
	k[0] = b
	return k
}

type transferCall struct {
	Source      token.PublicKey
	Destination token.PublicKey
	Amount      uint64
}

type mintCall struct {
	Mint        token.PublicKey
	Destination token.PublicKey
	Amount      uint64
}

type recordingBackend struct {
	transfers []transferCall
	mints     []mintCall
	failAt    int // 1-based transfer index to fail, 0 never
}

func (b *recordingBackend) Transfer(_ context.Context, _, source, destination, _ token.PublicKey, amount uint64) error {
	if b.failAt > 0 && len(b.transfers)+1 == b.failAt {
		return fmt.Errorf("%w: injected", program.ErrInsufficientFunds)
	}
	b.transfers = append(b.transfers, transferCall{Source: source, Destination: destination, Amount: amount})
	return nil
}

func (b *recordingBackend) MintTo(_ context.Context, _, mint, destination, _ token.PublicKey, amount uint64) error {
	b.mints = append(b.mints, mintCall{Mint: mint, Destination: destination, Amount: amount})
	return nil
}

type recordingInvoker struct {
	invoked []program.Instruction
}

func (i *recordingInvoker) Invoke(_ context.Context, ix program.Instruction, _ []*program.Account) error {
	i.invoked = append(i.invoked, ix)
	return nil
}

type fixedClock int64

func (c fixedClock) Now() int64 { return int64(c) }

type recordingSink struct {
	transfers []domain.TransferRecord
}

func (s *recordingSink) TransferApplied(r domain.TransferRecord)        { s.transfers = append(s.transfers, r) }
func (s *recordingSink) HolderBalanceUpdated(domain.HolderBalanceRecord) {}
func (s *recordingSink) RewardsDistributed([]domain.DistributionRecord) {}
func (s *recordingSink) LiquidityAdded(domain.LiquidityRecord)          {}

func newTestProcessor() (*Processor, *recordingBackend, *recordingInvoker, *recordingSink) {
	backend := &recordingBackend{}
	invoker := &recordingInvoker{}
	sink := &recordingSink{}
	p := New(Options{
		ProgramID: key(0xE0),
		Backend:   backend,
		Invoker:   invoker,
		Clock:     fixedClock(1_700_000_000),
		Sink:      sink,
	})
	return p, backend, invoker, sink
}

// mintRegion builds a mint account already holding an initialized mint
// record and the default fee schedule.
func mintRegion(p *Processor, feeCollector, rewardsProgram token.PublicKey) *program.Account {
	a := program.NewAccount(key(0x40), p.ID(), token.MintLen+token.FeeScheduleLen)
	authority := key(0x41)
	mint := &token.Mint{Decimals: 9, MintAuthority: &authority, IsInitialized: true}
	if err := mint.Encode(a.Data); err != nil {
		panic(err)
	}
	schedule := &token.FeeSchedule{
		BuyFeeBps:      token.DefaultBuyFeeBps,
		SellFeeBps:     token.DefaultSellFeeBps,
		FeeCollector:   feeCollector,
		RewardsProgram: rewardsProgram,
	}
	if err := schedule.Encode(a.Data[token.MintLen:]); err != nil {
		panic(err)
	}
	return a
}

func TestComputeFee(t *testing.T) {
	cases := []struct {
		name          string
		amount        uint64
		rateBps       uint16
		fee, remaining uint64
	}{
		{"five percent", 100_000, 500, 5_000, 95_000},
		{"rounds down to zero", 7, 500, 0, 7},
		{"nineteen at five percent", 19, 500, 0, 19},
		{"zero amount", 0, 500, 0, 0},
		{"zero rate", 100_000, 0, 0, 100_000},
		{"full rate", 100_000, 10_000, 100_000, 0},
		{"max amount full rate", ^uint64(0), 10_000, ^uint64(0), 0},
		{"max amount five percent", ^uint64(0), 500, ^uint64(0) / 20, ^uint64(0) - ^uint64(0)/20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fee, remaining, err := ComputeFee(tc.amount, tc.rateBps)
			if err != nil {
				t.Fatalf("ComputeFee(%d, %d): %v", tc.amount, tc.rateBps, err)
			}
			if fee != tc.fee || remaining != tc.remaining {
				t.Errorf("ComputeFee(%d, %d) = (%d, %d), want (%d, %d)",
					tc.amount, tc.rateBps, fee, remaining, tc.fee, tc.remaining)
			}
			if fee+remaining != tc.amount {
				t.Errorf("fee %d + remaining %d != amount %d", fee, remaining, tc.amount)
			}
		})
	}
}

func TestComputeFeeRateTooHigh(t *testing.T) {
	if _, _, err := ComputeFee(100, 10_001); !errors.Is(err, program.ErrOverflow) {
		t.Fatalf("err = %v, want ErrOverflow", err)
	}
}

func TestInitializeMint(t *testing.T) {
	p, _, _, _ := newTestProcessor()

	region := program.NewAccount(key(0x40), p.ID(), token.MintLen+token.FeeScheduleLen)
	feeCollector := key(0x50)
	rewardsProgram := key(0x60)
	accounts := []*program.Account{
		region,
		program.NewAccount(key(0x01), token.PublicKey{}, 0), // rent placeholder
		program.NewAccount(feeCollector, token.PublicKey{}, 0),
		program.NewAccount(rewardsProgram, token.PublicKey{}, 0),
	}

	authority := key(0x41)
	data := instruction.PackToken(instruction.InitializeMint{Decimals: 9, MintAuthority: &authority})
	if err := p.Process(context.Background(), accounts, data); err != nil {
		t.Fatalf("process: %v", err)
	}

	mint, err := token.DecodeMint(region.Data)
	if err != nil {
		t.Fatalf("decode mint: %v", err)
	}
	if !mint.IsInitialized || mint.Decimals != 9 {
		t.Errorf("mint = %+v", mint)
	}
	if mint.MintAuthority == nil || *mint.MintAuthority != authority {
		t.Errorf("mint authority = %v, want %s", mint.MintAuthority, authority)
	}

	schedule, err := token.DecodeFeeSchedule(region.Data[token.MintLen:])
	if err != nil {
		t.Fatalf("decode schedule: %v", err)
	}
	if schedule.BuyFeeBps != token.DefaultBuyFeeBps || schedule.SellFeeBps != token.DefaultSellFeeBps {
		t.Errorf("rates = %d/%d, want defaults", schedule.BuyFeeBps, schedule.SellFeeBps)
	}
	if schedule.FeeCollector != feeCollector || schedule.RewardsProgram != rewardsProgram {
		t.Errorf("schedule parties = %s/%s", schedule.FeeCollector, schedule.RewardsProgram)
	}
}

func TestInitializeMintForeignOwner(t *testing.T) {
	p, _, _, _ := newTestProcessor()

	region := program.NewAccount(key(0x40), key(0x99), token.MintLen+token.FeeScheduleLen)
	before := append([]byte(nil), region.Data...)
	accounts := []*program.Account{
		region,
		program.NewAccount(key(0x01), token.PublicKey{}, 0),
		program.NewAccount(key(0x50), token.PublicKey{}, 0),
		program.NewAccount(key(0x60), token.PublicKey{}, 0),
	}

	data := instruction.PackToken(instruction.InitializeMint{Decimals: 9})
	err := p.Process(context.Background(), accounts, data)
	if !errors.Is(err, program.ErrIncorrectProgramID) {
		t.Fatalf("err = %v, want ErrIncorrectProgramID", err)
	}
	if !bytes.Equal(region.Data, before) {
		t.Error("foreign-owned region was written")
	}
}

func TestInitializeMintRegionTooSmall(t *testing.T) {
	p, _, _, _ := newTestProcessor()

	region := program.NewAccount(key(0x40), p.ID(), token.MintLen)
	accounts := []*program.Account{
		region,
		program.NewAccount(key(0x01), token.PublicKey{}, 0),
		program.NewAccount(key(0x50), token.PublicKey{}, 0),
		program.NewAccount(key(0x60), token.PublicKey{}, 0),
	}

	data := instruction.PackToken(instruction.InitializeMint{Decimals: 9})
	err := p.Process(context.Background(), accounts, data)
	if !errors.Is(err, program.ErrInvalidInstructionData) {
		t.Fatalf("err = %v, want ErrInvalidInstructionData", err)
	}
}

func TestMintTo(t *testing.T) {
	p, backend, _, _ := newTestProcessor()

	region := mintRegion(p, key(0x50), key(0x60))
	destination := key(0x70)
	accounts := []*program.Account{
		region,
		program.NewAccount(destination, token.PublicKey{}, 0),
		program.NewAccount(key(0x41), token.PublicKey{}, 0),
		program.NewAccount(key(0x02), token.PublicKey{}, 0), // token program
	}

	data := instruction.PackToken(instruction.MintTo{Amount: 1_000_000})
	if err := p.Process(context.Background(), accounts, data); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(backend.mints) != 1 {
		t.Fatalf("mint calls = %d, want 1", len(backend.mints))
	}
	if got := backend.mints[0]; got.Mint != region.Key || got.Destination != destination || got.Amount != 1_000_000 {
		t.Errorf("mint call = %+v", got)
	}
}

func TestTransferSell(t *testing.T) {
	p, backend, invoker, sink := newTestProcessor()

	feeCollector := key(0x50)
	rewardsProgram := key(0x60)
	region := mintRegion(p, feeCollector, rewardsProgram)

	source := key(0x70)
	destination := key(0x71)
	accounts := []*program.Account{
		program.NewAccount(source, token.PublicKey{}, 0),
		program.NewAccount(destination, token.PublicKey{}, 0),
		program.NewAccount(key(0x72), token.PublicKey{}, 0), // authority
		program.NewAccount(key(0x02), token.PublicKey{}, 0), // token program
		region,
		program.NewAccount(feeCollector, token.PublicKey{}, 0),
		program.NewAccount(rewardsProgram, token.PublicKey{}, 0),
		program.NewAccount(key(0x80), token.PublicKey{}, 0), // pool region
	}

	data := instruction.PackToken(instruction.Transfer{Amount: 100_000, IsBuy: false})
	if err := p.Process(context.Background(), accounts, data); err != nil {
		t.Fatalf("process: %v", err)
	}

	want := []transferCall{
		{Source: source, Destination: feeCollector, Amount: 5_000},
		{Source: source, Destination: destination, Amount: 95_000},
	}
	if len(backend.transfers) != len(want) {
		t.Fatalf("transfer legs = %d, want %d", len(backend.transfers), len(want))
	}
	for i, w := range want {
		if backend.transfers[i] != w {
			t.Errorf("leg %d = %+v, want %+v", i, backend.transfers[i], w)
		}
	}

	// The relay goes back through this program as a nested invocation.
	if len(invoker.invoked) != 1 {
		t.Fatalf("invocations = %d, want 1", len(invoker.invoked))
	}
	notify := invoker.invoked[0]
	if notify.ProgramID != p.ID() {
		t.Errorf("relay target = %s, want own program", notify.ProgramID)
	}
	ix, err := instruction.UnpackToken(notify.Data)
	if err != nil {
		t.Fatalf("unpack relay: %v", err)
	}
	update, ok := ix.(instruction.UpdateHolderBalance)
	if !ok {
		t.Fatalf("relay instruction = %T", ix)
	}
	if update.Holder != destination || update.Balance != 95_000 {
		t.Errorf("relay = %+v, want destination with net amount", update)
	}

	if len(sink.transfers) != 1 {
		t.Fatalf("transfer events = %d, want 1", len(sink.transfers))
	}
	ev := sink.transfers[0]
	if ev.Amount != 100_000 || ev.Fee != 5_000 || ev.Side != domain.TransferSideSell {
		t.Errorf("event = %+v", ev)
	}
}

func TestTransferBuyUsesBuyRate(t *testing.T) {
	p, backend, _, sink := newTestProcessor()

	feeCollector := key(0x50)
	region := mintRegion(p, feeCollector, key(0x60))
	// Distinct buy and sell rates so the direction choice is observable.
	schedule := &token.FeeSchedule{
		BuyFeeBps:      100,
		SellFeeBps:     900,
		FeeCollector:   feeCollector,
		RewardsProgram: key(0x60),
	}
	if err := schedule.Encode(region.Data[token.MintLen:]); err != nil {
		t.Fatalf("encode schedule: %v", err)
	}

	accounts := []*program.Account{
		program.NewAccount(key(0x70), token.PublicKey{}, 0),
		program.NewAccount(key(0x71), token.PublicKey{}, 0),
		program.NewAccount(key(0x72), token.PublicKey{}, 0),
		program.NewAccount(key(0x02), token.PublicKey{}, 0),
		region,
		program.NewAccount(feeCollector, token.PublicKey{}, 0),
		program.NewAccount(key(0x60), token.PublicKey{}, 0),
		program.NewAccount(key(0x80), token.PublicKey{}, 0),
	}

	data := instruction.PackToken(instruction.Transfer{Amount: 10_000, IsBuy: true})
	if err := p.Process(context.Background(), accounts, data); err != nil {
		t.Fatalf("process: %v", err)
	}
	if backend.transfers[0].Amount != 100 {
		t.Errorf("buy fee = %d, want 100 at 1%%", backend.transfers[0].Amount)
	}
	if sink.transfers[0].Side != domain.TransferSideBuy {
		t.Errorf("side = %s, want buy", sink.transfers[0].Side)
	}
}

func TestTransferFeeCollectorMismatch(t *testing.T) {
	p, backend, _, _ := newTestProcessor()

	region := mintRegion(p, key(0x50), key(0x60))
	accounts := []*program.Account{
		program.NewAccount(key(0x70), token.PublicKey{}, 0),
		program.NewAccount(key(0x71), token.PublicKey{}, 0),
		program.NewAccount(key(0x72), token.PublicKey{}, 0),
		program.NewAccount(key(0x02), token.PublicKey{}, 0),
		region,
		program.NewAccount(key(0x51), token.PublicKey{}, 0), // wrong collector
		program.NewAccount(key(0x60), token.PublicKey{}, 0),
		program.NewAccount(key(0x80), token.PublicKey{}, 0),
	}

	data := instruction.PackToken(instruction.Transfer{Amount: 100_000})
	err := p.Process(context.Background(), accounts, data)
	if !errors.Is(err, program.ErrIncorrectProgramID) {
		t.Fatalf("err = %v, want ErrIncorrectProgramID", err)
	}
	if len(backend.transfers) != 0 {
		t.Error("transfer legs issued despite collector mismatch")
	}
}

func TestTransferFeeLegFailureStopsPrincipal(t *testing.T) {
	p, backend, invoker, sink := newTestProcessor()
	backend.failAt = 1

	feeCollector := key(0x50)
	region := mintRegion(p, feeCollector, key(0x60))
	accounts := []*program.Account{
		program.NewAccount(key(0x70), token.PublicKey{}, 0),
		program.NewAccount(key(0x71), token.PublicKey{}, 0),
		program.NewAccount(key(0x72), token.PublicKey{}, 0),
		program.NewAccount(key(0x02), token.PublicKey{}, 0),
		region,
		program.NewAccount(feeCollector, token.PublicKey{}, 0),
		program.NewAccount(key(0x60), token.PublicKey{}, 0),
		program.NewAccount(key(0x80), token.PublicKey{}, 0),
	}

	data := instruction.PackToken(instruction.Transfer{Amount: 100_000})
	err := p.Process(context.Background(), accounts, data)
	if !errors.Is(err, program.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if len(backend.transfers) != 0 || len(invoker.invoked) != 0 || len(sink.transfers) != 0 {
		t.Error("effects issued after failed fee leg")
	}
}

func TestUpdateHolderBalanceRelay(t *testing.T) {
	p, _, invoker, _ := newTestProcessor()

	rewardsProgram := key(0x60)
	region := mintRegion(p, key(0x50), rewardsProgram)
	pool := program.NewAccount(key(0x80), token.PublicKey{}, 0)
	accounts := []*program.Account{
		region,
		program.NewAccount(rewardsProgram, token.PublicKey{}, 0),
		pool,
	}

	holder := key(0x71)
	data := instruction.PackToken(instruction.UpdateHolderBalance{Holder: holder, Balance: 95_000})
	if err := p.Process(context.Background(), accounts, data); err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(invoker.invoked) != 1 {
		t.Fatalf("invocations = %d, want 1", len(invoker.invoked))
	}
	forward := invoker.invoked[0]
	if forward.ProgramID != rewardsProgram {
		t.Errorf("forward target = %s, want rewards program", forward.ProgramID)
	}
	ix, err := instruction.UnpackRewards(forward.Data)
	if err != nil {
		t.Fatalf("unpack forward: %v", err)
	}
	update, ok := ix.(instruction.RewardsUpdateHolderBalance)
	if !ok {
		t.Fatalf("forward instruction = %T", ix)
	}
	if update.Holder != holder || update.Balance != 95_000 {
		t.Errorf("forward = %+v", update)
	}
}

func TestUpdateHolderBalanceRelayWrongProgram(t *testing.T) {
	p, _, invoker, _ := newTestProcessor()

	region := mintRegion(p, key(0x50), key(0x60))
	accounts := []*program.Account{
		region,
		program.NewAccount(key(0x61), token.PublicKey{}, 0), // not on schedule
		program.NewAccount(key(0x80), token.PublicKey{}, 0),
	}

	data := instruction.PackToken(instruction.UpdateHolderBalance{Holder: key(0x71), Balance: 1})
	err := p.Process(context.Background(), accounts, data)
	if !errors.Is(err, program.ErrIncorrectProgramID) {
		t.Fatalf("err = %v, want ErrIncorrectProgramID", err)
	}
	if len(invoker.invoked) != 0 {
		t.Error("relay forwarded to unverified program")
	}
}

func TestTransferNotEnoughAccounts(t *testing.T) {
	p, _, _, _ := newTestProcessor()

	data := instruction.PackToken(instruction.Transfer{Amount: 1})
	err := p.Process(context.Background(), []*program.Account{
		program.NewAccount(key(0x70), token.PublicKey{}, 0),
	}, data)
	if !errors.Is(err, program.ErrNotEnoughAccounts) {
		t.Fatalf("err = %v, want ErrNotEnoughAccounts", err)
	}
}
