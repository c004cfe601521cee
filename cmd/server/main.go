// Package main provides the HTTP front end for the engine:
// - POST /instructions: execute token and rewards instructions
// - GET /status: well-known keys and engine state
// - GET /ws: live event feed
// - /health, /metrics
// Applied events are archived to the configured stores and broadcast
// to feed subscribers.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"spl-rewards-token/internal/archive"
	"spl-rewards-token/internal/domain"
	"spl-rewards-token/internal/feed"
	"spl-rewards-token/internal/host"
	"spl-rewards-token/internal/instruction"
	"spl-rewards-token/internal/observability"
	"spl-rewards-token/internal/program"
	"spl-rewards-token/internal/rewards"
	"spl-rewards-token/internal/storage"
	"spl-rewards-token/internal/storage/memory"
	"spl-rewards-token/internal/storage/migrations"
	"spl-rewards-token/internal/token"

	tokenprocessor "spl-rewards-token/internal/processor"
	chstore "spl-rewards-token/internal/storage/clickhouse"
	pgstore "spl-rewards-token/internal/storage/postgres"
)

// Server holds the runtime and its well-known accounts.
type Server struct {
	rt    *host.Runtime
	clock *host.ManualClock
	hub   *feed.Hub

	// manualClock freezes time; otherwise the clock follows wall time.
	manualClock bool

	tokenProgramID   token.PublicKey
	rewardsProgramID token.PublicKey
	splTokenProgram  token.PublicKey
	swapProgram      token.PublicKey
	dexProgram       token.PublicKey

	mintKey       token.PublicKey
	poolKey       token.PublicKey
	authority     token.PublicKey
	feeCollector  token.PublicKey
	reserveWallet token.PublicKey
	refMint       token.PublicKey
	refAccount    token.PublicKey

	logger *log.Logger

	mu           sync.Mutex
	started      time.Time
	instructions int
	failures     int
}

// allStores holds the archive's storage implementations.
type allStores struct {
	transferStore     storage.TransferStore
	balanceStore      storage.HolderBalanceStore
	distributionStore storage.DistributionStore
	liquidityStore    storage.LiquidityEventStore
}

func main() {
	loadEnvFile()

	addr := flag.String("addr", ":8080", "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL and ClickHouse")
	manualClock := flag.Bool("manual-clock", false, "Freeze the engine clock; advance it via the API")
	startTime := flag.Int64("start-time", time.Now().Unix(), "Initial engine clock (unix seconds)")
	maxHolders := flag.Int("max-holders", 1024, "Ledger capacity of the rewards pool region")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	recorder := archive.NewRecorder(archive.Options{
		Transfers:     stores.transferStore,
		Balances:      stores.balanceStore,
		Distributions: stores.distributionStore,
		Liquidity:     stores.liquidityStore,
	})
	hub := feed.NewHub(nil)
	defer hub.Close()

	server, err := newServer(ctx, recorder, hub, *manualClock, *startTime, *maxHolders)
	if err != nil {
		logger.Fatalf("Failed to initialize engine: %v", err)
	}
	server.logger = logger

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.Handle("/ws", hub)
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/instructions", server.handleInstruction)

	httpServer := &http.Server{Addr: *addr, Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
		cancel()
	}()

	logger.Printf("Listening on %s", *addr)
	logger.Printf("Token program:   %s", server.tokenProgramID)
	logger.Printf("Rewards program: %s", server.rewardsProgramID)

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores creates the archive stores and runs migrations.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			transferStore:     memory.NewTransferStore(),
			balanceStore:      memory.NewHolderBalanceStore(),
			distributionStore: memory.NewDistributionStore(),
			liquidityStore:    memory.NewLiquidityEventStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &allStores{
		transferStore:     pgstore.NewTransferStore(pool),
		balanceStore:      pgstore.NewHolderBalanceStore(pool),
		liquidityStore:    pgstore.NewLiquidityEventStore(pool),
		distributionStore: chstore.NewDistributionStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// newServer builds the runtime, registers the programs, and executes
// the genesis instructions.
func newServer(ctx context.Context, recorder *archive.Recorder, hub *feed.Hub, manualClock bool, startTime int64, maxHolders int) (*Server, error) {
	clock := host.NewManualClock(startTime)
	rt := host.NewRuntime(clock)

	s := &Server{
		rt:          rt,
		clock:       clock,
		hub:         hub,
		manualClock: manualClock,
		started:     time.Now(),

		tokenProgramID:   keyFor("program/token"),
		rewardsProgramID: keyFor("program/rewards"),
		splTokenProgram:  keyFor("program/spl-token"),
		swapProgram:      keyFor("program/swap"),
		dexProgram:       keyFor("program/dex"),

		mintKey:       keyFor("account/mint"),
		poolKey:       keyFor("account/pool"),
		authority:     keyFor("wallet/authority"),
		feeCollector:  keyFor("wallet/fee-collector"),
		reserveWallet: keyFor("wallet/reserve"),
		refMint:       keyFor("account/reference-mint"),
		refAccount:    keyFor("account/reference-asset"),
	}

	sink := domain.MultiSink{recorder, hub, observability.Sink{}}

	rt.RegisterProgram(tokenprocessor.New(tokenprocessor.Options{
		ProgramID: s.tokenProgramID,
		Backend:   rt,
		Invoker:   rt,
		Clock:     clock,
		Sink:      sink,
	}))
	rt.RegisterProgram(rewards.New(rewards.Options{
		ProgramID: s.rewardsProgramID,
		Backend:   rt,
		Invoker:   rt,
		Clock:     clock,
		Sink:      sink,
	}))
	rt.RegisterProgram(host.NewNoopProgram(s.splTokenProgram))
	rt.RegisterProgram(host.NewNoopProgram(s.swapProgram))
	rt.RegisterProgram(host.NewNoopProgram(s.dexProgram))

	rt.CreateAccount(s.mintKey, s.tokenProgramID, token.MintLen+token.FeeScheduleLen)
	rt.CreateAccount(s.poolKey, s.rewardsProgramID,
		rewards.PoolHeaderLen+maxHolders*(token.PublicKeyLen+8))

	err := rt.Execute(ctx, program.Instruction{
		ProgramID: s.tokenProgramID,
		Accounts:  []token.PublicKey{s.mintKey, keyFor("account/rent"), s.feeCollector, s.rewardsProgramID},
		Data: instruction.PackToken(instruction.InitializeMint{
			Decimals:      9,
			MintAuthority: &s.authority,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("initialize mint: %w", err)
	}

	err = rt.Execute(ctx, program.Instruction{
		ProgramID: s.rewardsProgramID,
		Accounts:  []token.PublicKey{s.poolKey, s.refMint, s.refAccount, s.reserveWallet},
		Data:      instruction.PackRewards(instruction.InitializeRewardsPool{}),
	})
	if err != nil {
		return nil, fmt.Errorf("initialize rewards pool: %w", err)
	}

	return s, nil
}

// InstructionRequest is the JSON body for POST /instructions.
type InstructionRequest struct {
	Kind string `json:"kind"`

	// Transfer and mint fields.
	Source      string `json:"source,omitempty"`
	Destination string `json:"destination,omitempty"`
	Amount      uint64 `json:"amount,omitempty"`
	IsBuy       bool   `json:"is_buy,omitempty"`

	// advance_clock field, in seconds.
	Seconds int64 `json:"seconds,omitempty"`

	// Raw fields: base64 instruction data plus an explicit account
	// list, routed to the named program ("token" or "rewards").
	Program  string   `json:"program,omitempty"`
	Data     string   `json:"data,omitempty"`
	Accounts []string `json:"accounts,omitempty"`
}

// InstructionResponse is the JSON reply for POST /instructions.
type InstructionResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Clock int64  `json:"clock"`
}

// handleInstruction executes one engine instruction.
func (s *Server) handleInstruction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req InstructionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	// The engine clock follows wall time unless frozen.
	if !s.manualClock {
		s.clock.Set(time.Now().Unix())
	}

	start := time.Now()
	err := s.execute(r.Context(), req)
	elapsed := time.Since(start)

	s.mu.Lock()
	s.instructions++
	if err != nil {
		s.failures++
	}
	s.mu.Unlock()

	outcome := "success"
	status := http.StatusOK
	resp := InstructionResponse{OK: true, Clock: s.clock.Now()}
	if err != nil {
		outcome = "error"
		resp.OK = false
		resp.Error = err.Error()
		status = errorStatus(err)
	}
	label := programLabel(req.Kind)
	if req.Kind == "raw" && req.Program != "" {
		label = req.Program
	}
	observability.RecordInstruction(label, req.Kind, outcome, elapsed.Seconds())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// execute maps one API request onto an engine instruction.
func (s *Server) execute(ctx context.Context, req InstructionRequest) error {
	switch req.Kind {
	case "mint_to":
		destination, err := parseKey(req.Destination, "destination")
		if err != nil {
			return err
		}
		return s.rt.Execute(ctx, program.Instruction{
			ProgramID: s.tokenProgramID,
			Accounts:  []token.PublicKey{s.mintKey, destination, s.authority, s.splTokenProgram},
			Data:      instruction.PackToken(instruction.MintTo{Amount: req.Amount}),
		})

	case "transfer":
		source, err := parseKey(req.Source, "source")
		if err != nil {
			return err
		}
		destination, err := parseKey(req.Destination, "destination")
		if err != nil {
			return err
		}
		err = s.rt.Execute(ctx, program.Instruction{
			ProgramID: s.tokenProgramID,
			Accounts: []token.PublicKey{
				source, destination, source, s.splTokenProgram,
				s.mintKey, s.feeCollector, s.rewardsProgramID, s.poolKey,
			},
			Data: instruction.PackToken(instruction.Transfer{Amount: req.Amount, IsBuy: req.IsBuy}),
		})
		if err == nil {
			s.updateHolderGauge()
		}
		return err

	case "swap_fees":
		return s.rt.Execute(ctx, program.Instruction{
			ProgramID: s.rewardsProgramID,
			Accounts:  []token.PublicKey{s.poolKey, s.feeCollector, s.refMint, s.refAccount, s.swapProgram},
			Data:      instruction.PackRewards(instruction.SwapFeesForReferenceAsset{}),
		})

	case "distribute":
		accounts := []token.PublicKey{s.poolKey, s.refAccount, s.reserveWallet}
		holders, err := s.ledgerHolders()
		if err != nil {
			return err
		}
		accounts = append(accounts, holders...)
		return s.rt.Execute(ctx, program.Instruction{
			ProgramID: s.rewardsProgramID,
			Accounts:  accounts,
			Data:      instruction.PackRewards(instruction.DistributeRewards{}),
		})

	case "add_liquidity":
		return s.rt.Execute(ctx, program.Instruction{
			ProgramID: s.rewardsProgramID,
			Accounts:  []token.PublicKey{s.poolKey, s.reserveWallet, s.dexProgram},
			Data:      instruction.PackRewards(instruction.AddLiquidity{}),
		})

	case "seed_pool":
		// Stand-in for the external swap settlement: credit the pool
		// record and the reference asset account directly.
		return s.seedPool(req.Amount)

	case "raw":
		return s.executeRaw(ctx, req)

	case "advance_clock":
		if !s.manualClock {
			return fmt.Errorf("%w: clock follows wall time, start with --manual-clock", program.ErrInvalidInstructionData)
		}
		if req.Seconds <= 0 {
			return fmt.Errorf("%w: seconds must be positive", program.ErrInvalidInstructionData)
		}
		s.clock.Advance(req.Seconds)
		return nil

	default:
		return fmt.Errorf("%w: unknown kind %q", program.ErrInvalidInstructionData, req.Kind)
	}
}

// executeRaw runs base64 instruction data against an explicit account
// list, exactly as encoded by the wire codec.
func (s *Server) executeRaw(ctx context.Context, req InstructionRequest) error {
	var programID token.PublicKey
	switch req.Program {
	case "token":
		programID = s.tokenProgramID
	case "rewards":
		programID = s.rewardsProgramID
	default:
		return fmt.Errorf("%w: unknown program %q", program.ErrInvalidInstructionData, req.Program)
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return fmt.Errorf("%w: data: %v", program.ErrInvalidInstructionData, err)
	}

	accounts := make([]token.PublicKey, len(req.Accounts))
	for i, raw := range req.Accounts {
		key, err := parseKey(raw, fmt.Sprintf("accounts[%d]", i))
		if err != nil {
			return err
		}
		accounts[i] = key
	}

	return s.rt.Execute(ctx, program.Instruction{
		ProgramID: programID,
		Accounts:  accounts,
		Data:      data,
	})
}

// seedPool credits the pool with reference asset units. The region is
// rewritten under the runtime's execution lock so the write cannot
// interleave with an in-flight instruction.
func (s *Server) seedPool(amount uint64) error {
	err := s.rt.WithAccount(s.poolKey, func(a *program.Account) error {
		pool, err := rewards.DecodePool(a.Data)
		if err != nil {
			return fmt.Errorf("decode pool: %w", err)
		}
		pool.TotalReferenceAssetBalance += amount
		if err := pool.Encode(a.Data); err != nil {
			return fmt.Errorf("encode pool: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.rt.SetBalance(s.refAccount, s.rt.Balance(s.refAccount)+amount)
	return nil
}

// ledgerHolders returns the pool's holder keys in payout order.
func (s *Server) ledgerHolders() ([]token.PublicKey, error) {
	var keys []token.PublicKey
	err := s.rt.WithAccount(s.poolKey, func(a *program.Account) error {
		pool, err := rewards.DecodePool(a.Data)
		if err != nil {
			return fmt.Errorf("decode pool: %w", err)
		}
		entries := pool.SortedHolders()
		keys = make([]token.PublicKey, len(entries))
		for i, e := range entries {
			keys[i] = e.Holder
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// updateHolderGauge refreshes the tracked-holders gauge.
func (s *Server) updateHolderGauge() {
	s.rt.WithAccount(s.poolKey, func(a *program.Account) error {
		pool, err := rewards.DecodePool(a.Data)
		if err != nil {
			return err
		}
		observability.DefaultMetrics.HoldersTracked.Set(float64(len(pool.TokenHolders)))
		return nil
	})
}

// StatusResponse is the JSON response for /status.
type StatusResponse struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	Clock            int64  `json:"clock"`
	ManualClock      bool   `json:"manual_clock"`
	Instructions     int    `json:"instructions"`
	Failures         int    `json:"failures"`
	Holders          int    `json:"holders"`
	PoolBalance      uint64 `json:"pool_balance"`
	FeedClients      int    `json:"feed_clients"`
	TokenProgram     string `json:"token_program"`
	RewardsProgram   string `json:"rewards_program"`
	Mint             string `json:"mint"`
	Pool             string `json:"pool"`
	Authority        string `json:"authority"`
	FeeCollector     string `json:"fee_collector"`
	ReserveWallet    string `json:"reserve_wallet"`
	ReferenceAccount string `json:"reference_account"`
}

// handleStatus returns engine state as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	instructions, failures := s.instructions, s.failures
	uptime := time.Since(s.started).String()
	s.mu.Unlock()

	resp := StatusResponse{
		Status:           "running",
		Uptime:           uptime,
		Clock:            s.clock.Now(),
		ManualClock:      s.manualClock,
		Instructions:     instructions,
		Failures:         failures,
		FeedClients:      s.hub.ClientCount(),
		TokenProgram:     s.tokenProgramID.String(),
		RewardsProgram:   s.rewardsProgramID.String(),
		Mint:             s.mintKey.String(),
		Pool:             s.poolKey.String(),
		Authority:        s.authority.String(),
		FeeCollector:     s.feeCollector.String(),
		ReserveWallet:    s.reserveWallet.String(),
		ReferenceAccount: s.refAccount.String(),
	}
	s.rt.WithAccount(s.poolKey, func(a *program.Account) error {
		pool, err := rewards.DecodePool(a.Data)
		if err != nil {
			return err
		}
		resp.Holders = len(pool.TokenHolders)
		resp.PoolBalance = pool.TotalReferenceAssetBalance
		return nil
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// errorStatus maps engine errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, program.ErrInvalidInstructionData),
		errors.Is(err, program.ErrNotEnoughAccounts):
		return http.StatusBadRequest
	case errors.Is(err, program.ErrInsufficientFunds),
		errors.Is(err, program.ErrOverflow):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// programLabel maps an instruction kind to its owning program, for
// the instructions counter.
func programLabel(kind string) string {
	switch kind {
	case "mint_to", "transfer":
		return "token"
	case "swap_fees", "distribute", "add_liquidity", "seed_pool":
		return "rewards"
	default:
		return "host"
	}
}

// parseKey parses a base58 account key from the request.
func parseKey(value, field string) (token.PublicKey, error) {
	if value == "" {
		return token.PublicKey{}, fmt.Errorf("%w: missing %s", program.ErrInvalidInstructionData, field)
	}
	key, err := token.PublicKeyFromBase58(value)
	if err != nil {
		return token.PublicKey{}, fmt.Errorf("%w: %s: %v", program.ErrInvalidInstructionData, field, err)
	}
	return key, nil
}

// keyFor derives a stable 32-byte key from a label.
func keyFor(label string) token.PublicKey {
	return token.PublicKey(sha256.Sum256([]byte(label)))
}

// loadEnvFile loads environment variables from .env if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
