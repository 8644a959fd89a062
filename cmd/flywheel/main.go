package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alejandrodnm/flywheel/config"
	"github.com/alejandrodnm/flywheel/internal/adapters/dexscreener"
	"github.com/alejandrodnm/flywheel/internal/adapters/notify"
	"github.com/alejandrodnm/flywheel/internal/adapters/solana"
	"github.com/alejandrodnm/flywheel/internal/adapters/storage"
	"github.com/alejandrodnm/flywheel/internal/adapters/stub"
	"github.com/alejandrodnm/flywheel/internal/adapters/venue"
	"github.com/alejandrodnm/flywheel/internal/domain"
	"github.com/alejandrodnm/flywheel/internal/engine"
	"github.com/alejandrodnm/flywheel/internal/observability"
	"github.com/alejandrodnm/flywheel/internal/policy"
	"github.com/alejandrodnm/flywheel/internal/ports"
	"github.com/alejandrodnm/flywheel/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one cycle per account and exit")
	dryRun := flag.Bool("dry-run", false, "use simulated venue and oracle, no real money")
	report := flag.String("report", "", "print the report for the given account id and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("flywheel starting",
		"config", *configPath,
		"evaluate_interval", cfg.EvaluateInterval(),
		"claim_interval", cfg.ClaimInterval(),
		"storage", cfg.Storage.Driver,
		"policy", cfg.Policy.Source,
		"dry_run", *dryRun,
		"once", *once,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg, *dryRun)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "driver", cfg.Storage.Driver)
		os.Exit(1)
	}
	defer store.Close()

	if *report != "" {
		printReport(ctx, store, *report)
		return
	}

	registry := prometheus.NewRegistry()
	metrics := observability.New(registry)

	oracle, tradeVenue, claims := buildAdapters(ctx, cfg, store, *dryRun)
	decider := buildPolicy(cfg)
	notifier := buildNotifier(cfg)

	engineCfg := engine.Config{
		SwapAttempts:    cfg.Engine.SwapAttempts,
		RetryBase:       cfg.RetryBase(),
		SnapshotTTL:     cfg.SnapshotTTL(),
		CycleTimeout:    cfg.CycleTimeout(),
		MinSpendSOL:     cfg.Engine.MinSpendSOL,
		ServiceFeePct:   cfg.Engine.ServiceFeePct,
		TreasuryAddress: cfg.Treasury.Address,
	}
	eng := engine.New(oracle, decider, tradeVenue, claims, store, notifier, metrics, engineCfg)

	if cfg.Metrics.Enabled && !*once {
		go serveMetrics(cfg.Metrics.Addr, registry)
	}

	if *once {
		runOnce(ctx, eng, store)
		return
	}

	sweep := buildSweep(cfg, oracle, tradeVenue, claims, store, notifier, metrics, engineCfg)

	sched := scheduler.New(eng, store, metrics, scheduler.Config{
		EvaluateInterval: cfg.EvaluateInterval(),
		ClaimInterval:    cfg.ClaimInterval(),
		SweepCron:        cfg.Scheduler.SweepCron,
		FanOut:           cfg.Scheduler.FanOut,
		AccountDelay:     cfg.AccountDelay(),
	}, sweep)

	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("scheduler exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("flywheel stopped cleanly")
}

// runOnce executes a single cycle for every active account, serially.
func runOnce(ctx context.Context, eng *engine.Engine, store ports.LedgerStore) {
	accounts, err := store.ListActive(ctx)
	if err != nil {
		slog.Error("listing accounts failed", "err", err)
		os.Exit(1)
	}
	if len(accounts) == 0 {
		slog.Warn("no active accounts")
		return
	}

	for _, account := range accounts {
		result := eng.RunCycle(ctx, account)
		slog.Info("cycle done", "account", account.ID, "status", result.Status)
	}
}

func printReport(ctx context.Context, store ports.LedgerStore, accountID string) {
	account, err := store.GetAccount(ctx, accountID)
	if err != nil {
		slog.Error("account lookup failed", "err", err, "account", accountID)
		os.Exit(1)
	}
	ledger, err := store.Ledger(ctx, accountID)
	if err != nil {
		slog.Error("ledger lookup failed", "err", err, "account", accountID)
		os.Exit(1)
	}
	cycles, err := store.RecentCycles(ctx, accountID, 20)
	if err != nil {
		slog.Error("cycle history lookup failed", "err", err, "account", accountID)
		os.Exit(1)
	}
	notify.NewConsole().PrintReport(account, ledger, cycles)
}

func openStore(ctx context.Context, cfg *config.Config, dryRun bool) (ports.LedgerStore, error) {
	if dryRun {
		return storage.NewMemoryStore(), nil
	}
	switch cfg.Storage.Driver {
	case "postgres":
		return storage.NewPostgresStore(ctx, cfg.Storage.DSN)
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return storage.NewSQLiteStore(cfg.Storage.DSN)
	}
}

func buildAdapters(ctx context.Context, cfg *config.Config, store ports.LedgerStore, dryRun bool) (ports.OracleClient, ports.VenueAdapter, ports.FeeClaimAdapter) {
	if dryRun {
		oracle := stub.NewOracle()
		simVenue := stub.NewVenue(1_000_000)
		claims := stub.NewClaims(0.05, simVenue)
		seedDryRun(ctx, store, oracle, simVenue)
		return oracle, simVenue, claims
	}

	rpc := solana.NewClient(cfg.API.RPCURL)
	trade := venue.New(cfg.API.VenueBase, rpc)
	return dexscreener.NewClient(cfg.API.OracleBase), trade, trade
}

// seedDryRun installs one demo account with a funded balance and a
// dipped market so a dry run exercises the full cycle end to end.
func seedDryRun(ctx context.Context, store ports.LedgerStore, oracle *stub.Oracle, simVenue *stub.Venue) {
	const demoMint = "DemoMint1111111111111111111111111111111111"

	account := domain.ManagedAccount{
		ID:        "demo",
		Owner:     "dry-run",
		SecretKey: "unused",
		AssetMint: demoMint,
		Mode:      domain.ModeStandard,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.PutAccount(ctx, account); err != nil {
		slog.Warn("dry-run seed failed", "err", err)
		return
	}

	simVenue.Fund(account.ID, 1.5)
	oracle.Set(demoMint, domain.MarketSnapshot{
		PriceUSD:       0.0000321,
		PriceChange24h: -8.4,
		Volume24h:      42_000,
		LiquidityUSD:   18_000,
		MarketCapUSD:   31_000,
		CurveProgress:  45,
	})
	slog.Info("dry run seeded", "account", account.ID, "balance_sol", 1.5)
}

func buildPolicy(cfg *config.Config) ports.DecisionPolicy {
	if cfg.Policy.Source == "anthropic" && cfg.Policy.AnthropicAPIKey != "" {
		return policy.NewAnthropic(cfg.API.AnthropicBase, cfg.Policy.AnthropicAPIKey, cfg.Policy.AnthropicModel)
	}
	if cfg.Policy.Source == "anthropic" {
		slog.Warn("anthropic policy requested but ANTHROPIC_API_KEY not set, using heuristic")
	}
	return policy.NewHeuristic()
}

func buildNotifier(cfg *config.Config) ports.Notifier {
	var sinks []ports.Notifier
	if cfg.Notify.Console {
		sinks = append(sinks, notify.NewConsole())
	}
	if cfg.Notify.TelegramEnabled && cfg.Notify.TelegramToken != "" {
		sinks = append(sinks, notify.NewTelegram(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	return notify.NewMulti(sinks...)
}

// buildSweep wires the hourly treasury sweep: collected service fees
// buy the platform token and burn it, unconditionally, through a
// second engine that shares every adapter but uses the static policy.
func buildSweep(
	cfg *config.Config,
	oracle ports.OracleClient,
	tradeVenue ports.VenueAdapter,
	claims ports.FeeClaimAdapter,
	store ports.LedgerStore,
	notifier ports.Notifier,
	metrics *observability.Metrics,
	engineCfg engine.Config,
) func(ctx context.Context) {
	if cfg.Treasury.SecretKey == "" || cfg.Treasury.TokenMint == "" {
		slog.Info("treasury sweep disabled: no treasury key or token mint configured")
		return nil
	}

	// The sweep pays no service fee on itself.
	sweepCfg := engineCfg
	sweepCfg.ServiceFeePct = 0
	sweepCfg.TreasuryAddress = ""

	sweepEngine := engine.New(oracle,
		policy.NewStatic(0.9, "treasury fee sweep"),
		tradeVenue, claims, store, notifier, metrics, sweepCfg)

	treasury := domain.ManagedAccount{
		ID:        "treasury",
		Owner:     "platform",
		SecretKey: cfg.Treasury.SecretKey,
		AssetMint: cfg.Treasury.TokenMint,
		Mode:      domain.ModeStandard,
		// Inactive keeps it out of the regular evaluate tick; only the
		// cron sweep runs cycles for it.
		Active:    false,
		CreatedAt: time.Now().UTC(),
	}
	// The treasury needs an account row so cycle records have a parent.
	if err := store.PutAccount(context.Background(), treasury); err != nil {
		slog.Warn("treasury account upsert failed", "err", err)
	}

	threshold := cfg.Treasury.SweepThresholdSOL
	keep := cfg.Treasury.KeepSOL
	return func(ctx context.Context) {
		balance, err := tradeVenue.Balance(ctx, treasury)
		if err != nil {
			slog.Warn("treasury sweep: balance check failed", "err", err)
			return
		}
		// KeepSOL stays behind as a tx fee buffer and never counts
		// toward the sweepable balance.
		if balance-keep < threshold {
			slog.Debug("treasury sweep: below threshold",
				"balance", balance, "keep", keep, "threshold", threshold)
			return
		}
		result := sweepEngine.RunCycle(ctx, treasury)
		slog.Info("treasury sweep done", "status", result.Status,
			"spent_sol", result.SpendSOL, "burned", result.BurnedAmount)
	}
}

func serveMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(registry))
	slog.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server failed", "err", err)
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
