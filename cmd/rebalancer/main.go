package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"

	"github.com/jdamico/rebalancer/config"
	"github.com/jdamico/rebalancer/internal/adapters/schwab"
	"github.com/jdamico/rebalancer/internal/adapters/storage"
	"github.com/jdamico/rebalancer/internal/allocation"
	"github.com/jdamico/rebalancer/internal/execution"
	"github.com/jdamico/rebalancer/internal/ledger"
	"github.com/jdamico/rebalancer/internal/orchestrator"
	"github.com/jdamico/rebalancer/internal/report"
	"github.com/jdamico/rebalancer/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	cancelOrders := flag.Bool("cancel-orders", false, "cancel outstanding orders for all accounts and exit")
	refreshTrips := flag.Bool("refresh-roundtrips", false, "refresh today's round-trip counts and exit")
	printReport := flag.Bool("report", false, "print stored portfolios and exit")
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

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *printReport {
		portfolios, err := store.GetAllPortfolios(ctx)
		if err != nil {
			slog.Error("failed to load portfolios", "err", err)
			os.Exit(1)
		}
		report.NewConsole().Print(portfolios)
		return
	}

	broker := schwab.NewClient(cfg.Broker.BaseURL, store)

	orch := orchestrator.New(
		store,
		broker,
		broker,
		allocation.NewAllocator(cfg.Rebalance.MaxResidualBranches),
		execution.New(broker, execution.Config{
			PollInterval: cfg.PollInterval(),
			FillTimeout:  cfg.FillTimeout(),
		}),
		ledger.New(broker, ledgerConfig(cfg)),
		orchestrator.Config{
			Workers:              cfg.Rebalance.Workers,
			SkipWhenSymbolsMatch: cfg.SkipWhenSymbolsMatch(),
			CancelWindow:         cfg.CancelWindow(),
		},
	)

	switch {
	case *cancelOrders:
		if err := orch.CancelAllOutstanding(ctx); err != nil {
			slog.Error("cancel run failed", "err", err)
			os.Exit(1)
		}
		slog.Info("outstanding orders cleared")

	case *refreshTrips:
		if err := orch.RefreshRoundTrips(ctx); err != nil {
			slog.Error("round-trip refresh failed", "err", err)
			os.Exit(1)
		}
		slog.Info("round trips refreshed")

	default:
		signals := strategy.New(broker, broker)
		regime, candidates, err := signals.SelectRegime(ctx)
		if err != nil {
			slog.Error("strategy failed", "err", err)
			os.Exit(1)
		}
		slog.Info("candidates selected", "regime", regime, "symbols", candidates)

		if _, err := orch.RunAll(ctx, candidates); err != nil {
			slog.Error("rebalance run failed", "err", err)
			os.Exit(1)
		}
	}

	slog.Info("rebalancer finished cleanly")
}

func ledgerConfig(cfg *config.Config) ledger.Config {
	return ledger.Config{
		TrailPercent:       decimal.NewFromFloat(cfg.Ledger.TrailPercent),
		DayTradeLimit:      cfg.Ledger.DayTradeLimit,
		LookbackDays:       cfg.Ledger.LookbackDays,
		PlaceTrailingStops: cfg.Ledger.PlaceTrailingStops,
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
