// cmd/backtest runs one strategy backtest from the command line and prints
// the summary as JSON. Defaults come from the same environment as the
// server.
//
// Usage:
//
//	go run ./cmd/backtest --symbols=BTC,ETH,SOL --days=30 --interval=1h --risk=3
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/config"
	"github.com/atmx/paper-engine/internal/marketdata"
	"github.com/atmx/paper-engine/internal/simulator"
	"github.com/atmx/paper-engine/internal/store"
	"github.com/atmx/paper-engine/internal/symbol"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	// Flags
	symbols := flag.String("symbols", "BTC,ETH", "Comma-separated symbols, quote currency optional")
	days := flag.Int("days", 30, "Days of history to replay")
	interval := flag.String("interval", "1h", "Kline interval (1m..1w)")
	risk := flag.Int("risk", cfg.RiskLevel, "Risk level 1-5")
	capital := flag.String("capital", cfg.StartingCapital.String(), "Starting capital in the quote currency")
	fee := flag.String("fee", cfg.FeeRate.String(), "Fee rate per fill")
	source := flag.String("source", cfg.MarketData, "Market data: synthetic or binance")
	seed := flag.Int64("seed", cfg.SyntheticSeed, "Seed for synthetic market data")
	exitRules := flag.Bool("exit-rules", false, "Close positions on stop-loss or take-profit")
	dbPath := flag.String("db", cfg.SQLitePath, "SQLite journal to save the run in (empty=none)")
	flag.Parse()

	base := simulator.DefaultConfig()
	base.UserID = "backtest"
	base.QuoteCurrency = cfg.QuoteCurrency
	base.RiskLevel = *risk
	base.EnforceLimits = cfg.EnforceLimits
	base.MaxNotionalPerSymbol = cfg.MaxNotionalPerSymbol
	base.ApplyExitRules = *exitRules
	if base.StartingCapital, err = decimal.NewFromString(*capital); err != nil {
		fatal("invalid --capital", err)
	}
	if base.FeeRate, err = decimal.NewFromString(*fee); err != nil {
		fatal("invalid --fee", err)
	}

	var data marketdata.Source
	switch strings.ToLower(*source) {
	case config.MarketBinance:
		data = marketdata.NewBinanceClient(cfg.BinanceBaseURL, cfg.BinanceRPS, marketdata.WithLogger(logger))
	case config.MarketSynthetic:
		data = marketdata.NewSyntheticSource(*seed, nil)
	default:
		fatal("invalid --source", errors.New(*source))
	}

	var syms []string
	for _, s := range strings.Split(*symbols, ",") {
		if s = symbol.Normalize(s, cfg.QuoteCurrency); s != "" {
			syms = append(syms, s)
		}
	}

	engine, err := simulator.New(base, data, simulator.WithLogger(logger))
	if err != nil {
		fatal("engine init failed", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sum, runErr := engine.RunSimulation(ctx, syms, *days, *interval)
	if sum == nil {
		fatal("backtest failed", runErr)
	}
	if runErr != nil {
		slog.Warn("backtest interrupted, printing partial results", "err", runErr)
	}

	if *dbPath != "" {
		db, err := store.OpenSQLite(*dbPath)
		if err != nil {
			fatal("sqlite open failed", err)
		}
		if err := db.SaveRun(context.Background(), sum); err != nil {
			slog.Error("failed to save run", "id", sum.ID, "err", err)
		}
		db.Close()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sum); err != nil {
		fatal("encode summary", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
