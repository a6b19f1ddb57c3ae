// Command arbitrage runs the BTC 15-minute up/down arbitrage engine.
//
// Architecture:
//
//	main.go                 — entry point: loads config, wires components, waits for SIGINT/SIGTERM
//	internal/config         — viper-backed Config with YAML + POLY_* env overrides
//	internal/venue          — CLOB REST client, L1/L2 auth, EIP-712 order signing, rate limiting
//	internal/feed           — WebSocket market feed with exponential-backoff reconnect
//	internal/book           — local order book mirror + fill-walk/VWAP calculator
//	internal/detector       — pure arbitrage detection over a pair of order books
//	internal/executor       — paired order submission, fill classification, unwind, cooldown
//	internal/discovery      — resolves the current tradeable 15-minute market
//	internal/driver         — the discover → watch → detect → execute loop
//
// How it makes money:
//
//	Each 15-minute market settles one UP share and one DOWN share at
//	$1.00 combined, always. When the best ask on UP plus the best ask on
//	DOWN sums to strictly less than that combined payout, buying both
//	locks in the difference as risk-free profit regardless of outcome.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"polymarket-arb/internal/config"
	"polymarket-arb/internal/discovery"
	"polymarket-arb/internal/driver"
	"polymarket-arb/internal/executor"
	"polymarket-arb/internal/venue"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("POLY_CONFIG"); p != "" {
		cfgPath = p
	}

	bootstrapLogger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		bootstrapLogger.Error().Err(err).Str("path", cfgPath).Msg("failed to load config")
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		bootstrapLogger.Error().Err(err).Msg("invalid config")
		os.Exit(1)
	}

	logger := buildLogger(*cfg)

	auth, err := venue.NewAuth(*cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build auth")
		os.Exit(1)
	}

	client := venue.NewClient(*cfg, auth, logger)
	if !auth.HasL2Credentials() && !cfg.DryRun {
		logger.Warn().Msg("no L2 credentials configured; order submission will fail until api_key/secret/passphrase are set")
	}

	exec := executor.New(*cfg, client, logger)
	disc := discovery.New(*cfg, logger)
	drv := driver.New(*cfg, disc, client, exec, logger)

	if cfg.DryRun {
		logger.Warn().Msg("DRY-RUN MODE — no real orders will be placed")
	}

	logger.Info().
		Str("target_pair_cost", cfg.Trading.TargetPairCost.String()).
		Str("order_size", cfg.Trading.OrderSize.String()).
		Str("order_type", cfg.Trading.OrderType).
		Bool("dry_run", cfg.DryRun).
		Msg("arbitrage engine started")

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- drv.Run(ctx, cfg.API.WSBaseURL) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-runErr:
		if err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("driver exited unexpectedly")
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.RequestTimeout)
	defer shutdownCancel()
	if err := client.CancelAll(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to cancel all orders on shutdown")
	}

	stats := exec.Stats()
	logger.Info().
		Int64("opportunities_found", stats.OpportunitiesFound).
		Int64("trades_executed", stats.TradesExecuted).
		Str("total_invested", stats.TotalInvested.String()).
		Str("expected_profit", stats.ExpectedProfit().String()).
		Msg("shutdown complete")
}

func buildLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Logging.Format == "json" {
		return zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
}
