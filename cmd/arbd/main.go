// arbd is the arbitrage daemon entry point.
//
// Architecture:
//
//	main.go                  — loads config, wires every collaborator, waits for SIGINT/SIGTERM
//	internal/market          — Market Store: order books, top-of-book, registered pairs
//	internal/feed            — Feed Handler: streaming connection, reconnect/backoff, resubscription sweep
//	internal/strategy        — SumTo100, Clipper, Sniper: pure functions of the Market Store
//	internal/enginecore      — Strategy Engine: 100ms tick loop, intent collection + fan-out
//	internal/risk            — Risk Gate: admission control, position/PnL accounting, kill switch
//	internal/execution       — Executor: signs and places orders (or simulates fills in dry-run)
//	internal/fanout          — Hub/Notifier/Store: non-blocking side-effect sinks
//	internal/metrics         — Prometheus collector bundle
//	internal/httpapi         — /health and /metrics HTTP surface
//
// Grounded on the teacher's cmd/bot/main.go for the overall shape (config
// load/validate, slog setup, signal wait, graceful stop) — rewired end to
// end for the new engine/risk/execution/fanout stack.
package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"polymarket-arb/internal/config"
	"polymarket-arb/internal/enginecore"
	"polymarket-arb/internal/execution"
	"polymarket-arb/internal/fanout"
	"polymarket-arb/internal/feed"
	"polymarket-arb/internal/httpapi"
	"polymarket-arb/internal/market"
	"polymarket-arb/internal/metrics"
	"polymarket-arb/internal/risk"
	"polymarket-arb/internal/sportsfeed"
	"polymarket-arb/internal/strategy"
)

const shutdownGrace = 30 * time.Second

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("POLY_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)

	store := market.NewStore()
	for _, p := range cfg.Pairs {
		store.RegisterPair(market.MarketPair{
			MarketID: p.MarketID,
			YesToken: p.YesToken,
			NoToken:  p.NoToken,
			Question: p.Question,
		})
	}

	metricsBundle := metrics.New()

	var signer *ecdsa.PrivateKey
	if !cfg.DryRun {
		signer, err = loadSigner(cfg.Executor.SigningKey)
		if err != nil {
			logger.Error("failed to load signing key", "error", err)
			os.Exit(1)
		}
	}

	executor := execution.NewExecutor(execution.Config{
		BaseURL:      cfg.Executor.BaseURL,
		APIKey:       cfg.Executor.APIKey,
		APISecret:    cfg.Executor.APISecret,
		DryRun:       cfg.DryRun,
		PaperFeeRate: cfg.Executor.PaperFeeRate,
	}, signer, store, logger)

	gate := risk.NewGate(risk.Config{
		MaxPosition:               cfg.Risk.MaxPosition,
		MaxNotional:               cfg.Risk.MaxNotional,
		MaxDailyLoss:              cfg.Risk.MaxDailyLoss,
		CancelOnPartialArbFailure: cfg.Risk.CancelOnPartialArbFailure,
	}, logger, func(reason risk.RejectReason) {
		logger.Warn("risk gate rejected intent", "reason", reason)
		metricsBundle.RiskRejections.WithLabelValues(string(reason)).Inc()
	})

	strategies := buildStrategies(cfg, logger)

	hub := fanout.NewHub(logger)
	notifier := fanout.NewNotifier(fanout.NotifierConfig{
		WebhookURL:   cfg.Fanout.NotifierWebhook,
		NotifyOrders: cfg.Fanout.NotifyOrders,
		NotifyRisk:   cfg.Fanout.NotifyRisk,
		NotifyErrors: cfg.Fanout.NotifyErrors,
	}, logger)
	persist, err := fanout.Open(cfg.Fanout.StoreURL, logger)
	if err != nil {
		logger.Error("failed to open persistent store", "error", err)
		os.Exit(1)
	}
	defer persist.Close()

	eng := enginecore.New(enginecore.Config{
		Store:                     store,
		Strategies:                strategies,
		Gate:                      gate,
		Executor:                  executor,
		Hub:                       hub,
		Notifier:                  notifier,
		Persist:                   persist,
		Metrics:                   metricsBundle,
		CancelOnPartialArbFailure: cfg.Risk.CancelOnPartialArbFailure,
	}, logger)

	feedHandler := feed.NewHandler(cfg.Feed.URL, store, metricsBundle, logger)
	httpServer := httpapi.New(cfg.HTTP.Addr, store, metricsBundle, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error("http api failed", "error", err)
		}
	}()
	go func() {
		if err := feedHandler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("feed handler exited", "error", err)
		}
	}()

	logger.Info("arbd started",
		"dry_run", cfg.DryRun,
		"sum_to_100", cfg.Strategy.SumTo100.Enabled,
		"clipper", cfg.Strategy.Clipper.Enabled,
		"sniper", cfg.Strategy.Sniper.Enabled,
	)
	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("engine exited", "error", err)
	}

	logger.Info("shutting down", "grace", shutdownGrace)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop http api", "error", err)
	}
}

func buildStrategies(cfg *config.Config, logger *slog.Logger) []strategy.Strategy {
	var out []strategy.Strategy

	if cfg.Strategy.SumTo100.Enabled {
		out = append(out, strategy.NewSumTo100Strategy(strategy.SumTo100Config{
			Enabled:      true,
			MinEdge:      cfg.Strategy.SumTo100.MinEdge,
			MaxPosition:  cfg.Strategy.SumTo100.MaxPosition,
			MaxNotional:  cfg.Strategy.SumTo100.MaxNotional,
			MinLiquidity: cfg.Strategy.SumTo100.MinLiquidity,
			FeeRate:      cfg.Strategy.SumTo100.FeeRate,
			PaperTrading: cfg.Strategy.SumTo100.PaperTrading,
			MaxBookAgeMs: cfg.Strategy.SumTo100.MaxBookAgeMs,
		}))
	}
	if cfg.Strategy.Clipper.Enabled {
		out = append(out, strategy.NewClipperStrategy(strategy.ClipperConfig{
			Enabled:     true,
			MinProfit:   cfg.Strategy.Clipper.MinProfit,
			MaxPosition: cfg.Strategy.Clipper.MaxPosition,
			MaxNotional: cfg.Strategy.Clipper.MaxNotional,
		}))
	}
	if cfg.Strategy.Sniper.Enabled {
		logger.Warn("sniper strategy enabled with no live results feed wired in; using a static empty feed")
		out = append(out, strategy.NewSniperStrategy(strategy.SniperConfig{
			Enabled:   true,
			MinPrice:  cfg.Strategy.Sniper.MinPrice,
			MaxPrice:  cfg.Strategy.Sniper.MaxPrice,
			MinProfit: cfg.Strategy.Sniper.MinProfit,
			OrderSize: cfg.Strategy.Sniper.OrderSize,
		}, &sportsfeed.StaticFeed{}))
	}
	return out
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func loadSigner(hexKey string) (*ecdsa.PrivateKey, error) {
	if hexKey == "" {
		return nil, fmt.Errorf("executor.signing_key is required")
	}
	pk, err := crypto.HexToECDSA(trimHexPrefix(hexKey))
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	return pk, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
