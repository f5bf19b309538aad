// edgelord — an arbitrage-detection and execution bot for Polymarket
// prediction markets.
//
// Architecture:
//
//	main.go                     — entry point: loads config, builds the orchestrator, waits for SIGINT/SIGTERM
//	orchestrator/orchestrator.go — wires exchange, pool, registry, book cache, strategies, risk, executor, governor
//	pool/pool.go                — multiplexes market-data WebSocket subscriptions across many connections
//	book/cache.go               — per-token order-book snapshots with update broadcast
//	strategy/*.go               — single-condition, market-rebalancing, and combinatorial arbitrage detectors
//	risk/manager.go             — atomic exposure reservation and circuit breaker
//	executor/executor.go        — parallel multi-leg order submission and partial-fill recovery
//	subscription/manager.go     — priority-ordered expand/contract of active subscriptions
//	governor/governor.go        — latency/resource-driven scaling recommendations
//	exchange/client.go          — REST client for the Polymarket CLOB API
//	exchange/ws.go              — WebSocket market-data adapter feeding the connection pool
//	exchange/auth.go            — L1 (EIP-712) and L2 (HMAC) authentication
//	store/store.go              — JSON file persistence for positions
//	store/stats.go              — rolling opportunity/execution counters
//
// How it makes money:
//
//	The bot watches every outcome of every tracked market for prices that
//	sum to less than the guaranteed payout (binary and N-outcome markets),
//	or for cross-market combinations implied by inferred logical relations
//	that are mispriced relative to each other. When the edge clears the
//	configured thresholds and the risk gate approves it, the executor buys
//	every leg in parallel, locking in a risk-free profit at settlement.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/edgelord/edgelord/internal/api"
	"github.com/edgelord/edgelord/internal/cli"
	"github.com/edgelord/edgelord/internal/config"
	"github.com/edgelord/edgelord/internal/orchestrator"
)

func main() {
	cfgPath := os.Getenv("EDGELORD_CONFIG")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprint(os.Stderr, cli.Render(err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprint(os.Stderr, cli.Render(err))
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	orch, err := orchestrator.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to build orchestrator", "error", err)
		os.Exit(1)
	}

	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, orch, *cfg, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("dashboard server failed", "error", err)
			}
		}()
		logger.Info("dashboard started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := orch.Start(ctx); err != nil {
		logger.Error("failed to start orchestrator", "error", err)
		os.Exit(1)
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	logger.Info("edgelord started",
		"max_connections", cfg.Pool.MaxConnections,
		"max_total_exposure", cfg.Risk.MaxTotalExposure,
		"combinatorial_enabled", cfg.Strategy.Combinatorial.Enabled,
		"dry_run", cfg.DryRun,
	)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop dashboard", "error", err)
		}
	}

	orch.Stop()
	logger.Info("shutdown complete")
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
