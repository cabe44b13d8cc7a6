package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"magnate/internal/bots"
	"magnate/internal/config"
	"magnate/internal/db"
	"magnate/internal/sim"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolConfig{
		MaxConns:        int32(cfg.DBPool.MaxConns),
		MinConns:        int32(cfg.DBPool.MinConns),
		MaxConnLifetime: cfg.DBPool.MaxConnLifetime,
		MaxConnIdleTime: cfg.DBPool.MaxConnIdleTime,
	})
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	simSvc := sim.NewService(pool, logger)
	if cfg.StartupSeedWorld {
		if err := simSvc.SeedWorld(ctx); err != nil {
			logger.Error("seed world failed", "err", err)
			os.Exit(1)
		}
	}

	botCfg := bots.Config{
		SpreadBps:               cfg.BotSpreadBps,
		TargetQuantity:          cfg.BotTargetQuantity,
		MaxNotionalCentsPerTick: cfg.BotMaxNotionalPerTick,
		ProducerCadenceTicks:    cfg.BotProducerCadence,
		MaxJobsPerTick:          int(cfg.BotMaxJobsPerTick),
	}

	if cfg.RunOnce {
		if err := runTick(ctx, simSvc, botCfg, logger); err != nil {
			logger.Error("tick failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	ticker := time.NewTicker(cfg.TickEvery)
	defer ticker.Stop()

	logger.Info("worker started", "tick_every", cfg.TickEvery.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			if err := runTick(ctx, simSvc, botCfg, logger); err != nil {
				logger.Error("tick failed", "err", err)
				continue
			}
		}
	}
}

// runTick advances one tick and then lets bots react to the new state. A lock
// conflict means another advancer won the race; one re-read-and-retry covers
// the common case of overlapping operators.
func runTick(ctx context.Context, svc *sim.Service, botCfg bots.Config, logger *slog.Logger) error {
	err := svc.AdvanceSimulationTicks(ctx, 1)
	if sim.IsLockConflict(err) {
		logger.Warn("tick advance lost the race, retrying once")
		err = svc.AdvanceSimulationTicks(ctx, 1)
	}
	if err != nil {
		return err
	}

	result, err := svc.RunBotsForTick(ctx, -1, botCfg)
	if err != nil {
		return err
	}
	logger.Info("bot pass complete",
		"placed_orders", result.PlacedOrders,
		"started_production_jobs", result.StartedProductionJobs)
	return nil
}
