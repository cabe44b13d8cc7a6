package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"magnate/internal/api"
	"magnate/internal/config"
	"magnate/internal/db"
	"magnate/internal/sim"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
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

	server := api.New(cfg, logger, simSvc)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("magnate api listening", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
