package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type APIConfig struct {
	Addr             string
	DatabaseURL      string
	AdminToken       string
	StartupSeedWorld bool
	DBPool           DBPoolConfig
}

type WorkerConfig struct {
	DatabaseURL      string
	TickEvery        time.Duration
	RunOnce          bool
	StartupSeedWorld bool
	DBPool           DBPoolConfig

	BotSpreadBps          int64
	BotTargetQuantity     int64
	BotMaxNotionalPerTick int64
	BotProducerCadence    int64
	BotMaxJobsPerTick     int64
}

// DBPoolConfig tunes the pgx pool shared by a process.
type DBPoolConfig struct {
	MaxConns        int64
	MinConns        int64
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type CLIConfig struct {
	APIBaseURL string
	AdminToken string
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("MAGNATE_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:             addr,
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		AdminToken:       strings.TrimSpace(os.Getenv("MAGNATE_ADMIN_TOKEN")),
		StartupSeedWorld: envBoolDefault("MAGNATE_STARTUP_SEED_WORLD", true),
		DBPool:           loadDBPoolFromEnv(),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.AdminToken == "" {
		return cfg, fmt.Errorf("MAGNATE_ADMIN_TOKEN is required")
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	cfg := WorkerConfig{
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		TickEvery:        envDurationDefault("MAGNATE_TICK_EVERY", time.Minute),
		RunOnce:          envBoolDefault("MAGNATE_WORKER_RUN_ONCE", false),
		StartupSeedWorld: envBoolDefault("MAGNATE_STARTUP_SEED_WORLD", true),
		DBPool:           loadDBPoolFromEnv(),

		BotSpreadBps:          envInt64Default("MAGNATE_BOT_SPREAD_BPS", 200),
		BotTargetQuantity:     envInt64Default("MAGNATE_BOT_TARGET_QUANTITY", 10),
		BotMaxNotionalPerTick: envInt64Default("MAGNATE_BOT_MAX_NOTIONAL_CENTS", 100_000),
		BotProducerCadence:    envInt64Default("MAGNATE_BOT_PRODUCER_CADENCE", 4),
		BotMaxJobsPerTick:     envInt64Default("MAGNATE_BOT_MAX_JOBS_PER_TICK", 1),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func loadDBPoolFromEnv() DBPoolConfig {
	return DBPoolConfig{
		MaxConns:        envInt64Default("MAGNATE_DB_MAX_CONNS", 20),
		MinConns:        envInt64Default("MAGNATE_DB_MIN_CONNS", 2),
		MaxConnLifetime: envDurationDefault("MAGNATE_DB_CONN_LIFETIME", 30*time.Minute),
		MaxConnIdleTime: envDurationDefault("MAGNATE_DB_CONN_IDLE_TIME", 10*time.Minute),
	}
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("MG_API_BASE_URL", "http://localhost:8080"), "/"),
		AdminToken: strings.TrimSpace(os.Getenv("MG_ADMIN_TOKEN")),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt64Default(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
