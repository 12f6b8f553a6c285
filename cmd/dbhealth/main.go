package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/partlens/partlens/internal/common"
	"github.com/partlens/partlens/internal/store"
)

// dbhealth checks every backing service the pipeline can be wired to: the
// local sqlite store, the optional Postgres result sink, and the Redis queue.
func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file, using system environment")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	failed := false

	s, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		logger.Error("sqlite store: FAIL", "path", cfg.Store.Path, "error", err)
		failed = true
	} else {
		logger.Info("sqlite store: OK", "path", cfg.Store.Path)
		if cerr := s.Close(); cerr != nil {
			logger.Error("close store", "error", cerr)
		}
	}

	if cfg.Database.DSN != "" {
		sink, err := store.OpenPostgres(ctx, store.PostgresConfig{
			DSN:             cfg.Database.DSN,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
			DialTimeout:     cfg.Database.DialTimeout,
		}, logger)
		if err != nil {
			logger.Error("result sink: FAIL", "error", err)
			failed = true
		} else {
			if err := sink.HealthCheck(ctx, time.Second); err != nil {
				logger.Error("result sink: FAIL", "error", err)
				failed = true
			} else {
				logger.Info("result sink: OK")
			}
			sink.Close()
		}
	} else {
		logger.Info("result sink: skipped (DB_URL not set)")
	}

	opt, err := redis.ParseURL(cfg.Queue.RedisURL)
	if err != nil {
		logger.Error("redis queue: FAIL", "url", cfg.Queue.RedisURL, "error", err)
		failed = true
	} else {
		rdb := redis.NewClient(opt)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Error("redis queue: FAIL", "url", cfg.Queue.RedisURL, "error", err)
			failed = true
		} else {
			logger.Info("redis queue: OK", "url", cfg.Queue.RedisURL)
		}
		cancel()
		if cerr := rdb.Close(); cerr != nil {
			logger.Error("close redis client", "error", cerr)
		}
	}

	if failed {
		os.Exit(1)
	}
}
