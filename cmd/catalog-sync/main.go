package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/scribeflow/scribeflow-backend/internal/catalog"
	"github.com/scribeflow/scribeflow-backend/pkg/config"
	"github.com/scribeflow/scribeflow-backend/pkg/db"
	"github.com/scribeflow/scribeflow-backend/pkg/logger"
	"github.com/scribeflow/scribeflow-backend/pkg/migrate"
	"github.com/scribeflow/scribeflow-backend/pkg/polar"
	"github.com/scribeflow/scribeflow-backend/pkg/redis"
)

const (
	lockKey = "catalog-sync:lock"
	lockTTL = 5 * time.Minute
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "catalog-sync"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	interval := flag.Duration("interval", 0, "re-sync interval; zero runs a single pass")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "catalog-sync",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	polarClient, err := polar.NewClient(context.Background(), cfg.Polar, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create polar client", err)
		os.Exit(1)
	}

	service, err := catalog.NewService(catalog.ServiceParams{
		Repo:              catalog.NewRepository(dbClient.DB()),
		Provider:          polarClient,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"polar_env": polarClient.Environment(),
	})
	logg.Info(ctx, "starting catalog sync")

	run := func() {
		// Only one instance syncs at a time; the lock expires on its own if
		// the process dies mid-pass.
		acquired, err := redisClient.SetNX(ctx, lockKey, "1", lockTTL)
		if err != nil {
			logg.Error(ctx, "acquire sync lock", err)
			return
		}
		if !acquired {
			logg.Warn(ctx, "sync already in progress elsewhere, skipping")
			return
		}
		defer func() {
			if err := redisClient.Del(ctx, lockKey); err != nil {
				logg.Error(ctx, "release sync lock", err)
			}
		}()

		if _, err := service.Sync(ctx); err != nil {
			logg.Error(ctx, "catalog sync failed", err)
		}
	}

	run()
	if *interval <= 0 {
		logg.Info(ctx, "catalog sync complete")
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if !errors.Is(ctx.Err(), context.Canceled) {
				logg.Error(ctx, "catalog sync stopped unexpectedly", ctx.Err())
			}
			logg.Info(ctx, "catalog sync shutting down gracefully")
			return
		case <-ticker.C:
			run()
		}
	}
}
