package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/scribeflow/scribeflow-backend/api/routes"
	"github.com/scribeflow/scribeflow-backend/internal/billing"
	"github.com/scribeflow/scribeflow-backend/internal/catalog"
	"github.com/scribeflow/scribeflow-backend/internal/entitlements"
	subscriptionsvc "github.com/scribeflow/scribeflow-backend/internal/subscriptions"
	"github.com/scribeflow/scribeflow-backend/internal/users"
	polarwebhook "github.com/scribeflow/scribeflow-backend/internal/webhooks/polar"
	"github.com/scribeflow/scribeflow-backend/pkg/config"
	"github.com/scribeflow/scribeflow-backend/pkg/db"
	"github.com/scribeflow/scribeflow-backend/pkg/email"
	"github.com/scribeflow/scribeflow-backend/pkg/logger"
	"github.com/scribeflow/scribeflow-backend/pkg/migrate"
	"github.com/scribeflow/scribeflow-backend/pkg/polar"
	"github.com/scribeflow/scribeflow-backend/pkg/redis"
)

const webhookDedupTTL = 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	var sender email.Sender
	if cfg.Postmark.ServerToken != "" {
		sender, err = email.NewPostmarkSender(cfg.Postmark)
		if err != nil {
			logg.Error(context.Background(), "failed to create postmark sender", err)
			os.Exit(1)
		}
	} else {
		sender = email.NewNoopSender(logg)
	}

	billingRepo := billing.NewRepository(dbClient.DB())
	catalogRepo := catalog.NewRepository(dbClient.DB())
	usersRepo := users.NewRepository(dbClient.DB())

	entitlementsService, err := entitlements.NewService(entitlements.ServiceParams{
		Repo: entitlements.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create entitlements service", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalog.ServiceParams{
		Repo:              catalogRepo,
		Provider:          polarClient,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	subscriptionService, err := subscriptionsvc.NewService(subscriptionsvc.ServiceParams{
		BillingRepo: billingRepo,
		CatalogRepo: catalogRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	webhookService, err := polarwebhook.NewService(polarwebhook.ServiceParams{
		BillingRepo:       billingRepo,
		ProfileRepo:       usersRepo,
		Entitlements:      entitlementsService,
		TransactionRunner: dbClient,
		EntitlementsCfg:   cfg.Entitlements,
		EmailSender:       sender,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := polarwebhook.NewIdempotencyGuard(redisClient, webhookDedupTTL, "polar")
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency guard", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":       cfg.App.Env,
		"addr":      addr,
		"polar_env": polarClient.Environment(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:              cfg,
			Logger:              logg,
			Redis:               redisClient,
			PolarClient:         polarClient,
			CatalogService:      catalogService,
			SubscriptionService: subscriptionService,
			EntitlementsService: entitlementsService,
			CustomerFinder:      billingRepo,
			WebhookService:      webhookService,
			WebhookGuard:        webhookGuard,
			MetricsRegistry:     registry,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-shutdownCh
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}
