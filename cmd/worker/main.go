package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/davidnajera/mentiondesk-backend/internal/mentions"
	"github.com/davidnajera/mentiondesk-backend/internal/recovery"
	"github.com/davidnajera/mentiondesk-backend/internal/social"
	"github.com/davidnajera/mentiondesk-backend/pkg/audit"
	"github.com/davidnajera/mentiondesk-backend/pkg/breaker"
	"github.com/davidnajera/mentiondesk-backend/pkg/clock"
	"github.com/davidnajera/mentiondesk-backend/pkg/config"
	"github.com/davidnajera/mentiondesk-backend/pkg/db"
	"github.com/davidnajera/mentiondesk-backend/pkg/gateway"
	"github.com/davidnajera/mentiondesk-backend/pkg/logger"
	"github.com/davidnajera/mentiondesk-backend/pkg/metrics"
	"github.com/davidnajera/mentiondesk-backend/pkg/outbox"
	redispkg "github.com/davidnajera/mentiondesk-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	redisClient, err := redispkg.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	registry := prometheus.NewRegistry()
	clk := clock.New()

	gatewayClient, err := gateway.NewClient(gateway.ClientParams{
		Config:  cfg.Social,
		Clock:   clk,
		Logger:  logg,
		Metrics: metrics.NewGatewayMetrics(registry),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway client", err)
		os.Exit(1)
	}

	breakerStore := breaker.NewGormStore(dbClient.DB())
	breakers := breaker.NewRegistry(breaker.Options{
		MaxFailures:  cfg.Breaker.MaxFailures,
		ResetTimeout: cfg.Breaker.ResetTimeout,
	}, clk, breakerStore, logg, metrics.NewBreakerMetrics(registry))

	socialGateway, err := social.New(social.Params{
		Config:   cfg.Social,
		Retry:    cfg.Retry,
		Client:   gatewayClient,
		Breakers: breakers,
		Store:    breakerStore,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create social gateway", err)
		os.Exit(1)
	}

	mentionService, err := mentions.NewService(mentions.ServiceParams{
		DB:       dbClient,
		Mentions: mentions.NewRepository(dbClient.DB()),
		Tasks:    outbox.NewRepository(dbClient.DB()),
		Audits:   audit.NewWriter(dbClient.DB()),
		Social:   socialGateway,
		Clock:    clk,
		Logger:   logg,
		Metrics:  metrics.NewLoopMetrics(registry),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create mention engine", err)
		os.Exit(1)
	}

	lock, err := recovery.NewRedisLock(redisClient, redisClient.LockKey("recovery-sweep"), cfg.Worker.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create recovery lock", err)
		os.Exit(1)
	}

	svc, err := recovery.NewService(recovery.ServiceParams{
		Logger:   logg,
		Engine:   mentionService,
		Lock:     lock,
		Interval: cfg.Worker.SweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create recovery service", err)
		os.Exit(1)
	}

	ctx := logg.WithField(context.Background(), "env", cfg.App.Env)
	logg.Info(ctx, "starting recovery worker")
	if err := svc.Run(ctx); err != nil && err != context.Canceled {
		logg.Error(ctx, "recovery worker stopped unexpectedly", err)
		os.Exit(1)
	}
}
