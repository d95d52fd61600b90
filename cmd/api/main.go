package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/davidnajera/mentiondesk-backend/api/routes"
	"github.com/davidnajera/mentiondesk-backend/internal/mentions"
	"github.com/davidnajera/mentiondesk-backend/internal/social"
	"github.com/davidnajera/mentiondesk-backend/internal/users"
	"github.com/davidnajera/mentiondesk-backend/pkg/audit"
	"github.com/davidnajera/mentiondesk-backend/pkg/breaker"
	"github.com/davidnajera/mentiondesk-backend/pkg/clock"
	"github.com/davidnajera/mentiondesk-backend/pkg/config"
	"github.com/davidnajera/mentiondesk-backend/pkg/db"
	"github.com/davidnajera/mentiondesk-backend/pkg/gateway"
	"github.com/davidnajera/mentiondesk-backend/pkg/logger"
	"github.com/davidnajera/mentiondesk-backend/pkg/metrics"
	"github.com/davidnajera/mentiondesk-backend/pkg/migrate"
	"github.com/davidnajera/mentiondesk-backend/pkg/outbox"
	redispkg "github.com/davidnajera/mentiondesk-backend/pkg/redis"
)

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

	var redisClient *redispkg.Client
	if cfg.Redis.URL != "" || cfg.Redis.Address != "" {
		redisClient, err = redispkg.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	}

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

	userService, err := users.NewService(users.NewRepository(dbClient.DB()), cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create user service", err)
		os.Exit(1)
	}

	// recover abandoned work from a previous instance
	go func() {
		ctx := logg.WithField(context.Background(), "activation", "startup")
		if err := mentionService.RecoverReplyTasks(ctx); err != nil {
			logg.Error(ctx, "startup reply recovery failed", err)
		}
		if err := mentionService.RecoverFetchTasks(ctx); err != nil {
			logg.Error(ctx, "startup fetch recovery failed", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":       cfg.App.Env,
		"addr":      addr,
		"platforms": cfg.Social.Platforms,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:       cfg,
			Logger:       logg,
			Redis:        redisClient,
			Users:        userService,
			Mentions:     mentionService,
			Social:       socialGateway,
			PromGatherer: registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
