// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"saas-billing/internal/config"
	"saas-billing/internal/domain/ports/notify"
	"saas-billing/internal/domain/ports/repository"
	pg "saas-billing/internal/infra/db/postgres"
	"saas-billing/internal/infra/logging"
	"saas-billing/internal/infra/metrics"
	red "saas-billing/internal/infra/redis"
	"saas-billing/internal/infra/web"
	"saas-billing/internal/infra/ws"
	"saas-billing/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed auth)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, int32(cfg.Database.PoolSize))
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis (plan-catalog cache) ----
	var planRepo repository.PlanRepository = pg.NewPlanRepo(pool)
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, plan cache disabled")
	} else {
		defer redisClient.Close()
		planRepo = pg.NewPlanRepoCacheDecorator(planRepo, redisClient)
	}

	// ---- Repositories ----
	subRepo := pg.NewSubscriptionRepo(pool)
	adjRepo := pg.NewAdjustmentRepo(pool)
	usageRepo := pg.NewUsageRepo(pool)
	storageRepo := pg.NewStorageRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Live-session hub ----
	hub := ws.NewHub(logger)
	defer hub.CloseAll()
	var notifier notify.Notifier = hub

	// ---- Use cases ----
	overlay := usecase.NewQuotaOverlay(planRepo)
	quotaInit := usecase.NewQuotaInitUseCase(planRepo, usageRepo, storageRepo, logger)
	planUC := usecase.NewPlanUseCase(planRepo, logger)
	lifecycleUC := usecase.NewLifecycleUseCase(
		planRepo, subRepo, adjRepo, usageRepo,
		overlay, quotaInit, txManager, notifier,
		cfg.Billing.FreePlanCode, logger,
	)

	// ---- HTTP server ----
	metrics.MustRegister()
	auth := web.NewAuthManager(cfg.Auth.JWTSecret, !cfg.Runtime.Dev, "", cfg.Auth.SessionTTL)
	srv := web.NewServer(lifecycleUC, planUC, hub, auth, logger)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("admin api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Subscription gauge poller ----
	go pollSubscriptionCounts(ctx, subRepo, logger)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}

// pollSubscriptionCounts refreshes the subscriptions-by-status gauge once a
// minute. Purely observational; failures are logged and retried next tick.
func pollSubscriptionCounts(ctx context.Context, subs repository.SubscriptionRepository, logger *zerolog.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			counts, err := subs.CountByStatus(ctx, repository.NoTX)
			if err != nil {
				logger.Warn().Err(err).Msg("subscription count refresh failed")
				continue
			}
			metrics.SetSubscriptionsTotal(counts)
		}
	}
}
