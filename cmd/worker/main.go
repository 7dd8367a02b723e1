package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/pulse-retention/pulse-dashboard/internal/app"
	"github.com/pulse-retention/pulse-dashboard/internal/billing"
	"github.com/pulse-retention/pulse-dashboard/internal/platform/cache"
	"github.com/pulse-retention/pulse-dashboard/internal/platform/db"
	"github.com/pulse-retention/pulse-dashboard/internal/roi"
	"github.com/pulse-retention/pulse-dashboard/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	roiRepo := roi.NewRepository(pool)
	roiCache := roi.NewCache(redisClient, cfg.ROICacheTTL)
	roiService := roi.NewService(roiRepo, roiCache)

	gateway := billing.NewGateway(billing.GatewayConfig{
		StoreID:     cfg.GatewayStoreID,
		StorePasswd: cfg.GatewayStorePasswd,
		BaseURL:     cfg.GatewayBaseURL,
		CallbackURL: cfg.GatewayCallbackURL,
		Timeout:     cfg.GatewayTimeout,
	})
	billingRepo := billing.NewRepository(pool)
	billingService := billing.NewService(billingRepo, gateway)

	warmupJob := jobs.NewROIWarmupJob(roiService, pool, logger, nil)
	expiryJob := jobs.NewSubscriptionExpiryJob(billingService, logger, nil)

	warmupTask, err := jobs.NewROIWarmupTask(jobs.ROIWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	expiryTask, err := jobs.NewSubscriptionExpiryTask()
	if err != nil {
		logger.Error("build expiry task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskROIWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskSubscriptionExpiry, Handler: expiryJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 1 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 2 * * *", Task: expiryTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
