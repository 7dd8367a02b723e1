package main

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pulse-retention/pulse-dashboard/internal/app"
	"github.com/pulse-retention/pulse-dashboard/internal/auth"
	"github.com/pulse-retention/pulse-dashboard/internal/billing"
	billinghttp "github.com/pulse-retention/pulse-dashboard/internal/billing/http"
	"github.com/pulse-retention/pulse-dashboard/internal/observability"
	"github.com/pulse-retention/pulse-dashboard/internal/platform/cache"
	"github.com/pulse-retention/pulse-dashboard/internal/platform/db"
	"github.com/pulse-retention/pulse-dashboard/internal/roi"
	roihttp "github.com/pulse-retention/pulse-dashboard/internal/roi/http"
	"github.com/pulse-retention/pulse-dashboard/internal/roi/svg"
	"github.com/pulse-retention/pulse-dashboard/internal/shared"
	"github.com/pulse-retention/pulse-dashboard/internal/view"
	"github.com/pulse-retention/pulse-dashboard/jobs"
)

type pieRenderer struct{}

func (pieRenderer) Pie(size int, slices []svg.Slice, opts svg.PieOpts) (template.HTML, error) {
	return svg.Pie(size, slices, opts)
}

type barRenderer struct{}

func (barRenderer) HBars(width int, rows []svg.Row, opts svg.HBarOpts) (template.HTML, error) {
	return svg.HBars(width, rows, opts)
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, "pulse_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager)

	gateway := billing.NewGateway(billing.GatewayConfig{
		StoreID:     cfg.GatewayStoreID,
		StorePasswd: cfg.GatewayStorePasswd,
		BaseURL:     cfg.GatewayBaseURL,
		CallbackURL: cfg.GatewayCallbackURL,
		Timeout:     cfg.GatewayTimeout,
	})
	billingRepo := billing.NewRepository(dbpool)
	billingService := billing.NewService(billingRepo, gateway)
	billingHandler := billinghttp.NewHandler(logger, billingService, templates, csrfManager)

	roiRepo := roi.NewRepository(dbpool)
	roiCache := roi.NewCache(redisClient, cfg.ROICacheTTL)
	roiService := roi.NewService(roiRepo, roiCache)
	roiHandler := roihttp.NewHandler(logger, roiService, templates, pieRenderer{}, barRenderer{})

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		AuthHandler:    authHandler,
		BillingHandler: billingHandler,
		ROIHandler:     roiHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
