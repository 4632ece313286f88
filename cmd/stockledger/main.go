package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/workmate-pos/workmate-sub003/internal/app"
	"github.com/workmate-pos/workmate-sub003/internal/ledger"
	"github.com/workmate-pos/workmate-sub003/internal/observability"
	"github.com/workmate-pos/workmate-sub003/internal/platform/cache"
	"github.com/workmate-pos/workmate-sub003/internal/platform/db"
	"github.com/workmate-pos/workmate-sub003/internal/quantitystore"
	"github.com/workmate-pos/workmate-sub003/internal/transfer"
	"github.com/workmate-pos/workmate-sub003/jobs"
)

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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, timeline cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	quantities := quantitystore.NewClient(cfg.QuantityStoreURL, cfg.QuantityStoreToken, cfg.QuantityStoreTimeout)
	if err := quantities.Ping(ctx); err != nil {
		logger.Warn("quantity store ping", slog.Any("error", err))
	}

	var timelineCache *ledger.Cache
	if redisClient != nil {
		timelineCache = ledger.NewCache(redisClient, cfg.LedgerCacheTTL)
	}

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, quantities, timelineCache, metrics, logger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	transferService := transfer.NewService(ledgerService, logger)
	transferHandler := transfer.NewHandler(logger, transferService)

	var jobsHandler *jobs.Handler
	if redisClient != nil {
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			_ = inspector.Close()
		}()
		jobsHandler = jobs.NewHandler(inspector, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		LedgerHandler:   ledgerHandler,
		TransferHandler: transferHandler,
		JobsHandler:     jobsHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
