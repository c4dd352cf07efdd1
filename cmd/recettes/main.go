package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"recettes/internal/cache"
	"recettes/internal/cli"
	apphttp "recettes/internal/http"
	ledgerlog "recettes/internal/log"
	"recettes/internal/services"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting recettes server", "backend", cfg.DataBackend)

	result, err := cli.InitBackend(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", ledgerlog.FieldError, err)
		os.Exit(1)
	}

	balances := cache.NewBalanceCache(cfg.BalanceCacheSize, cfg.BalanceCacheTTL)
	caches := cache.NewManager()
	caches.Register(balances)
	caches.StartCleanup(cfg.BalanceCacheTTL)

	opts := services.Options{
		Balances:       balances,
		Logger:         logger.WithComponent(ledgerlog.ComponentLedger),
		DriftQueueSize: cfg.DriftQueueSize,
	}
	if result.Events != nil {
		opts.Events = result.Events
	}
	ledger := services.NewLedger(result.Repository, opts)

	var ready func(ctx context.Context) error
	if p, ok := result.Repository.(pinger); ok {
		ready = p.Ping
	}

	srv := apphttp.NewServer(":"+cfg.Port, ledger, apphttp.Options{
		OwnerHeader: cfg.OwnerHeader,
		Logger:      logger,
		Ready:       ready,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", ledgerlog.FieldError, err)
		}
		if err := ledger.Reconciler.Stop(shutdownCtx); err != nil {
			logger.Error("Reconciler shutdown error", ledgerlog.FieldError, err)
		}
		caches.Stop()
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", ledgerlog.FieldError, err)
			}
		}
	})

	if err := ledger.Reconciler.Start(ctx); err != nil {
		logger.Error("Failed to start reconciler", ledgerlog.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Listening", "port", cfg.Port, "owner_header", cfg.OwnerHeader)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", ledgerlog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
