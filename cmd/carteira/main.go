package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"carteira/internal/analytics"
	"carteira/internal/budget"
	"carteira/internal/cli"
	apphttp "carteira/internal/http"
	applog "carteira/internal/log"
	"carteira/internal/services"
)

func main() {
	decimal.MarshalJSONWithoutQuotes = true
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentApp)

	store := cli.OpenStore(context.Background(), logger, cfg)

	// A nil *amqp.Client must not reach services as a non-nil interface.
	var publisher services.EventPublisher
	amqpClient := cli.ConnectAMQP(logger, cfg)
	if amqpClient != nil {
		publisher = amqpClient
	}

	srv, err := apphttp.NewServer(cfg, apphttp.Deps{
		Store:    store.Store,
		Services: services.New(store.Store, publisher),
		Engine:   analytics.NewEngine(store.Store),
		Budgets:  budget.NewEvaluator(store.Store, cfg.BudgetConcurrency),
		Logger:   logger,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if store.Cleanup != nil {
			if err := store.Cleanup(); err != nil {
				logger.Error("Failed to close ledger store", applog.FieldError, err)
			}
		}
	})

	logger.Info("Starting carteira server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"ledger_events", amqpClient != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
