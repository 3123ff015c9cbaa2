package main

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"carteira/internal/cli"
	applog "carteira/internal/log"
	"carteira/internal/services"
)

func main() {
	decimal.MarshalJSONWithoutQuotes = true
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentRecurring)
	logger.Info("Starting recurring-worker")

	store := cli.OpenStore(context.Background(), logger, cfg)

	// Generated transactions are announced so carteira-worker can check
	// budgets and mirror them.
	var publisher services.EventPublisher
	amqpClient := cli.ConnectAMQP(logger, cfg)
	if amqpClient != nil {
		publisher = amqpClient
	} else {
		logger.Info("AMQP disabled - generated transactions will not emit ledger events")
	}

	svc := services.New(store.Store, publisher)
	processor := services.NewRecurringProcessor(store.Store, svc.Transactions, services.RecurringProcessorConfig{
		PollInterval: cfg.RecurringInterval,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Recurring processor stop failed", applog.FieldError, err)
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

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start recurring processor", applog.FieldError, err)
		return
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Recurring-worker shutdown complete")
}
