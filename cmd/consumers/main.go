package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"queuedesk/cmd/consumers/jobs"
	"queuedesk/internal/config"
	"queuedesk/internal/consumers"
	"queuedesk/internal/database"
	"queuedesk/internal/events"
	"queuedesk/internal/keylock"
	"queuedesk/internal/logger"
	"queuedesk/internal/messaging"
	"queuedesk/internal/metrics"
	"queuedesk/internal/repository"
	"queuedesk/internal/search"
	"queuedesk/internal/service"
	"queuedesk/internal/telemetry"
)

const indexTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", "error", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()
	log.Info("Starting consumers service...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg.Telemetry.ServiceName += "-consumers"
	if _, err := telemetry.Init(ctx, cfg.Telemetry); err != nil {
		logger.Fatal("Failed to init telemetry", "error", err)
	}

	// Override NATS client ID for consumers
	cfg.NATS.ClientID = "queuedesk-consumers"
	natsClient, err := messaging.NewNATSClient(cfg.NATS.Config)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", "error", err)
	}
	defer natsClient.Close()

	es, err := search.NewElasticsearchClient(cfg.Elasticsearch)
	if err != nil {
		logger.Fatal("Failed to connect to Elasticsearch", "error", err)
	}

	// Create and start consumers
	consumerService := consumers.NewConsumerService(natsClient, consumers.NewHandlers(es, indexTimeout))
	if err := consumerService.Start(); err != nil {
		logger.Fatal("Failed to start consumers", "error", err)
	}

	var reconcile *jobs.StatisticsReconcileJob
	if cfg.Jobs.ReconcileEnabled {
		db, err := database.Connect(cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", "error", err)
		}
		defer db.Close()
		metrics.RegisterDBStats(db.DB, cfg.Database.DBName)

		// Repaired rows go out on NATS like any other statistics update.
		bus := events.NewBus(log)
		bus.Subscribe("nats", natsClient)
		services := service.NewServices(repository.NewPostgresStore(db), bus, keylock.New(), service.Options{
			Location: cfg.Location,
		})

		reconcile = jobs.NewStatisticsReconcileJob(services.Statistics, cfg.Jobs.ReconcileInterval, cfg.Jobs.ReconcileDays)
		reconcile.Start(ctx)
	}

	log.Info("Consumers service started successfully", "reconcile", cfg.Jobs.ReconcileEnabled)

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down consumers service...")

	if reconcile != nil {
		reconcile.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()

	if err := consumerService.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during shutdown", "error", err)
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		log.Error("Error flushing traces", "error", err)
	}

	log.Info("Consumers service stopped")
}
