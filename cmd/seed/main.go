package main

import (
	"context"
	"flag"

	"queuedesk/internal/config"
	"queuedesk/internal/database"
	"queuedesk/internal/events"
	"queuedesk/internal/keylock"
	"queuedesk/internal/logger"
	"queuedesk/internal/messaging"
	"queuedesk/internal/repository"
	"queuedesk/internal/service"
)

func main() {
	var path string
	var reset bool
	flag.StringVar(&path, "file", "catalog.yaml", "YAML file with services and counters")
	flag.BoolVar(&reset, "reset", false, "empty every queue table before seeding")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", "error", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	catalog, err := LoadCatalog(path)
	if err != nil {
		logger.Fatal("Failed to load catalog", "error", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()
	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	ctx := context.Background()
	if reset {
		log.Warn("Resetting database")
		if err := db.Truncate(ctx); err != nil {
			logger.Fatal("Failed to reset database", "error", err)
		}
	}

	bus := events.NewBus(log)
	if cfg.NATS.Enabled {
		cfg.NATS.ClientID = "queuedesk-seed"
		natsClient, err := messaging.NewNATSClient(cfg.NATS.Config)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", "error", err)
		}
		defer natsClient.Close()
		bus.Subscribe("nats", natsClient)
	}

	svcs := service.NewServices(repository.NewPostgresStore(db), bus, keylock.New(), service.Options{Location: cfg.Location})
	result, err := Seed(ctx, svcs, catalog)
	if err != nil {
		logger.Fatal("Seeding failed", "error", err)
	}
	log.Info("Catalog seeded", "services", result.Services, "counters", result.Counters)
}
