package main

import (
	"context"
	"flag"

	"queuedesk/internal/config"
	"queuedesk/internal/database"
	"queuedesk/internal/logger"
	"queuedesk/internal/repository"
	"queuedesk/internal/search"
)

func main() {
	var drop bool
	flag.BoolVar(&drop, "drop", true, "drop the index before rebuilding it")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", "error", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	es, err := search.NewElasticsearchClient(cfg.Elasticsearch)
	if err != nil {
		logger.Fatal("Failed to connect to Elasticsearch", "error", err)
	}

	n, err := Reindex(context.Background(), repository.NewPostgresStore(db), es, drop)
	if err != nil {
		logger.Fatal("Reindex failed", "error", err, "indexed", n)
	}
	logger.Get().Info("Reindex complete", "indexed", n, "index", cfg.Elasticsearch.Index)
}
