package main

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"queuedesk/internal/api"
	"queuedesk/internal/config"
	"queuedesk/internal/logger"
	"queuedesk/internal/telemetry"
	"queuedesk/internal/validation"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", "error", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	// Проверяем, нужно ли запустить валидацию
	if len(os.Args) > 1 && os.Args[1] == "validate" {
		baseURL := "http://localhost:" + cfg.Port
		if len(os.Args) > 2 {
			baseURL = os.Args[2]
		}
		if err := validation.RunValidation(baseURL, cfg.Auth.JWTSecret); err != nil {
			logger.Fatal("Validation failed", "error", err)
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", "error", err)
	}

	ctx := context.Background()
	if _, err := telemetry.Init(ctx, cfg.Telemetry); err != nil {
		logger.Fatal("Failed to init telemetry", "error", err)
	}

	// Создаем и настраиваем сервер
	server, err := api.NewServer(cfg)
	if err != nil {
		logger.Fatal("Failed to create server", "error", err)
	}

	if cfg.PprofEnabled {
		go func() {
			log.Info("Starting pprof server", "port", cfg.PprofPort)
			if err := http.ListenAndServe("localhost:"+cfg.PprofPort, nil); err != nil {
				log.Error("pprof server stopped", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     server.GetRouter(),
		ReadTimeout: cfg.RequestTimeout,
	}

	// Запускаем сервер в отдельной горутине
	go func() {
		log.Info("Starting server", "port", cfg.Port, "store", cfg.StoreDriver, "auth", cfg.Auth.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Ждем сигнал для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	// Закрываем соединения
	if err := server.Cleanup(); err != nil {
		log.Error("Error during cleanup", "error", err)
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		log.Error("Error flushing traces", "error", err)
	}

	log.Info("Server stopped")
}
