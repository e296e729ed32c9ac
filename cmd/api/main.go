package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"attendance-service/internal/app"
	"attendance-service/internal/config"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[MAIN] No .env file found, relying on system env vars")
	}
	cfg := config.Load()

	logger := newLogger(cfg)
	defer logger.Sync()

	srv := app.NewServer(cfg, logger)
	if err := srv.Build(context.Background()); err != nil {
		_ = srv.Shutdown(context.Background())
		logger.Fatal("server failed to start", zap.Error(err))
	}

	// Run server in a separate goroutine so we can listen for shutdown signals
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped", zap.Error(err))
		}
	}

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return
	}
	logger.Info("server stopped gracefully")
}

func newLogger(cfg config.AppConfig) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	return logger
}
