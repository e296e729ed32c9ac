// Worker runs the reconciliation scheduler without the HTTP surface. Run
// one per deployment when the API replicas have SCHEDULER_ENABLED=false;
// set REDIS_ADDR when more than one worker runs.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"attendance-service/internal/app"
	"attendance-service/internal/config"
	"attendance-service/internal/db"
	"attendance-service/internal/domain/attendance"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("worker: logger: %v", err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("worker: invalid configuration", zap.Error(err))
	}
	policy, err := cfg.Policy()
	if err != nil {
		logger.Fatal("worker: invalid policy", zap.Error(err))
	}
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Fatal("worker: the memory store cannot be shared with the API, use postgres or mongo")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("worker: storage", zap.Error(err))
	}
	defer stores.Close()

	redisClient, err := db.NewRedisClient(ctx, db.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPass, PoolSize: 4})
	if err != nil {
		logger.Fatal("worker: redis", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Closures are pushed by the API process; the worker has no clients.
	sched := app.NewScheduler(cfg, policy, stores.Sessions, redisClient, attendance.NopNotifier{}, logger)
	sched.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("worker: shutting down")
	sched.Stop()
}
