package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finance_tracker/internal/cache"
	"finance_tracker/internal/config"
	"finance_tracker/internal/handlers"
	"finance_tracker/internal/repository"
	paymentsrepo "finance_tracker/internal/repository/payments"
	"finance_tracker/internal/server"
	"finance_tracker/internal/services/lifecycle"
	"finance_tracker/internal/services/metrics"
	"finance_tracker/internal/services/payments"

	goredis "github.com/redis/go-redis/v9"
)

func main() {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	setupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := config.Init(setupCtx)
	logger := cfg.Logger
	logger.Println("✅ All connections successfully established!")

	if err := cfg.CheckConnections(setupCtx); err != nil {
		logger.Fatalf("❌ Connection check failed: %v", err)
	}
	logger.Println("🟢 All connections OK")

	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		cfg.Close(closeCtx)
	}()

	store := paymentsrepo.NewRepository(cfg.Mongo)
	if err := store.EnsureIndexes(setupCtx); err != nil {
		logger.Warnf("[MAIN] payments index: %v", err)
	}

	var rdb *goredis.Client
	if cfg.Redis != nil {
		rdb = cfg.Redis.Client
	}
	statsCache := cache.NewStatsCache(rdb, cfg.Domain.StatsCacheTTL, logger)

	engine := lifecycle.NewEngine(cfg.Domain.TaxRate)
	calc := metrics.NewCalculator(cfg.Domain.ReminderDays, cfg.Domain.UpcomingWindowDays)
	svc := payments.NewService(store, engine, calc, statsCache, logger)

	tokens := repository.NewPersonalAccessTokenRepository(cfg.Postgres, cfg.Domain.TokenableType, logger)

	h := handlers.New(cfg.Postgres, cfg.Mongo, cfg.S3, cfg.Redis, svc, calc, logger)
	srv := server.NewServer(cfg.Port, h, tokens, logger)

	if err := srv.Run(runCtx); err != nil {
		logger.Errorf("[MAIN] server: %v", err)
	}
}
