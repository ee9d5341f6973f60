// cmd/notifier/main.go drains the notification queue from Redis into Postgres.
// Run it when the server is started with NOTIFIER_IN_PROCESS=false.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/campus/internal/cache"
	"github.com/jason-s-yu/campus/internal/config"
	"github.com/jason-s-yu/campus/internal/database"
	"github.com/jason-s-yu/campus/internal/notifier"
	"github.com/jason-s-yu/campus/internal/realtime"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if !cfg.Debug {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.ConnectDB(ctx, cfg.DatabaseURL); err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	defer database.CloseDB()

	if err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB); err != nil {
		logger.Fatalf("%v", err)
	}
	defer cache.Rdb.Close()

	svc := notifier.New(cache.Rdb, notifier.Options{
		Queue:      cfg.NotifierQueue,
		BatchSize:  cfg.NotifierBatchSize,
		FlushDelay: cfg.NotifierFlush,
		Publisher:  realtime.NewFeed(cache.Rdb, logger),
	}, logger)
	if err := svc.Run(ctx); err != nil {
		logger.Fatalf("notifier stopped: %v", err)
	}
}
