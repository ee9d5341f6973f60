// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/campus/internal/auth"
	"github.com/jason-s-yu/campus/internal/cache"
	"github.com/jason-s-yu/campus/internal/config"
	"github.com/jason-s-yu/campus/internal/database"
	"github.com/jason-s-yu/campus/internal/handlers"
	"github.com/jason-s-yu/campus/internal/mailer"
	"github.com/jason-s-yu/campus/internal/middleware"
	"github.com/jason-s-yu/campus/internal/notifier"
	"github.com/jason-s-yu/campus/internal/realtime"
	"github.com/jason-s-yu/campus/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.PrivateKeyPath != "" && cfg.PublicKeyPath != "" {
		err = auth.InitFromPath(cfg.PrivateKeyPath, cfg.PublicKeyPath, cfg.TokenExpire)
	} else {
		logger.Warn("no JWT key paths configured; generating an ephemeral key pair")
		err = auth.Init(cfg.TokenExpire)
	}
	if err != nil {
		logger.Fatalf("failed to init auth: %v", err)
	}

	if err := database.ConnectDB(ctx, cfg.DatabaseURL); err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	defer database.CloseDB()

	if cfg.MigrateOnStart {
		if err := database.Migrate(ctx, "up"); err != nil {
			logger.Fatalf("failed to migrate: %v", err)
		}
	}

	var wg sync.WaitGroup
	hub := realtime.NewHub(logger, realtime.DefaultBuffer)
	defer hub.Close()

	var pub realtime.Publisher = realtime.LocalPublisher{Hub: hub}
	if err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB); err != nil {
		logger.Warnf("%v; change events stay in this process and notifications are disabled", err)
	} else {
		defer cache.Rdb.Close()
		if cfg.NotifierQueue != "" {
			cache.QueueName = cfg.NotifierQueue
		}

		feed := realtime.NewFeed(cache.Rdb, logger)
		pub = feed
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := feed.Run(ctx, hub); err != nil {
				logger.Errorf("change feed stopped: %v", err)
			}
		}()

		if cfg.NotifierInProcess {
			svc := notifier.New(cache.Rdb, notifier.Options{
				Queue:      cfg.NotifierQueue,
				BatchSize:  cfg.NotifierBatchSize,
				FlushDelay: cfg.NotifierFlush,
				Publisher:  feed,
			}, logger)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := svc.Run(ctx); err != nil {
					logger.Errorf("notifier stopped: %v", err)
				}
			}()
		}
	}

	store, err := storage.New(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to init storage: %v", err)
	}

	srv := handlers.NewServer(cfg, logger, store, mailer.New(cfg, logger), pub, hub, nil)
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           middleware.Stack(logger, cfg.AllowedOrigins)(srv.Routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("http shutdown: %v", err)
		}
	}()

	logger.Infof("Running on %s", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
	wg.Wait()
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if !cfg.Debug {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
