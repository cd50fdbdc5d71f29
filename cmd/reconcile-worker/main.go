package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nabis/inventory-backend/internal/reconcile"
	"github.com/nabis/inventory-backend/pkg/config"
	"github.com/nabis/inventory-backend/pkg/db"
	"github.com/nabis/inventory-backend/pkg/logger"
	"github.com/nabis/inventory-backend/pkg/metrics"
	"github.com/nabis/inventory-backend/pkg/outbox"
	"github.com/nabis/inventory-backend/pkg/pubsub"
	"github.com/nabis/inventory-backend/pkg/redis"
	"github.com/nabis/inventory-backend/pkg/wms"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "reconcile-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "reconcile-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	locker := reconcile.NewNoopLocker()
	if cfg.Redis.URL != "" || cfg.Redis.Address != "" {
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		locker = reconcile.NewRedisLocker(redisClient.Raw())
	}

	wmsClient, err := newWMSClient(cfg)
	if err != nil {
		logg.Error(context.Background(), "failed to build wms client", err)
		os.Exit(1)
	}

	reconciler, err := reconcile.NewReconciler(reconcile.ReconcilerParams{
		Tx:     dbClient,
		Repo:   reconcile.NewRepository(dbClient.DB()),
		Outbox: outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		WMS:    wmsClient,
		Locker: locker,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciler", err)
		os.Exit(1)
	}

	subscription := pubsubClient.SyncSubscription()
	if subscription == nil {
		logg.Error(context.Background(), "sync subscription not configured", nil)
		os.Exit(1)
	}
	subscription.ReceiveSettings.MaxOutstandingMessages = cfg.Worker.SyncPrefetch

	consumer, err := reconcile.NewConsumer(reconciler, subscription, logg, metrics.NewConsumerMetrics(prometheus.DefaultRegisterer))
	if err != nil {
		logg.Error(context.Background(), "failed to create sync consumer", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "reconcile-worker",
	})
	logg.Info(ctx, "starting reconcile worker")

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "reconcile worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "reconcile worker shutting down gracefully")
}

func newWMSClient(cfg *config.Config) (wms.Client, error) {
	if cfg.WMS.IsMock() {
		return wms.NewMockClient(), nil
	}
	return wms.NewHTTPClient(cfg.WMS)
}
