package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nabis/inventory-backend/internal/wmsoutbound"
	"github.com/nabis/inventory-backend/pkg/config"
	"github.com/nabis/inventory-backend/pkg/db"
	"github.com/nabis/inventory-backend/pkg/logger"
	"github.com/nabis/inventory-backend/pkg/metrics"
	"github.com/nabis/inventory-backend/pkg/pubsub"
	"github.com/nabis/inventory-backend/pkg/wms"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "wms-outbound-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "wms-outbound-worker",
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

	wmsClient, err := newWMSClient(cfg)
	if err != nil {
		logg.Error(context.Background(), "failed to build wms client", err)
		os.Exit(1)
	}

	subscription := pubsubClient.OutboundSubscription()
	if subscription == nil {
		logg.Error(context.Background(), "outbound subscription not configured", nil)
		os.Exit(1)
	}
	subscription.ReceiveSettings.MaxOutstandingMessages = cfg.Worker.OutboundPrefetch

	consumer, err := wmsoutbound.NewConsumer(wmsoutbound.ConsumerParams{
		Repo:         wmsoutbound.NewRepository(dbClient.DB()),
		WMS:          wmsClient,
		Subscription: subscription,
		DeadLetter:   wmsoutbound.NewPublisherSink(pubsubClient.DeadLetterPublisher()),
		Logger:       logg,
		Metrics:      metrics.NewConsumerMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbound consumer", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "wms-outbound-worker",
	})
	logg.Info(ctx, "starting wms outbound worker")

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "wms outbound worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "wms outbound worker shutting down gracefully")
}

func newWMSClient(cfg *config.Config) (wms.Client, error) {
	if cfg.WMS.IsMock() {
		return wms.NewMockClient(), nil
	}
	return wms.NewHTTPClient(cfg.WMS)
}
