package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/nabis/inventory-backend/pkg/logger"
	"github.com/nabis/inventory-backend/pkg/metrics"
	"github.com/nabis/inventory-backend/pkg/outbox/payloads"
)

const consumerName = "wms-sync"

// Consumer drains ForceWmsSync commands from the sync subscription and hands
// them to the reconciler.
type Consumer struct {
	reconciler   *Reconciler
	subscription *pubsub.Subscriber
	logg         *logger.Logger
	metrics      *metrics.ConsumerMetrics
}

// NewConsumer constructs a consumer bound to the provided subscription.
func NewConsumer(reconciler *Reconciler, subscription *pubsub.Subscriber, logg *logger.Logger, consumerMetrics *metrics.ConsumerMetrics) (*Consumer, error) {
	if reconciler == nil {
		return nil, errors.New("reconciler is required")
	}
	if subscription == nil {
		return nil, errors.New("sync subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		reconciler:   reconciler,
		subscription: subscription,
		logg:         logg,
		metrics:      consumerMetrics,
	}, nil
}

// Run processes messages until the context is canceled or the subscription errors.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		start := time.Now()
		result := c.process(ctx, msg)
		c.metrics.ObserveDuration(consumerName, time.Since(start))
		if result.nack {
			c.metrics.IncProcessed(consumerName, "nack")
			msg.Nack()
			return
		}
		c.metrics.IncProcessed(consumerName, "ack")
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id":  msg.ID,
		"routing_key": msg.Attributes["routing_key"],
	})

	var cmd payloads.ForceWmsSyncCommand
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		c.logg.Error(logCtx, "failed to decode sync command", err)
		return processResult{ack: true}
	}
	if cmd.SyncRequestID == uuid.Nil {
		c.logg.Warn(logCtx, "sync command missing request id")
		return processResult{ack: true}
	}

	if err := c.reconciler.Execute(logCtx, cmd); err != nil {
		if errors.Is(err, ErrLockNotObtained) {
			c.logg.Info(logCtx, "full sync already running, requeueing")
			return processResult{nack: true}
		}
		c.logg.Error(logCtx, "sync command errored before state transition", err)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}
