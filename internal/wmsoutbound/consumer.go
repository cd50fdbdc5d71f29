package wmsoutbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/nabis/inventory-backend/pkg/db/models"
	"github.com/nabis/inventory-backend/pkg/enums"
	"github.com/nabis/inventory-backend/pkg/logger"
	"github.com/nabis/inventory-backend/pkg/metrics"
	"github.com/nabis/inventory-backend/pkg/wms"
)

const consumerName = "wms-outbound"

const (
	actionAllocate = "allocate"
	actionRelease  = "release"
)

type batchLookup interface {
	FindBatch(ctx context.Context, batchID int64) (*models.Batch, error)
	RecordAudit(ctx context.Context, entry models.LedgerEntry) error
}

type deadLetterSink interface {
	Publish(ctx context.Context, data []byte, attributes map[string]string) error
}

// Consumer mirrors InventoryAllocated/InventoryReleased events into the WMS.
// Retriable WMS failures requeue the message; everything else dead-letters it
// so a poisoned event cannot wedge the subscription.
type Consumer struct {
	repo         batchLookup
	wms          wms.Client
	subscription *pubsub.Subscriber
	deadLetter   deadLetterSink
	logg         *logger.Logger
	metrics      *metrics.ConsumerMetrics
}

// ConsumerParams collects the worker's dependencies.
type ConsumerParams struct {
	Repo         batchLookup
	WMS          wms.Client
	Subscription *pubsub.Subscriber
	DeadLetter   deadLetterSink
	Logger       *logger.Logger
	Metrics      *metrics.ConsumerMetrics
}

// NewConsumer validates and wires the outbound worker.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Repo == nil {
		return nil, errors.New("repository is required")
	}
	if params.WMS == nil {
		return nil, errors.New("wms client is required")
	}
	if params.Subscription == nil {
		return nil, errors.New("outbound subscription is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		repo:         params.Repo,
		wms:          params.WMS,
		subscription: params.Subscription,
		deadLetter:   params.DeadLetter,
		logg:         params.Logger,
		metrics:      params.Metrics,
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

type inventoryEvent struct {
	OrderID  string `json:"orderId"`
	BatchID  int64  `json:"batchId"`
	Quantity int    `json:"quantity"`
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	routingKey := msg.Attributes["routing_key"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id":  msg.ID,
		"routing_key": routingKey,
	})

	var action string
	switch routingKey {
	case "inventory." + string(enums.EventInventoryAllocated):
		action = actionAllocate
	case "inventory." + string(enums.EventInventoryReleased):
		action = actionRelease
	default:
		// The subscription sees every domain event; only allocations and
		// releases are mirrored.
		return processResult{ack: true}
	}

	var event inventoryEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		c.logg.Error(logCtx, "failed to decode inventory event", err)
		return c.deadLetterResult(logCtx, msg, err)
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"order_id": event.OrderID,
		"batch_id": event.BatchID,
		"action":   action,
	})

	batch, err := c.repo.FindBatch(logCtx, event.BatchID)
	if err != nil {
		c.logg.Error(logCtx, "batch lookup failed", err)
		return processResult{nack: true}
	}
	if batch == nil {
		c.logg.Warn(logCtx, "batch no longer exists, dropping event")
		return c.deadLetterResult(logCtx, msg, fmt.Errorf("batch %d not found", event.BatchID))
	}
	if batch.ExternalBatchID == nil {
		c.logg.Warn(logCtx, "batch has no external id, dropping event")
		return c.deadLetterResult(logCtx, msg, fmt.Errorf("batch %d has no external batch id", event.BatchID))
	}

	request := wms.AllocationRequest{
		ExternalBatchID: *batch.ExternalBatchID,
		Quantity:        event.Quantity,
		OrderRef:        event.OrderID,
	}
	if action == actionAllocate {
		err = c.wms.Allocate(logCtx, request)
	} else {
		err = c.wms.Release(logCtx, request)
	}
	if err != nil {
		if wms.IsRetriable(err) {
			c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "retriable wms failure, requeueing")
			return processResult{nack: true}
		}
		c.logg.Error(logCtx, "non-retriable wms failure", err)
		return c.deadLetterResult(logCtx, msg, err)
	}

	orderID := event.OrderID
	metadata, _ := json.Marshal(map[string]any{
		"action":          action,
		"externalBatchId": *batch.ExternalBatchID,
	})
	audit := models.LedgerEntry{
		BatchID:       event.BatchID,
		Type:          enums.LedgerEntryAdjustment,
		QuantityDelta: 0,
		Source:        enums.LedgerSourceWmsOutbound,
		ReferenceID:   &orderID,
		Metadata:      metadata,
	}
	if err := c.repo.RecordAudit(logCtx, audit); err != nil {
		// The WMS call already landed; losing only the audit row is better
		// than replaying the allocation.
		c.logg.Error(logCtx, "failed to record outbound audit", err)
	}

	c.logg.Info(logCtx, "wms mirror call completed")
	return processResult{ack: true}
}

func (c *Consumer) deadLetterResult(ctx context.Context, msg *pubsub.Message, cause error) processResult {
	if c.deadLetter == nil {
		return processResult{ack: true}
	}
	attrs := make(map[string]string, len(msg.Attributes)+1)
	for k, v := range msg.Attributes {
		attrs[k] = v
	}
	attrs["error"] = cause.Error()
	if err := c.deadLetter.Publish(ctx, msg.Data, attrs); err != nil {
		c.logg.Error(ctx, "failed to publish to dead letter topic", err)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

// PublisherSink adapts a Pub/Sub publisher to the dead letter sink.
type PublisherSink struct {
	publisher *pubsub.Publisher
}

func NewPublisherSink(publisher *pubsub.Publisher) *PublisherSink {
	if publisher == nil {
		return nil
	}
	return &PublisherSink{publisher: publisher}
}

func (s *PublisherSink) Publish(ctx context.Context, data []byte, attributes map[string]string) error {
	if s == nil || s.publisher == nil {
		return errors.New("dead letter publisher not configured")
	}
	result := s.publisher.Publish(ctx, &pubsub.Message{Data: data, Attributes: attributes})
	_, err := result.Get(ctx)
	return err
}
