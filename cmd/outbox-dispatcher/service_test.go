package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabis/inventory-backend/pkg/config"
	"github.com/nabis/inventory-backend/pkg/db/models"
	"github.com/nabis/inventory-backend/pkg/enums"
	"github.com/nabis/inventory-backend/pkg/logger"
)

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakePubSub struct{}

func (fakePubSub) Ping(context.Context) error             { return nil }
func (fakePubSub) DomainPublisher() *gcppubsub.Publisher  { return nil }
func (fakePubSub) CommandPublisher() *gcppubsub.Publisher { return nil }

type fakeRepo struct {
	events []models.OutboxEvent
	sent   []uuid.UUID
	failed []uuid.UUID
}

func (r *fakeRepo) FetchPendingForPublish(_ *gorm.DB, limit int) ([]models.OutboxEvent, error) {
	if len(r.events) == 0 {
		return nil, nil
	}
	if limit > len(r.events) {
		limit = len(r.events)
	}
	batch := r.events[:limit]
	r.events = r.events[limit:]
	return batch, nil
}

func (r *fakeRepo) MarkSentTx(_ *gorm.DB, id uuid.UUID) error {
	r.sent = append(r.sent, id)
	return nil
}

func (r *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	r.failed = append(r.failed, id)
	return nil
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (r *fakeDLQRepo) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	r.entries = append(r.entries, entry)
	return nil
}

type fakePublishResult struct {
	err error
}

func (r fakePublishResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "server-id", nil
}

type fakePublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
}

func (p *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	p.messages = append(p.messages, msg)
	if len(p.results) == 0 {
		return fakePublishResult{}
	}
	next := p.results[0]
	p.results = p.results[1:]
	return next
}

func pendingEvent(t *testing.T, eventType enums.OutboxEventType, retryCount int) models.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"orderId": "order-1"})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return models.OutboxEvent{
		ID:         uuid.New(),
		EventType:  eventType,
		Payload:    payload,
		Status:     enums.OutboxStatusPending,
		RetryCount: retryCount,
	}
}

func newDispatcher(t *testing.T, repo *fakeRepo, dlq *fakeDLQRepo, pub *fakePublisher) *Service {
	t.Helper()
	cfg := &config.Config{}
	cfg.Outbox.BatchSize = 10
	cfg.Outbox.MaxAttempts = 3

	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:            fakeDB{},
		PubSub:        fakePubSub{},
		Repository:    repo,
		DLQRepository: dlq,
		PublisherFactory: func(enums.OutboxEventType) publisher {
			return pub
		},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func TestProcessBatchMarksSent(t *testing.T) {
	event := pendingEvent(t, enums.EventInventoryAllocated, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{}
	service := newDispatcher(t, repo, &fakeDLQRepo{}, pub)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to report processed")
	}
	if len(repo.sent) != 1 || repo.sent[0] != event.ID {
		t.Fatalf("expected event marked sent, got %v", repo.sent)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(pub.messages))
	}

	msg := pub.messages[0]
	if msg.Attributes["routing_key"] != "inventory.InventoryAllocated" {
		t.Fatalf("unexpected routing key %q", msg.Attributes["routing_key"])
	}
	if msg.Attributes["message_id"] != event.ID.String() {
		t.Fatalf("message id attribute must equal outbox id, got %q", msg.Attributes["message_id"])
	}
}

func TestProcessBatchContinuesAfterFailure(t *testing.T) {
	first := pendingEvent(t, enums.EventInventoryAllocated, 0)
	second := pendingEvent(t, enums.EventInventoryReleased, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}
	service := newDispatcher(t, repo, &fakeDLQRepo{}, pub)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to report processed")
	}
	if len(repo.failed) != 1 || repo.failed[0] != first.ID {
		t.Fatalf("expected first event failed, got %v", repo.failed)
	}
	if len(repo.sent) != 1 || repo.sent[0] != second.ID {
		t.Fatalf("expected second event sent, got %v", repo.sent)
	}
}

func TestProcessBatchDeadLettersAtMaxAttempts(t *testing.T) {
	// retry_count 2 with maxAttempts 3 means this failure is terminal.
	event := pendingEvent(t, enums.EventInventoryAdjusted, 2)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("broker down")}}}
	service := newDispatcher(t, repo, dlq, pub)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(dlq.entries) != 1 {
		t.Fatalf("expected 1 dlq entry, got %d", len(dlq.entries))
	}
	entry := dlq.entries[0]
	if entry.EventID != event.ID || entry.ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("unexpected dlq entry %+v", entry)
	}
	if len(repo.failed) != 1 {
		t.Fatalf("terminal event must still be marked failed, got %v", repo.failed)
	}
}

func TestProcessBatchRoutesCommandsToCommandTopic(t *testing.T) {
	event := pendingEvent(t, enums.EventForceWmsSync, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}

	var routedTypes []enums.OutboxEventType
	pub := &fakePublisher{}
	cfg := &config.Config{}
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:            fakeDB{},
		PubSub:        fakePubSub{},
		Repository:    repo,
		DLQRepository: &fakeDLQRepo{},
		PublisherFactory: func(eventType enums.OutboxEventType) publisher {
			routedTypes = append(routedTypes, eventType)
			return pub
		},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(routedTypes) != 1 || !routedTypes[0].IsCommand() {
		t.Fatalf("expected command routing, got %v", routedTypes)
	}
	if got := pub.messages[0].Attributes["routing_key"]; got != "wms.forceSync" {
		t.Fatalf("unexpected routing key %q", got)
	}
}

func TestProcessBatchEmptyIsIdle(t *testing.T) {
	service := newDispatcher(t, &fakeRepo{}, &fakeDLQRepo{}, &fakePublisher{})

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if processed {
		t.Fatal("empty batch must report idle")
	}
}
