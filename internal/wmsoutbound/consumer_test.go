package wmsoutbound

import (
	"context"
	"encoding/json"
	"testing"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nabis/inventory-backend/pkg/db/models"
	"github.com/nabis/inventory-backend/pkg/enums"
	"github.com/nabis/inventory-backend/pkg/logger"
	"github.com/nabis/inventory-backend/pkg/wms"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:wmsoutbound_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.SKU{}, &models.Batch{}, &models.LedgerEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func seedBatch(t *testing.T, conn *gorm.DB, externalID string) models.Batch {
	t.Helper()
	sku := models.SKU{Code: "SKU-" + uuid.NewString()[:8]}
	if err := conn.Create(&sku).Error; err != nil {
		t.Fatalf("seed sku: %v", err)
	}
	batch := models.Batch{
		SKUID:             sku.ID,
		ExternalBatchID:   &externalID,
		TotalQuantity:     100,
		AvailableQuantity: 100,
	}
	if err := conn.Create(&batch).Error; err != nil {
		t.Fatalf("seed batch: %v", err)
	}
	return batch
}

type fakeDeadLetter struct {
	published [][]byte
	attrs     []map[string]string
}

func (f *fakeDeadLetter) Publish(_ context.Context, data []byte, attributes map[string]string) error {
	f.published = append(f.published, data)
	f.attrs = append(f.attrs, attributes)
	return nil
}

type stubWMS struct {
	allocateErr error
	releaseErr  error
	allocated   []wms.AllocationRequest
	released    []wms.AllocationRequest
}

func (s *stubWMS) Allocate(_ context.Context, req wms.AllocationRequest) error {
	if s.allocateErr != nil {
		return s.allocateErr
	}
	s.allocated = append(s.allocated, req)
	return nil
}

func (s *stubWMS) Release(_ context.Context, req wms.AllocationRequest) error {
	if s.releaseErr != nil {
		return s.releaseErr
	}
	s.released = append(s.released, req)
	return nil
}

func (s *stubWMS) Snapshot(context.Context, string) ([]wms.SnapshotEntry, error) {
	return nil, nil
}

func (s *stubWMS) SnapshotPage(context.Context, string) (wms.SnapshotPage, error) {
	return wms.SnapshotPage{}, nil
}

func newTestConsumer(t *testing.T, conn *gorm.DB, client wms.Client, dlq deadLetterSink) *Consumer {
	t.Helper()
	return &Consumer{
		repo:       NewRepository(conn),
		wms:        client,
		deadLetter: dlq,
		logg:       logger.New(logger.Options{ServiceName: "test"}),
	}
}

func allocatedMessage(t *testing.T, batchID int64, qty int) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(inventoryEvent{OrderID: "order-1", BatchID: batchID, Quantity: qty})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"routing_key": "inventory.InventoryAllocated",
		},
	}
}

func TestProcessAllocatedMirrorsAndAudits(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	batch := seedBatch(t, conn, "WMS-OB1")
	client := &stubWMS{}
	consumer := newTestConsumer(t, conn, client, &fakeDeadLetter{})

	result := consumer.process(context.Background(), allocatedMessage(t, batch.ID, 7))
	if result.nack {
		t.Fatal("expected ack")
	}

	if len(client.allocated) != 1 {
		t.Fatalf("expected 1 allocate call, got %d", len(client.allocated))
	}
	call := client.allocated[0]
	if call.ExternalBatchID != "WMS-OB1" || call.Quantity != 7 || call.OrderRef != "order-1" {
		t.Fatalf("unexpected wms call %+v", call)
	}

	var entries []models.LedgerEntry
	if err := conn.Find(&entries, "batch_id = ?", batch.ID).Error; err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	audit := entries[0]
	if audit.QuantityDelta != 0 || audit.Source != enums.LedgerSourceWmsOutbound {
		t.Fatalf("unexpected audit entry %+v", audit)
	}
	if audit.ReferenceID == nil || *audit.ReferenceID != "order-1" {
		t.Fatalf("audit must reference the order, got %v", audit.ReferenceID)
	}
}

func TestProcessReleasedCallsRelease(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	batch := seedBatch(t, conn, "WMS-OB2")
	client := &stubWMS{}
	consumer := newTestConsumer(t, conn, client, &fakeDeadLetter{})

	data, _ := json.Marshal(inventoryEvent{OrderID: "order-2", BatchID: batch.ID, Quantity: 3})
	msg := &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"routing_key": "inventory.InventoryReleased"},
	}

	result := consumer.process(context.Background(), msg)
	if result.nack {
		t.Fatal("expected ack")
	}
	if len(client.released) != 1 || len(client.allocated) != 0 {
		t.Fatalf("expected release call only, got %+v", client)
	}
}

func TestProcessIgnoresOtherRoutingKeys(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	client := &stubWMS{}
	consumer := newTestConsumer(t, conn, client, &fakeDeadLetter{})

	msg := &pubsub.Message{
		Data:       []byte(`{}`),
		Attributes: map[string]string{"routing_key": "inventory.InventoryAdjusted"},
	}
	result := consumer.process(context.Background(), msg)
	if result.nack {
		t.Fatal("expected ack for unrelated event")
	}
	if len(client.allocated)+len(client.released) != 0 {
		t.Fatal("unrelated events must not reach the wms")
	}
}

func TestProcessRetriableErrorNacks(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	batch := seedBatch(t, conn, "WMS-OB3")
	client := &stubWMS{allocateErr: &wms.APIError{StatusCode: 503, Body: "maintenance"}}
	dlq := &fakeDeadLetter{}
	consumer := newTestConsumer(t, conn, client, dlq)

	result := consumer.process(context.Background(), allocatedMessage(t, batch.ID, 1))
	if !result.nack {
		t.Fatal("expected nack for retriable wms error")
	}
	if len(dlq.published) != 0 {
		t.Fatal("retriable errors must not dead-letter")
	}
}

func TestProcessNonRetriableErrorDeadLetters(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	batch := seedBatch(t, conn, "WMS-OB4")
	client := &stubWMS{allocateErr: &wms.APIError{StatusCode: 422, Body: "bad batch"}}
	dlq := &fakeDeadLetter{}
	consumer := newTestConsumer(t, conn, client, dlq)

	result := consumer.process(context.Background(), allocatedMessage(t, batch.ID, 1))
	if result.nack {
		t.Fatal("expected ack after dead-lettering")
	}
	if len(dlq.published) != 1 {
		t.Fatalf("expected 1 dead-lettered message, got %d", len(dlq.published))
	}
	if dlq.attrs[0]["error"] == "" {
		t.Fatal("dead letter must carry the error attribute")
	}
}

func TestProcessUnknownBatchDeadLetters(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	client := &stubWMS{}
	dlq := &fakeDeadLetter{}
	consumer := newTestConsumer(t, conn, client, dlq)

	result := consumer.process(context.Background(), allocatedMessage(t, 9999, 1))
	if result.nack {
		t.Fatal("expected ack after dead-lettering")
	}
	if len(dlq.published) != 1 {
		t.Fatalf("expected dead letter for unknown batch, got %d", len(dlq.published))
	}
}
