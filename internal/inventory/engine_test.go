package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbpkg "github.com/nabis/inventory-backend/pkg/db"
	"github.com/nabis/inventory-backend/pkg/db/models"
	"github.com/nabis/inventory-backend/pkg/enums"
	pkgerrors "github.com/nabis/inventory-backend/pkg/errors"
	"github.com/nabis/inventory-backend/pkg/outbox"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = conn.AutoMigrate(
		&models.SKU{},
		&models.Batch{},
		&models.LedgerEntry{},
		&models.Reservation{},
		&models.OutboxEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newTestEngine(t *testing.T, conn *gorm.DB) *Engine {
	t.Helper()
	return NewEngine(outbox.NewService(outbox.NewRepository(conn), nil), EngineOptions{})
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(dbpkg.NewWithConn(conn), newTestEngine(t, conn), NewQueryRepository(conn))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedBatch(t *testing.T, conn *gorm.DB, code string, available, total int) models.Batch {
	t.Helper()
	sku := models.SKU{Code: code}
	if err := conn.Create(&sku).Error; err != nil {
		t.Fatalf("seed sku: %v", err)
	}
	batch := models.Batch{
		SKUID:             sku.ID,
		TotalQuantity:     total,
		AvailableQuantity: available,
	}
	if err := conn.Create(&batch).Error; err != nil {
		t.Fatalf("seed batch: %v", err)
	}
	return batch
}

func loadBatch(t *testing.T, conn *gorm.DB, id int64) models.Batch {
	t.Helper()
	var batch models.Batch
	if err := conn.First(&batch, "id = ?", id).Error; err != nil {
		t.Fatalf("load batch: %v", err)
	}
	return batch
}

func ledgerSum(t *testing.T, conn *gorm.DB, batchID int64) int {
	t.Helper()
	var entries []models.LedgerEntry
	if err := conn.Find(&entries, "batch_id = ?", batchID).Error; err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	sum := 0
	for _, entry := range entries {
		sum += entry.QuantityDelta
	}
	return sum
}

func countOutbox(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	err := conn.Model(&models.OutboxEvent{}).
		Where("event_type = ?", eventType).
		Count(&count).Error
	if err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	return count
}

func TestReserveDecrementsAndAudits(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	batch := seedBatch(t, conn, "SKU-A", 100, 100)
	ctx := context.Background()

	if err := svc.Reserve(ctx, "order-1", []Line{{BatchID: batch.ID, Quantity: 10}}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	reloaded := loadBatch(t, conn, batch.ID)
	if reloaded.AvailableQuantity != 90 {
		t.Fatalf("expected available 90, got %d", reloaded.AvailableQuantity)
	}
	if reloaded.Version != batch.Version+1 {
		t.Fatalf("expected version bump, got %d", reloaded.Version)
	}
	if got := ledgerSum(t, conn, batch.ID); got != -10 {
		t.Fatalf("expected ledger sum -10, got %d", got)
	}
	if got := countOutbox(t, conn, enums.EventInventoryAllocated); got != 1 {
		t.Fatalf("expected 1 allocate event, got %d", got)
	}

	var res models.Reservation
	if err := conn.First(&res, "order_id = ?", "order-1").Error; err != nil {
		t.Fatalf("load reservation: %v", err)
	}
	if res.Status != enums.ReservationStatusPending || res.Quantity != 10 {
		t.Fatalf("unexpected reservation %+v", res)
	}
}

func TestReserveBoundaryQuantities(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	batch := seedBatch(t, conn, "SKU-B", 5, 5)
	ctx := context.Background()

	if err := svc.Reserve(ctx, "order-zero", []Line{{BatchID: batch.ID, Quantity: 0}}); !pkgerrors.IsCode(err, pkgerrors.CodeInvalidQuantity) {
		t.Fatalf("expected INVALID_QUANTITY for zero, got %v", err)
	}
	if err := svc.Reserve(ctx, "order-neg", []Line{{BatchID: batch.ID, Quantity: -1}}); !pkgerrors.IsCode(err, pkgerrors.CodeInvalidQuantity) {
		t.Fatalf("expected INVALID_QUANTITY for negative, got %v", err)
	}
	if err := svc.Reserve(ctx, "order-empty", []Line{}); !pkgerrors.IsCode(err, pkgerrors.CodeInvalidQuantity) {
		t.Fatalf("expected INVALID_QUANTITY for empty lines, got %v", err)
	}

	// Requesting exactly the available quantity drains the batch.
	if err := svc.Reserve(ctx, "order-exact", []Line{{BatchID: batch.ID, Quantity: 5}}); err != nil {
		t.Fatalf("exact reserve: %v", err)
	}
	if got := loadBatch(t, conn, batch.ID).AvailableQuantity; got != 0 {
		t.Fatalf("expected available 0, got %d", got)
	}

	// One more unit fails without mutation.
	err := svc.Reserve(ctx, "order-over", []Line{{BatchID: batch.ID, Quantity: 1}})
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientInventory) {
		t.Fatalf("expected INSUFFICIENT_INVENTORY, got %v", err)
	}
	if got := loadBatch(t, conn, batch.ID).AvailableQuantity; got != 0 {
		t.Fatalf("failed reserve must not mutate, got available %d", got)
	}
}

func TestReserveUnknownBatch(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	seedBatch(t, conn, "SKU-C", 10, 10)

	err := svc.Reserve(context.Background(), "order-x", []Line{{BatchID: 9999, Quantity: 1}})
	if !pkgerrors.IsCode(err, pkgerrors.CodeBatchNotFound) {
		t.Fatalf("expected BATCH_NOT_FOUND, got %v", err)
	}
}

func TestReserveInsufficientRollsBackWholeOrder(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	batchA := seedBatch(t, conn, "SKU-D1", 10, 10)
	batchB := seedBatch(t, conn, "SKU-D2", 1, 1)

	err := svc.Reserve(context.Background(), "order-multi", []Line{
		{BatchID: batchA.ID, Quantity: 5},
		{BatchID: batchB.ID, Quantity: 2},
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientInventory) {
		t.Fatalf("expected INSUFFICIENT_INVENTORY, got %v", err)
	}

	if got := loadBatch(t, conn, batchA.ID).AvailableQuantity; got != 10 {
		t.Fatalf("batch A must be untouched, got %d", got)
	}
	if got := countOutbox(t, conn, enums.EventInventoryAllocated); got != 0 {
		t.Fatalf("expected no phantom events, got %d", got)
	}
	var count int64
	conn.Model(&models.Reservation{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no reservations, got %d", count)
	}
}

func TestReserveIdempotentReplay(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	batch := seedBatch(t, conn, "SKU-E", 100, 100)
	ctx := context.Background()

	lines := []Line{{BatchID: batch.ID, Quantity: 10}}
	if err := svc.Reserve(ctx, "order-replay", lines); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if err := svc.Reserve(ctx, "order-replay", lines); err != nil {
		t.Fatalf("replay must succeed: %v", err)
	}

	if got := loadBatch(t, conn, batch.ID).AvailableQuantity; got != 90 {
		t.Fatalf("replay must not double-decrement, got %d", got)
	}
	if got := countOutbox(t, conn, enums.EventInventoryAllocated); got != 1 {
		t.Fatalf("replay must not emit a second event, got %d", got)
	}
}

func TestReserveConflictOnDifferentLines(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	batch := seedBatch(t, conn, "SKU-F", 100, 100)
	ctx := context.Background()

	if err := svc.Reserve(ctx, "order-conflict", []Line{{BatchID: batch.ID, Quantity: 10}}); err != nil {
		t.Fatalf("first reserve: %v", err)
	}

	err := svc.Reserve(ctx, "order-conflict", []Line{{BatchID: batch.ID, Quantity: 20}})
	if !pkgerrors.IsCode(err, pkgerrors.CodeOrderAlreadyReserved) {
		t.Fatalf("expected ORDER_ALREADY_RESERVED, got %v", err)
	}
	if got := loadBatch(t, conn, batch.ID).AvailableQuantity; got != 90 {
		t.Fatalf("conflict must not mutate, got %d", got)
	}
}

func TestReserveAfterReleaseConflicts(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	batch := seedBatch(t, conn, "SKU-G", 100, 100)
	ctx := context.Background()

	lines := []Line{{BatchID: batch.ID, Quantity: 10}}
	if err := svc.Reserve(ctx, "order-released", lines); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.Release(ctx, "order-released", ""); err != nil {
		t.Fatalf("release: %v", err)
	}

	// The cancelled rows make a replay a conflict, not an idempotent success.
	err := svc.Reserve(ctx, "order-released", lines)
	if !pkgerrors.IsCode(err, pkgerrors.CodeOrderAlreadyReserved) {
		t.Fatalf("expected ORDER_ALREADY_RESERVED after release, got %v", err)
	}
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	batch := seedBatch(t, conn, "SKU-H", 100, 100)
	ctx := context.Background()

	if err := svc.Reserve(ctx, "order-rt", []Line{{BatchID: batch.ID, Quantity: 10}}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.Release(ctx, "order-rt", "customer cancelled"); err != nil {
		t.Fatalf("release: %v", err)
	}

	if got := loadBatch(t, conn, batch.ID).AvailableQuantity; got != 100 {
		t.Fatalf("round trip must restore available, got %d", got)
	}
	if got := ledgerSum(t, conn, batch.ID); got != 0 {
		t.Fatalf("round trip ledger must sum to zero, got %d", got)
	}
	if got := countOutbox(t, conn, enums.EventInventoryAllocated); got != 1 {
		t.Fatalf("expected 1 allocate event, got %d", got)
	}
	if got := countOutbox(t, conn, enums.EventInventoryReleased); got != 1 {
		t.Fatalf("expected 1 release event, got %d", got)
	}

	var res models.Reservation
	if err := conn.First(&res, "order_id = ?", "order-rt").Error; err != nil {
		t.Fatalf("load reservation: %v", err)
	}
	if res.Status != enums.ReservationStatusCancelled {
		t.Fatalf("expected CANCELLED reservation, got %s", res.Status)
	}
}

func TestReleaseIdempotencyAndNotFound(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	batch := seedBatch(t, conn, "SKU-I", 50, 50)
	ctx := context.Background()

	err := svc.Release(ctx, "order-never", "")
	if !pkgerrors.IsCode(err, pkgerrors.CodeOrderNotFound) {
		t.Fatalf("expected ORDER_NOT_FOUND, got %v", err)
	}

	if err := svc.Reserve(ctx, "order-twice", []Line{{BatchID: batch.ID, Quantity: 5}}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.Release(ctx, "order-twice", ""); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := svc.Release(ctx, "order-twice", ""); err != nil {
		t.Fatalf("second release must be idempotent: %v", err)
	}

	if got := loadBatch(t, conn, batch.ID).AvailableQuantity; got != 50 {
		t.Fatalf("double release must not double-credit, got %d", got)
	}
	if got := countOutbox(t, conn, enums.EventInventoryReleased); got != 1 {
		t.Fatalf("expected 1 release event, got %d", got)
	}
}

func TestCompetingReservesDrainExactly(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	batch := seedBatch(t, conn, "SKU-J", 10, 10)
	ctx := context.Background()

	// Five competing orders of 5 units against 10 available: exactly two can
	// win. The calls run one after another, so this checks the drain
	// arithmetic, not the row lock.
	succeeded, failed := 0, 0
	for _, orderID := range []string{"o1", "o2", "o3", "o4", "o5"} {
		err := svc.Reserve(ctx, orderID, []Line{{BatchID: batch.ID, Quantity: 5}})
		switch {
		case err == nil:
			succeeded++
		case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientInventory):
			failed++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if succeeded != 2 || failed != 3 {
		t.Fatalf("expected 2 wins and 3 conflicts, got %d/%d", succeeded, failed)
	}
	if got := loadBatch(t, conn, batch.ID).AvailableQuantity; got != 0 {
		t.Fatalf("expected available 0, got %d", got)
	}
	if got := countOutbox(t, conn, enums.EventInventoryAllocated); got != 2 {
		t.Fatalf("expected 2 allocate events, got %d", got)
	}
}

func TestReserveMultiBatchOrdersLedgerInInputOrder(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	batchA := seedBatch(t, conn, "SKU-K1", 10, 10)
	batchB := seedBatch(t, conn, "SKU-K2", 10, 10)
	ctx := context.Background()

	// Input order deliberately descends; the audit trail must follow it.
	err := svc.Reserve(ctx, "order-ordered", []Line{
		{BatchID: batchB.ID, Quantity: 2},
		{BatchID: batchA.ID, Quantity: 3},
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	var entries []models.LedgerEntry
	if err := conn.Order("id ASC").Find(&entries).Error; err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(entries))
	}
	if entries[0].BatchID != batchB.ID || entries[1].BatchID != batchA.ID {
		t.Fatalf("ledger must follow input order, got %d then %d", entries[0].BatchID, entries[1].BatchID)
	}
}

func TestAdjustBoundsAndAudit(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	batch := seedBatch(t, conn, "SKU-L", 10, 20)
	ctx := context.Background()

	newAvailable, err := svc.Adjust(ctx, batch.ID, 5, "cycle count")
	if err != nil {
		t.Fatalf("adjust up: %v", err)
	}
	if newAvailable != 15 {
		t.Fatalf("expected 15, got %d", newAvailable)
	}

	// Adjust is not idempotent: each call adds its delta.
	newAvailable, err = svc.Adjust(ctx, batch.ID, 5, "cycle count")
	if err != nil {
		t.Fatalf("adjust again: %v", err)
	}
	if newAvailable != 20 {
		t.Fatalf("expected 20, got %d", newAvailable)
	}

	if _, err := svc.Adjust(ctx, batch.ID, 1, "overflow"); !pkgerrors.IsCode(err, pkgerrors.CodeInvalidQuantity) {
		t.Fatalf("expected INVALID_QUANTITY above total, got %v", err)
	}
	if _, err := svc.Adjust(ctx, batch.ID, -21, "underflow"); !pkgerrors.IsCode(err, pkgerrors.CodeInvalidQuantity) {
		t.Fatalf("expected INVALID_QUANTITY below zero, got %v", err)
	}
	if _, err := svc.Adjust(ctx, 9999, 1, "missing"); !pkgerrors.IsCode(err, pkgerrors.CodeBatchNotFound) {
		t.Fatalf("expected BATCH_NOT_FOUND, got %v", err)
	}

	if got := countOutbox(t, conn, enums.EventInventoryAdjusted); got != 2 {
		t.Fatalf("expected 2 adjusted events, got %d", got)
	}
	if got := ledgerSum(t, conn, batch.ID); got != 10 {
		t.Fatalf("expected ledger sum 10, got %d", got)
	}
}

func TestReservationTTLStampsExpiry(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	engine := NewEngine(outbox.NewService(outbox.NewRepository(conn), nil), EngineOptions{
		ReservationTTL: time.Hour,
	})
	svc, err := NewService(dbpkg.NewWithConn(conn), engine, NewQueryRepository(conn))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	batch := seedBatch(t, conn, "SKU-M", 10, 10)

	if err := svc.Reserve(context.Background(), "order-ttl", []Line{{BatchID: batch.ID, Quantity: 1}}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	var res models.Reservation
	if err := conn.First(&res, "order_id = ?", "order-ttl").Error; err != nil {
		t.Fatalf("load reservation: %v", err)
	}
	if res.ExpiresAt == nil {
		t.Fatal("expected expires_at to be stamped")
	}
}
