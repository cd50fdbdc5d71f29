package inventory

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"gorm.io/gorm"

	dbpkg "github.com/nabis/inventory-backend/pkg/db"
	"github.com/nabis/inventory-backend/pkg/db/models"
	"github.com/nabis/inventory-backend/pkg/enums"
	pkgerrors "github.com/nabis/inventory-backend/pkg/errors"
	"github.com/nabis/inventory-backend/pkg/outbox"
	"github.com/nabis/inventory-backend/pkg/outbox/payloads"
)

// Line is one requested (batch, quantity) pair.
type Line struct {
	BatchID  int64 `json:"batchId" validate:"required"`
	Quantity int   `json:"quantity" validate:"required"`
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Engine applies reservation, release and adjustment protocols against an
// open transaction. The caller owns the transaction boundary; nothing here
// commits or rolls back.
type Engine struct {
	outbox         outboxEmitter
	reservationTTL time.Duration
	now            func() time.Time
}

// EngineOptions tune engine behavior.
type EngineOptions struct {
	// ReservationTTL stamps expires_at on new reservations when positive.
	// There is no sweeper; the column exists for operators and future work.
	ReservationTTL time.Duration
	Now            func() time.Time
}

// NewEngine builds the transactional inventory engine.
func NewEngine(emitter outboxEmitter, opts EngineOptions) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		outbox:         emitter,
		reservationTTL: opts.ReservationTTL,
		now:            now,
	}
}

// Reserve atomically claims quantities for orderID. The protocol, in order:
// idempotency probe, input validation, deterministic lock acquisition in
// ascending batch id order, inventory check, then apply in input-line order.
func (e *Engine) Reserve(ctx context.Context, tx *gorm.DB, orderID string, lines []Line) error {
	if orderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	// Probe before taking any locks: a replayed request must not contend
	// with live traffic.
	var existing []models.Reservation
	if err := tx.WithContext(ctx).
		Where("order_id = ?", orderID).
		Find(&existing).Error; err != nil {
		return err
	}
	if len(existing) > 0 {
		if reservationsMatchLines(existing, lines) {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeOrderAlreadyReserved, "order already holds a different reservation").
			WithDetails(map[string]any{"orderId": orderID})
	}

	if err := validateLines(lines); err != nil {
		return err
	}

	batchIDs := sortedUniqueBatchIDs(lines)
	var batches []models.Batch
	if err := dbpkg.ForUpdate(tx.WithContext(ctx)).
		Where("id IN ?", batchIDs).
		Order("id ASC").
		Find(&batches).Error; err != nil {
		return err
	}

	available := make(map[int64]int, len(batches))
	for _, batch := range batches {
		available[batch.ID] = batch.AvailableQuantity
	}

	for _, line := range lines {
		current, ok := available[line.BatchID]
		if !ok {
			return pkgerrors.New(pkgerrors.CodeBatchNotFound, "batch not found").
				WithDetails(map[string]any{"batchId": line.BatchID})
		}
		if current < line.Quantity {
			return pkgerrors.New(pkgerrors.CodeInsufficientInventory, "insufficient inventory").
				WithDetails(map[string]any{
					"batchId":   line.BatchID,
					"requested": line.Quantity,
					"available": current,
				})
		}
	}

	now := e.now().UTC()
	var expiresAt *time.Time
	if e.reservationTTL > 0 {
		exp := now.Add(e.reservationTTL)
		expiresAt = &exp
	}

	for _, line := range lines {
		newAvailable := available[line.BatchID] - line.Quantity
		if err := e.setAvailable(ctx, tx, line.BatchID, newAvailable); err != nil {
			return err
		}
		if err := e.appendLedger(ctx, tx, models.LedgerEntry{
			BatchID:       line.BatchID,
			Type:          enums.LedgerEntryOrderAllocate,
			QuantityDelta: -line.Quantity,
			Source:        enums.LedgerSourceNabisOrder,
			ReferenceID:   &orderID,
		}); err != nil {
			return err
		}
		reservation := models.Reservation{
			OrderID:   orderID,
			BatchID:   line.BatchID,
			Quantity:  line.Quantity,
			Status:    enums.ReservationStatusPending,
			ExpiresAt: expiresAt,
		}
		if err := tx.WithContext(ctx).Create(&reservation).Error; err != nil {
			return err
		}
		if err := e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType: enums.EventInventoryAllocated,
			Data: payloads.InventoryAllocatedEvent{
				OrderID:   orderID,
				BatchID:   line.BatchID,
				Quantity:  line.Quantity,
				Timestamp: now,
			},
		}); err != nil {
			return err
		}
	}
	return nil
}

// Release reverses every PENDING reservation for orderID. A release against
// an order whose reservations are all cancelled already is a no-op success.
func (e *Engine) Release(ctx context.Context, tx *gorm.DB, orderID, reason string) error {
	if orderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	var pending []models.Reservation
	if err := dbpkg.ForUpdate(tx.WithContext(ctx)).
		Where("order_id = ? AND status = ?", orderID, enums.ReservationStatusPending).
		Order("batch_id ASC").
		Find(&pending).Error; err != nil {
		return err
	}

	if len(pending) == 0 {
		var count int64
		if err := tx.WithContext(ctx).
			Model(&models.Reservation{}).
			Where("order_id = ?", orderID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeOrderNotFound, "no reservation exists for order").
			WithDetails(map[string]any{"orderId": orderID})
	}

	batchIDs := make([]int64, 0, len(pending))
	for _, res := range pending {
		batchIDs = append(batchIDs, res.BatchID)
	}
	var batches []models.Batch
	if err := dbpkg.ForUpdate(tx.WithContext(ctx)).
		Where("id IN ?", batchIDs).
		Order("id ASC").
		Find(&batches).Error; err != nil {
		return err
	}
	available := make(map[int64]int, len(batches))
	for _, batch := range batches {
		available[batch.ID] = batch.AvailableQuantity
	}

	now := e.now().UTC()
	for _, res := range pending {
		newAvailable := available[res.BatchID] + res.Quantity
		available[res.BatchID] = newAvailable
		if err := e.setAvailable(ctx, tx, res.BatchID, newAvailable); err != nil {
			return err
		}
		if err := e.appendLedger(ctx, tx, models.LedgerEntry{
			BatchID:       res.BatchID,
			Type:          enums.LedgerEntryOrderRelease,
			QuantityDelta: res.Quantity,
			Source:        enums.LedgerSourceNabisOrder,
			ReferenceID:   &orderID,
		}); err != nil {
			return err
		}
		if err := tx.WithContext(ctx).
			Model(&models.Reservation{}).
			Where("id = ?", res.ID).
			Update("status", enums.ReservationStatusCancelled).Error; err != nil {
			return err
		}
		if err := e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType: enums.EventInventoryReleased,
			Data: payloads.InventoryReleasedEvent{
				OrderID:   orderID,
				BatchID:   res.BatchID,
				Quantity:  res.Quantity,
				Reason:    reason,
				Timestamp: now,
			},
		}); err != nil {
			return err
		}
	}
	return nil
}

// Adjust applies a signed delta to a batch's available quantity. The new
// value must stay within [0, total]; violations are rejected before any write.
func (e *Engine) Adjust(ctx context.Context, tx *gorm.DB, batchID int64, delta int, reason string, source enums.LedgerSource) (int, error) {
	batch, err := lockBatch(ctx, tx, batchID)
	if err != nil {
		return 0, err
	}

	newAvailable := batch.AvailableQuantity + delta
	if newAvailable < 0 || newAvailable > batch.TotalQuantity {
		return 0, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "adjustment violates quantity bounds").
			WithDetails(map[string]any{
				"batchId":   batchID,
				"delta":     delta,
				"available": batch.AvailableQuantity,
				"total":     batch.TotalQuantity,
			})
	}

	if err := e.setAvailable(ctx, tx, batchID, newAvailable); err != nil {
		return 0, err
	}

	metadata, _ := json.Marshal(map[string]any{
		"reason":   reason,
		"previous": batch.AvailableQuantity,
		"new":      newAvailable,
	})
	if err := e.appendLedger(ctx, tx, models.LedgerEntry{
		BatchID:       batchID,
		Type:          enums.LedgerEntryAdjustment,
		QuantityDelta: delta,
		Source:        source,
		Metadata:      metadata,
	}); err != nil {
		return 0, err
	}

	if err := e.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType: enums.EventInventoryAdjusted,
		Data: payloads.InventoryAdjustedEvent{
			BatchID:       batchID,
			QuantityDelta: delta,
			NewAvailable:  newAvailable,
			Source:        string(source),
			Reason:        reason,
			Timestamp:     e.now().UTC(),
		},
	}); err != nil {
		return 0, err
	}
	return newAvailable, nil
}

func (e *Engine) setAvailable(ctx context.Context, tx *gorm.DB, batchID int64, newAvailable int) error {
	return tx.WithContext(ctx).
		Model(&models.Batch{}).
		Where("id = ?", batchID).
		Updates(map[string]any{
			"available_quantity": newAvailable,
			"version":            gorm.Expr("version + 1"),
		}).Error
}

func (e *Engine) appendLedger(ctx context.Context, tx *gorm.DB, entry models.LedgerEntry) error {
	return tx.WithContext(ctx).Create(&entry).Error
}

func lockBatch(ctx context.Context, tx *gorm.DB, batchID int64) (*models.Batch, error) {
	var batches []models.Batch
	if err := dbpkg.ForUpdate(tx.WithContext(ctx)).
		Where("id = ?", batchID).
		Find(&batches).Error; err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeBatchNotFound, "batch not found").
			WithDetails(map[string]any{"batchId": batchID})
	}
	return &batches[0], nil
}

func validateLines(lines []Line) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "at least one line is required")
	}
	seen := make(map[int64]struct{}, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be positive").
				WithDetails(map[string]any{"batchId": line.BatchID, "quantity": line.Quantity})
		}
		if _, dup := seen[line.BatchID]; dup {
			return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "duplicate batch in lines").
				WithDetails(map[string]any{"batchId": line.BatchID})
		}
		seen[line.BatchID] = struct{}{}
	}
	return nil
}

func sortedUniqueBatchIDs(lines []Line) []int64 {
	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.BatchID]; ok {
			continue
		}
		seen[line.BatchID] = struct{}{}
		ids = append(ids, line.BatchID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// reservationsMatchLines compares the stored reservation set against the
// requested lines as an unordered multiset keyed by batch id. A stored
// CANCELLED row disqualifies the match: replaying an order that was released
// is a conflict, not an idempotent success.
func reservationsMatchLines(existing []models.Reservation, lines []Line) bool {
	if len(existing) != len(lines) {
		return false
	}
	stored := make(map[int64]int, len(existing))
	for _, res := range existing {
		if res.Status == enums.ReservationStatusCancelled {
			return false
		}
		stored[res.BatchID] = res.Quantity
	}
	if len(stored) != len(lines) {
		return false
	}
	for _, line := range lines {
		qty, ok := stored[line.BatchID]
		if !ok || qty != line.Quantity {
			return false
		}
	}
	return true
}
