package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	dbpkg "github.com/nabis/inventory-backend/pkg/db"
	"github.com/nabis/inventory-backend/pkg/db/models"
	"github.com/nabis/inventory-backend/pkg/enums"
	"github.com/nabis/inventory-backend/pkg/logger"
	"github.com/nabis/inventory-backend/pkg/outbox"
	"github.com/nabis/inventory-backend/pkg/outbox/payloads"
	"github.com/nabis/inventory-backend/pkg/wms"
)

const (
	fullSyncLockKey = "inventory:wms-full-sync"
	fullSyncLockTTL = 10 * time.Minute
)

// Reconciler executes ForceWmsSync commands: it fetches the authoritative WMS
// snapshot and folds compensating adjustments into local batches. Each
// snapshot entry commits in its own transaction under the batch row lock, so
// reconciliation never races the reservation hot path.
type Reconciler struct {
	tx     txRunner
	repo   *Repository
	outbox outboxEmitter
	wms    wms.Client
	locker Locker
	logg   *logger.Logger
	now    func() time.Time
}

// ReconcilerParams collects the reconciler's dependencies.
type ReconcilerParams struct {
	Tx     txRunner
	Repo   *Repository
	Outbox outboxEmitter
	WMS    wms.Client
	Locker Locker
	Logger *logger.Logger
}

// NewReconciler validates and wires the reconciler.
func NewReconciler(params ReconcilerParams) (*Reconciler, error) {
	if params.Tx == nil {
		return nil, errors.New("tx runner is required")
	}
	if params.Repo == nil {
		return nil, errors.New("repository is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox emitter is required")
	}
	if params.WMS == nil {
		return nil, errors.New("wms client is required")
	}
	locker := params.Locker
	if locker == nil {
		locker = NewNoopLocker()
	}
	return &Reconciler{
		tx:     params.Tx,
		repo:   params.Repo,
		outbox: params.Outbox,
		wms:    params.WMS,
		locker: locker,
		logg:   params.Logger,
		now:    time.Now,
	}, nil
}

// Execute runs one command end to end. It returns ErrLockNotObtained when a
// concurrent full sync holds the lock; the caller should requeue. A failure
// inside the sync run marks the request FAILED and returns nil so the message
// is acked. Errors from loading the request, obtaining the lock, claiming the
// request or recording its final state are returned unchanged.
func (r *Reconciler) Execute(ctx context.Context, cmd payloads.ForceWmsSyncCommand) error {
	if r.logg != nil {
		ctx = r.logg.WithField(ctx, "sync_request_id", cmd.SyncRequestID.String())
	}

	request, err := r.repo.Get(ctx, cmd.SyncRequestID)
	if err != nil {
		return err
	}

	var lock Lock
	if request.BatchID == nil {
		lock, err = r.locker.Obtain(ctx, fullSyncLockKey, fullSyncLockTTL)
		if err != nil {
			return err
		}
		defer func() { _ = lock.Release(context.WithoutCancel(ctx)) }()
	}

	claimed, err := r.repo.ClaimInProgress(ctx, request.ID)
	if err != nil {
		return err
	}
	if !claimed {
		if r.logg != nil {
			r.logg.Info(ctx, "sync request already claimed, skipping")
		}
		return nil
	}

	if runErr := r.run(ctx, request); runErr != nil {
		if r.logg != nil {
			r.logg.Error(ctx, "sync request failed", runErr)
		}
		if markErr := r.repo.MarkFailed(ctx, request.ID, runErr, r.now().UTC()); markErr != nil {
			return markErr
		}
		return nil
	}

	return r.repo.MarkDone(ctx, request.ID, r.now().UTC())
}

func (r *Reconciler) run(ctx context.Context, request *models.SyncRequest) error {
	if request.BatchID != nil {
		return r.runScoped(ctx, *request.BatchID)
	}
	return r.runFull(ctx)
}

func (r *Reconciler) runScoped(ctx context.Context, batchID int64) error {
	var batch models.Batch
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.First(&batch, "id = ?", batchID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("batch %d not found", batchID)
		}
		return err
	}
	if batch.ExternalBatchID == nil {
		return fmt.Errorf("batch %d has no external batch id", batchID)
	}

	entries, err := r.wms.Snapshot(ctx, *batch.ExternalBatchID)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := r.applyEntry(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) runFull(ctx context.Context) error {
	state, err := r.repo.SyncState(ctx)
	if err != nil {
		return err
	}
	token := ""
	if state.LastIncrementalToken != nil {
		token = *state.LastIncrementalToken
	}

	page, err := r.wms.SnapshotPage(ctx, token)
	if err != nil {
		return err
	}
	for _, entry := range page.Entries {
		if err := r.applyEntry(ctx, entry); err != nil {
			return err
		}
	}

	return r.repo.RecordFullSync(ctx, r.now().UTC(), page.NextToken)
}

// applyEntry records the snapshot audit row and, when the WMS batch maps to a
// local one, converges available_quantity onto the reported value. One
// transaction per entry keeps lock hold times short.
func (r *Reconciler) applyEntry(ctx context.Context, entry wms.SnapshotEntry) error {
	return r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var batches []models.Batch
		if err := dbpkg.ForUpdate(tx.WithContext(ctx)).
			Where("external_batch_id = ?", entry.WmsBatchID).
			Order("id ASC").
			Limit(1).
			Find(&batches).Error; err != nil {
			return err
		}

		snapshot := models.WmsSnapshot{
			WmsBatchID:            entry.WmsBatchID,
			ReportedOrderable:     entry.Orderable,
			ReportedUnallocatable: entry.Unallocatable,
			ReportedAt:            entry.ReportedAt,
			RawPayload:            rawPayload(entry),
		}
		if len(batches) == 0 {
			// Unmatched WMS batch: keep the audit trail, touch nothing else.
			return tx.WithContext(ctx).Create(&snapshot).Error
		}

		batch := batches[0]
		snapshot.BatchID = &batch.ID
		if err := tx.WithContext(ctx).Create(&snapshot).Error; err != nil {
			return err
		}

		delta := entry.Orderable - batch.AvailableQuantity
		if delta == 0 {
			return nil
		}

		updates := map[string]any{
			"available_quantity": entry.Orderable,
			"version":            gorm.Expr("version + 1"),
		}
		if entry.Orderable > batch.TotalQuantity {
			// The WMS is authoritative; a report above our recorded total
			// means the total itself drifted.
			updates["total_quantity"] = entry.Orderable
		}
		if err := tx.WithContext(ctx).
			Model(&models.Batch{}).
			Where("id = ?", batch.ID).
			Updates(updates).Error; err != nil {
			return err
		}

		metadata, _ := json.Marshal(map[string]any{
			"previous": batch.AvailableQuantity,
			"new":      entry.Orderable,
		})
		wmsBatchID := entry.WmsBatchID
		ledger := models.LedgerEntry{
			BatchID:       batch.ID,
			Type:          enums.LedgerEntryAdjustment,
			QuantityDelta: delta,
			Source:        enums.LedgerSourceWmsSync,
			ReferenceID:   &wmsBatchID,
			Metadata:      metadata,
		}
		if err := tx.WithContext(ctx).Create(&ledger).Error; err != nil {
			return err
		}

		return r.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType: enums.EventInventoryAdjusted,
			Data: payloads.InventoryAdjustedEvent{
				BatchID:       batch.ID,
				QuantityDelta: delta,
				NewAvailable:  entry.Orderable,
				Source:        string(enums.LedgerSourceWmsSync),
				Reason:        "wms reconciliation",
				Timestamp:     r.now().UTC(),
			},
		})
	})
}

func rawPayload(entry wms.SnapshotEntry) json.RawMessage {
	if len(entry.Raw) > 0 {
		return entry.Raw
	}
	raw, _ := json.Marshal(entry)
	return raw
}
