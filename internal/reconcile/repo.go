package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabis/inventory-backend/pkg/db/models"
	"github.com/nabis/inventory-backend/pkg/enums"
	pkgerrors "github.com/nabis/inventory-backend/pkg/errors"
)

// Repository persists sync requests and the singleton sync cursor.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateTx(tx *gorm.DB, request *models.SyncRequest) error {
	return tx.Create(request).Error
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.SyncRequest, error) {
	var request models.SyncRequest
	err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sync request not found").
				WithDetails(map[string]any{"requestId": id.String()})
		}
		return nil, err
	}
	return &request, nil
}

// ClaimInProgress transitions PENDING -> IN_PROGRESS. Returns false when the
// row was already claimed or finished; duplicate deliveries land here.
func (r *Repository) ClaimInProgress(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.SyncRequest{}).
		Where("id = ? AND status = ?", id, enums.SyncRequestStatusPending).
		Update("status", enums.SyncRequestStatusInProgress)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) MarkDone(ctx context.Context, id uuid.UUID, completedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.SyncRequest{}).
		Where("id = ? AND status = ?", id, enums.SyncRequestStatusInProgress).
		Updates(map[string]any{
			"status":       enums.SyncRequestStatusDone,
			"completed_at": completedAt,
		}).Error
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, cause error, completedAt time.Time) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.db.WithContext(ctx).
		Model(&models.SyncRequest{}).
		Where("id = ? AND status = ?", id, enums.SyncRequestStatusInProgress).
		Updates(map[string]any{
			"status":       enums.SyncRequestStatusFailed,
			"error":        msg,
			"completed_at": completedAt,
		}).Error
}

// SyncState returns the singleton cursor row, creating it when absent.
func (r *Repository) SyncState(ctx context.Context) (*models.SyncState, error) {
	var state models.SyncState
	err := r.db.WithContext(ctx).First(&state, "id = ?", models.SyncStateID).Error
	if err == nil {
		return &state, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	state = models.SyncState{ID: models.SyncStateID}
	if err := r.db.WithContext(ctx).Create(&state).Error; err != nil {
		return nil, err
	}
	return &state, nil
}

// RecordFullSync stores the completion time and continuation token of a full
// or incremental sync.
func (r *Repository) RecordFullSync(ctx context.Context, at time.Time, nextToken string) error {
	if _, err := r.SyncState(ctx); err != nil {
		return err
	}
	updates := map[string]any{"last_full_sync_at": at}
	if nextToken != "" {
		updates["last_incremental_token"] = nextToken
	} else {
		updates["last_incremental_token"] = nil
	}
	return r.db.WithContext(ctx).
		Model(&models.SyncState{}).
		Where("id = ?", models.SyncStateID).
		Updates(updates).Error
}
