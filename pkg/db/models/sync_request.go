package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabis/inventory-backend/pkg/enums"
)

// SyncRequest tracks one requested WMS reconciliation run.
type SyncRequest struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	RequestedBy string                  `gorm:"column:requested_by;not null"`
	Reason      string                  `gorm:"column:reason;not null"`
	BatchID     *int64                  `gorm:"column:batch_id"`
	Priority    int                     `gorm:"column:priority;not null;default:0"`
	Status      enums.SyncRequestStatus `gorm:"column:status;not null;default:'PENDING'"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time               `gorm:"column:updated_at;autoUpdateTime"`
	CompletedAt *time.Time              `gorm:"column:completed_at"`
	Error       *string                 `gorm:"column:error"`
}

func (SyncRequest) TableName() string { return "sync_requests" }

func (r *SyncRequest) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = enums.SyncRequestStatusPending
	}
	return nil
}
