package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabis/inventory-backend/pkg/enums"
)

// OutboxEvent buffers a domain event for reliable publication. Rows are only
// written inside the business transaction that produced the state change.
type OutboxEvent struct {
	ID         uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	EventType  enums.OutboxEventType `gorm:"column:event_type;not null"`
	Payload    json.RawMessage       `gorm:"column:payload;type:jsonb;not null"`
	Status     enums.OutboxStatus    `gorm:"column:status;not null;default:'PENDING';index:ix_outbox_events_pending_created_at,where:status = 'PENDING'"`
	RetryCount int                   `gorm:"column:retry_count;not null;default:0"`
	LastError  *string               `gorm:"column:last_error"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime;index:ix_outbox_events_pending_created_at"`
	UpdatedAt  time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }

// BeforeCreate assigns the id application-side so the same code path works on
// Postgres and the SQLite test driver.
func (e *OutboxEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = enums.OutboxStatusPending
	}
	return nil
}
