package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabis/inventory-backend/pkg/enums"
)

// OutboxDLQ captures terminal outbox failures for auditing and remediation.
type OutboxDLQ struct {
	ID           uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	EventID      uuid.UUID                  `gorm:"column:event_id;type:uuid;not null"`
	EventType    enums.OutboxEventType      `gorm:"column:event_type;not null"`
	Payload      json.RawMessage            `gorm:"column:payload;type:jsonb;not null"`
	ErrorReason  enums.OutboxDLQErrorReason `gorm:"column:error_reason;not null"`
	ErrorMessage *string                    `gorm:"column:error_message"`
	RetryCount   int                        `gorm:"column:retry_count;not null;default:0"`
	FailedAt     time.Time                  `gorm:"column:failed_at"`
	CreatedAt    time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (OutboxDLQ) TableName() string { return "outbox_dlq" }

func (e *OutboxDLQ) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
