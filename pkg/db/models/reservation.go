package models

import (
	"time"

	"github.com/nabis/inventory-backend/pkg/enums"
)

// Reservation records a claim an order holds on a batch. At most one row may
// exist per (order_id, batch_id) pair.
type Reservation struct {
	ID        int64                   `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID   string                  `gorm:"column:order_id;not null;uniqueIndex:ux_reservations_order_batch,priority:1;index:ix_reservations_order_id"`
	BatchID   int64                   `gorm:"column:batch_id;not null;uniqueIndex:ux_reservations_order_batch,priority:2"`
	Quantity  int                     `gorm:"column:quantity;not null"`
	Status    enums.ReservationStatus `gorm:"column:status;not null;default:'PENDING'"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time               `gorm:"column:updated_at;autoUpdateTime"`
	ExpiresAt *time.Time              `gorm:"column:expires_at"`
}

func (Reservation) TableName() string { return "reservations" }
