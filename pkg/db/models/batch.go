package models

import "time"

// Batch is a physical lot of a SKU and the unit of inventory concurrency:
// every writer that touches its quantity columns must hold the row lock, and
// writers that touch several batches must lock them in ascending id order.
type Batch struct {
	ID                    int64      `gorm:"column:id;primaryKey;autoIncrement"`
	SKUID                 int64      `gorm:"column:sku_id;not null;index:ix_batches_sku_id"`
	ExternalBatchID       *string    `gorm:"column:external_batch_id;index:ix_batches_external_batch_id"`
	LotNumber             *string    `gorm:"column:lot_number"`
	ExpiresAt             *time.Time `gorm:"column:expires_at"`
	TotalQuantity         int        `gorm:"column:total_quantity;not null;default:0"`
	UnallocatableQuantity int        `gorm:"column:unallocatable_quantity;not null;default:0"`
	AvailableQuantity     int        `gorm:"column:available_quantity;not null;default:0"`
	Version               int        `gorm:"column:version;not null;default:0"`
	UpdatedAt             time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	Reservations  []Reservation `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"`
	LedgerEntries []LedgerEntry `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"`
}

func (Batch) TableName() string { return "batches" }
