package models

import (
	"encoding/json"
	"time"

	"github.com/nabis/inventory-backend/pkg/enums"
)

// LedgerEntry is the append-only journal of quantity changes. Rows are never
// updated or deleted: a batch's available quantity must always equal its
// initial quantity plus the signed sum of its entries.
type LedgerEntry struct {
	ID            int64                 `gorm:"column:id;primaryKey;autoIncrement"`
	BatchID       int64                 `gorm:"column:batch_id;not null;index:ix_ledger_entries_batch_id"`
	Type          enums.LedgerEntryType `gorm:"column:type;not null"`
	QuantityDelta int                   `gorm:"column:quantity_delta;not null"`
	Source        enums.LedgerSource    `gorm:"column:source;not null"`
	ReferenceID   *string               `gorm:"column:reference_id"`
	Metadata      json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }
