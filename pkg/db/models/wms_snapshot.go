package models

import (
	"encoding/json"
	"time"
)

// WmsSnapshot is the append-only audit trail of quantities the WMS reported.
// BatchID stays null when the WMS batch has no local counterpart.
type WmsSnapshot struct {
	ID                    int64           `gorm:"column:id;primaryKey;autoIncrement"`
	WmsBatchID            string          `gorm:"column:wms_batch_id;not null;index:ix_wms_snapshots_wms_batch_id"`
	BatchID               *int64          `gorm:"column:batch_id"`
	ReportedOrderable     int             `gorm:"column:reported_orderable;not null"`
	ReportedUnallocatable *int            `gorm:"column:reported_unallocatable"`
	ReportedAt            time.Time       `gorm:"column:reported_at;not null"`
	RawPayload            json.RawMessage `gorm:"column:raw_payload;type:jsonb;not null"`
	CreatedAt             time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (WmsSnapshot) TableName() string { return "wms_snapshots" }
