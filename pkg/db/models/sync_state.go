package models

import "time"

// SyncStateID is the primary key of the singleton sync_state row.
const SyncStateID = 1

// SyncState is the singleton cursor for incremental WMS syncs.
type SyncState struct {
	ID                   int        `gorm:"column:id;primaryKey"`
	LastFullSyncAt       *time.Time `gorm:"column:last_full_sync_at"`
	LastIncrementalToken *string    `gorm:"column:last_incremental_token"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (SyncState) TableName() string { return "sync_state" }
