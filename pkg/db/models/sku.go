package models

import "time"

// SKU identifies a product. Immutable after creation; one SKU has many batches.
type SKU struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Code      string    `gorm:"column:code;uniqueIndex:ux_skus_code;not null"`
	Name      *string   `gorm:"column:name"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`

	Batches []Batch `gorm:"foreignKey:SKUID;constraint:OnDelete:CASCADE"`
}

func (SKU) TableName() string { return "skus" }
