package inventory

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/nabis/inventory-backend/pkg/db/models"
)

// BatchAvailability is one batch row in the read projection.
type BatchAvailability struct {
	BatchID           int64      `json:"batchId"`
	ExternalBatchID   *string    `json:"externalBatchId,omitempty"`
	LotNumber         *string    `json:"lotNumber,omitempty"`
	ExpiresAt         *time.Time `json:"expiresAt,omitempty"`
	TotalQuantity     int        `json:"totalQuantity"`
	AvailableQuantity int        `json:"availableQuantity"`
}

// SKUInventory is the read projection returned by the query surface.
type SKUInventory struct {
	SKUCode        string              `json:"skuCode"`
	TotalAvailable int                 `json:"totalAvailable"`
	Batches        []BatchAvailability `json:"batches"`
}

// QueryRepository serves lock-free reads against the last committed snapshot.
type QueryRepository struct {
	db *gorm.DB
}

func NewQueryRepository(db *gorm.DB) *QueryRepository {
	return &QueryRepository{db: db}
}

// AvailableBySKUCode returns the batches for a SKU ordered by expiry
// soonest-first with never-expiring batches last, then by id. An unknown code
// yields an empty projection rather than an error.
func (r *QueryRepository) AvailableBySKUCode(ctx context.Context, skuCode string) (*SKUInventory, error) {
	var batches []models.Batch
	err := r.db.WithContext(ctx).
		Joins("JOIN skus ON skus.id = batches.sku_id").
		Where("skus.code = ?", skuCode).
		Order("batches.expires_at IS NULL, batches.expires_at ASC, batches.id ASC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}

	result := &SKUInventory{
		SKUCode: skuCode,
		Batches: make([]BatchAvailability, 0, len(batches)),
	}
	for _, batch := range batches {
		result.TotalAvailable += batch.AvailableQuantity
		result.Batches = append(result.Batches, BatchAvailability{
			BatchID:           batch.ID,
			ExternalBatchID:   batch.ExternalBatchID,
			LotNumber:         batch.LotNumber,
			ExpiresAt:         batch.ExpiresAt,
			TotalQuantity:     batch.TotalQuantity,
			AvailableQuantity: batch.AvailableQuantity,
		})
	}
	return result, nil
}

// ExternalBatchRef resolves a batch's external WMS id without locks; the
// outbound worker uses it read-only.
func (r *QueryRepository) ExternalBatchRef(ctx context.Context, batchID int64) (*models.Batch, error) {
	var batch models.Batch
	if err := r.db.WithContext(ctx).First(&batch, "id = ?", batchID).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}
