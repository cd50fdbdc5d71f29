package wmsoutbound

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/nabis/inventory-backend/pkg/db/models"
)

// Repository is the worker's read-only batch lookup plus its audit trail.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindBatch loads the batch without locks; the worker never mutates
// quantities, so it does not participate in the locking discipline.
func (r *Repository) FindBatch(ctx context.Context, batchID int64) (*models.Batch, error) {
	var batch models.Batch
	err := r.db.WithContext(ctx).First(&batch, "id = ?", batchID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

// RecordAudit appends a zero-delta ledger entry marking the WMS mirror call.
func (r *Repository) RecordAudit(ctx context.Context, entry models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(&entry).Error
}
