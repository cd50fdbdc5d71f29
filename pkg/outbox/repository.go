package outbox

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/nabis/inventory-backend/pkg/db"
	"github.com/nabis/inventory-backend/pkg/db/models"
	"github.com/nabis/inventory-backend/pkg/enums"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert appends an event row inside the caller's business transaction.
func (r *Repository) Insert(tx *gorm.DB, event *models.OutboxEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(event).Error
}

// FetchPendingForPublish locks up to limit PENDING rows with SKIP LOCKED so
// scaled dispatchers drain disjoint batches. Ordered by created_at with id as
// the tiebreak, which preserves per-commit insertion order.
func (r *Repository) FetchPendingForPublish(tx *gorm.DB, limit int) ([]models.OutboxEvent, error) {
	var rows []models.OutboxEvent
	err := dbpkg.ForUpdateSkipLocked(tx).
		Where("status = ?", enums.OutboxStatusPending).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// MarkSentTx transitions a row to its terminal success state.
func (r *Repository) MarkSentTx(tx *gorm.DB, id uuid.UUID) error {
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     enums.OutboxStatusSent,
			"updated_at": time.Now(),
		}).Error
}

// MarkFailedTx records a publish failure. FAILED rows are not retried by the
// dispatcher; re-queueing them is an operator action.
func (r *Repository) MarkFailedTx(tx *gorm.DB, id uuid.UUID, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      enums.OutboxStatusFailed,
			"last_error":  msg,
			"retry_count": gorm.Expr("retry_count + 1"),
			"updated_at":  time.Now(),
		}).Error
}

// RequeueFailed flips FAILED rows back to PENDING. With ids it requeues only
// those rows; with an empty slice it requeues every FAILED row. Returns the
// number of rows flipped.
func (r *Repository) RequeueFailed(tx *gorm.DB, ids []uuid.UUID) (int64, error) {
	query := tx.Model(&models.OutboxEvent{}).
		Where("status = ?", enums.OutboxStatusFailed)
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}
	result := query.Updates(map[string]any{
		"status":     enums.OutboxStatusPending,
		"updated_at": time.Now(),
	})
	return result.RowsAffected, result.Error
}

// CountByStatus returns row counts keyed by outbox status.
func (r *Repository) CountByStatus(tx *gorm.DB) (map[enums.OutboxStatus]int64, error) {
	type row struct {
		Status enums.OutboxStatus
		Count  int64
	}
	var rows []row
	err := tx.Model(&models.OutboxEvent{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[enums.OutboxStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
