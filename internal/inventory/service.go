package inventory

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/nabis/inventory-backend/pkg/enums"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the public surface of the reservation engine. Each operation
// runs in its own transaction; a business error rolls everything back,
// including queued outbox rows.
type Service interface {
	Reserve(ctx context.Context, orderID string, lines []Line) error
	Release(ctx context.Context, orderID, reason string) error
	Adjust(ctx context.Context, batchID int64, delta int, reason string) (int, error)
	GetAvailableInventory(ctx context.Context, skuCode string) (*SKUInventory, error)
}

type service struct {
	tx     txRunner
	engine *Engine
	query  *QueryRepository
}

// NewService wires the transactional engine behind the service facade.
func NewService(tx txRunner, engine *Engine, query *QueryRepository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine required")
	}
	if query == nil {
		return nil, fmt.Errorf("query repository required")
	}
	return &service{tx: tx, engine: engine, query: query}, nil
}

func (s *service) Reserve(ctx context.Context, orderID string, lines []Line) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.engine.Reserve(ctx, tx, orderID, lines)
	})
}

func (s *service) Release(ctx context.Context, orderID, reason string) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.engine.Release(ctx, tx, orderID, reason)
	})
}

func (s *service) Adjust(ctx context.Context, batchID int64, delta int, reason string) (int, error) {
	var newAvailable int
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		newAvailable, err = s.engine.Adjust(ctx, tx, batchID, delta, reason, enums.LedgerSourceManualAdjustment)
		return err
	})
	if err != nil {
		return 0, err
	}
	return newAvailable, nil
}

func (s *service) GetAvailableInventory(ctx context.Context, skuCode string) (*SKUInventory, error) {
	return s.query.AvailableBySKUCode(ctx, skuCode)
}
