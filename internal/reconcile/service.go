package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabis/inventory-backend/pkg/db/models"
	"github.com/nabis/inventory-backend/pkg/enums"
	"github.com/nabis/inventory-backend/pkg/outbox"
	"github.com/nabis/inventory-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service queues sync requests. The request row and its ForceWmsSync command
// commit in one transaction, so a visible request always has a command on the
// way and a rolled-back one leaves nothing behind.
type Service interface {
	Queue(ctx context.Context, input QueueInput) (*models.SyncRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*models.SyncRequest, error)
}

// QueueInput captures one sync request.
type QueueInput struct {
	RequestedBy string
	Reason      string
	BatchID     *int64
	Priority    int
}

type service struct {
	tx     txRunner
	repo   *Repository
	outbox outboxEmitter
	now    func() time.Time
}

// NewService wires the sync request service.
func NewService(tx txRunner, repo *Repository, emitter outboxEmitter) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{tx: tx, repo: repo, outbox: emitter, now: time.Now}, nil
}

func (s *service) Queue(ctx context.Context, input QueueInput) (*models.SyncRequest, error) {
	requestedBy := input.RequestedBy
	if requestedBy == "" {
		requestedBy = "api"
	}
	reason := input.Reason
	if reason == "" {
		reason = "manual sync"
	}

	request := &models.SyncRequest{
		RequestedBy: requestedBy,
		Reason:      reason,
		BatchID:     input.BatchID,
		Priority:    input.Priority,
		Status:      enums.SyncRequestStatusPending,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.CreateTx(tx, request); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType: enums.EventForceWmsSync,
			Data: payloads.ForceWmsSyncCommand{
				SyncRequestID: request.ID,
				BatchID:       input.BatchID,
				Timestamp:     s.now().UTC(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.SyncRequest, error) {
	return s.repo.Get(ctx, id)
}
