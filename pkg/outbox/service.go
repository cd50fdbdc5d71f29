package outbox

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"github.com/nabis/inventory-backend/pkg/db/models"
	"github.com/nabis/inventory-backend/pkg/enums"
	"github.com/nabis/inventory-backend/pkg/logger"
)

// DomainEvent is what business code hands to Emit. Data is marshalled as the
// wire payload verbatim; the payload structs live in the payloads package.
type DomainEvent struct {
	EventType enums.OutboxEventType
	Data      interface{}
}

type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// Emit writes the event row inside tx. If tx rolls back the row disappears
// with the business change, which is the whole point of the outbox.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !event.EventType.IsValid() {
		return errors.New("invalid outbox event type")
	}
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	row := models.OutboxEvent{
		EventType: event.EventType,
		Payload:   json.RawMessage(payload),
		Status:    enums.OutboxStatusPending,
	}
	if err := s.repo.Insert(tx, &row); err != nil {
		return err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"outbox_id":  row.ID.String(),
			"event_type": event.EventType,
		})
		s.logg.Info(logCtx, "outbox event queued")
	}
	return nil
}
