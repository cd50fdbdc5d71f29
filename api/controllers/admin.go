package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nabis/inventory-backend/api/responses"
	"github.com/nabis/inventory-backend/api/validators"
	"github.com/nabis/inventory-backend/internal/inventory"
	"github.com/nabis/inventory-backend/internal/reconcile"
	"github.com/nabis/inventory-backend/pkg/enums"
	pkgerrors "github.com/nabis/inventory-backend/pkg/errors"
	"github.com/nabis/inventory-backend/pkg/logger"
	"github.com/nabis/inventory-backend/pkg/outbox"
)

type adjustRequest struct {
	BatchID       int64  `json:"batchId" validate:"required"`
	QuantityDelta int    `json:"quantityDelta" validate:"required"`
	Reason        string `json:"reason" validate:"required"`
}

type adjustResponse struct {
	Status               string `json:"status"`
	NewAvailableQuantity int    `json:"newAvailableQuantity"`
}

// Adjust handles POST /admin/inventory/adjust.
func Adjust(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		var req adjustRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		newAvailable, err := svc.Adjust(r.Context(), req.BatchID, req.QuantityDelta, req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, adjustResponse{Status: "ok", NewAvailableQuantity: newAvailable})
	}
}

type queueSyncRequest struct {
	BatchID *int64 `json:"batchId,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type queueSyncResponse struct {
	RequestID string `json:"requestId"`
	Status    string `json:"status"`
}

// QueueSync handles POST /admin/wms/sync.
func QueueSync(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sync service unavailable"))
			return
		}

		var req queueSyncRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Queue(r.Context(), reconcile.QueueInput{
			RequestedBy: "admin-api",
			Reason:      req.Reason,
			BatchID:     req.BatchID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, queueSyncResponse{
			RequestID: request.ID.String(),
			Status:    "queued",
		})
	}
}

// GetSync handles GET /admin/wms/sync/{id}.
func GetSync(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sync service unavailable"))
			return
		}

		raw := strings.TrimSpace(chi.URLParam(r, "id"))
		id, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sync request id"))
			return
		}

		request, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxRetryRequest struct {
	EventIDs []uuid.UUID `json:"eventIds,omitempty"`
}

type outboxRetryResponse struct {
	Status   string `json:"status"`
	Requeued int64  `json:"requeued"`
}

// OutboxRetry handles POST /admin/outbox/retry: the operator action that
// flips FAILED events back to PENDING for the dispatcher to pick up again.
func OutboxRetry(tx txRunner, repo *outbox.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tx == nil || repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "outbox repository unavailable"))
			return
		}

		var req outboxRetryRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var requeued int64
		err := tx.WithTx(r.Context(), func(txn *gorm.DB) error {
			var err error
			requeued, err = repo.RequeueFailed(txn, req.EventIDs)
			return err
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "requeue failed events"))
			return
		}
		responses.WriteSuccess(w, outboxRetryResponse{Status: "ok", Requeued: requeued})
	}
}

type outboxStatsResponse struct {
	Pending int64 `json:"pending"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
}

// OutboxStats handles GET /admin/outbox/stats.
func OutboxStats(tx txRunner, repo *outbox.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tx == nil || repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "outbox repository unavailable"))
			return
		}

		var counts map[enums.OutboxStatus]int64
		err := tx.WithTx(r.Context(), func(txn *gorm.DB) error {
			var err error
			counts, err = repo.CountByStatus(txn)
			return err
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count outbox events"))
			return
		}
		responses.WriteSuccess(w, outboxStatsResponse{
			Pending: counts[enums.OutboxStatusPending],
			Sent:    counts[enums.OutboxStatusSent],
			Failed:  counts[enums.OutboxStatusFailed],
		})
	}
}
