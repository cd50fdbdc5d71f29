package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nabis/inventory-backend/api/responses"
	"github.com/nabis/inventory-backend/api/validators"
	"github.com/nabis/inventory-backend/internal/inventory"
	pkgerrors "github.com/nabis/inventory-backend/pkg/errors"
	"github.com/nabis/inventory-backend/pkg/logger"
)

type reserveRequest struct {
	OrderID string           `json:"orderId" validate:"required"`
	Lines   []inventory.Line `json:"lines"`
}

type releaseRequest struct {
	OrderID string `json:"orderId" validate:"required"`
	Reason  string `json:"reason,omitempty"`
}

type orderResponse struct {
	Status  string `json:"status"`
	OrderID string `json:"orderId"`
}

// Reserve handles POST /inventory/reserve, the hot-path entry point.
func Reserve(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		var req reserveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, req.OrderID)
		}
		if err := svc.Reserve(ctx, req.OrderID, req.Lines); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, orderResponse{Status: "ok", OrderID: req.OrderID})
	}
}

// Release handles POST /inventory/release.
func Release(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		var req releaseRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, req.OrderID)
		}
		if err := svc.Release(ctx, req.OrderID, req.Reason); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderResponse{Status: "ok", OrderID: req.OrderID})
	}
}

// GetBySKU handles GET /inventory/{sku}, the lock-free read projection.
func GetBySKU(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		skuCode := strings.TrimSpace(chi.URLParam(r, "sku"))
		if skuCode == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "sku code is required"))
			return
		}

		result, err := svc.GetAvailableInventory(r.Context(), skuCode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
