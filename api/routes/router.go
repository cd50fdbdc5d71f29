package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nabis/inventory-backend/api/controllers"
	"github.com/nabis/inventory-backend/api/middleware"
	"github.com/nabis/inventory-backend/internal/inventory"
	"github.com/nabis/inventory-backend/internal/reconcile"
	"github.com/nabis/inventory-backend/pkg/config"
	"github.com/nabis/inventory-backend/pkg/db"
	"github.com/nabis/inventory-backend/pkg/logger"
	"github.com/nabis/inventory-backend/pkg/outbox"
)

// RouterParams collects the dependencies the HTTP surface needs.
type RouterParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               *db.Client
	InventoryService inventory.Service
	SyncService      reconcile.Service
	OutboxRepo       *outbox.Repository
	ReadyChecks      map[string]func(context.Context) error
}

// NewRouter wires middleware and routes.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	logg := params.Logger

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(params.Config))
		r.Get("/ready", controllers.HealthReady(params.Config, logg, params.ReadyChecks))
	})

	r.Route("/inventory", func(r chi.Router) {
		r.Post("/reserve", controllers.Reserve(params.InventoryService, logg))
		r.Post("/release", controllers.Release(params.InventoryService, logg))
		r.Get("/{sku}", controllers.GetBySKU(params.InventoryService, logg))
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/inventory/adjust", controllers.Adjust(params.InventoryService, logg))
		r.Post("/wms/sync", controllers.QueueSync(params.SyncService, logg))
		r.Get("/wms/sync/{id}", controllers.GetSync(params.SyncService, logg))
		r.Post("/outbox/retry", controllers.OutboxRetry(params.DB, params.OutboxRepo, logg))
		r.Get("/outbox/stats", controllers.OutboxStats(params.DB, params.OutboxRepo, logg))
	})

	return r
}
