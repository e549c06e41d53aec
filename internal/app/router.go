package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/torqueshop/torqueshop/internal/customer"
	"github.com/torqueshop/torqueshop/internal/inventory"
	"github.com/torqueshop/torqueshop/internal/invoice"
	"github.com/torqueshop/torqueshop/internal/mechanic"
	"github.com/torqueshop/torqueshop/internal/ticket"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	CustomerHandler  *customer.Handler
	MechanicHandler  *mechanic.Handler
	TicketHandler    *ticket.Handler
	InventoryHandler *inventory.Handler
	InvoiceHandler   *invoice.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/customers", params.CustomerHandler.MountRoutes)
	r.Route("/mechanics", params.MechanicHandler.MountRoutes)
	r.Route("/service-tickets", params.TicketHandler.MountRoutes)
	r.Route("/inventory", params.InventoryHandler.MountRoutes)
	r.Route("/invoices", params.InvoiceHandler.MountRoutes)

	return r
}
