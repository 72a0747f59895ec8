package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/ar"
	"github.com/odyssey-erp/odyssey-ledger/internal/auth"
	"github.com/odyssey-erp/odyssey-ledger/internal/dashboard"
	"github.com/odyssey-erp/odyssey-ledger/internal/hr/leave"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/sales/invoices"
	"github.com/odyssey-erp/odyssey-ledger/internal/sales/orders"
	"github.com/odyssey-erp/odyssey-ledger/internal/sales/quotations"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
	Tokens  *auth.Tokens
	DB      Pinger

	MasterDataHandler *masterdata.Handler
	QuoteHandler      *quotations.Handler
	OrderHandler      *orders.Handler
	InvoiceHandler    *invoices.Handler
	ARHandler         *ar.Handler
	InventoryHandler  *inventory.Handler
	LeaveHandler      *leave.Handler
	DashboardHandler  *dashboard.Handler
	JobHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with Odyssey defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if params.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := params.DB.Ping(ctx); err != nil {
				params.Logger.Warn("readiness", slog.Any("error", err))
				httpx.Problem(w, http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable), "database unavailable")
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(params.Tokens, params.Logger))

		if params.MasterDataHandler != nil {
			r.Route("/masterdata", params.MasterDataHandler.MountRoutes)
		}
		if params.QuoteHandler != nil {
			r.Route("/sales/quotes", func(r chi.Router) {
				if params.OrderHandler != nil {
					params.QuoteHandler.MountRoutes(r, params.OrderHandler.ConvertRoute)
					return
				}
				params.QuoteHandler.MountRoutes(r)
			})
		}
		if params.OrderHandler != nil {
			r.Route("/sales/orders", params.OrderHandler.MountRoutes)
		}
		if params.InvoiceHandler != nil {
			r.Route("/sales/invoices", params.InvoiceHandler.MountRoutes)
		}
		if params.ARHandler != nil {
			r.Route("/finance/ar", params.ARHandler.MountRoutes)
		}
		if params.InventoryHandler != nil {
			r.Route("/stock", params.InventoryHandler.MountRoutes)
		}
		if params.LeaveHandler != nil {
			r.Route("/hr", params.LeaveHandler.MountRoutes)
		}
		if params.DashboardHandler != nil {
			r.Route("/dashboard", params.DashboardHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
