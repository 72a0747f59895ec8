package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/rbac"
)

// Handler exposes stock endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds the stock handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers /stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireMember())
		r.Get("/product/{product_id}", h.productStock)
		r.Get("/movements", h.listMovements)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAdmin())
		r.Post("/movements", h.createMovement)
		r.Delete("/movements/{id}", h.deleteMovement)
	})
}

func (h *Handler) productStock(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.URLUUID(r, "product_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	warehouseID, err := httpx.QueryUUID(r, "warehouse_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	stock, err := h.service.GetStock(r.Context(), httpx.Principal(r).OrgID, productID, warehouseID)
	if err != nil {
		httpx.Fail(w, h.logger, "stock lookup failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stock)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	var (
		filter MovementFilter
		err    error
	)
	if filter.ProductID, err = httpx.QueryUUID(r, "product_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.WarehouseID, err = httpx.QueryUUID(r, "warehouse_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.From, err = httpx.QueryDate(r, "from"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.To, err = httpx.QueryDate(r, "to"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	switch dir := Direction(r.URL.Query().Get("direction")); dir {
	case "", DirectionIn, DirectionOut:
		filter.Direction = dir
	default:
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	result, err := h.service.ListMovements(r.Context(), httpx.Principal(r).OrgID, filter, httpx.PageFromQuery(r))
	if err != nil {
		httpx.Fail(w, h.logger, "list movements failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) createMovement(w http.ResponseWriter, r *http.Request) {
	var req MovementInput
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	movement, err := h.service.CreateMovement(r.Context(), httpx.Principal(r).OrgID, req)
	if err != nil {
		httpx.Fail(w, h.logger, "create movement failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) deleteMovement(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteMovement(r.Context(), httpx.Principal(r).OrgID, id); err != nil {
		httpx.Fail(w, h.logger, "delete movement failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
