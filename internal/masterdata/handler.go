package masterdata

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/rbac"
)

// Handler exposes reference data endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes attaches /masterdata routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireMember())
		r.Get("/partners", h.listPartners)
		r.Get("/partners/{id}", h.showPartner)
		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.showProduct)
		r.Get("/warehouses", h.listWarehouses)
		r.Get("/warehouses/{id}", h.showWarehouse)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAdmin())
		r.Post("/partners", h.createPartner)
		r.Post("/products", h.createProduct)
		r.Post("/warehouses", h.createWarehouse)
	})
}

func filtersFromQuery(r *http.Request) ListFilters {
	filters := ListFilters{Search: r.URL.Query().Get("search")}
	if raw := r.URL.Query().Get("active"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			filters.IsActive = &v
		}
	}
	return filters
}

func (h *Handler) createPartner(w http.ResponseWriter, r *http.Request) {
	var req CreatePartnerRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	partner, err := h.service.CreatePartner(r.Context(), httpx.Principal(r).OrgID, req)
	if err != nil {
		h.fail(w, "create partner", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, partner)
}

func (h *Handler) listPartners(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ListPartners(r.Context(), httpx.Principal(r).OrgID, filtersFromQuery(r), httpx.PageFromQuery(r))
	if err != nil {
		h.fail(w, "list partners", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) showPartner(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	partner, err := h.service.GetPartner(r.Context(), httpx.Principal(r).OrgID, id)
	if err != nil {
		h.fail(w, "get partner", err)
		return
	}
	httpx.JSON(w, http.StatusOK, partner)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.CreateProduct(r.Context(), httpx.Principal(r).OrgID, req)
	if err != nil {
		h.fail(w, "create product", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ListProducts(r.Context(), httpx.Principal(r).OrgID, filtersFromQuery(r), httpx.PageFromQuery(r))
	if err != nil {
		h.fail(w, "list products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) showProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.GetProduct(r.Context(), httpx.Principal(r).OrgID, id)
	if err != nil {
		h.fail(w, "get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) createWarehouse(w http.ResponseWriter, r *http.Request) {
	var req CreateWarehouseRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	warehouse, err := h.service.CreateWarehouse(r.Context(), httpx.Principal(r).OrgID, req)
	if err != nil {
		h.fail(w, "create warehouse", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, warehouse)
}

func (h *Handler) listWarehouses(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ListWarehouses(r.Context(), httpx.Principal(r).OrgID, filtersFromQuery(r), httpx.PageFromQuery(r))
	if err != nil {
		h.fail(w, "list warehouses", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) showWarehouse(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	warehouse, err := h.service.GetWarehouse(r.Context(), httpx.Principal(r).OrgID, id)
	if err != nil {
		h.fail(w, "get warehouse", err)
		return
	}
	httpx.JSON(w, http.StatusOK, warehouse)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	httpx.Fail(w, h.logger, "masterdata "+op+" failed", err)
}
