package orders

import (
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/rbac"
	"github.com/odyssey-erp/odyssey-ledger/internal/sales/quotations"
)

// Handler exposes sales order endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.Create(r.Context(), httpx.Principal(r).OrgID, req)
	if err != nil {
		h.fail(w, "create", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	qf, err := quotations.ListFilterFromQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := ListFilter{Search: qf.Search, Status: Status(qf.Status), PartnerID: qf.PartnerID}
	result, err := h.service.List(r.Context(), httpx.Principal(r).OrgID, filter, httpx.PageFromQuery(r))
	if err != nil {
		h.fail(w, "list", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.Get(r.Context(), httpx.Principal(r).OrgID, id)
	if err != nil {
		h.fail(w, "get", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateOrderRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.Update(r.Context(), httpx.Principal(r).OrgID, id, req)
	if err != nil {
		h.fail(w, "update", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req StatusRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.Transition(r.Context(), httpx.Principal(r).OrgID, id, req.Status)
	if err != nil {
		h.fail(w, "status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) Fulfill(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.Fulfill(r.Context(), httpx.Principal(r).OrgID, id)
	if err != nil {
		h.fail(w, "fulfill", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// ConvertQuote handles POST /sales/quotes/{id}/convert.
func (h *Handler) ConvertQuote(w http.ResponseWriter, r *http.Request) {
	quoteID, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.ConvertQuote(r.Context(), httpx.Principal(r).OrgID, quoteID)
	if err != nil {
		h.fail(w, "convert", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	httpx.Fail(w, h.logger, "sales order "+op+" failed", err)
}
