package quotations

import (
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/rbac"
)

// Handler exposes quote endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// ListFilterFromQuery reads search, status and partner_id.
func ListFilterFromQuery(r *http.Request) (ListFilter, error) {
	partnerID, err := httpx.QueryUUID(r, "partner_id")
	if err != nil {
		return ListFilter{}, err
	}
	q := r.URL.Query()
	return ListFilter{Search: q.Get("search"), Status: Status(q.Get("status")), PartnerID: partnerID}, nil
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateQuoteRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	quote, err := h.service.Create(r.Context(), httpx.Principal(r).OrgID, req)
	if err != nil {
		h.fail(w, "create", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, quote)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := ListFilterFromQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
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
	quote, err := h.service.Get(r.Context(), httpx.Principal(r).OrgID, id)
	if err != nil {
		h.fail(w, "get", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateQuoteRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	quote, err := h.service.Update(r.Context(), httpx.Principal(r).OrgID, id, req)
	if err != nil {
		h.fail(w, "update", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
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
	quote, err := h.service.Transition(r.Context(), httpx.Principal(r).OrgID, id, req.Status)
	if err != nil {
		h.fail(w, "status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	httpx.Fail(w, h.logger, "quote "+op+" failed", err)
}
