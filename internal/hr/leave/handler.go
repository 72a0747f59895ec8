package leave

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/rbac"
)

// Handler exposes /hr endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes attaches employee, leave type and leave request routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireMember())
		r.Get("/employees", h.listEmployees)
		r.Get("/employees/{id}", h.showEmployee)
		r.Get("/employees/{id}/leave-balance", h.balance)
		r.Get("/leave-types", h.listTypes)
		r.Get("/leave-types/{id}", h.showType)
		r.Get("/leaves", h.listRequests)
		r.Get("/leaves/{id}", h.showRequest)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAdmin())
		r.Post("/employees", h.createEmployee)
		r.Post("/leave-types", h.createType)
		r.Put("/leave-types/{id}", h.updateType)
		r.Delete("/leave-types/{id}", h.deleteType)
		r.Post("/leaves", h.createRequest)
		r.Put("/leaves/{id}", h.updateRequest)
		r.Post("/leaves/{id}/status", h.changeStatus)
	})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	httpx.Fail(w, h.logger, "hr "+op+" failed", err)
}

func (h *Handler) createEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	employee, err := h.service.CreateEmployee(r.Context(), httpx.Principal(r).OrgID, req)
	if err != nil {
		h.fail(w, "create employee", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, employee)
}

func (h *Handler) listEmployees(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ListEmployees(r.Context(), httpx.Principal(r).OrgID, r.URL.Query().Get("search"), httpx.PageFromQuery(r))
	if err != nil {
		h.fail(w, "list employees", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) showEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	employee, err := h.service.GetEmployee(r.Context(), httpx.Principal(r).OrgID, id)
	if err != nil {
		h.fail(w, "get employee", err)
		return
	}
	httpx.JSON(w, http.StatusOK, employee)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var year int
	if raw := r.URL.Query().Get("year"); raw != "" {
		year, err = strconv.Atoi(raw)
		if err != nil || year < 1 {
			httpx.RespondError(w, fmt.Errorf("%w: invalid year %q", httpx.ErrValidation, raw))
			return
		}
	}
	balance, err := h.service.Balance(r.Context(), httpx.Principal(r).OrgID, id, year)
	if err != nil {
		h.fail(w, "leave balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}

func (h *Handler) createType(w http.ResponseWriter, r *http.Request) {
	var req LeaveTypeRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	leaveType, err := h.service.CreateType(r.Context(), httpx.Principal(r).OrgID, req)
	if err != nil {
		h.fail(w, "create leave type", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, leaveType)
}

func (h *Handler) listTypes(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ListTypes(r.Context(), httpx.Principal(r).OrgID, r.URL.Query().Get("search"), httpx.PageFromQuery(r))
	if err != nil {
		h.fail(w, "list leave types", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) showType(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	leaveType, err := h.service.GetType(r.Context(), httpx.Principal(r).OrgID, id)
	if err != nil {
		h.fail(w, "get leave type", err)
		return
	}
	httpx.JSON(w, http.StatusOK, leaveType)
}

func (h *Handler) updateType(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req LeaveTypeRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	leaveType, err := h.service.UpdateType(r.Context(), httpx.Principal(r).OrgID, id, req)
	if err != nil {
		h.fail(w, "update leave type", err)
		return
	}
	httpx.JSON(w, http.StatusOK, leaveType)
}

func (h *Handler) deleteType(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteType(r.Context(), httpx.Principal(r).OrgID, id); err != nil {
		h.fail(w, "delete leave type", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	leave, err := h.service.CreateRequest(r.Context(), httpx.Principal(r).OrgID, req)
	if err != nil {
		h.fail(w, "create leave", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, leave)
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request) {
	var (
		filter RequestFilter
		err    error
	)
	if filter.EmployeeID, err = httpx.QueryUUID(r, "employee_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.TypeID, err = httpx.QueryUUID(r, "type_id"); err != nil {
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
	filter.Status = Status(r.URL.Query().Get("status"))
	principal := httpx.Principal(r)
	result, err := h.service.ListRequests(r.Context(), principal.OrgID, ViewerFrom(principal), filter, httpx.PageFromQuery(r))
	if err != nil {
		h.fail(w, "list leaves", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) showRequest(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal := httpx.Principal(r)
	leave, err := h.service.GetRequest(r.Context(), principal.OrgID, ViewerFrom(principal), id)
	if err != nil {
		h.fail(w, "get leave", err)
		return
	}
	httpx.JSON(w, http.StatusOK, leave)
}

func (h *Handler) updateRequest(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	leave, err := h.service.UpdateRequest(r.Context(), httpx.Principal(r).OrgID, id, req)
	if err != nil {
		h.fail(w, "update leave", err)
		return
	}
	httpx.JSON(w, http.StatusOK, leave)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
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
	leave, err := h.service.Transition(r.Context(), httpx.Principal(r).OrgID, id, req.Status)
	if err != nil {
		h.fail(w, "leave status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, leave)
}
