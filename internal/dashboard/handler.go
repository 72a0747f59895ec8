package dashboard

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/rbac"
)

// Handler exposes the dashboard.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes attaches /dashboard routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireMember()).Get("/summary", h.summary)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("top"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 50 {
			httpx.RespondError(w, fmt.Errorf("%w: top must be between 1 and 50", httpx.ErrValidation))
			return
		}
		limit = v
	}
	summary, err := h.service.Summary(r.Context(), httpx.Principal(r).OrgID, limit)
	if err != nil {
		httpx.Fail(w, h.logger, "dashboard summary failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}
