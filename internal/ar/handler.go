package ar

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/rbac"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Handler manages receivable endpoints.
type Handler struct {
	logger *slog.Logger
	engine *Engine
	rbac   rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, engine *Engine, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, engine: engine, rbac: rbac}
}

// MountRoutes registers receivable routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireMember())
		r.Get("/balances/{partner_id}", h.balance)
		r.Get("/entries", h.listEntries)
		r.Get("/aging", h.aging)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAdmin())
		r.Post("/payments", h.postPayment)
	})
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	partnerID, err := httpx.URLUUID(r, "partner_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	balance, err := h.engine.PartnerBalance(r.Context(), httpx.Principal(r).OrgID, partnerID)
	if err != nil {
		httpx.Fail(w, h.logger, "ar balance failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	partnerID, err := httpx.QueryUUID(r, "partner_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if partnerID == nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	from, err := httpx.QueryDate(r, "from")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := httpx.QueryDate(r, "to")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.engine.ListEntries(r.Context(), httpx.Principal(r).OrgID,
		EntryFilter{PartnerID: *partnerID, From: from, To: to}, httpx.PageFromQuery(r))
	if err != nil {
		httpx.Fail(w, h.logger, "ar entries failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	asOf, err := httpx.QueryDate(r, "as_of")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var at time.Time
	if asOf != nil {
		at = *asOf
	}
	report, err := h.engine.Aging(r.Context(), httpx.Principal(r).OrgID, at)
	if err != nil {
		httpx.Fail(w, h.logger, "ar aging failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) postPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if len(key) > shared.MaxIdempotencyKeyLength {
		httpx.RespondError(w, fmt.Errorf("%w: Idempotency-Key longer than %d bytes", httpx.ErrValidation, shared.MaxIdempotencyKeyLength))
		return
	}
	result, err := h.engine.PostPayment(r.Context(), httpx.Principal(r).OrgID, req, key)
	if err != nil {
		httpx.Fail(w, h.logger, "ar payment failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}
