// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Sentinel errors for the transport layer.
var (
	ErrDuplicate  = errors.New("duplicate entry")
	ErrValidation = errors.New("validation failed")
)

var conditionStatus = map[shared.Condition]int{
	shared.ErrOrderNotFound:     http.StatusNotFound,
	shared.ErrPartnerMismatch:   http.StatusBadRequest,
	shared.ErrInvalidDates:      http.StatusBadRequest,
	shared.ErrAmountNonPositive: http.StatusBadRequest,
	shared.ErrNoWarehouse:       http.StatusBadRequest,
	shared.ErrInactivePartner:   http.StatusBadRequest,
	shared.ErrUnknownProduct:    http.StatusBadRequest,
}

type problem struct {
	status int
	title  string
	code   string
	detail string
}

func classify(err error) problem {
	var cond shared.Condition
	if errors.As(err, &cond) {
		status, ok := conditionStatus[cond]
		if !ok {
			status = http.StatusConflict
		}
		return problem{status, http.StatusText(status), cond.Code(), err.Error()}
	}
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return problem{http.StatusBadRequest, "Validation Failed", "validation", verrs.Error()}
	case errors.Is(err, ErrValidation):
		return problem{http.StatusBadRequest, "Validation Failed", "validation", err.Error()}
	case errors.Is(err, shared.ErrNotFound):
		return problem{http.StatusNotFound, "Not Found", "not_found", err.Error()}
	case errors.Is(err, ErrDuplicate), db.IsUniqueViolation(err):
		return problem{http.StatusConflict, "Duplicate", "duplicate", "resource already exists"}
	case errors.Is(err, shared.ErrIdempotencyConflict):
		return problem{http.StatusConflict, "Duplicate", "duplicate_request", err.Error()}
	case errors.Is(err, shared.ErrForbidden):
		return problem{http.StatusForbidden, "Forbidden", "", err.Error()}
	case errors.Is(err, shared.ErrUnauthenticated):
		return problem{http.StatusUnauthorized, "Unauthorized", "", err.Error()}
	default:
		return problem{http.StatusInternalServerError, "Internal Error", "", ""}
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	p := classify(err)
	ProblemCode(w, p.status, p.title, p.code, p.detail)
}

// Fail responds with err and logs it when the failure is on the server side.
func Fail(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	p := classify(err)
	if p.status >= http.StatusInternalServerError && logger != nil {
		logger.Error(msg, slog.Any("error", err))
	}
	ProblemCode(w, p.status, p.title, p.code, p.detail)
}
