package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func TestRespondErrorMapsConditions(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: draft", shared.ErrInvalidStatus), http.StatusConflict, "invalid_status"},
		{fmt.Errorf("%w: total", shared.ErrInsufficientStock), http.StatusConflict, "insufficient_stock"},
		{shared.ErrOverallocation, http.StatusConflict, "overallocation"},
		{shared.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
		{fmt.Errorf("partner: %w", shared.ErrNotFound), http.StatusNotFound, "not_found"},
		{shared.ErrPartnerMismatch, http.StatusBadRequest, "partner_mismatch"},
		{shared.ErrAmountNonPositive, http.StatusBadRequest, "amount_nonpositive"},
		{fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), http.StatusConflict, "duplicate"},
		{shared.ErrIdempotencyConflict, http.StatusConflict, "duplicate_request"},
		{fmt.Errorf("%w: bad", ErrValidation), http.StatusBadRequest, "validation"},
		{shared.ErrForbidden, http.StatusForbidden, ""},
		{errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		require.Equal(t, tc.status, rr.Code, tc.err.Error())
		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Equal(t, tc.code, body.Code)
		require.Equal(t, tc.status, body.Status)
	}
}

func TestDecodeAndValidate(t *testing.T) {
	type payload struct {
		Name string `json:"name" validate:"required"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Body = http.NoBody
	var p payload
	require.ErrorIs(t, DecodeAndValidate(req, &p), ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", jsonBody(`{"name":""}`))
	err := DecodeAndValidate(req, &p)
	require.Error(t, err)
	rr := httptest.NewRecorder()
	RespondError(rr, err)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/", jsonBody(`{"name":"x","extra":1}`))
	require.ErrorIs(t, DecodeAndValidate(req, &p), ErrValidation)
}
