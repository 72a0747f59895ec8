package leave

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/rbac"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func serve(t *testing.T, f *leaveFixture, method, path, body string, principal shared.Principal) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/hr", NewHandler(nil, f.svc, rbac.Middleware{}).MountRoutes)
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), principal))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlerInvalidDatesIsBadRequest(t *testing.T) {
	f := newLeaveFixture(t)
	admin := shared.Principal{UserID: uuid.New(), OrgID: f.org, Role: shared.RoleAdmin}
	body := `{"employee_id":"` + f.employee.ID.String() + `","type_id":"` + f.sick.ID.String() + `","start_date":"2026-03-10","end_date":"2026-03-09"}`

	rec := serve(t, f, http.MethodPost, "/hr/leaves", body, admin)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, string(shared.ErrInvalidDates), problem.Code)
}

func TestHandlerBalanceAndRoles(t *testing.T) {
	f := newLeaveFixture(t)
	member := shared.Principal{UserID: *f.employee.UserID, OrgID: f.org, Role: shared.RoleUser}

	rec := serve(t, f, http.MethodGet, "/hr/employees/"+f.employee.ID.String()+"/leave-balance?year=2026", "", member)
	require.Equal(t, http.StatusOK, rec.Code)
	var balance struct {
		Year      int    `json:"year"`
		Remaining string `json:"remaining"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &balance))
	require.Equal(t, 2026, balance.Year)
	require.Equal(t, "10", balance.Remaining)

	rec = serve(t, f, http.MethodPost, "/hr/leave-types", `{"code":"X","name":"X"}`, member)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(t, f, http.MethodGet, "/hr/employees/"+f.employee.ID.String()+"/leave-balance?year=abc", "", member)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
