package rbac

import (
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Middleware wires role checks for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// RequireMember ensures the request carries a principal scoped to an org.
func (m Middleware) RequireMember() func(http.Handler) http.Handler {
	return m.RequireAny(shared.RoleUser, shared.RoleAdmin)
}

// RequireAdmin ensures the principal holds the admin role.
func (m Middleware) RequireAdmin() func(http.Handler) http.Handler {
	return m.RequireAny(shared.RoleAdmin)
}

// RequireAny ensures the principal has at least one of the roles.
func (m Middleware) RequireAny(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			if _, ok := allowed[principal.Role]; !ok {
				if m.Logger != nil {
					m.Logger.Warn("rbac denied",
						slog.String("user_id", principal.UserID.String()),
						slog.String("role", principal.Role),
						slog.String("path", r.URL.Path))
				}
				httpx.RespondError(w, shared.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ReadOrAdmin lets safe methods through for members and requires admin for mutations.
func (m Middleware) ReadOrAdmin() func(http.Handler) http.Handler {
	member := m.RequireMember()
	admin := m.RequireAdmin()
	return func(next http.Handler) http.Handler {
		memberNext := member(next)
		adminNext := admin(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				memberNext.ServeHTTP(w, r)
			default:
				adminNext.ServeHTTP(w, r)
			}
		})
	}
}
