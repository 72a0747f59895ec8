package quotations

import "github.com/go-chi/chi/v5"

// MountRoutes attaches quote routes. extra registers further admin routes
// under the same prefix, such as conversion to an order.
func (h *Handler) MountRoutes(r chi.Router, extra ...func(chi.Router)) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireMember())
		r.Get("/", h.List)
		r.Get("/{id}", h.Show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAdmin())
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Post("/{id}/status", h.ChangeStatus)
		for _, mount := range extra {
			mount(r)
		}
	})
}
