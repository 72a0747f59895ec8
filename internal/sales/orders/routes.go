package orders

import "github.com/go-chi/chi/v5"

// MountRoutes attaches sales order routes.
func (h *Handler) MountRoutes(r chi.Router) {
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
		r.Post("/{id}/fulfill", h.Fulfill)
	})
}

// ConvertRoute registers quote conversion on the quotes router.
func (h *Handler) ConvertRoute(r chi.Router) {
	r.Post("/{id}/convert", h.ConvertQuote)
}
