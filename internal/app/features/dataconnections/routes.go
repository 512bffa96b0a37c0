// internal/app/features/dataconnections/routes.go
package dataconnections

import "github.com/go-chi/chi/v5"

// Routes returns the router for the /data-connections subtree.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)

	r.Route("/{connectionID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
	})

	return r
}
