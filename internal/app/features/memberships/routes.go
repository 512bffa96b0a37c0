// internal/app/features/memberships/routes.go
package memberships

import "github.com/go-chi/chi/v5"

// Routes returns the router for the /memberships subtree.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Invite)

	r.Route("/{membershipID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Post("/accept", h.Accept)
		r.Post("/reject", h.Reject)
		r.Post("/revoke", h.Revoke)
		r.Post("/reinvite", h.Reinvite)
		r.Put("/role", h.UpdateRole)
	})

	return r
}
