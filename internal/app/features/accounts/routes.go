// internal/app/features/accounts/routes.go
package accounts

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the router for the /accounts subtree. The repository
// router and the account-wide key mint live in their own features but
// hang off this subtree, so they are mounted here.
func Routes(h *Handler, repositories chi.Router, mintAPIKey http.HandlerFunc) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)

	r.Route("/{accountID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Delete("/", h.Disable)
		r.Post("/enable", h.Enable)

		r.Get("/flags", h.GetFlags)
		r.Put("/flags", h.PutFlags)

		r.Get("/profile", h.GetProfile)
		r.Put("/profile", h.PutProfile)

		r.Get("/memberships", h.ListMemberships)

		r.Get("/api-keys", h.ListAPIKeys)
		r.Post("/api-keys", mintAPIKey)

		r.Mount("/repositories", repositories)
	})

	return r
}
