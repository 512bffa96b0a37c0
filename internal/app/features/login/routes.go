// internal/app/features/login/routes.go
package login

import "github.com/go-chi/chi/v5"

// Routes returns the router for the Google OAuth endpoints. These routes
// are public; the callback is where a session comes from.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/google", h.ServeLogin)
	r.Get("/google/callback", h.ServeCallback)
	return r
}
