// internal/app/features/apikeys/routes.go
package apikeys

import "github.com/go-chi/chi/v5"

// Routes returns the router for the /api-keys subtree (lookup and revoke
// by access key ID). Minting happens under the owning account or
// repository; see the accounts and products routes.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/{keyID}", h.Get)
	r.Delete("/{keyID}", h.Revoke)
	return r
}
