// internal/app/features/products/routes.go
package products

import "github.com/go-chi/chi/v5"

// Routes returns the router for the account-scoped repository subtree,
// mounted at /accounts/{accountID}/repositories.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListByAccount)
	r.Post("/", h.Create)

	r.Route("/{productID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Delete("/", h.Disable)
		r.Post("/enable", h.Enable)
		r.Put("/featured", h.SetFeatured)

		r.Get("/data", h.ReadData)
		r.Put("/data", h.WriteData)

		r.Get("/memberships", h.ListMemberships)
		r.Get("/api-keys", h.ListAPIKeys)
		r.Post("/api-keys", h.CreateAPIKey)
	})

	return r
}

// CatalogRoutes returns the router for the public /repositories directory.
func CatalogRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Catalog)
	return r
}
