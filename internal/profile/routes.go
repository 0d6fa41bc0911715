// internal/profile/routes.go

package profile

import (
	"github.com/go-chi/chi/v5"

	"github.com/calmoraapp/calmora-backend/internal/auth"
)

// RegisterRoutes sets up profile routes on a chi router. The resulting
// handler is mounted under the main API router.
func RegisterRoutes(handler *Handler, authMiddleware *auth.Middleware) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Get("/", handler.GetProfile)
		r.Put("/", handler.UpdateProfile)
	})

	return r
}
