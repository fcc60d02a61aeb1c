// internal/app/features/applications/routes.go
package applications

import "github.com/go-chi/chi/v5"

// Routes returns the subrouter mounted under /applications.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Submit)
	r.Get("/", h.Queue)

	r.Route("/{applicationID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Post("/review", h.Decide)
		r.Post("/comments", h.Comment)
	})

	return r
}
