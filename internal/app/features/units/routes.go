// internal/app/features/units/routes.go
package units

import "github.com/go-chi/chi/v5"

// Routes returns the subrouter mounted under /units.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)

	r.Route("/{unitID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Get("/hierarchy", h.Hierarchy)
		r.Post("/deactivate", h.Deactivate)
		r.Post("/access-code/verify", h.VerifyAccessCode)

		r.Post("/members", h.AddMember)
		r.Post("/members/batch", h.AddMembers)
		r.Delete("/members/{userID}", h.RemoveMember)
		r.Patch("/members/{userID}", h.UpdateMember)

		r.Get("/terms/status", h.TermStatus)
		r.Post("/bearers/{role}", h.ReplaceBearer)
	})

	return r
}
