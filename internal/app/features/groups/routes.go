// internal/app/features/groups/routes.go
package groups

import (
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts list, lookup and view publicly; create and join need a
// registered user because they write to the caller's profile.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ServeList)
	r.Get("/options", h.ServeOptions)
	r.Get("/candidates", h.ServeCandidates)
	r.Get("/{id}", h.ServeView)

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireRegistered)
		pr.Post("/", h.HandleCreate)
		pr.Post("/{id}/join", h.HandleJoin)
	})

	return r
}
