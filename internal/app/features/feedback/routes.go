// internal/app/features/feedback/routes.go
package feedback

import (
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireRegistered)
	r.Get("/", h.ServeMine)
	r.Post("/", h.HandleSubmit)
	return r
}
