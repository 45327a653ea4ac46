// internal/app/features/users/routes.go
package users

import (
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Get("/{id}", h.ServeUser)
	r.With(sm.RequireRegistered).Post("/{id}/follow", h.HandleFollow)
	return r
}
