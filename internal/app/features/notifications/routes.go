// internal/app/features/notifications/routes.go
package notifications

import (
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Get("/", h.ServeList)
	r.Get("/unread-count", h.ServeUnreadCount)
	r.Get("/stream", h.ServeStream)
	r.Post("/{id}/toggle-read", h.HandleToggleRead)
	return r
}
