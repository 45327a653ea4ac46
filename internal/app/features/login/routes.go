// internal/app/features/login/routes.go
package login

import (
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the /auth endpoints.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/signup", h.HandleSignup)
	r.Get("/username-available", h.ServeUsernameAvailable)
	r.Post("/anonymous", h.HandleAnonymous)
	r.Post("/login", h.HandleLogin)
	r.Post("/logout", h.HandleLogout)
	r.Post("/password-reset", h.HandlePasswordReset)
	r.Post("/password-reset/confirm", h.HandlePasswordResetConfirm)
	return r
}

// AccountRoutes mounts /account; every endpoint needs a registered user.
func AccountRoutes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireRegistered)
	r.Post("/email", h.HandleChangeEmail)
	r.Post("/password", h.HandleChangePassword)
	return r
}
