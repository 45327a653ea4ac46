// internal/app/features/login/account.go
package login

import (
	"context"
	"net/http"

	apierrors "github.com/dalemusser/studyhub/internal/app/features/errors"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/formutil"
	"github.com/dalemusser/studyhub/internal/app/system/normalize"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type changeEmailReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewEmail        string `json:"newEmail"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// POST /account/email
func (h *Handler) HandleChangeEmail(w http.ResponseWriter, r *http.Request) {
	cur, ok := auth.CurrentUser(r)
	if !ok {
		apierrors.Render(w, http.StatusUnauthorized, apierrors.Body{Error: "Please sign in to continue.", Code: "unauthorized"})
		return
	}
	var req changeEmailReq
	if err := formutil.Decode(w, r, &req); err != nil {
		apierrors.RenderValidation(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Identity.ChangeEmail(ctx, cur.ID, req.CurrentPassword, req.NewEmail); err != nil {
		h.fail(w, r, "change email", err)
		return
	}
	h.AuditLog.EmailChanged(ctx, r, cur.ID)

	updated := *cur
	updated.Email = normalize.Email(req.NewEmail)
	if h.SessionMgr != nil {
		if err := h.SessionMgr.Login(w, r, &updated); err != nil {
			h.Log.Warn("refresh session after email change", zap.String("uid", cur.ID), zap.Error(err))
		}
	}

	apierrors.WriteJSON(w, http.StatusOK, messageResp{Message: "Your email address has been updated."})
}

// POST /account/password
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	cur, ok := auth.CurrentUser(r)
	if !ok {
		apierrors.Render(w, http.StatusUnauthorized, apierrors.Body{Error: "Please sign in to continue.", Code: "unauthorized"})
		return
	}
	var req changePasswordReq
	if err := formutil.Decode(w, r, &req); err != nil {
		apierrors.RenderValidation(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Identity.ChangePassword(ctx, cur.ID, req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(w, r, "change password", err)
		return
	}
	h.AuditLog.PasswordChanged(ctx, r, cur.ID, false)

	apierrors.WriteJSON(w, http.StatusOK, messageResp{Message: "Your password has been updated."})
}
