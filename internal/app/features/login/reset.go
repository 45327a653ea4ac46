// internal/app/features/login/reset.go
package login

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	apierrors "github.com/dalemusser/studyhub/internal/app/features/errors"
	"github.com/dalemusser/studyhub/internal/app/system/formutil"
	"github.com/dalemusser/studyhub/internal/app/system/mailer"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type resetReq struct {
	Email string `json:"email"`
}

type resetConfirmReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /auth/password-reset                                                   |
*─────────────────────────────────────────────────────────────────────────────*/

// HandlePasswordReset mails a reset link. The answer is the same whether or
// not an account exists for the email.
func (h *Handler) HandlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetReq
	if err := formutil.Decode(w, r, &req); err != nil {
		apierrors.RenderValidation(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	rr, err := h.Identity.RequestPasswordReset(ctx, req.Email)
	if err != nil {
		h.fail(w, r, "request password reset", err)
		return
	}

	if rr.Token != "" {
		h.AuditLog.PasswordResetRequested(ctx, r, rr.UID, rr.Email)
		msg := mailer.BuildPasswordResetEmail(mailer.PasswordResetData{
			SiteName:  h.SiteName,
			ResetLink: h.resetLink(rr.Token),
			ExpiresIn: formatExpiry(h.ResetTTL),
		})
		msg.To = rr.Email
		if h.Mailer == nil {
			h.Log.Warn("password reset requested but no mailer is configured", zap.String("uid", rr.UID))
		} else if err := h.Mailer.Send(ctx, msg); err != nil {
			h.Log.Error("send password reset email", zap.String("uid", rr.UID), zap.Error(err))
		}
	}

	apierrors.WriteJSON(w, http.StatusOK, messageResp{
		Message: fmt.Sprintf("If an account exists for %s, a password reset link has been sent.", rr.Email),
	})
}

func (h *Handler) resetLink(token string) string {
	return strings.TrimRight(h.BaseURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /auth/password-reset/confirm                                           |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmReq
	if err := formutil.Decode(w, r, &req); err != nil {
		apierrors.RenderValidation(w, r, err)
		return
	}
	if strings.TrimSpace(req.Token) == "" || req.Password == "" {
		apierrors.RenderBadRequest(w, r, "Please fill out all fields.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	uid, err := h.Identity.ConfirmPasswordReset(ctx, strings.TrimSpace(req.Token), req.Password)
	if err != nil {
		h.fail(w, r, "confirm password reset", err)
		return
	}
	h.AuditLog.PasswordChanged(ctx, r, uid, true)

	apierrors.WriteJSON(w, http.StatusOK, messageResp{Message: "Your password has been reset. Please sign in."})
}
