// internal/app/features/login/signin.go
package login

import (
	"context"
	"net/http"

	apierrors "github.com/dalemusser/studyhub/internal/app/features/errors"
	identitystore "github.com/dalemusser/studyhub/internal/app/store/identity"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/authutil"
	"github.com/dalemusser/studyhub/internal/app/system/formutil"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

type signupReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResp struct {
	User userView `json:"user"`
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /auth/signup                                                           |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleSignup registers a user. A caller holding an anonymous session keeps
// its uid; the anonymous account is upgraded in place.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupReq
	if err := formutil.Decode(w, r, &req); err != nil {
		apierrors.RenderValidation(w, r, err)
		return
	}

	in := identitystore.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}
	if cur, ok := auth.CurrentUser(r); ok && cur.Anonymous {
		in.AnonymousUID = cur.ID
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Identity.Signup(ctx, in)
	if err != nil {
		h.fail(w, r, "signup", err)
		return
	}

	su := sessionUserFromProfile(u)
	if err := h.SessionMgr.Login(w, r, su); err != nil {
		h.ErrLog.LogServerError(w, r, "Unable to create session. Please try again.", err, zap.String("uid", u.ID))
		return
	}
	h.AuditLog.Signup(ctx, r, u.ID, models.AuthMethodPassword, in.AnonymousUID != "")

	apierrors.WriteJSON(w, http.StatusCreated, userResp{User: viewOf(su)})
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/username-available?u=                                             |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeUsernameAvailable(w http.ResponseWriter, r *http.Request) {
	username := query.Get(r, "u")
	if username == "" {
		apierrors.RenderBadRequest(w, r, "Username is required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	ok, err := h.Identity.UsernameAvailable(ctx, username)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "A server error occurred.", err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{"username": username, "available": ok})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /auth/anonymous                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleAnonymous starts a guest session. A caller who is already signed in
// gets their current session back.
func (h *Handler) HandleAnonymous(w http.ResponseWriter, r *http.Request) {
	if cur, ok := auth.CurrentUser(r); ok {
		apierrors.WriteJSON(w, http.StatusOK, userResp{User: viewOf(cur)})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	acct, err := h.Identity.StartAnonymous(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "A server error occurred.", err)
		return
	}
	su := &auth.SessionUser{ID: acct.ID, Anonymous: true}
	if err := h.SessionMgr.Login(w, r, su); err != nil {
		h.ErrLog.LogServerError(w, r, "Unable to create session. Please try again.", err, zap.String("uid", acct.ID))
		return
	}
	h.AuditLog.AnonymousStarted(ctx, r, acct.ID)

	apierrors.WriteJSON(w, http.StatusCreated, userResp{User: viewOf(su)})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /auth/login                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if err := formutil.Decode(w, r, &req); err != nil {
		apierrors.RenderValidation(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if ok, reason := h.Limiter.Check(r, req.Email); !ok {
		h.AuditLog.LoginRateLimited(ctx, r, req.Email)
		apierrors.Render(w, http.StatusTooManyRequests, apierrors.Body{Error: reason, Code: authutil.CodeTooManyRequests})
		return
	}

	acct, err := h.Identity.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if code := authutil.Code(err); code != "" {
			h.AuditLog.LoginFailed(ctx, r, "", req.Email, code)
		}
		h.fail(w, r, "authenticate", err)
		return
	}
	h.Limiter.ResetEmail(req.Email)

	su := &auth.SessionUser{ID: acct.ID}
	if acct.Email != nil {
		su.Email = *acct.Email
	}
	if u, err := h.Users.GetByID(ctx, acct.ID); err == nil {
		su.Username = u.Username
	} else {
		h.Log.Warn("profile missing for account", zap.String("uid", acct.ID), zap.Error(err))
	}

	if err := h.SessionMgr.Login(w, r, su); err != nil {
		h.ErrLog.LogServerError(w, r, "Unable to create session. Please try again.", err, zap.String("uid", acct.ID))
		return
	}
	h.AuditLog.LoginSuccess(ctx, r, acct.ID, acct.AuthMethod)

	apierrors.WriteJSON(w, http.StatusOK, userResp{User: viewOf(su)})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /auth/logout                                                           |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	uid := ""
	if cur, ok := auth.CurrentUser(r); ok {
		uid = cur.ID
	}
	if err := h.SessionMgr.Logout(w, r); err != nil {
		h.Log.Warn("clear session failed", zap.Error(err))
	}
	if uid != "" {
		h.AuditLog.Logout(r.Context(), r, uid)
	}
	apierrors.WriteJSON(w, http.StatusOK, messageResp{Message: "You have been signed out."})
}
