// internal/app/features/authgoogle/handler.go
package authgoogle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	identitystore "github.com/dalemusser/studyhub/internal/app/store/identity"
	"github.com/dalemusser/studyhub/internal/app/store/oauthstate"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/app/system/auditlog"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/authutil"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// stateTTL bounds the time between leaving for Google and coming back.
const stateTTL = 10 * time.Minute

const userInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Identity is the verified Google account behind a callback.
type Identity struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// IdentityFunc exchanges an authorization code for the Google identity.
type IdentityFunc func(ctx context.Context, code string) (Identity, error)

// Handler handles Google sign-in.
type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
	StateStore *oauthstate.Store
	Identity   *identitystore.Service
	Users      *userstore.Store

	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g. "https://studyhub.example/auth/google/callback"

	fetchIdentity IdentityFunc
}

// NewHandler creates a Google sign-in handler. It is inert until both
// clientID and clientSecret are set.
func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	audit *auditlog.Logger,
	clientID, clientSecret, baseURL string,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		Log:          logger,
		SessionMgr:   sessionMgr,
		AuditLog:     audit,
		StateStore:   oauthstate.New(db),
		Identity:     identitystore.New(db, logger, nil),
		Users:        userstore.New(db),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  baseURL + "/auth/google/callback",
	}
	h.fetchIdentity = h.exchange
	return h
}

// SetIdentityFunc replaces the code exchange; tests use it to skip Google.
func (h *Handler) SetIdentityFunc(f IdentityFunc) {
	h.fetchIdentity = f
}

func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// IsConfigured reports whether Google credentials are present.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeLogin stores a single-use state and sends the browser to Google. An
// anonymous caller's uid rides along in the state so the callback can
// upgrade that account instead of creating a new one.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("google sign-in requested but not configured")
		http.Redirect(w, r, "/login?error=google_not_configured", http.StatusSeeOther)
		return
	}

	linkUID := ""
	if cur, ok := auth.CurrentUser(r); ok && cur.Anonymous {
		linkUID = cur.ID
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	state, err := h.StateStore.Issue(ctx, query.Get(r, "return"), linkUID, stateTTL)
	if err != nil {
		h.Log.Error("failed to save oauth state", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, h.oauth2Config().AuthCodeURL(state), http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google/callback                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.Log.Warn("google sign-in denied",
			zap.String("error", errParam),
			zap.String("description", r.URL.Query().Get("error_description")))
		http.Redirect(w, r, "/login?error=google_denied", http.StatusSeeOther)
		return
	}

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		http.Redirect(w, r, "/login?error=invalid_state", http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	st, ok, err := h.StateStore.Consume(ctx, state)
	if err != nil {
		h.Log.Error("failed to validate oauth state", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}
	if !ok {
		h.Log.Warn("invalid or expired oauth state")
		http.Redirect(w, r, "/login?error=invalid_state", http.StatusSeeOther)
		return
	}

	id, err := h.fetchIdentity(ctx, code)
	if err != nil {
		h.Log.Error("google code exchange failed", zap.Error(err))
		http.Redirect(w, r, "/login?error=token_exchange", http.StatusSeeOther)
		return
	}
	if id.Email == "" || !id.EmailVerified {
		h.AuditLog.LoginFailed(ctx, r, "", id.Email, "email_unverified")
		http.Redirect(w, r, "/login?error=email_unverified", http.StatusSeeOther)
		return
	}

	acct, created, err := h.Identity.SignInExternal(ctx, id.Email, models.AuthMethodGoogle, st.LinkUID)
	if err != nil {
		var ae *authutil.Error
		if errors.As(err, &ae) {
			h.AuditLog.LoginFailed(ctx, r, "", id.Email, ae.Code)
			http.Redirect(w, r, "/login?error="+ae.Code, http.StatusSeeOther)
			return
		}
		h.Log.Error("google sign-in failed", zap.String("email", id.Email), zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}

	su := &auth.SessionUser{ID: acct.ID, Email: id.Email}
	if u, err := h.Users.GetByID(ctx, acct.ID); err == nil {
		su.Username = u.Username
	}
	if err := h.SessionMgr.Login(w, r, su); err != nil {
		h.Log.Error("save session failed", zap.String("uid", acct.ID), zap.Error(err))
		http.Redirect(w, r, "/login?error=session", http.StatusSeeOther)
		return
	}

	if created {
		h.AuditLog.Signup(ctx, r, acct.ID, models.AuthMethodGoogle, st.LinkUID != "")
	} else {
		h.AuditLog.LoginSuccess(ctx, r, acct.ID, models.AuthMethodGoogle)
	}

	http.Redirect(w, r, urlutil.SafeReturn(st.ReturnURL, "", "/"), http.StatusSeeOther)
}

// exchange trades code for a token and reads the Google userinfo endpoint.
func (h *Handler) exchange(ctx context.Context, code string) (Identity, error) {
	cfg := h.oauth2Config()
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("exchange code: %w", err)
	}

	resp, err := cfg.Client(ctx, token).Get(userInfoURL)
	if err != nil {
		return Identity{}, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("user info: unexpected status %d", resp.StatusCode)
	}
	var id Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return Identity{}, fmt.Errorf("decode user info: %w", err)
	}
	return id, nil
}
