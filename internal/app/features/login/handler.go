// internal/app/features/login/handler.go
package login

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	apierrors "github.com/dalemusser/studyhub/internal/app/features/errors"
	identitystore "github.com/dalemusser/studyhub/internal/app/store/identity"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/app/system/auditlog"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/authutil"
	"github.com/dalemusser/studyhub/internal/app/system/inputval"
	"github.com/dalemusser/studyhub/internal/app/system/mailer"
	"github.com/dalemusser/studyhub/internal/app/system/ratelimit"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves sign-up, sign-in, password reset and the signed-in
// account settings (email and password change).
type Handler struct {
	Identity   *identitystore.Service
	Users      *userstore.Store
	SessionMgr *auth.SessionManager
	ErrLog     apierrors.ErrorLogger
	Mailer     *mailer.Mailer
	AuditLog   *auditlog.Logger
	Limiter    *ratelimit.LoginLimiter
	Log        *zap.Logger

	BaseURL  string // used to build password reset links
	SiteName string
	ResetTTL time.Duration
}

func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	tokens *authutil.ResetTokens,
	mail *mailer.Mailer,
	audit *auditlog.Logger,
	limiter *ratelimit.LoginLimiter,
	baseURL string,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = ratelimit.NewLoginLimiter()
	}
	var ttl time.Duration
	if tokens != nil {
		ttl = tokens.TTL()
	}
	return &Handler{
		Identity:   identitystore.New(db, logger, tokens),
		Users:      userstore.New(db),
		SessionMgr: sessionMgr,
		ErrLog:     apierrors.NewErrorLogger(logger),
		Mailer:     mail,
		AuditLog:   audit,
		Limiter:    limiter,
		Log:        logger,
		BaseURL:    baseURL,
		SiteName:   "StudyHub",
		ResetTTL:   ttl,
	}
}

// userView is what the client learns about the signed-in user.
type userView struct {
	ID        string `json:"id"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	Anonymous bool   `json:"anonymous"`
}

type messageResp struct {
	Message string `json:"message"`
}

func sessionUserFromProfile(u models.User) *auth.SessionUser {
	return &auth.SessionUser{ID: u.ID, Username: u.Username, Email: u.Email}
}

func viewOf(su *auth.SessionUser) userView {
	return userView{ID: su.ID, Username: su.Username, Email: su.Email, Anonymous: su.Anonymous}
}

// fail maps a service error to its response: validation and auth errors
// carry their own message, anything else is logged and answered with 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	var ae *authutil.Error
	switch {
	case inputval.IsValidationError(err):
		apierrors.RenderValidation(w, r, err)
	case errors.As(err, &ae):
		apierrors.RenderAuthError(w, r, err)
	default:
		h.ErrLog.LogServerError(w, r, "A server error occurred.", fmt.Errorf("%s: %w", op, err))
	}
}

// formatExpiry renders a duration as "N minutes" or "N hours".
func formatExpiry(d time.Duration) string {
	minutes := int(d.Minutes())
	if minutes < 60 {
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	hours := minutes / 60
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
