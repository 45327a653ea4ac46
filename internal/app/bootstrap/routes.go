// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	googlefeature "github.com/dalemusser/studyhub/internal/app/features/authgoogle"
	errorsfeature "github.com/dalemusser/studyhub/internal/app/features/errors"
	feedbackfeature "github.com/dalemusser/studyhub/internal/app/features/feedback"
	groupsfeature "github.com/dalemusser/studyhub/internal/app/features/groups"
	healthfeature "github.com/dalemusser/studyhub/internal/app/features/health"
	loginfeature "github.com/dalemusser/studyhub/internal/app/features/login"
	notificationsfeature "github.com/dalemusser/studyhub/internal/app/features/notifications"
	profilefeature "github.com/dalemusser/studyhub/internal/app/features/profile"
	searchfeature "github.com/dalemusser/studyhub/internal/app/features/search"
	usersfeature "github.com/dalemusser/studyhub/internal/app/features/users"
	auditstore "github.com/dalemusser/studyhub/internal/app/store/audit"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/app/system/auditlog"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/authutil"
	"github.com/dalemusser/studyhub/internal/app/system/mailer"
	"github.com/dalemusser/studyhub/internal/app/system/realtime"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for StudyHub.
//
// WAFFLE calls this after configuration, DB connections, schema setup and
// Startup have completed. Every feature is a JSON API mounted under its own
// prefix; the session middleware runs first so handlers can read the
// current user with auth.CurrentUser(r).
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	// Reload the profile on each request so username and email changes show up immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(db))

	tokens := authutil.NewResetTokens(resetTokenKey(appCfg), nil, appCfg.PasswordResetExpiry)
	mail := mailer.New(mailer.Config{
		FromAddress: appCfg.MailFrom,
		FromName:    appCfg.MailFromName,
		SMTPHost:    appCfg.MailSMTPHost,
		SMTPPort:    appCfg.MailSMTPPort,
		SMTPUser:    appCfg.MailSMTPUser,
		SMTPPass:    appCfg.MailSMTPPass,
		SendGridKey: appCfg.SendGridKey,
	}, logger.Named("mailer"))
	audit := auditlog.New(auditstore.New(db), logger.Named("audit"), auditlog.Config{
		Auth:      appCfg.AuditLogAuth,
		Community: appCfg.AuditLogCommunity,
	})

	hub := svc.hub
	if hub == nil {
		hub = realtime.NewHub(logger.Named("realtime"))
	}

	r := chi.NewRouter()
	r.Use(sessionMgr.LoadSessionUser)

	errorsHandler := errorsfeature.NewHandler()
	r.NotFound(errorsHandler.NotFound)
	r.MethodNotAllowed(errorsHandler.MethodNotAllowed)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Authentication and account settings
	loginHandler := loginfeature.NewHandler(db, sessionMgr, tokens, mail, audit, svc.limiter, appCfg.BaseURL, logger.Named("login"))
	loginHandler.SiteName = appCfg.SiteName
	r.Mount("/auth", loginfeature.Routes(loginHandler))
	r.Mount("/account", loginfeature.AccountRoutes(loginHandler, sessionMgr))

	googleHandler := googlefeature.NewHandler(db, sessionMgr, audit,
		appCfg.GoogleClientID, appCfg.GoogleClientSecret, appCfg.BaseURL, logger.Named("google"))
	r.Mount("/auth/google", googlefeature.Routes(googleHandler))
	if !googleHandler.IsConfigured() {
		logger.Info("Google sign-in disabled (no client id)")
	}

	// Study groups and cohorts share one handler type
	for _, kind := range models.Kinds {
		h := groupsfeature.NewHandler(db, kind, hub, audit, logger.Named("groups"))
		r.Mount(kind.PathPrefix(), groupsfeature.Routes(h, sessionMgr))
	}

	// People
	usersHandler := usersfeature.NewHandler(db, audit, logger.Named("users"))
	r.Mount("/users", usersfeature.Routes(usersHandler, sessionMgr))

	profileHandler := profilefeature.NewHandler(db, audit, logger.Named("profile"))
	r.Mount("/profile", profilefeature.Routes(profileHandler, sessionMgr))

	notificationsHandler := notificationsfeature.NewHandler(db, hub, logger.Named("notifications"))
	r.Mount("/notifications", notificationsfeature.Routes(notificationsHandler, sessionMgr))

	searchHandler := searchfeature.NewHandler(db, logger.Named("search"))
	r.Mount("/search", searchfeature.Routes(searchHandler))

	feedbackHandler := feedbackfeature.NewHandler(db, svc.feedbackLimiter, audit, logger.Named("feedback"))
	r.Mount("/feedback", feedbackfeature.Routes(feedbackHandler, sessionMgr))

	return r, nil
}
