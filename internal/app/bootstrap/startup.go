// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"crypto/sha256"

	feedbackfeature "github.com/dalemusser/studyhub/internal/app/features/feedback"
	oauthstatestore "github.com/dalemusser/studyhub/internal/app/store/oauthstate"
	"github.com/dalemusser/studyhub/internal/app/system/ratelimit"
	"github.com/dalemusser/studyhub/internal/app/system/realtime"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"github.com/dalemusser/studyhub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// services are the process-wide components shared by the handlers and torn
// down in Shutdown.
type services struct {
	hub     *realtime.Hub
	janitor *workers.Janitor
	limiter *ratelimit.LoginLimiter

	feedbackLimiter *ratelimit.Limiter
}

var svc services

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
	})

	svc.hub = realtime.NewHub(logger.Named("realtime"))
	svc.limiter = ratelimit.NewLoginLimiter()
	svc.feedbackLimiter = feedbackfeature.NewLimiter()

	svc.janitor = workers.NewJanitor(logger.Named("janitor"), appCfg.JanitorInterval)
	svc.janitor.AddCleaner("oauth_states", oauthstatestore.New(deps.MongoDatabase))
	svc.janitor.AddSweeper(svc.limiter)
	svc.janitor.AddSweeper(svc.feedbackLimiter)
	svc.janitor.Start()

	return nil
}

// resetTokenKey returns the configured reset key, or one derived from the
// session key so the two never share a value.
func resetTokenKey(appCfg AppConfig) []byte {
	if appCfg.ResetTokenKey != "" {
		return []byte(appCfg.ResetTokenKey)
	}
	sum := sha256.Sum256([]byte("password-reset:" + appCfg.SessionKey))
	return sum[:]
}
