// internal/app/features/feedback/handler.go
package feedback

import (
	"time"

	apierrors "github.com/dalemusser/studyhub/internal/app/features/errors"
	feedbackstore "github.com/dalemusser/studyhub/internal/app/store/feedback"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/app/system/auditlog"
	"github.com/dalemusser/studyhub/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Submission budget per member.
const (
	SubmitBurst  = 5
	SubmitWindow = 10 * time.Minute
)

// Handler accepts site feedback from registered members.
type Handler struct {
	Feedback *feedbackstore.Store
	Users    *userstore.Store
	Limiter  *ratelimit.Limiter
	AuditLog *auditlog.Logger
	ErrLog   apierrors.ErrorLogger
	Log      *zap.Logger
}

// NewHandler builds a Handler. A nil limiter gets the default submission budget.
func NewHandler(db *mongo.Database, limiter *ratelimit.Limiter, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = NewLimiter()
	}
	return &Handler{
		Feedback: feedbackstore.New(db),
		Users:    userstore.New(db),
		Limiter:  limiter,
		AuditLog: audit,
		ErrLog:   apierrors.NewErrorLogger(logger),
		Log:      logger,
	}
}

// NewLimiter returns a limiter with the default submission budget.
func NewLimiter() *ratelimit.Limiter {
	return ratelimit.New(SubmitBurst, SubmitWindow)
}
