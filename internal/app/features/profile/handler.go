// internal/app/features/profile/handler.go
package profile

import (
	apierrors "github.com/dalemusser/studyhub/internal/app/features/errors"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/app/system/auditlog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler owns the signed-in user's own profile settings.
type Handler struct {
	Users    *userstore.Store
	AuditLog *auditlog.Logger
	ErrLog   apierrors.ErrorLogger
	Log      *zap.Logger
}

// NewHandler constructs a Handler bound to the given Mongo database and logger.
func NewHandler(db *mongo.Database, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Users:    userstore.New(db),
		AuditLog: audit,
		ErrLog:   apierrors.NewErrorLogger(logger),
		Log:      logger,
	}
}
