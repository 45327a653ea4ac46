// internal/app/features/users/handler.go
package users

import (
	apierrors "github.com/dalemusser/studyhub/internal/app/features/errors"
	followstore "github.com/dalemusser/studyhub/internal/app/store/follows"
	membershipstore "github.com/dalemusser/studyhub/internal/app/store/memberships"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/app/system/auditlog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves public profile pages and the follow toggle.
type Handler struct {
	Users       *userstore.Store
	Follows     *followstore.Store
	Memberships *membershipstore.Service
	AuditLog    *auditlog.Logger
	ErrLog      apierrors.ErrorLogger
	Log         *zap.Logger
}

func NewHandler(db *mongo.Database, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Users:       userstore.New(db),
		Follows:     followstore.New(db, logger),
		Memberships: membershipstore.New(db, logger, nil),
		AuditLog:    audit,
		ErrLog:      apierrors.NewErrorLogger(logger),
		Log:         logger,
	}
}
