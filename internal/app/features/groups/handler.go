// internal/app/features/groups/handler.go
package groups

import (
	apierrors "github.com/dalemusser/studyhub/internal/app/features/errors"
	membershipstore "github.com/dalemusser/studyhub/internal/app/store/memberships"
	"github.com/dalemusser/studyhub/internal/app/system/auditlog"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves one group kind. The same handler type is mounted twice,
// once at /groups for study groups and once at /cohorts.
type Handler struct {
	Kind        models.Kind
	Memberships *membershipstore.Service
	AuditLog    *auditlog.Logger
	ErrLog      apierrors.ErrorLogger
	Log         *zap.Logger
}

// NewHandler constructs a Handler for kind. pub is told about users who
// received notifications and may be nil.
func NewHandler(db *mongo.Database, kind models.Kind, pub membershipstore.Publisher, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("kind", string(kind)))
	return &Handler{
		Kind:        kind,
		Memberships: membershipstore.New(db, logger, pub),
		AuditLog:    audit,
		ErrLog:      apierrors.NewErrorLogger(logger),
		Log:         logger,
	}
}
