// internal/app/features/notifications/handler.go
package notifications

import (
	"time"

	apierrors "github.com/dalemusser/studyhub/internal/app/features/errors"
	notificationstore "github.com/dalemusser/studyhub/internal/app/store/notifications"
	"github.com/dalemusser/studyhub/internal/app/system/realtime"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Stream timing.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Handler serves the caller's notification log and its live stream.
type Handler struct {
	Notes  *notificationstore.Store
	Hub    *realtime.Hub
	ErrLog apierrors.ErrorLogger
	Log    *zap.Logger

	upgrader websocket.Upgrader
}

// NewHandler wires the handler to hub, which signals when a user's
// notifications change.
func NewHandler(db *mongo.Database, hub *realtime.Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hub == nil {
		hub = realtime.NewHub(logger)
	}
	return &Handler{
		Notes:  notificationstore.New(db),
		Hub:    hub,
		ErrLog: apierrors.NewErrorLogger(logger),
		Log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}
