// internal/app/features/notifications/stream.go
package notifications

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SnapshotSize is how many recent notifications each snapshot carries.
const SnapshotSize = 20

// Snapshot is one frame on the stream.
type Snapshot struct {
	UnreadCount   int64                 `json:"unreadCount"`
	Notifications []models.Notification `json:"notifications"`
}

func (h *Handler) snapshot(ctx context.Context, uid string) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	n, err := h.Notes.CountUnread(ctx, uid)
	if err != nil {
		return Snapshot{}, err
	}
	ns, err := h.Notes.List(ctx, uid, SnapshotSize)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{UnreadCount: n, Notifications: ns}, nil
}

// ServeStream upgrades to a websocket and sends a Snapshot on connect and
// again whenever the hub signals a change for the caller. Client messages
// are read only to notice the close.
func (h *Handler) ServeStream(w http.ResponseWriter, r *http.Request) {
	cur, ok := auth.CurrentUser(r)
	if !ok {
		unauthorized(w)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.Log.Debug("websocket upgrade failed", zap.String("uid", cur.ID), zap.Error(err))
		return
	}
	defer conn.Close()

	sub := h.Hub.Subscribe(cur.ID)
	defer sub.Cancel()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func() bool {
		snap, err := h.snapshot(ctx, cur.ID)
		if err != nil {
			h.Log.Warn("notification snapshot failed", zap.String("uid", cur.ID), zap.Error(err))
			return false
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(snap) == nil
	}

	if !send() {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, open := <-sub.C:
			if !open {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if !send() {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
