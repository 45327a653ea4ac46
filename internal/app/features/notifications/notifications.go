// internal/app/features/notifications/notifications.go
package notifications

import (
	"context"
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/studyhub/internal/app/features/errors"
	notificationstore "github.com/dalemusser/studyhub/internal/app/store/notifications"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/paging"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type listResp struct {
	Notifications []models.Notification `json:"notifications"`
}

type countResp struct {
	UnreadCount int64 `json:"unreadCount"`
}

type toggleResp struct {
	Notification models.Notification `json:"notification"`
}

func unauthorized(w http.ResponseWriter) {
	apierrors.Render(w, http.StatusUnauthorized, apierrors.Body{Error: "Please sign in to continue.", Code: "unauthorized"})
}

// ServeList returns the caller's notifications, newest first.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	cur, ok := auth.CurrentUser(r)
	if !ok {
		unauthorized(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	ns, err := h.Notes.List(ctx, cur.ID, int64(paging.ParseLimit(r)))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "A server error occurred.", err, zap.String("uid", cur.ID))
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, listResp{Notifications: ns})
}

// ServeUnreadCount returns how many of the caller's notifications are unread.
func (h *Handler) ServeUnreadCount(w http.ResponseWriter, r *http.Request) {
	cur, ok := auth.CurrentUser(r)
	if !ok {
		unauthorized(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	n, err := h.Notes.CountUnread(ctx, cur.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "A server error occurred.", err, zap.String("uid", cur.ID))
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, countResp{UnreadCount: n})
}

// HandleToggleRead flips isRead on one of the caller's notifications and
// wakes the caller's open streams.
func (h *Handler) HandleToggleRead(w http.ResponseWriter, r *http.Request) {
	cur, ok := auth.CurrentUser(r)
	if !ok {
		unauthorized(w)
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.RenderNotFound(w, r, "Notification not found.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	n, err := h.Notes.ToggleRead(ctx, cur.ID, id)
	if errors.Is(err, notificationstore.ErrNotFound) {
		apierrors.RenderNotFound(w, r, "Notification not found.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "A server error occurred.", err,
			zap.String("uid", cur.ID), zap.String("notification_id", id.Hex()))
		return
	}

	h.Hub.Publish(cur.ID)
	apierrors.WriteJSON(w, http.StatusOK, toggleResp{Notification: n})
}
