// internal/app/features/groups/view.go
package groups

import (
	"context"
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/studyhub/internal/app/features/errors"
	membershipstore "github.com/dalemusser/studyhub/internal/app/store/memberships"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Conflict codes for join.
const (
	CodeAlreadyMember = "already-member"
	CodeGroupFull     = "group-full"
	CodeJoinConflict  = "join-conflict"
)

const profileMissingMsg = "Your profile could not be found. Please sign in again."

type memberView struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	ProfilePictureURL string `json:"profilePictureUrl,omitempty"`
}

type viewResp struct {
	Group   groupRow     `json:"group"`
	Members []memberView `json:"members"`
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.RenderNotFound(w, r, h.notFoundMsg())
		return primitive.NilObjectID, false
	}
	return id, true
}

func (h *Handler) notFoundMsg() string {
	return "This " + h.Kind.Noun() + " does not exist."
}

// ServeView returns a group with its member profiles.
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, err := h.Memberships.GetGroup(ctx, h.Kind, id)
	if errors.Is(err, membershipstore.ErrGroupNotFound) {
		apierrors.RenderNotFound(w, r, h.notFoundMsg())
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "A server error occurred.", err, zap.String("group_id", id.Hex()))
		return
	}

	users, err := h.Memberships.GroupMembers(ctx, g)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "A server error occurred.", err, zap.String("group_id", id.Hex()))
		return
	}
	members := make([]memberView, 0, len(users))
	for _, u := range users {
		members = append(members, memberView{ID: u.ID, Username: u.Username, ProfilePictureURL: u.ProfilePictureURL})
	}

	apierrors.WriteJSON(w, http.StatusOK, viewResp{Group: rowOf(g, viewerID(r)), Members: members})
}

type joinResp struct {
	Group      groupRow `json:"group"`
	BecameFull bool     `json:"becameFull"`
}

// HandleJoin adds the caller to the group. The join that fills the group
// notifies every member.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		apierrors.Render(w, http.StatusUnauthorized, apierrors.Body{Error: "Please sign in to continue.", Code: "unauthorized"})
		return
	}
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	res, err := h.Memberships.JoinGroup(ctx, h.Kind, id, user.ID)
	switch {
	case err == nil:
	case errors.Is(err, membershipstore.ErrGroupNotFound):
		apierrors.RenderNotFound(w, r, h.notFoundMsg())
		return
	case errors.Is(err, membershipstore.ErrAlreadyMember):
		apierrors.RenderConflict(w, r, CodeAlreadyMember, "You are already a member of this "+h.Kind.Noun()+".", h.Kind.Link(id.Hex()))
		return
	case errors.Is(err, membershipstore.ErrGroupFull):
		apierrors.RenderConflict(w, r, CodeGroupFull, "This "+h.Kind.Noun()+" is full.", "")
		return
	case errors.Is(err, membershipstore.ErrUserNotFound):
		apierrors.RenderNotFound(w, r, profileMissingMsg)
		return
	case errors.Is(err, membershipstore.ErrJoinConflict):
		apierrors.RenderConflict(w, r, CodeJoinConflict, "Membership changed while you were joining. Please try again.", "")
		return
	default:
		h.ErrLog.LogServerError(w, r, "A server error occurred.", err,
			zap.String("group_id", id.Hex()), zap.String("uid", user.ID))
		return
	}

	h.AuditLog.GroupJoined(ctx, r, user.ID, h.Kind, id.Hex(), res.BecameFull)
	apierrors.WriteJSON(w, http.StatusOK, joinResp{Group: rowOf(res.Group, user.ID), BecameFull: res.BecameFull})
}
