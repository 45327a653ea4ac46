// internal/app/features/users/users.go
package users

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apierrors "github.com/dalemusser/studyhub/internal/app/features/errors"
	followstore "github.com/dalemusser/studyhub/internal/app/store/follows"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const notFoundMsg = "This user does not exist."

type userResp struct {
	User        models.User       `json:"user"`
	IsSelf      bool              `json:"isSelf"`
	IsFollowing bool              `json:"isFollowing"`
	StudyGroups []models.Group    `json:"studyGroups"`
	Cohorts     []models.Group    `json:"cohorts"`
	Follows     followstore.Lists `json:"follows"`
}

// ServeUser returns a profile with the groups and cohorts it belongs to.
// Follower and following lists are included unless the owner hid them.
func (h *Handler) ServeUser(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		apierrors.RenderNotFound(w, r, notFoundMsg)
		return
	}
	viewer := ""
	if u, ok := auth.CurrentUser(r); ok {
		viewer = u.ID
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if errors.Is(err, userstore.ErrNotFound) {
		apierrors.RenderNotFound(w, r, notFoundMsg)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "A server error occurred.", err, zap.String("user_id", id))
		return
	}

	self := viewer == id
	resp := userResp{
		IsSelf:      self,
		IsFollowing: viewer != "" && u.IsFollowedBy(viewer),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		resp.StudyGroups, err = h.Memberships.ListGroupsForMember(gctx, models.KindStudyGroup, id)
		return err
	})
	g.Go(func() error {
		var err error
		resp.Cohorts, err = h.Memberships.ListGroupsForMember(gctx, models.KindCohort, id)
		return err
	})
	g.Go(func() error {
		var err error
		resp.Follows, err = h.Follows.FollowLists(gctx, id, viewer)
		return err
	})
	if err := g.Wait(); err != nil {
		h.ErrLog.LogServerError(w, r, "A server error occurred.", err, zap.String("user_id", id))
		return
	}

	resp.User = u.PublicView(viewer)
	resp.Follows.Followers = models.PublicViews(resp.Follows.Followers, viewer)
	resp.Follows.Following = models.PublicViews(resp.Follows.Following, viewer)

	apierrors.WriteJSON(w, http.StatusOK, resp)
}

type followResp struct {
	Following bool `json:"following"`
}

// HandleFollow toggles whether the caller follows the user.
func (h *Handler) HandleFollow(w http.ResponseWriter, r *http.Request) {
	cur, ok := auth.CurrentUser(r)
	if !ok {
		apierrors.Render(w, http.StatusUnauthorized, apierrors.Body{Error: "Please sign in to continue.", Code: "unauthorized"})
		return
	}
	target := strings.TrimSpace(chi.URLParam(r, "id"))
	if target == cur.ID {
		apierrors.RenderBadRequest(w, r, "You cannot follow yourself.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	following, err := h.Follows.ToggleFollow(ctx, cur.ID, target)
	if errors.Is(err, followstore.ErrUserNotFound) {
		apierrors.RenderNotFound(w, r, notFoundMsg)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "A server error occurred.", err,
			zap.String("uid", cur.ID), zap.String("target_id", target))
		return
	}

	h.AuditLog.FollowToggled(ctx, r, cur.ID, target, following)
	apierrors.WriteJSON(w, http.StatusOK, followResp{Following: following})
}
