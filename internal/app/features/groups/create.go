// internal/app/features/groups/create.go
package groups

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	apierrors "github.com/dalemusser/studyhub/internal/app/features/errors"
	membershipstore "github.com/dalemusser/studyhub/internal/app/store/memberships"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/formutil"
	"github.com/dalemusser/studyhub/internal/app/system/inputval"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.uber.org/zap"
)

// CodeDuplicateCandidate tells the client to browse candidates instead of creating.
const CodeDuplicateCandidate = "duplicate-candidate"

type createReq struct {
	Name        string `json:"name"`
	Topic       string `json:"topic"`
	CustomTopic string `json:"customTopic"`
	Commitment  string `json:"commitment"`
	Description string `json:"description"`
	GithubURL   string `json:"githubUrl"`
}

type createResp struct {
	ID   string `json:"id"`
	Link string `json:"link"`
}

// HandleCreate creates a group with the caller as its first member.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		apierrors.Render(w, http.StatusUnauthorized, apierrors.Body{Error: "Please sign in to continue.", Code: "unauthorized"})
		return
	}

	var req createReq
	if err := formutil.Decode(w, r, &req); err != nil {
		apierrors.RenderValidation(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	id, err := h.Memberships.CreateGroup(ctx, membershipstore.CreateInput{
		Kind:        h.Kind,
		Name:        req.Name,
		Topic:       req.Topic,
		CustomTopic: req.CustomTopic,
		Commitment:  req.Commitment,
		Description: req.Description,
		GithubURL:   req.GithubURL,
		CreatorID:   user.ID,
	})
	switch {
	case err == nil:
	case inputval.IsValidationError(err):
		apierrors.RenderValidation(w, r, err)
		return
	case errors.Is(err, membershipstore.ErrDuplicateCandidateExists):
		apierrors.RenderConflict(w, r, CodeDuplicateCandidate,
			"A "+h.Kind.Noun()+" with this topic and commitment already exists. Join it instead.",
			h.candidatesLink(req))
		return
	case errors.Is(err, membershipstore.ErrUserNotFound):
		apierrors.RenderNotFound(w, r, profileMissingMsg)
		return
	default:
		h.ErrLog.LogServerError(w, r, "A server error occurred.", err, zap.String("uid", user.ID))
		return
	}

	h.AuditLog.GroupCreated(ctx, r, user.ID, h.Kind, id.Hex(), req.Name)
	apierrors.WriteJSON(w, http.StatusCreated, createResp{ID: id.Hex(), Link: h.Kind.Link(id.Hex())})
}

// candidatesLink points the client at the open groups with the clashing
// topic and commitment.
func (h *Handler) candidatesLink(req createReq) string {
	q := url.Values{}
	q.Set("topic", models.ResolveTopic(req.Topic, req.CustomTopic))
	if label, ok := models.NormalizeCommitment(req.Commitment); ok {
		q.Set("commitment", label)
	}
	return h.Kind.PathPrefix() + "/candidates?" + q.Encode()
}
