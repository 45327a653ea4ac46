// internal/app/features/feedback/feedback.go
package feedback

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	apierrors "github.com/dalemusser/studyhub/internal/app/features/errors"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/formutil"
	"github.com/dalemusser/studyhub/internal/app/system/inputval"
	"github.com/dalemusser/studyhub/internal/app/system/paging"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.uber.org/zap"
)

// CodeTooMany is returned when a member exceeds the submission budget.
const CodeTooMany = "too-many-submissions"

type submitReq struct {
	Feedback string `json:"feedback" validate:"max=2000" label:"Feedback"`
}

type submitResp struct {
	Feedback models.Feedback `json:"feedback"`
	Message  string          `json:"message"`
}

type listResp struct {
	Feedback []models.Feedback `json:"feedback"`
}

func unauthorized(w http.ResponseWriter) {
	apierrors.Render(w, http.StatusUnauthorized, apierrors.Body{Error: "Please sign in to continue.", Code: "unauthorized"})
}

// HandleSubmit stores one feedback message signed with the caller's username.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	cur, ok := auth.CurrentUser(r)
	if !ok {
		unauthorized(w)
		return
	}

	var req submitReq
	if err := formutil.Decode(w, r, &req); err != nil {
		apierrors.RenderValidation(w, r, err)
		return
	}
	req.Feedback = strings.TrimSpace(req.Feedback)
	if req.Feedback == "" {
		apierrors.RenderValidation(w, r, inputval.Errorf("Feedback cannot be empty."))
		return
	}
	if err := inputval.Validate(req).Err(); err != nil {
		apierrors.RenderValidation(w, r, err)
		return
	}
	if !h.Limiter.Allow(cur.ID) {
		apierrors.Render(w, http.StatusTooManyRequests, apierrors.Body{
			Error: "You have sent a lot of feedback recently. Please try again later.",
			Code:  CodeTooMany,
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Users.GetByID(ctx, cur.ID)
	if errors.Is(err, userstore.ErrNotFound) {
		apierrors.RenderNotFound(w, r, "We could not load your profile, which is required to send feedback.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "A server error occurred.", err, zap.String("uid", cur.ID))
		return
	}

	f, err := h.Feedback.Insert(ctx, u.ID, u.Username, req.Feedback, time.Now())
	if err != nil {
		h.ErrLog.LogServerError(w, r, "Feedback submission failed. Please try again.", err, zap.String("uid", cur.ID))
		return
	}
	h.AuditLog.FeedbackSubmitted(ctx, r, cur.ID, f.ID.Hex())

	apierrors.WriteJSON(w, http.StatusCreated, submitResp{
		Feedback: f,
		Message:  "Thank you for helping us improve the community.",
	})
}

// ServeMine lists the caller's own feedback, newest first.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	cur, ok := auth.CurrentUser(r)
	if !ok {
		unauthorized(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	fs, err := h.Feedback.ListByUser(ctx, cur.ID, int64(paging.ParseLimit(r)))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "A server error occurred.", err, zap.String("uid", cur.ID))
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, listResp{Feedback: fs})
}
