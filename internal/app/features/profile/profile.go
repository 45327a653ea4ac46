// internal/app/features/profile/profile.go
package profile

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apierrors "github.com/dalemusser/studyhub/internal/app/features/errors"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/formutil"
	"github.com/dalemusser/studyhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/studyhub/internal/app/system/inputval"
	"github.com/dalemusser/studyhub/internal/app/system/normalize"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.uber.org/zap"
)

// Skill list limits.
const (
	MaxSkills      = 20
	MaxSkillLength = 40
)

type socialLinksReq struct {
	Github   string `json:"github" validate:"omitempty,httpurl" label:"GitHub link"`
	Linkedin string `json:"linkedin" validate:"omitempty,httpurl" label:"LinkedIn link"`
	Twitter  string `json:"twitter" validate:"omitempty,httpurl" label:"Twitter link"`
}

type updateReq struct {
	Bio               string         `json:"bio" validate:"max=500" label:"Bio"`
	Skills            []string       `json:"skills"`
	SocialLinks       socialLinksReq `json:"socialLinks"`
	FollowInfoPrivate bool           `json:"followInfoPrivate"`
}

type newsletterReq struct {
	Subscribed bool `json:"subscribed"`
}

type profileResp struct {
	User models.User `json:"user"`
}

func unauthorized(w http.ResponseWriter) {
	apierrors.Render(w, http.StatusUnauthorized, apierrors.Body{Error: "Please sign in to continue.", Code: "unauthorized"})
}

// ServeProfile returns the caller's own profile, email included.
func (h *Handler) ServeProfile(w http.ResponseWriter, r *http.Request) {
	cur, ok := auth.CurrentUser(r)
	if !ok {
		unauthorized(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, cur.ID)
	if errors.Is(err, userstore.ErrNotFound) {
		apierrors.RenderNotFound(w, r, "Profile not found.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "A server error occurred.", err, zap.String("uid", cur.ID))
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, profileResp{User: *u})
}

// HandleUpdateProfile replaces bio, skills, social links and follow privacy.
// Markup is stripped from the bio before it is measured and stored.
func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	cur, ok := auth.CurrentUser(r)
	if !ok {
		unauthorized(w)
		return
	}

	var req updateReq
	if err := formutil.Decode(w, r, &req); err != nil {
		apierrors.RenderValidation(w, r, err)
		return
	}
	req.Bio = htmlsanitize.StripTags(req.Bio)
	req.Skills = normalize.Skills(req.Skills)
	req.SocialLinks.Github = strings.TrimSpace(req.SocialLinks.Github)
	req.SocialLinks.Linkedin = strings.TrimSpace(req.SocialLinks.Linkedin)
	req.SocialLinks.Twitter = strings.TrimSpace(req.SocialLinks.Twitter)

	if err := inputval.Validate(req).Err(); err != nil {
		apierrors.RenderValidation(w, r, err)
		return
	}
	if err := checkSkills(req.Skills); err != nil {
		apierrors.RenderValidation(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	err := h.Users.UpdateProfile(ctx, cur.ID, userstore.ProfileUpdate{
		Bio:    req.Bio,
		Skills: req.Skills,
		SocialLinks: models.SocialLinks{
			Github:   req.SocialLinks.Github,
			Linkedin: req.SocialLinks.Linkedin,
			Twitter:  req.SocialLinks.Twitter,
		},
		FollowInfoPrivate: req.FollowInfoPrivate,
	})
	if errors.Is(err, userstore.ErrNotFound) {
		apierrors.RenderNotFound(w, r, "Profile not found.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "A server error occurred.", err, zap.String("uid", cur.ID))
		return
	}
	h.AuditLog.ProfileUpdated(ctx, r, cur.ID)

	u, err := h.Users.GetByID(ctx, cur.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "A server error occurred.", err, zap.String("uid", cur.ID))
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, profileResp{User: *u})
}

// HandleNewsletter sets the newsletter subscription flag.
func (h *Handler) HandleNewsletter(w http.ResponseWriter, r *http.Request) {
	cur, ok := auth.CurrentUser(r)
	if !ok {
		unauthorized(w)
		return
	}
	var req newsletterReq
	if err := formutil.Decode(w, r, &req); err != nil {
		apierrors.RenderValidation(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	err := h.Users.SetNewsletter(ctx, cur.ID, req.Subscribed)
	if errors.Is(err, userstore.ErrNotFound) {
		apierrors.RenderNotFound(w, r, "Profile not found.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "A server error occurred.", err, zap.String("uid", cur.ID))
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, newsletterReq{Subscribed: req.Subscribed})
}

func checkSkills(skills []string) error {
	if len(skills) > MaxSkills {
		return inputval.Errorf("You can list at most %d skills.", MaxSkills)
	}
	for _, s := range skills {
		if len([]rune(s)) > MaxSkillLength {
			return inputval.Errorf("Each skill must be at most %d characters.", MaxSkillLength)
		}
	}
	return nil
}
