// internal/app/features/groups/list.go
package groups

import (
	"context"
	"net/http"

	apierrors "github.com/dalemusser/studyhub/internal/app/features/errors"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/paging"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// groupRow is a group as listed, with the derived flags a client needs to
// decide whether to offer "join".
type groupRow struct {
	models.Group
	MemberCount int  `json:"memberCount"`
	IsFull      bool `json:"isFull"`
	IsMember    bool `json:"isMember"`
}

func rowOf(g models.Group, viewerID string) groupRow {
	if g.MemberIDs == nil {
		g.MemberIDs = []string{}
	}
	return groupRow{
		Group:       g,
		MemberCount: len(g.MemberIDs),
		IsFull:      g.IsFull(),
		IsMember:    viewerID != "" && g.HasMember(viewerID),
	}
}

func rowsOf(gs []models.Group, viewerID string) []groupRow {
	out := make([]groupRow, 0, len(gs))
	for _, g := range gs {
		out = append(out, rowOf(g, viewerID))
	}
	return out
}

func viewerID(r *http.Request) string {
	if u, ok := auth.CurrentUser(r); ok {
		return u.ID
	}
	return ""
}

type listResp struct {
	Groups     []groupRow `json:"groups"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// ServeList pages through groups newest first. ?before=<id> continues after
// the last row of the previous page.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	limit := paging.ParseLimit(r)
	before := paging.ParseCursor(r, "before")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	rows, err := h.Memberships.ListGroups(ctx, h.Kind, before, paging.LimitPlusOne(limit))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "A server error occurred.", err)
		return
	}
	hasNext := paging.TrimPage(&rows, limit)

	apierrors.WriteJSON(w, http.StatusOK, listResp{
		Groups:     rowsOf(rows, viewerID(r)),
		NextCursor: paging.NextCursor(rows, hasNext, func(g models.Group) primitive.ObjectID { return g.ID }),
	})
}

type optionsResp struct {
	Topics      []string          `json:"topics"`
	Other       string            `json:"other"`
	Commitments map[string]string `json:"commitments"`
	MaxMembers  int               `json:"maxMembers"`
}

// ServeOptions lists the choices for the create form.
func (h *Handler) ServeOptions(w http.ResponseWriter, r *http.Request) {
	apierrors.WriteJSON(w, http.StatusOK, optionsResp{
		Topics:      models.Topics,
		Other:       models.TopicOther,
		Commitments: models.CommitmentLabels,
		MaxMembers:  models.MaxGroupMembers,
	})
}

// ServeCandidates lists open groups with the given topic and commitment
// that the caller has not joined. It backs the "join instead" step of the
// create flow.
func (h *Handler) ServeCandidates(w http.ResponseWriter, r *http.Request) {
	topic := models.ResolveTopic(query.Get(r, "topic"), query.Get(r, "customTopic"))
	commitment := query.Get(r, "commitment")
	if topic == "" || commitment == "" {
		apierrors.RenderBadRequest(w, r, "Topic and commitment are required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	uid := viewerID(r)
	gs, err := h.Memberships.FindCandidates(ctx, h.Kind, topic, commitment, uid)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "A server error occurred.", err, zap.String("topic", topic))
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, listResp{Groups: rowsOf(gs, uid)})
}
