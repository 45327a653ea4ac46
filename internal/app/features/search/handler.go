// internal/app/features/search/handler.go
package search

import (
	"context"
	"net/http"

	apierrors "github.com/dalemusser/studyhub/internal/app/features/errors"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	syssearch "github.com/dalemusser/studyhub/internal/app/system/search"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Searcher *syssearch.Searcher
	ErrLog   apierrors.ErrorLogger
	Log      *zap.Logger
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Searcher: syssearch.New(db),
		ErrLog:   apierrors.NewErrorLogger(logger),
		Log:      logger,
	}
}

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeSearch)
	return r
}

// ServeSearch answers GET /search?q=. A blank query returns noQuery with
// empty lists.
func (h *Handler) ServeSearch(w http.ResponseWriter, r *http.Request) {
	q := query.Get(r, "q")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	res, err := h.Searcher.Search(ctx, q)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "Search failed. Please try again.", err, zap.String("q", q))
		return
	}
	viewer := ""
	if u, ok := auth.CurrentUser(r); ok {
		viewer = u.ID
	}
	res.Users = models.PublicViews(res.Users, viewer)
	apierrors.WriteJSON(w, http.StatusOK, res)
}
