// Package search implements the global search box: username prefix matches
// plus group and cohort matches by name prefix or exact topic.
package search

import (
	"context"
	"fmt"
	"strings"

	groupstore "github.com/dalemusser/studyhub/internal/app/store/groups"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

// Limit caps every sub-query. The merged group list can therefore hold up to
// 2*Limit entries and may miss matches beyond the cap.
const Limit = 10

// Results is the outcome of one search.
type Results struct {
	Query       string         `json:"query"`
	NoQuery     bool           `json:"noQuery"`
	Users       []models.User  `json:"users"`
	StudyGroups []models.Group `json:"studyGroups"`
	Cohorts     []models.Group `json:"cohorts"`
}

// Searcher runs searches against one database.
type Searcher struct {
	db *mongo.Database
}

func New(db *mongo.Database) *Searcher {
	return &Searcher{db: db}
}

// Search runs every sub-query concurrently; the first failure fails the search.
// A blank query returns NoQuery without touching the database.
func (s *Searcher) Search(ctx context.Context, q string) (Results, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return Results{NoQuery: true, Users: []models.User{}, StudyGroups: []models.Group{}, Cohorts: []models.Group{}}, nil
	}
	lower := strings.ToLower(q)
	topic, isTopic := models.MatchTopic(q)

	res := Results{Query: q}
	// slots[2*i] holds name matches and slots[2*i+1] topic matches for models.Kinds[i].
	slots := make([][]models.Group, 2*len(models.Kinds))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		users, err := userstore.New(s.db).SearchByUsernamePrefix(gctx, lower, Limit)
		if err != nil {
			return fmt.Errorf("search users: %w", err)
		}
		res.Users = users
		return nil
	})

	for i, kind := range models.Kinds {
		i, kind := i, kind
		store := groupstore.New(s.db, kind)
		g.Go(func() error {
			groups, err := store.SearchByNamePrefix(gctx, lower, Limit)
			if err != nil {
				return fmt.Errorf("search %s by name: %w", kind.Collection(), err)
			}
			slots[2*i] = groups
			return nil
		})
		if isTopic {
			g.Go(func() error {
				groups, err := store.FindByTopic(gctx, topic, Limit)
				if err != nil {
					return fmt.Errorf("search %s by topic: %w", kind.Collection(), err)
				}
				slots[2*i+1] = groups
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return Results{}, err
	}

	res.StudyGroups = MergeByID(slots[0], slots[1])
	res.Cohorts = MergeByID(slots[2], slots[3])
	if res.Users == nil {
		res.Users = []models.User{}
	}
	return res, nil
}

// MergeByID concatenates lists keeping only the first occurrence of each id.
func MergeByID(lists ...[]models.Group) []models.Group {
	out := []models.Group{}
	seen := make(map[primitive.ObjectID]struct{})
	for _, l := range lists {
		for _, g := range l {
			if _, ok := seen[g.ID]; ok {
				continue
			}
			seen[g.ID] = struct{}{}
			out = append(out, g)
		}
	}
	return out
}
