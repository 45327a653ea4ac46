// Package followstore maintains the symmetric follow graph stored on user
// profiles: A in B.followers if and only if B in A.following.
package followstore

import (
	"context"
	"errors"
	"fmt"

	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/app/system/txn"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ErrUserNotFound is returned when the target profile does not exist.
var ErrUserNotFound = errors.New("user not found")

type Store struct {
	db    *mongo.Database
	users *mongo.Collection
	log   *zap.Logger
}

func New(db *mongo.Database, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, users: db.Collection("users"), log: logger}
}

// ToggleFollow flips whether actorID follows targetID and returns the new state.
// Both sides are written in one atomic step.
//
// Self-follow is not rejected here.
func (s *Store) ToggleFollow(ctx context.Context, actorID, targetID string) (bool, error) {
	profiles := userstore.New(s.db)
	var following bool

	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		target, err := profiles.GetByID(ctx, targetID)
		if errors.Is(err, userstore.ErrNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}

		op := "$addToSet"
		following = true
		if target.IsFollowedBy(actorID) {
			op = "$pull"
			following = false
		}

		if _, err := s.users.UpdateOne(ctx, bson.M{"_id": targetID},
			bson.M{op: bson.M{"followers": actorID}}); err != nil {
			return fmt.Errorf("update followers: %w", err)
		}
		if _, err := s.users.UpdateOne(ctx, bson.M{"_id": actorID},
			bson.M{op: bson.M{"following": targetID}}); err != nil {
			return fmt.Errorf("update following: %w", err)
		}
		return nil
	}, "users:"+actorID, "users:"+targetID)
	if err != nil {
		return false, err
	}

	s.log.Debug("follow toggled",
		zap.String("actor_id", actorID),
		zap.String("target_id", targetID),
		zap.Bool("following", following))
	return following, nil
}

// Lists is the follower/following profiles of one user.
type Lists struct {
	Visible   bool          `json:"visible"`
	Followers []models.User `json:"followers"`
	Following []models.User `json:"following"`
}

// FollowLists loads a user's follower and following profiles (each capped at
// userstore.MaxBatch). When the owner marked them private and the viewer is
// someone else, Visible is false and both lists are empty.
func (s *Store) FollowLists(ctx context.Context, userID, viewerID string) (Lists, error) {
	profiles := userstore.New(s.db)
	u, err := profiles.GetByID(ctx, userID)
	if errors.Is(err, userstore.ErrNotFound) {
		return Lists{}, ErrUserNotFound
	}
	if err != nil {
		return Lists{}, err
	}

	out := Lists{Followers: []models.User{}, Following: []models.User{}}
	if !u.FollowListsVisibleTo(viewerID) {
		return out, nil
	}
	out.Visible = true

	if out.Followers, err = profiles.GetMany(ctx, u.Followers); err != nil {
		return Lists{}, err
	}
	if out.Following, err = profiles.GetMany(ctx, u.Following); err != nil {
		return Lists{}, err
	}
	return out, nil
}
