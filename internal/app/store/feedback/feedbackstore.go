// Package feedbackstore keeps the messages members send about the site.
// Records are append-only.
package feedbackstore

import (
	"context"
	"strings"
	"time"

	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("feedback")}
}

// Insert stores one message from uid. The text is trimmed; length rules are
// the caller's.
func (s *Store) Insert(ctx context.Context, uid, username, text string, at time.Time) (models.Feedback, error) {
	f := models.Feedback{
		ID:        primitive.NewObjectID(),
		Feedback:  strings.TrimSpace(text),
		UserID:    uid,
		Username:  username,
		CreatedAt: at.UTC(),
	}
	if _, err := s.c.InsertOne(ctx, f); err != nil {
		return models.Feedback{}, err
	}
	return f, nil
}

// ListByUser returns uid's messages, newest first.
func (s *Store) ListByUser(ctx context.Context, uid string, limit int64) ([]models.Feedback, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{"userId": uid}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Feedback{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
