// Package notificationstore is the per-user notification log.
//
// Notifications are written only in batches by server-side operations (a
// group filling up) and mutated only by their recipient toggling isRead.
package notificationstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultListLimit bounds List when the caller passes limit <= 0.
const DefaultListLimit = 50

// ErrNotFound is returned when the notification does not exist or belongs to someone else.
var ErrNotFound = errors.New("notification not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("notifications")}
}

// Build returns one unread notification per recipient, all sharing message and link.
func Build(recipients []string, message, link string, at time.Time) []models.Notification {
	out := make([]models.Notification, 0, len(recipients))
	for _, uid := range recipients {
		out = append(out, models.Notification{
			ID:        primitive.NewObjectID(),
			UserID:    uid,
			Message:   message,
			Link:      link,
			IsRead:    false,
			CreatedAt: at.UTC(),
		})
	}
	return out
}

// InsertMany writes a batch of notifications.
func (s *Store) InsertMany(ctx context.Context, ns []models.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	docs := make([]interface{}, len(ns))
	for i := range ns {
		docs[i] = ns[i]
	}
	_, err := s.c.InsertMany(ctx, docs)
	return err
}

// List returns uid's notifications, newest first.
func (s *Store) List(ctx context.Context, uid string, limit int64) ([]models.Notification, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, bson.M{"user_id": uid}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Notification{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountUnread counts uid's notifications with isRead == false.
func (s *Store) CountUnread(ctx context.Context, uid string) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"user_id": uid, "isRead": false})
}

// ToggleRead flips isRead on one of uid's notifications and returns the result.
// The flip is a single pipeline update so concurrent toggles never lose a write.
func (s *Store) ToggleRead(ctx context.Context, uid string, id primitive.ObjectID) (models.Notification, error) {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{"isRead": bson.M{"$not": bson.A{"$isRead"}}}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var n models.Notification
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id, "user_id": uid}, update, opts).Decode(&n)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Notification{}, ErrNotFound
		}
		return models.Notification{}, err
	}
	return n, nil
}
