// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultListLimit bounds List when the caller passes limit <= 0.
const DefaultListLimit = 50

var ErrNotFound = errors.New("group not found")

// Store reads and writes one group kind's collection.
type Store struct {
	c    *mongo.Collection
	kind models.Kind
}

func New(db *mongo.Database, kind models.Kind) *Store {
	return &Store{c: db.Collection(kind.Collection()), kind: kind}
}

// Kind is the group kind this store serves.
func (s *Store) Kind() models.Kind {
	return s.kind
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Group{}, ErrNotFound
		}
		return models.Group{}, err
	}
	return g, nil
}

// Insert writes g as given; callers assign the id and timestamps.
func (s *Store) Insert(ctx context.Context, g models.Group) error {
	if g.MemberIDs == nil {
		g.MemberIDs = []string{}
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, g)
	return err
}

// List returns groups newest first. A non-zero before resumes after the
// group with that id (keyset paging on _id, which is assigned at creation).
func (s *Store) List(ctx context.Context, before primitive.ObjectID, limit int64) ([]models.Group, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	filter := bson.M{}
	if !before.IsZero() {
		filter["_id"] = bson.M{"$lt": before}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(limit)
	return s.find(ctx, filter, opts)
}

// ListForMember returns every group whose memberIds contains uid.
func (s *Store) ListForMember(ctx context.Context, uid string) ([]models.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return s.find(ctx, bson.M{"memberIds": uid}, opts)
}

// FindByTopicCommitment returns every group with exactly this topic and commitment.
func (s *Store) FindByTopicCommitment(ctx context.Context, topic, commitment string) ([]models.Group, error) {
	return s.find(ctx, bson.M{"topic": topic, "commitment": commitment})
}

// SearchByNamePrefix is a prefix-range query on name_lowercase.
func (s *Store) SearchByNamePrefix(ctx context.Context, prefix string, limit int64) ([]models.Group, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return []models.Group{}, nil
	}
	filter := bson.M{"name_lowercase": bson.M{"$gte": prefix, "$lte": prefix + "\uf8ff"}}
	opts := options.Find().
		SetSort(bson.D{{Key: "name_lowercase", Value: 1}}).
		SetLimit(limit)
	return s.find(ctx, filter, opts)
}

// FindByTopic is an exact-equality query on topic.
func (s *Store) FindByTopic(ctx context.Context, topic string, limit int64) ([]models.Group, error) {
	return s.find(ctx, bson.M{"topic": topic}, options.Find().SetLimit(limit))
}

// AddMember appends uid to memberIds only if the group still has exactly
// observedCount members and uid is not already present. It reports whether
// the write applied; false means a concurrent change invalidated the read.
func (s *Store) AddMember(ctx context.Context, id primitive.ObjectID, uid string, observedCount int) (bool, error) {
	filter := bson.M{
		"_id":       id,
		"memberIds": bson.M{"$size": observedCount, "$ne": uid},
	}
	res, err := s.c.UpdateOne(ctx, filter, bson.M{"$addToSet": bson.M{"memberIds": uid}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (s *Store) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Group, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Group{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
