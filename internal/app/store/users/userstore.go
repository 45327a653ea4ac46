package userstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/studyhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MaxBatch caps GetMany lookups; larger id lists are truncated.
const MaxBatch = 30

var (
	// ErrNotFound is returned when no profile has the requested uid.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateUsername is returned when username_lowercase is already taken.
	ErrDuplicateUsername = errors.New("a user with this username already exists")
	errUIDNeeded         = errors.New("user id is required")
	errUsernameNeeded    = errors.New("username is required")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// GetByID loads a profile by uid.
func (s *Store) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetMany loads profiles for ids, in the order given. Unknown ids are skipped.
// At most MaxBatch ids are looked up.
func (s *Store) GetMany(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	if len(ids) > MaxBatch {
		ids = ids[:MaxBatch]
	}

	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	byID := make(map[string]models.User, len(ids))
	for cur.Next(ctx) {
		var u models.User
		if err := cur.Decode(&u); err != nil {
			return nil, err
		}
		byID[u.ID] = u
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	out := make([]models.User, 0, len(byID))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
			delete(byID, id)
		}
	}
	return out, nil
}

// Create inserts a new profile. List fields are initialised empty so that
// later $addToSet/$pull updates always operate on arrays.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = strings.TrimSpace(u.ID)
	u.Username = strings.TrimSpace(u.Username)
	if u.ID == "" {
		return models.User{}, errUIDNeeded
	}
	if u.Username == "" {
		return models.User{}, errUsernameNeeded
	}
	u.UsernameLowercase = strings.ToLower(u.Username)

	u.Skills = orEmpty(u.Skills)
	u.Followers = orEmpty(u.Followers)
	u.Following = orEmpty(u.Following)
	u.CreatedStudyGroupIDs = orEmpty(u.CreatedStudyGroupIDs)
	u.JoinedStudyGroupIDs = orEmpty(u.JoinedStudyGroupIDs)
	u.CreatedCohortIDs = orEmpty(u.CreatedCohortIDs)
	u.JoinedCohortIDs = orEmpty(u.JoinedCohortIDs)

	now := time.Now().UTC()
	u.CreatedAt = now
	u.LastLoginAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateUsername
		}
		return models.User{}, err
	}
	return u, nil
}

// ProfileUpdate holds the self-editable profile fields.
type ProfileUpdate struct {
	Bio               string
	Skills            []string
	SocialLinks       models.SocialLinks
	FollowInfoPrivate bool
}

// UpdateProfile replaces the editable fields of a profile.
func (s *Store) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"bio":               upd.Bio,
		"skills":            orEmpty(upd.Skills),
		"socialLinks":       upd.SocialLinks,
		"followInfoPrivate": upd.FollowInfoPrivate,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetNewsletter sets isSubscribedToNewsletter.
func (s *Store) SetNewsletter(ctx context.Context, id string, subscribed bool) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"isSubscribedToNewsletter": subscribed}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEmail mirrors an account email change onto the profile.
func (s *Store) SetEmail(ctx context.Context, id, email string) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"email": email}})
	return err
}

// TouchLastLogin records a sign-in time. Missing profiles are ignored.
func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"lastLoginAt": at.UTC()}})
	return err
}

// AddToList adds value to one of the profile's id lists ($addToSet).
// It returns ErrNotFound when no profile has this id.
func (s *Store) AddToList(ctx context.Context, id, field, value string) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$addToSet": bson.M{field: value}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchByUsernamePrefix returns profiles whose username_lowercase starts with
// prefix, ordered by username_lowercase.
func (s *Store) SearchByUsernamePrefix(ctx context.Context, prefix string, limit int64) ([]models.User, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return []models.User{}, nil
	}
	filter := bson.M{"username_lowercase": bson.M{
		"$gte": prefix,
		"$lte": prefix + "\uf8ff",
	}}
	opts := options.Find().
		SetSort(bson.D{{Key: "username_lowercase", Value: 1}}).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.User{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
