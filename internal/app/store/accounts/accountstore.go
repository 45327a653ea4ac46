// Package accountstore persists sign-in credentials. Account ids are the uids
// shared with user profiles.
package accountstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/studyhub/internal/app/system/normalize"
	"github.com/dalemusser/studyhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrNotFound is returned when no account matches.
	ErrNotFound = errors.New("account not found")
	// ErrEmailTaken is returned when another account already uses the email.
	ErrEmailTaken = errors.New("an account with this email already exists")
	// ErrNotAnonymous is returned when upgrading an account that already has credentials.
	ErrNotAnonymous = errors.New("account is not anonymous")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("accounts")}
}

// CreatePassword inserts a password account and returns it with a fresh uid.
func (s *Store) CreatePassword(ctx context.Context, email, passwordHash string) (models.Account, error) {
	e := normalize.Email(email)
	now := time.Now().UTC()
	a := models.Account{
		ID:                uuid.NewString(),
		Email:             &e,
		PasswordHash:      passwordHash,
		AuthMethod:        models.AuthMethodPassword,
		PasswordChangedAt: now,
		CreatedAt:         now,
	}
	return s.insert(ctx, a)
}

// CreateAnonymous inserts an anonymous account.
func (s *Store) CreateAnonymous(ctx context.Context) (models.Account, error) {
	now := time.Now().UTC()
	a := models.Account{
		ID:         uuid.NewString(),
		AuthMethod: models.AuthMethodAnonymous,
		Anonymous:  true,
		CreatedAt:  now,
	}
	return s.insert(ctx, a)
}

// CreateExternal inserts an account for an external identity provider (google).
func (s *Store) CreateExternal(ctx context.Context, email, method string) (models.Account, error) {
	e := normalize.Email(email)
	now := time.Now().UTC()
	a := models.Account{
		ID:         uuid.NewString(),
		Email:      &e,
		AuthMethod: method,
		CreatedAt:  now,
	}
	return s.insert(ctx, a)
}

func (s *Store) insert(ctx context.Context, a models.Account) (models.Account, error) {
	if _, err := s.c.InsertOne(ctx, a); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Account{}, ErrEmailTaken
		}
		return models.Account{}, err
	}
	return a, nil
}

// GetByID loads an account by uid.
func (s *Store) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByEmail loads an account by case-insensitive email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.findOne(ctx, bson.M{"email": normalize.Email(email)})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.Account, error) {
	var a models.Account
	if err := s.c.FindOne(ctx, filter).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// UpgradeAnonymous attaches password credentials to an anonymous account,
// keeping its uid.
func (s *Store) UpgradeAnonymous(ctx context.Context, id, email, passwordHash string) (models.Account, error) {
	e := normalize.Email(email)
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "anonymous": true},
		bson.M{"$set": bson.M{
			"email":               e,
			"password_hash":       passwordHash,
			"auth_method":         models.AuthMethodPassword,
			"anonymous":           false,
			"password_changed_at": now,
		}})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.Account{}, ErrEmailTaken
		}
		return models.Account{}, err
	}
	if res.MatchedCount == 0 {
		return models.Account{}, ErrNotAnonymous
	}
	a, err := s.GetByID(ctx, id)
	if err != nil {
		return models.Account{}, err
	}
	return *a, nil
}

// UpgradeAnonymousExternal attaches an external identity to an anonymous
// account, keeping its uid.
func (s *Store) UpgradeAnonymousExternal(ctx context.Context, id, email, method string) (models.Account, error) {
	e := normalize.Email(email)
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "anonymous": true},
		bson.M{"$set": bson.M{
			"email":       e,
			"auth_method": normalize.AuthMethod(method),
			"anonymous":   false,
		}})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.Account{}, ErrEmailTaken
		}
		return models.Account{}, err
	}
	if res.MatchedCount == 0 {
		return models.Account{}, ErrNotAnonymous
	}
	a, err := s.GetByID(ctx, id)
	if err != nil {
		return models.Account{}, err
	}
	return *a, nil
}

// SetPassword replaces the password hash and bumps password_changed_at,
// which invalidates outstanding reset tokens.
func (s *Store) SetPassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"password_hash":       passwordHash,
		"password_changed_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEmail changes the sign-in email.
func (s *Store) SetEmail(ctx context.Context, id, email string) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"email": normalize.Email(email)}})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrEmailTaken
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLogin records last_login_at.
func (s *Store) TouchLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"last_login_at": at.UTC()}})
	return err
}
