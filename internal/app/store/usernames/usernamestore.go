// Package usernamestore manages the usernames collection: one document per
// claimed username, keyed by its lowercase form.
package usernamestore

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/studyhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrTaken is returned when the username is already reserved.
var ErrTaken = errors.New("username is already taken")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("usernames")}
}

// Key returns the reservation key for a username.
func Key(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Exists reports whether username is reserved by anyone.
func (s *Store) Exists(ctx context.Context, username string) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"_id": Key(username)}).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return false, err
}

// Reserve claims username for uid. Insert-by-_id makes a racing second
// claim fail with ErrTaken.
func (s *Store) Reserve(ctx context.Context, username, uid string) error {
	doc := models.UsernameReservation{Username: Key(username), UID: uid}
	if _, err := s.c.InsertOne(ctx, doc); err != nil {
		if wafflemongo.IsDup(err) {
			return ErrTaken
		}
		return err
	}
	return nil
}

// Owner returns the uid holding username, or "" when it is free.
func (s *Store) Owner(ctx context.Context, username string) (string, error) {
	var r models.UsernameReservation
	err := s.c.FindOne(ctx, bson.M{"_id": Key(username)}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return r.UID, nil
}
