// internal/app/store/oauthstate/store.go
package oauthstate

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/gorilla/securecookie"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// State is a single-use OAuth2 state token.
type State struct {
	State     string    `bson:"_id"`
	ReturnURL string    `bson:"return_url,omitempty"`
	LinkUID   string    `bson:"link_uid,omitempty"` // anonymous account to upgrade on success
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

// Store manages OAuth2 state tokens in the oauth_states collection.
// expires_at carries a TTL index (see indexes.EnsureAll).
type Store struct {
	c *mongo.Collection
}

// New creates a new OAuth state Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("oauth_states")}
}

// Issue creates and stores a fresh random state valid for ttl.
func (s *Store) Issue(ctx context.Context, returnURL, linkUID string, ttl time.Duration) (string, error) {
	raw := securecookie.GenerateRandomKey(32)
	if raw == nil {
		return "", errors.New("oauthstate: no randomness available")
	}
	now := time.Now().UTC()
	st := State{
		State:     base64.RawURLEncoding.EncodeToString(raw),
		ReturnURL: returnURL,
		LinkUID:   linkUID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if _, err := s.c.InsertOne(ctx, st); err != nil {
		return "", err
	}
	return st.State, nil
}

// Consume deletes and returns the state if it exists and has not expired.
// ok is false for unknown, reused or expired states.
func (s *Store) Consume(ctx context.Context, state string) (st State, ok bool, err error) {
	err = s.c.FindOneAndDelete(ctx, bson.M{
		"_id":        state,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&st)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}
	return st, true, nil
}

// CleanupExpired removes expired states the TTL monitor has not reached yet.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": time.Now().UTC()}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
