package userstore

import (
	"context"

	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Fetcher implements auth.UserFetcher to load fresh user data on each request.
// It reads the account (credentials side) and, when present, the profile.
type Fetcher struct {
	accounts *mongo.Collection
	users    *mongo.Collection
}

// NewFetcher creates a UserFetcher that queries the given database.
func NewFetcher(db *mongo.Database) *Fetcher {
	return &Fetcher{
		accounts: db.Collection("accounts"),
		users:    db.Collection("users"),
	}
}

// FetchUser returns nil if the account no longer exists or any error occurs.
// Anonymous accounts have no profile yet; they come back with Anonymous set.
func (f *Fetcher) FetchUser(ctx context.Context, userID string) *auth.SessionUser {
	if userID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	var acct models.Account
	acctProj := options.FindOne().SetProjection(bson.M{"_id": 1, "email": 1, "anonymous": 1})
	if err := f.accounts.FindOne(ctx, bson.M{"_id": userID}, acctProj).Decode(&acct); err != nil {
		return nil
	}

	su := &auth.SessionUser{
		ID:        acct.ID,
		Anonymous: acct.Anonymous,
	}
	if acct.Email != nil {
		su.Email = *acct.Email
	}
	if acct.Anonymous {
		return su
	}

	var u models.User
	proj := options.FindOne().SetProjection(bson.M{"_id": 1, "username": 1})
	if err := f.users.FindOne(ctx, bson.M{"_id": userID}, proj).Decode(&u); err == nil {
		su.Username = u.Username
	}
	// A registered account without a profile is still signed in; the username stays empty.
	return su
}
