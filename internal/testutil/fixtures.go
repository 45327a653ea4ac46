package testutil

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/studyhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts a profile with empty lists and a matching username reservation.
func (f *Fixtures) CreateUser(ctx context.Context, username string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:                   uuid.NewString(),
		Email:                strings.ToLower(username) + "@example.com",
		Username:             username,
		UsernameLowercase:    strings.ToLower(username),
		Skills:               []string{},
		Followers:            []string{},
		Following:            []string{},
		CreatedStudyGroupIDs: []string{},
		JoinedStudyGroupIDs:  []string{},
		CreatedCohortIDs:     []string{},
		JoinedCohortIDs:      []string{},
		CreatedAt:            now,
		LastLoginAt:          now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	res := models.UsernameReservation{Username: u.UsernameLowercase, UID: u.ID}
	if _, err := f.db.Collection("usernames").InsertOne(ctx, res); err != nil {
		f.t.Fatalf("failed to reserve test username: %v", err)
	}
	return u
}

// CreateUsers inserts n users named prefix1..prefixN.
func (f *Fixtures) CreateUsers(ctx context.Context, prefix string, n int) []models.User {
	f.t.Helper()
	out := make([]models.User, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, f.CreateUser(ctx, prefix+itoa(i)))
	}
	return out
}

// CreateGroup inserts a group of the given kind with the given members.
// The first member (if any) is recorded as the creator.
func (f *Fixtures) CreateGroup(ctx context.Context, kind models.Kind, name, topic, commitmentKey string, memberIDs ...string) models.Group {
	f.t.Helper()

	creator := ""
	if len(memberIDs) > 0 {
		creator = memberIDs[0]
	}
	if memberIDs == nil {
		memberIDs = []string{}
	}
	g := models.Group{
		ID:            primitive.NewObjectID(),
		Name:          name,
		NameLowercase: strings.ToLower(name),
		Topic:         topic,
		Commitment:    models.CommitmentLabel(commitmentKey),
		Description:   "A new group for " + topic,
		CreatorID:     creator,
		MemberIDs:     memberIDs,
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := f.db.Collection(kind.Collection()).InsertOne(ctx, g); err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}
	return g
}

// CreateNotification inserts a notification for uid.
func (f *Fixtures) CreateNotification(ctx context.Context, uid, message string, isRead bool) models.Notification {
	f.t.Helper()
	n := models.Notification{
		ID:        primitive.NewObjectID(),
		UserID:    uid,
		Message:   message,
		IsRead:    isRead,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := f.db.Collection("notifications").InsertOne(ctx, n); err != nil {
		f.t.Fatalf("failed to create test notification: %v", err)
	}
	return n
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	pos := len(b)
	for i > 0 {
		pos--
		b[pos] = byte('0' + i%10)
		i /= 10
	}
	return string(b[pos:])
}
