package followstore_test

import (
	"errors"
	"testing"

	followstore "github.com/dalemusser/studyhub/internal/app/store/follows"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/testutil"
	"go.uber.org/zap"
)

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func TestToggleFollow_Symmetric(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := followstore.New(db, zap.NewNop())
	users := userstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := fixtures.CreateUser(ctx, "ada")
	b := fixtures.CreateUser(ctx, "bob")

	following, err := store.ToggleFollow(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("ToggleFollow failed: %v", err)
	}
	if !following {
		t.Error("expected first toggle to follow")
	}

	ga, _ := users.GetByID(ctx, a.ID)
	gb, _ := users.GetByID(ctx, b.ID)
	if !contains(ga.Following, b.ID) || !contains(gb.Followers, a.ID) {
		t.Fatalf("expected both sides updated: a.following=%v b.followers=%v", ga.Following, gb.Followers)
	}
	if len(gb.Following) != 0 || len(ga.Followers) != 0 {
		t.Error("expected the reverse edge to stay empty")
	}

	following, err = store.ToggleFollow(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("second ToggleFollow failed: %v", err)
	}
	if following {
		t.Error("expected second toggle to unfollow")
	}

	ga, _ = users.GetByID(ctx, a.ID)
	gb, _ = users.GetByID(ctx, b.ID)
	if contains(ga.Following, b.ID) || contains(gb.Followers, a.ID) {
		t.Errorf("expected both sides cleared: a.following=%v b.followers=%v", ga.Following, gb.Followers)
	}
}

func TestToggleFollow_UnknownTarget(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := followstore.New(db, zap.NewNop())
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := fixtures.CreateUser(ctx, "ada")

	if _, err := store.ToggleFollow(ctx, a.ID, "ghost"); !errors.Is(err, followstore.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

// Self-follow is not checked by the store; callers must refuse it.
func TestToggleFollow_SelfIsNotRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := followstore.New(db, zap.NewNop())
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := fixtures.CreateUser(ctx, "narcissus")

	following, err := store.ToggleFollow(ctx, a.ID, a.ID)
	if err != nil {
		t.Fatalf("ToggleFollow failed: %v", err)
	}
	if !following {
		t.Error("expected self-follow to be recorded")
	}
}

func TestFollowLists_Privacy(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := followstore.New(db, zap.NewNop())
	users := userstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fixtures.CreateUser(ctx, "owner")
	fan := fixtures.CreateUser(ctx, "fan")
	stranger := fixtures.CreateUser(ctx, "stranger")

	if _, err := store.ToggleFollow(ctx, fan.ID, owner.ID); err != nil {
		t.Fatalf("ToggleFollow failed: %v", err)
	}

	lists, err := store.FollowLists(ctx, owner.ID, stranger.ID)
	if err != nil {
		t.Fatalf("FollowLists failed: %v", err)
	}
	if !lists.Visible || len(lists.Followers) != 1 || lists.Followers[0].ID != fan.ID {
		t.Errorf("expected public follower list with fan, got %+v", lists)
	}

	if err := users.UpdateProfile(ctx, owner.ID, userstore.ProfileUpdate{FollowInfoPrivate: true}); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}

	lists, err = store.FollowLists(ctx, owner.ID, stranger.ID)
	if err != nil {
		t.Fatalf("FollowLists failed: %v", err)
	}
	if lists.Visible || len(lists.Followers) != 0 {
		t.Errorf("expected private lists hidden from strangers, got %+v", lists)
	}

	lists, err = store.FollowLists(ctx, owner.ID, owner.ID)
	if err != nil {
		t.Fatalf("FollowLists failed: %v", err)
	}
	if !lists.Visible || len(lists.Followers) != 1 {
		t.Errorf("expected owner to see private lists, got %+v", lists)
	}
}
