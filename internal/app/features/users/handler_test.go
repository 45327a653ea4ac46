package users_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/studyhub/internal/app/features/users"
	followstore "github.com/dalemusser/studyhub/internal/app/store/follows"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"github.com/dalemusser/studyhub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newRouter(t *testing.T, db *mongo.Database) http.Handler {
	t.Helper()
	sm, err := auth.NewSessionManager("test-session-key-must-be-32-chars-long", "test-session", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	r := chi.NewRouter()
	r.Mount("/users", users.Routes(users.NewHandler(db, nil, zap.NewNop()), sm))
	return r
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

type userBody struct {
	User struct {
		ID        string   `json:"id"`
		Email     string   `json:"email"`
		Username  string   `json:"username"`
		Followers []string `json:"followers"`
	} `json:"user"`
	IsSelf      bool `json:"isSelf"`
	IsFollowing bool `json:"isFollowing"`
	StudyGroups []struct {
		Name string `json:"name"`
	} `json:"studyGroups"`
	Cohorts []struct {
		Name string `json:"name"`
	} `json:"cohorts"`
	Follows struct {
		Visible   bool `json:"visible"`
		Followers []struct {
			Username string `json:"username"`
		} `json:"followers"`
	} `json:"follows"`
}

func TestFollowToggle_RoundTrip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ada := fx.CreateUser(ctx, "ada")
	grace := fx.CreateUser(ctx, "grace")
	router := newRouter(t, db)
	path := "/users/" + grace.ID + "/follow"

	rec := serve(router, testutil.NewAuthenticatedRequest("POST", path, nil, testutil.AsTestUser(ada)))
	if rec.Code != http.StatusOK {
		t.Fatalf("follow status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Following bool `json:"following"`
	}
	testutil.DecodeRecorder(t, rec, &res)
	if !res.Following {
		t.Fatal("expected following = true")
	}

	rec = serve(router, testutil.WithUser(httptest.NewRequest("GET", "/users/"+grace.ID, nil), testutil.AsTestUser(ada)))
	var body userBody
	testutil.DecodeRecorder(t, rec, &body)
	if !body.IsFollowing || len(body.Follows.Followers) != 1 || body.Follows.Followers[0].Username != "ada" {
		t.Errorf("unexpected profile after follow: %+v", body)
	}

	rec = serve(router, testutil.NewAuthenticatedRequest("POST", path, nil, testutil.AsTestUser(ada)))
	testutil.DecodeRecorder(t, rec, &res)
	if res.Following {
		t.Error("expected second toggle to unfollow")
	}

	g, err := userstore.New(db).GetByID(ctx, grace.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(g.Followers) != 0 {
		t.Errorf("followers = %v, want empty", g.Followers)
	}
	a, err := userstore.New(db).GetByID(ctx, ada.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(a.Following) != 0 {
		t.Errorf("following = %v, want empty", a.Following)
	}
}

func TestFollow_Rejections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ada := fx.CreateUser(ctx, "ada")
	router := newRouter(t, db)

	rec := serve(router, testutil.NewAuthenticatedRequest("POST", "/users/"+ada.ID+"/follow", nil, testutil.AsTestUser(ada)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("self-follow status = %d, want 400", rec.Code)
	}

	rec = serve(router, testutil.NewAuthenticatedRequest("POST", "/users/nobody/follow", nil, testutil.AsTestUser(ada)))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown target status = %d, want 404", rec.Code)
	}

	rec = serve(router, testutil.NewAuthenticatedRequest("POST", "/users/"+ada.ID+"/follow", nil, testutil.TestUser{ID: "guest", Anonymous: true}))
	if rec.Code != http.StatusForbidden {
		t.Errorf("anonymous status = %d, want 403", rec.Code)
	}
}

func TestServeUser_GroupsAndPrivacy(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ada := fx.CreateUser(ctx, "ada")
	grace := fx.CreateUser(ctx, "grace")
	fx.CreateGroup(ctx, models.KindStudyGroup, "Rust Rangers", "Rust", models.CommitmentPartTime, ada.ID)
	fx.CreateGroup(ctx, models.KindCohort, "Builders", "Web3", models.CommitmentFullTime, grace.ID, ada.ID)

	if err := userstore.New(db).UpdateProfile(ctx, ada.ID, userstore.ProfileUpdate{FollowInfoPrivate: true}); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}

	router := newRouter(t, db)

	rec := serve(router, testutil.WithUser(httptest.NewRequest("GET", "/users/"+ada.ID, nil), testutil.AsTestUser(grace)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body userBody
	testutil.DecodeRecorder(t, rec, &body)
	if len(body.StudyGroups) != 1 || len(body.Cohorts) != 1 {
		t.Errorf("groups = %d, cohorts = %d, want 1 and 1", len(body.StudyGroups), len(body.Cohorts))
	}
	if body.Follows.Visible {
		t.Error("private follow lists should be hidden from other users")
	}
	if body.User.Email != "" {
		t.Errorf("email leaked to another viewer: %q", body.User.Email)
	}

	rec = serve(router, testutil.WithUser(httptest.NewRequest("GET", "/users/"+ada.ID, nil), testutil.AsTestUser(ada)))
	testutil.DecodeRecorder(t, rec, &body)
	if !body.IsSelf || !body.Follows.Visible || body.User.Email != "ada@example.com" {
		t.Errorf("owner view = %+v", body)
	}

	rec = serve(router, httptest.NewRequest("GET", "/users/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing user status = %d, want 404", rec.Code)
	}
}

func TestServeUser_ListedProfilesRespectPrivacy(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ada := fx.CreateUser(ctx, "ada")
	grace := fx.CreateUser(ctx, "grace")
	linus := fx.CreateUser(ctx, "linus")

	follows := followstore.New(db, zap.NewNop())
	for _, pair := range [][2]string{{grace.ID, ada.ID}, {grace.ID, linus.ID}, {linus.ID, grace.ID}} {
		if _, err := follows.ToggleFollow(ctx, pair[0], pair[1]); err != nil {
			t.Fatalf("ToggleFollow failed: %v", err)
		}
	}
	if err := userstore.New(db).UpdateProfile(ctx, grace.ID, userstore.ProfileUpdate{FollowInfoPrivate: true}); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}

	router := newRouter(t, db)
	rec := serve(router, testutil.WithUser(httptest.NewRequest("GET", "/users/"+ada.ID, nil), testutil.AsTestUser(ada)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Follows struct {
			Followers []struct {
				Username  string   `json:"username"`
				Email     string   `json:"email"`
				Followers []string `json:"followers"`
				Following []string `json:"following"`
			} `json:"followers"`
		} `json:"follows"`
	}
	testutil.DecodeRecorder(t, rec, &body)

	if len(body.Follows.Followers) != 1 || body.Follows.Followers[0].Username != "grace" {
		t.Fatalf("followers = %+v, want grace", body.Follows.Followers)
	}
	g := body.Follows.Followers[0]
	if g.Email != "" {
		t.Errorf("listed profile leaked email %q", g.Email)
	}
	if len(g.Followers) != 0 || len(g.Following) != 0 {
		t.Errorf("listed private profile leaked follow lists: followers=%v following=%v", g.Followers, g.Following)
	}
}
