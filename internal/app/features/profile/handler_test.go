package profile_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apierrors "github.com/dalemusser/studyhub/internal/app/features/errors"
	"github.com/dalemusser/studyhub/internal/app/features/profile"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
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
	r.Mount("/profile", profile.Routes(profile.NewHandler(db, nil, zap.NewNop()), sm))
	return r
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestServeProfile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ada := fx.CreateUser(ctx, "ada")
	router := newRouter(t, db)

	rec := serve(router, testutil.WithUser(httptest.NewRequest("GET", "/profile", nil), testutil.AsTestUser(ada)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		User struct {
			Username string `json:"username"`
			Email    string `json:"email"`
		} `json:"user"`
	}
	testutil.DecodeRecorder(t, rec, &resp)
	if resp.User.Username != "ada" || resp.User.Email != "ada@example.com" {
		t.Errorf("unexpected profile: %+v", resp.User)
	}

	rec = serve(router, httptest.NewRequest("GET", "/profile", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", rec.Code)
	}
}

func TestUpdateProfile_SanitizesAndNormalizes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ada := fx.CreateUser(ctx, "ada")
	router := newRouter(t, db)

	body := map[string]any{
		"bio":               "<b>Hello</b> <script>alert(1)</script>world",
		"skills":            []string{" Go ", "go", "", "Rust"},
		"socialLinks":       map[string]string{"github": "https://github.com/ada"},
		"followInfoPrivate": true,
	}
	rec := serve(router, testutil.NewAuthenticatedRequest("POST", "/profile", body, testutil.AsTestUser(ada)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	u, err := userstore.New(db).GetByID(ctx, ada.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if strings.Contains(u.Bio, "<") || strings.Contains(u.Bio, "alert") {
		t.Errorf("bio not sanitized: %q", u.Bio)
	}
	if len(u.Skills) != 2 || u.Skills[0] != "Go" || u.Skills[1] != "Rust" {
		t.Errorf("skills = %v, want [Go Rust]", u.Skills)
	}
	if u.SocialLinks.Github != "https://github.com/ada" {
		t.Errorf("github link = %q", u.SocialLinks.Github)
	}
	if !u.FollowInfoPrivate {
		t.Error("expected followInfoPrivate to be stored")
	}
}

func TestUpdateProfile_Validation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ada := fx.CreateUser(ctx, "ada")
	router := newRouter(t, db)

	manySkills := make([]string, profile.MaxSkills+1)
	for i := range manySkills {
		manySkills[i] = fmt.Sprintf("skill-%d", i)
	}

	tests := []struct {
		name string
		body map[string]any
	}{
		{"bad link", map[string]any{"socialLinks": map[string]string{"twitter": "javascript:alert(1)"}}},
		{"long bio", map[string]any{"bio": strings.Repeat("a", 501)}},
		{"too many skills", map[string]any{"skills": manySkills}},
		{"long skill", map[string]any{"skills": []string{strings.Repeat("x", profile.MaxSkillLength+1)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, testutil.NewAuthenticatedRequest("POST", "/profile", tt.body, testutil.AsTestUser(ada)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
			var b apierrors.Body
			testutil.DecodeRecorder(t, rec, &b)
			if b.Error == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestNewsletter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ada := fx.CreateUser(ctx, "ada")
	router := newRouter(t, db)

	rec := serve(router, testutil.NewAuthenticatedRequest("POST", "/profile/newsletter",
		map[string]bool{"subscribed": true}, testutil.AsTestUser(ada)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	u, err := userstore.New(db).GetByID(ctx, ada.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !u.IsSubscribedToNewsletter {
		t.Error("expected newsletter subscription to be stored")
	}

	rec = serve(router, testutil.NewAuthenticatedRequest("POST", "/profile/newsletter",
		map[string]bool{"subscribed": true}, testutil.TestUser{ID: "guest", Anonymous: true}))
	if rec.Code != http.StatusForbidden {
		t.Errorf("anonymous status = %d, want 403", rec.Code)
	}
}
