package groups_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	apierrors "github.com/dalemusser/studyhub/internal/app/features/errors"
	"github.com/dalemusser/studyhub/internal/app/features/groups"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"github.com/dalemusser/studyhub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu  sync.Mutex
	ids []string
}

func (p *recordingPublisher) Publish(userIDs ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, userIDs...)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ids)
}

func newRouter(t *testing.T, db *mongo.Database, kind models.Kind, pub *recordingPublisher) http.Handler {
	t.Helper()
	sm, err := auth.NewSessionManager("test-session-key-must-be-32-chars-long", "test-session", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	h := groups.NewHandler(db, kind, pub, nil, zap.NewNop())
	r := chi.NewRouter()
	r.Mount(kind.PathPrefix(), groups.Routes(h, sm))
	return r
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

type listBody struct {
	Groups []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		MemberCount int    `json:"memberCount"`
		IsFull      bool   `json:"isFull"`
		IsMember    bool   `json:"isMember"`
	} `json:"groups"`
	NextCursor string `json:"nextCursor"`
}

func TestServeList_PagesNewestFirst(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "ada")
	fx.CreateGroup(ctx, models.KindStudyGroup, "First", "Rust", models.CommitmentPartTime, u.ID)
	fx.CreateGroup(ctx, models.KindStudyGroup, "Second", "Python", models.CommitmentPartTime, u.ID)
	fx.CreateGroup(ctx, models.KindStudyGroup, "Third", "SQL", models.CommitmentFullTime, u.ID)

	router := newRouter(t, db, models.KindStudyGroup, nil)

	rec := serve(router, testutil.WithUser(httptest.NewRequest("GET", "/groups?limit=2", nil), testutil.AsTestUser(u)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var page1 listBody
	testutil.DecodeRecorder(t, rec, &page1)
	if len(page1.Groups) != 2 || page1.Groups[0].Name != "Third" || page1.Groups[1].Name != "Second" {
		t.Fatalf("unexpected first page: %+v", page1.Groups)
	}
	if page1.NextCursor == "" {
		t.Fatal("expected a next cursor")
	}
	if !page1.Groups[0].IsMember || page1.Groups[0].MemberCount != 1 {
		t.Errorf("expected viewer flags on rows, got %+v", page1.Groups[0])
	}

	rec = serve(router, httptest.NewRequest("GET", "/groups?limit=2&before="+page1.NextCursor, nil))
	var page2 listBody
	testutil.DecodeRecorder(t, rec, &page2)
	if len(page2.Groups) != 1 || page2.Groups[0].Name != "First" {
		t.Fatalf("unexpected second page: %+v", page2.Groups)
	}
	if page2.NextCursor != "" {
		t.Errorf("expected no next cursor on last page, got %q", page2.NextCursor)
	}
}

func TestHandleCreate_AndDuplicateCandidate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u1 := fx.CreateUser(ctx, "ada")
	u2 := fx.CreateUser(ctx, "grace")
	router := newRouter(t, db, models.KindStudyGroup, nil)

	body := map[string]string{"name": "Rust Rangers", "topic": "Rust", "commitment": models.CommitmentPartTime}
	rec := serve(router, testutil.NewAuthenticatedRequest("POST", "/groups", body, testutil.AsTestUser(u1)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID   string `json:"id"`
		Link string `json:"link"`
	}
	testutil.DecodeRecorder(t, rec, &created)
	if created.Link != "/groups/"+created.ID {
		t.Errorf("link = %q", created.Link)
	}

	body["name"] = "Rust Again"
	rec = serve(router, testutil.NewAuthenticatedRequest("POST", "/groups", body, testutil.AsTestUser(u2)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, body %s", rec.Code, rec.Body.String())
	}
	var b apierrors.Body
	testutil.DecodeRecorder(t, rec, &b)
	if b.Code != groups.CodeDuplicateCandidate {
		t.Errorf("code = %q", b.Code)
	}
	if !strings.HasPrefix(b.Redirect, "/groups/candidates?") {
		t.Fatalf("redirect = %q, want /groups/candidates?...", b.Redirect)
	}

	// The redirect lands on the open group the create clashed with.
	rec = serve(router, testutil.WithUser(httptest.NewRequest("GET", b.Redirect, nil), testutil.AsTestUser(u2)))
	if rec.Code != http.StatusOK {
		t.Fatalf("candidates status = %d, body %s", rec.Code, rec.Body.String())
	}
	var cands struct {
		Groups []struct {
			ID string `json:"id"`
		} `json:"groups"`
	}
	testutil.DecodeRecorder(t, rec, &cands)
	if len(cands.Groups) != 1 || cands.Groups[0].ID != created.ID {
		t.Errorf("candidates = %+v, want the existing group %s", cands.Groups, created.ID)
	}

	n, err := db.Collection("studyGroups").CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 group, got %d", n)
	}
}

func TestHandleCreate_RequiresRegisteredUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newRouter(t, db, models.KindCohort, nil)

	body := map[string]string{"name": "X", "topic": "Rust", "commitment": models.CommitmentPartTime}

	rec := serve(router, testutil.NewJSONRequest("POST", "/cohorts", body))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no user status = %d, want 401", rec.Code)
	}
	rec = serve(router, testutil.NewAuthenticatedRequest("POST", "/cohorts", body, testutil.TestUser{ID: "anon", Anonymous: true}))
	if rec.Code != http.StatusForbidden {
		t.Errorf("anonymous status = %d, want 403", rec.Code)
	}
}

func TestHandleCreate_Validation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "ada")
	router := newRouter(t, db, models.KindStudyGroup, nil)

	rec := serve(router, testutil.NewAuthenticatedRequest("POST", "/groups",
		map[string]string{"name": "", "topic": "Rust", "commitment": models.CommitmentPartTime}, testutil.AsTestUser(u)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleJoin_Outcomes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	users := fx.CreateUsers(ctx, "member", models.MaxGroupMembers+1)
	ids := make([]string, 0, models.MaxGroupMembers-1)
	for _, u := range users[:models.MaxGroupMembers-1] {
		ids = append(ids, u.ID)
	}
	g := fx.CreateGroup(ctx, models.KindStudyGroup, "Rust Rangers", "Rust", models.CommitmentPartTime, ids...)

	pub := &recordingPublisher{}
	router := newRouter(t, db, models.KindStudyGroup, pub)
	path := "/groups/" + g.ID.Hex() + "/join"

	// Already a member.
	rec := serve(router, testutil.NewAuthenticatedRequest("POST", path, nil, testutil.AsTestUser(users[0])))
	if rec.Code != http.StatusConflict {
		t.Fatalf("already-member status = %d", rec.Code)
	}
	var b apierrors.Body
	testutil.DecodeRecorder(t, rec, &b)
	if b.Code != groups.CodeAlreadyMember {
		t.Errorf("code = %q, want %q", b.Code, groups.CodeAlreadyMember)
	}

	// The 25th member fills the group.
	rec = serve(router, testutil.NewAuthenticatedRequest("POST", path, nil, testutil.AsTestUser(users[models.MaxGroupMembers-1])))
	if rec.Code != http.StatusOK {
		t.Fatalf("join status = %d, body %s", rec.Code, rec.Body.String())
	}
	var joined struct {
		BecameFull bool `json:"becameFull"`
		Group      struct {
			MemberCount int  `json:"memberCount"`
			IsFull      bool `json:"isFull"`
		} `json:"group"`
	}
	testutil.DecodeRecorder(t, rec, &joined)
	if !joined.BecameFull || !joined.Group.IsFull || joined.Group.MemberCount != models.MaxGroupMembers {
		t.Errorf("unexpected join result: %+v", joined)
	}
	if pub.count() != models.MaxGroupMembers {
		t.Errorf("published to %d users, want %d", pub.count(), models.MaxGroupMembers)
	}

	// The 26th is rejected.
	rec = serve(router, testutil.NewAuthenticatedRequest("POST", path, nil, testutil.AsTestUser(users[models.MaxGroupMembers])))
	if rec.Code != http.StatusConflict {
		t.Fatalf("full status = %d", rec.Code)
	}
	testutil.DecodeRecorder(t, rec, &b)
	if b.Code != groups.CodeGroupFull {
		t.Errorf("code = %q, want %q", b.Code, groups.CodeGroupFull)
	}
}

func TestHandleJoin_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newRouter(t, db, models.KindCohort, nil)
	user := testutil.TestUser{ID: "u1", Username: "ada"}

	rec := serve(router, testutil.NewAuthenticatedRequest("POST", "/cohorts/000000000000000000000000/join", nil, user))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing group status = %d, want 404", rec.Code)
	}
	rec = serve(router, testutil.NewAuthenticatedRequest("POST", "/cohorts/not-an-id/join", nil, user))
	if rec.Code != http.StatusNotFound {
		t.Errorf("bad id status = %d, want 404", rec.Code)
	}

	// A session whose profile is gone cannot take a seat.
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := testutil.NewFixtures(t, db).CreateUser(ctx, "owner")
	g := testutil.NewFixtures(t, db).CreateGroup(ctx, models.KindCohort, "Ship It", "React", models.CommitmentFullTime, owner.ID)
	rec = serve(router, testutil.NewAuthenticatedRequest("POST", "/cohorts/"+g.ID.Hex()+"/join", nil, user))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing profile status = %d, want 404", rec.Code)
	}
	n, err := db.Collection("cohorts").CountDocuments(ctx, bson.M{"memberIds": "u1"})
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if n != 0 {
		t.Error("missing profile was added to the member list")
	}
}

func TestServeView_IncludesMembers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := fx.CreateUser(ctx, "ada")
	b := fx.CreateUser(ctx, "grace")
	g := fx.CreateGroup(ctx, models.KindCohort, "Builders", "Web3", models.CommitmentFullTime, a.ID, b.ID)

	router := newRouter(t, db, models.KindCohort, nil)
	rec := serve(router, httptest.NewRequest("GET", "/cohorts/"+g.ID.Hex(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Group struct {
			Name string `json:"name"`
		} `json:"group"`
		Members []struct {
			Username string `json:"username"`
		} `json:"members"`
	}
	testutil.DecodeRecorder(t, rec, &resp)
	if resp.Group.Name != "Builders" || len(resp.Members) != 2 {
		t.Errorf("unexpected view: %+v", resp)
	}
}

func TestServeCandidates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := fx.CreateUser(ctx, "ada")
	b := fx.CreateUser(ctx, "grace")
	fx.CreateGroup(ctx, models.KindStudyGroup, "Mine", "Rust", models.CommitmentPartTime, a.ID)
	fx.CreateGroup(ctx, models.KindStudyGroup, "Theirs", "Rust", models.CommitmentPartTime, b.ID)
	fx.CreateGroup(ctx, models.KindStudyGroup, "Other commitment", "Rust", models.CommitmentFullTime, b.ID)

	router := newRouter(t, db, models.KindStudyGroup, nil)

	rec := serve(router, testutil.WithUser(httptest.NewRequest("GET", "/groups/candidates?topic=Rust&commitment=part-time", nil), testutil.AsTestUser(a)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp listBody
	testutil.DecodeRecorder(t, rec, &resp)
	if len(resp.Groups) != 1 || resp.Groups[0].Name != "Theirs" {
		t.Errorf("unexpected candidates: %+v", resp.Groups)
	}

	rec = serve(router, httptest.NewRequest("GET", "/groups/candidates?topic=Rust", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing commitment status = %d, want 400", rec.Code)
	}
}

func TestServeOptions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newRouter(t, db, models.KindStudyGroup, nil)

	rec := serve(router, httptest.NewRequest("GET", "/groups/options", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Topics     []string `json:"topics"`
		MaxMembers int      `json:"maxMembers"`
	}
	testutil.DecodeRecorder(t, rec, &resp)
	if len(resp.Topics) != len(models.Topics) || resp.MaxMembers != models.MaxGroupMembers {
		t.Errorf("unexpected options: %+v", resp)
	}
}
