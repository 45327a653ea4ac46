package login_test

import (
	"net/http"
	"net/http/httptest"
	"net/mail"
	"net/url"
	"strings"
	"testing"
	"time"

	apierrors "github.com/dalemusser/studyhub/internal/app/features/errors"
	"github.com/dalemusser/studyhub/internal/app/features/login"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/authutil"
	"github.com/dalemusser/studyhub/internal/app/system/indexes"
	"github.com/dalemusser/studyhub/internal/app/system/mailer"
	"github.com/dalemusser/studyhub/internal/app/system/ratelimit"
	"github.com/dalemusser/studyhub/internal/testutil"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const goodPassword = "Secr3t!pw"

type fixture struct {
	h      *login.Handler
	sent   *mailer.LogTransport
	router http.Handler
}

func newFixture(t *testing.T, limiter *ratelimit.LoginLimiter) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	sm, err := auth.NewSessionManager("test-session-key-must-be-32-chars-long", "test-session", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	tokens := authutil.NewResetTokens([]byte("test-hash-key-must-be-32-bytes!!"), nil, time.Hour)
	lt := &mailer.LogTransport{}
	m := mailer.NewWithTransport(mail.Address{Address: "noreply@example.com"}, lt, zap.NewNop())

	h := login.NewHandler(db, sm, tokens, m, nil, limiter, "https://studyhub.test", zap.NewNop())
	h.Identity.SetHashCost(bcrypt.MinCost)

	return &fixture{h: h, sent: lt, router: sm.LoadSessionUser(login.Routes(h))}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) signup(t *testing.T, username, email string) {
	t.Helper()
	rec := f.do(testutil.NewJSONRequest("POST", "/signup", map[string]string{
		"username": username, "email": email, "password": goodPassword,
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) apierrors.Body {
	t.Helper()
	var b apierrors.Body
	testutil.DecodeRecorder(t, rec, &b)
	return b
}

func TestSignup_SetsSessionCookie(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(testutil.NewJSONRequest("POST", "/signup", map[string]string{
		"username": "Ada", "email": "ada@example.com", "password": goodPassword,
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Error("expected a session cookie")
	}

	var resp struct {
		User struct {
			ID        string `json:"id"`
			Username  string `json:"username"`
			Anonymous bool   `json:"anonymous"`
		} `json:"user"`
	}
	testutil.DecodeRecorder(t, rec, &resp)
	if resp.User.ID == "" || resp.User.Username != "Ada" || resp.User.Anonymous {
		t.Errorf("unexpected user: %+v", resp.User)
	}
}

func TestSignup_Errors(t *testing.T) {
	f := newFixture(t, nil)
	f.signup(t, "ada", "ada@example.com")

	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "username taken",
			body:       map[string]string{"username": "ADA", "email": "x@example.com", "password": goodPassword},
			wantStatus: http.StatusConflict,
			wantCode:   authutil.CodeUsernameTaken,
			wantMsg:    "This username is already in use. Please choose another one.",
		},
		{
			name:       "email in use",
			body:       map[string]string{"username": "grace", "email": "ada@example.com", "password": goodPassword},
			wantStatus: http.StatusConflict,
			wantCode:   authutil.CodeEmailInUse,
			wantMsg:    "This email address is already in use by another account.",
		},
		{
			name:       "missing fields",
			body:       map[string]string{"username": "grace"},
			wantStatus: http.StatusBadRequest,
			wantCode:   apierrors.CodeValidation,
			wantMsg:    "Please fill out all fields.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(testutil.NewJSONRequest("POST", "/signup", tt.body))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			b := decodeBody(t, rec)
			if b.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", b.Code, tt.wantCode)
			}
			if b.Error != tt.wantMsg {
				t.Errorf("error = %q, want %q", b.Error, tt.wantMsg)
			}
		})
	}
}

func TestUsernameAvailable(t *testing.T) {
	f := newFixture(t, nil)
	f.signup(t, "ada", "ada@example.com")

	rec := f.do(httptest.NewRequest("GET", "/username-available?u=Ada", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Available bool `json:"available"`
	}
	testutil.DecodeRecorder(t, rec, &resp)
	if resp.Available {
		t.Error("expected Ada to be unavailable")
	}

	rec = f.do(httptest.NewRequest("GET", "/username-available", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing param status = %d, want 400", rec.Code)
	}
}

func TestAnonymousThenSignup_KeepsUID(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(httptest.NewRequest("POST", "/anonymous", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("anonymous status = %d, body %s", rec.Code, rec.Body.String())
	}
	var anon struct {
		User struct {
			ID        string `json:"id"`
			Anonymous bool   `json:"anonymous"`
		} `json:"user"`
	}
	testutil.DecodeRecorder(t, rec, &anon)
	if !anon.User.Anonymous {
		t.Fatal("expected anonymous user")
	}

	req := testutil.NewJSONRequest("POST", "/signup", map[string]string{
		"username": "guest", "email": "guest@example.com", "password": goodPassword,
	})
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	rec = f.do(req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, body %s", rec.Code, rec.Body.String())
	}
	var signed struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	testutil.DecodeRecorder(t, rec, &signed)
	if signed.User.ID != anon.User.ID {
		t.Errorf("uid = %q, want anonymous uid %q", signed.User.ID, anon.User.ID)
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t, nil)
	f.signup(t, "ada", "ada@example.com")

	rec := f.do(testutil.NewJSONRequest("POST", "/login", map[string]string{
		"email": "ADA@example.com", "password": goodPassword,
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"username":"ada"`) {
		t.Errorf("expected username in body, got %s", rec.Body.String())
	}

	rec = f.do(testutil.NewJSONRequest("POST", "/login", map[string]string{
		"email": "ada@example.com", "password": "Wrong1!pw",
	}))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d", rec.Code)
	}
	if b := decodeBody(t, rec); b.Error != "Invalid email or password." {
		t.Errorf("error = %q", b.Error)
	}
}

func TestLogin_RateLimited(t *testing.T) {
	f := newFixture(t, ratelimit.NewLoginLimiterWithConfig(100, time.Minute, 1, time.Minute))
	f.signup(t, "ada", "ada@example.com")

	body := map[string]string{"email": "ada@example.com", "password": "Wrong1!pw"}
	if rec := f.do(testutil.NewJSONRequest("POST", "/login", body)); rec.Code != http.StatusUnauthorized {
		t.Fatalf("first attempt status = %d, want 401", rec.Code)
	}
	rec := f.do(testutil.NewJSONRequest("POST", "/login", body))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second attempt status = %d, want 429", rec.Code)
	}
	if b := decodeBody(t, rec); b.Code != authutil.CodeTooManyRequests {
		t.Errorf("code = %q", b.Code)
	}
}

func TestLogout_ExpiresCookie(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(httptest.NewRequest("POST", "/logout", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	expired := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == "test-session" && c.MaxAge < 0 {
			expired = true
		}
	}
	if !expired {
		t.Error("expected the session cookie to be expired")
	}
}

func TestPasswordReset_MailsLinkAndConfirms(t *testing.T) {
	f := newFixture(t, nil)
	f.signup(t, "ada", "ada@example.com")

	rec := f.do(testutil.NewJSONRequest("POST", "/password-reset", map[string]string{"email": "ada@example.com"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "If an account exists for ada@example.com, a password reset link has been sent.") {
		t.Errorf("unexpected message: %s", rec.Body.String())
	}

	sent := f.sent.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sent))
	}
	if sent[0].To != "ada@example.com" {
		t.Errorf("To = %q", sent[0].To)
	}
	token := extractToken(t, sent[0].TextBody)

	const next = "R3set!password"
	rec = f.do(testutil.NewJSONRequest("POST", "/password-reset/confirm", map[string]string{
		"token": token, "password": next,
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = f.do(testutil.NewJSONRequest("POST", "/login", map[string]string{"email": "ada@example.com", "password": next}))
	if rec.Code != http.StatusOK {
		t.Errorf("login with new password status = %d", rec.Code)
	}

	rec = f.do(testutil.NewJSONRequest("POST", "/password-reset/confirm", map[string]string{
		"token": token, "password": "An0ther!password",
	}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("reused token status = %d, want 400", rec.Code)
	}
}

func TestPasswordReset_UnknownEmailSendsNothing(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(testutil.NewJSONRequest("POST", "/password-reset", map[string]string{"email": "nobody@example.com"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if n := len(f.sent.Sent()); n != 0 {
		t.Errorf("expected no email, got %d", n)
	}
}

func extractToken(t *testing.T, body string) string {
	t.Helper()
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "https://studyhub.test/reset-password?") {
			continue
		}
		u, err := url.Parse(strings.TrimSpace(line))
		if err != nil {
			t.Fatalf("parse link: %v", err)
		}
		if tok := u.Query().Get("token"); tok != "" {
			return tok
		}
	}
	t.Fatalf("no reset link in body %q", body)
	return ""
}

func TestAccountRoutes_RequireRegistered(t *testing.T) {
	f := newFixture(t, nil)
	sm, _ := auth.NewSessionManager("test-session-key-must-be-32-chars-long", "test-session", "", time.Hour, false, zap.NewNop())
	r := login.AccountRoutes(f.h, sm)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, testutil.NewJSONRequest("POST", "/password", map[string]string{}))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no user status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := testutil.NewAuthenticatedRequest("POST", "/password", map[string]string{}, testutil.TestUser{ID: "anon", Anonymous: true})
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("anonymous status = %d, want 403", rec.Code)
	}
}

func TestChangeEmailAndPassword(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(testutil.NewJSONRequest("POST", "/signup", map[string]string{
		"username": "ada", "email": "ada@example.com", "password": goodPassword,
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d", rec.Code)
	}
	var resp struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	testutil.DecodeRecorder(t, rec, &resp)
	user := testutil.TestUser{ID: resp.User.ID, Username: "ada", Email: "ada@example.com"}

	rec = httptest.NewRecorder()
	f.h.HandleChangeEmail(rec, testutil.NewAuthenticatedRequest("POST", "/account/email", map[string]string{
		"currentPassword": "Wrong1!pw", "newEmail": "new@example.com",
	}, user))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d, want 401", rec.Code)
	}
	if b := decodeBody(t, rec); b.Error != "The password you entered is incorrect." {
		t.Errorf("error = %q", b.Error)
	}

	rec = httptest.NewRecorder()
	f.h.HandleChangeEmail(rec, testutil.NewAuthenticatedRequest("POST", "/account/email", map[string]string{
		"currentPassword": goodPassword, "newEmail": "new@example.com",
	}, user))
	if rec.Code != http.StatusOK {
		t.Fatalf("change email status = %d, body %s", rec.Code, rec.Body.String())
	}

	const next = "N3w!password"
	rec = httptest.NewRecorder()
	f.h.HandleChangePassword(rec, testutil.NewAuthenticatedRequest("POST", "/account/password", map[string]string{
		"currentPassword": goodPassword, "newPassword": next,
	}, user))
	if rec.Code != http.StatusOK {
		t.Fatalf("change password status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = f.do(testutil.NewJSONRequest("POST", "/login", map[string]string{"email": "new@example.com", "password": next}))
	if rec.Code != http.StatusOK {
		t.Errorf("login after changes status = %d", rec.Code)
	}
}
