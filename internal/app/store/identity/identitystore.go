// internal/app/store/identity/identitystore.go
//
// Package identitystore coordinates the account, profile and username
// collections for sign-up, sign-in and credential changes. Each operation
// that touches more than one collection runs through txn.Run.
package identitystore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	accountstore "github.com/dalemusser/studyhub/internal/app/store/accounts"
	usernamestore "github.com/dalemusser/studyhub/internal/app/store/usernames"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/app/system/authutil"
	"github.com/dalemusser/studyhub/internal/app/system/inputval"
	"github.com/dalemusser/studyhub/internal/app/system/normalize"
	"github.com/dalemusser/studyhub/internal/app/system/txn"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MinUsernameLength is the shortest accepted username.
const MinUsernameLength = 3

// Service runs identity operations against one database.
type Service struct {
	db        *mongo.Database
	log       *zap.Logger
	accounts  *accountstore.Store
	users     *userstore.Store
	usernames *usernamestore.Store
	tokens    *authutil.ResetTokens
	cost      int
}

// New returns a Service. tokens may be nil when password reset is not offered.
func New(db *mongo.Database, logger *zap.Logger, tokens *authutil.ResetTokens) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:        db,
		log:       logger,
		accounts:  accountstore.New(db),
		users:     userstore.New(db),
		usernames: usernamestore.New(db),
		tokens:    tokens,
		cost:      bcrypt.DefaultCost,
	}
}

// SetHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *Service) SetHashCost(cost int) {
	s.cost = cost
}

// SignupInput is a registration request. AnonymousUID, when set, is the
// uid of the caller's anonymous session; that account is upgraded in place.
type SignupInput struct {
	Username     string
	Email        string
	Password     string
	AnonymousUID string
}

type signupFields struct {
	Username string `validate:"required,min=3,max=30" label:"Username"`
	Email    string `validate:"required" label:"Email"`
	Password string `validate:"required" label:"Password"`
}

// UsernameAvailable reports whether username is still unclaimed.
func (s *Service) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if len([]rune(username)) < MinUsernameLength {
		return false, nil
	}
	taken, err := s.usernames.Exists(ctx, username)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

// Signup creates credentials, the profile and the username reservation.
// The profile and reservation are written in one atomic step so a racing
// signup for the same username fails with username-taken.
func (s *Service) Signup(ctx context.Context, in SignupInput) (models.User, error) {
	fields := signupFields{
		Username: strings.TrimSpace(in.Username),
		Email:    normalize.Email(in.Email),
		Password: in.Password,
	}
	if fields.Username == "" || fields.Email == "" || fields.Password == "" {
		return models.User{}, inputval.Errorf("Please fill out all fields.")
	}
	if err := inputval.Validate(fields).Err(); err != nil {
		return models.User{}, err
	}
	if !inputval.IsValidEmail(fields.Email) {
		return models.User{}, authutil.New(authutil.CodeInvalidEmail)
	}
	if err := inputval.CheckPassword(fields.Password); err != nil {
		return models.User{}, err
	}

	taken, err := s.usernames.Exists(ctx, fields.Username)
	if err != nil {
		return models.User{}, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return models.User{}, authutil.New(authutil.CodeUsernameTaken)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(fields.Password), s.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	var created models.User
	keys := []string{usernameKey(fields.Username), emailKey(fields.Email)}
	if in.AnonymousUID != "" {
		keys = append(keys, userKey(in.AnonymousUID))
	}
	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		acct, err := s.createCredentials(ctx, in.AnonymousUID, fields.Email, string(hash))
		if err != nil {
			return err
		}
		u, err := s.createProfile(ctx, acct.ID, fields.Username, fields.Email)
		if err != nil {
			return err
		}
		created = u
		return nil
	}, keys...)
	if err != nil {
		return models.User{}, err
	}

	s.log.Info("user signed up",
		zap.String("uid", created.ID),
		zap.String("username", created.Username),
		zap.Bool("upgraded", in.AnonymousUID != ""))
	return created, nil
}

// createCredentials upgrades the anonymous account when there is one and
// otherwise inserts a new password account.
func (s *Service) createCredentials(ctx context.Context, anonUID, email, hash string) (models.Account, error) {
	if anonUID != "" {
		acct, err := s.accounts.UpgradeAnonymous(ctx, anonUID, email, hash)
		switch {
		case err == nil:
			return acct, nil
		case errors.Is(err, accountstore.ErrEmailTaken):
			return models.Account{}, authutil.New(authutil.CodeCredentialInUse)
		case !errors.Is(err, accountstore.ErrNotAnonymous):
			return models.Account{}, fmt.Errorf("upgrade anonymous account: %w", err)
		}
	}
	acct, err := s.accounts.CreatePassword(ctx, email, hash)
	if errors.Is(err, accountstore.ErrEmailTaken) {
		return models.Account{}, authutil.New(authutil.CodeEmailInUse)
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("create account: %w", err)
	}
	return acct, nil
}

func (s *Service) createProfile(ctx context.Context, uid, username, email string) (models.User, error) {
	u, err := s.users.Create(ctx, models.User{ID: uid, Username: username, Email: email})
	if errors.Is(err, userstore.ErrDuplicateUsername) {
		return models.User{}, authutil.New(authutil.CodeUsernameTaken)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("create profile: %w", err)
	}
	if err := s.usernames.Reserve(ctx, username, uid); err != nil {
		if errors.Is(err, usernamestore.ErrTaken) {
			return models.User{}, authutil.New(authutil.CodeUsernameTaken)
		}
		return models.User{}, fmt.Errorf("reserve username: %w", err)
	}
	return u, nil
}

// StartAnonymous creates an anonymous account. It has no profile until signup.
func (s *Service) StartAnonymous(ctx context.Context) (models.Account, error) {
	acct, err := s.accounts.CreateAnonymous(ctx)
	if err != nil {
		return models.Account{}, fmt.Errorf("create anonymous account: %w", err)
	}
	return acct, nil
}

// Authenticate checks an email/password pair and records the sign-in.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.Account, error) {
	email = normalize.Email(email)
	if email == "" || password == "" {
		return nil, inputval.Errorf("Please enter your email and password.")
	}
	acct, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, accountstore.ErrNotFound) {
		return nil, authutil.New(authutil.CodeUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if acct.PasswordHash == "" {
		return nil, authutil.Errorf(authutil.CodeInvalidCredential, "account signs in with %s", acct.AuthMethod)
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
		return nil, authutil.New(authutil.CodeWrongPassword)
	}
	s.touch(ctx, acct.ID)
	return acct, nil
}

func (s *Service) touch(ctx context.Context, uid string) {
	now := time.Now().UTC()
	if err := s.accounts.TouchLogin(ctx, uid, now); err != nil {
		s.log.Warn("record account login", zap.String("uid", uid), zap.Error(err))
	}
	if err := s.users.TouchLastLogin(ctx, uid, now); err != nil {
		s.log.Warn("record profile login", zap.String("uid", uid), zap.Error(err))
	}
}

// verifyCurrent reloads a registered account and checks its current password.
func (s *Service) verifyCurrent(ctx context.Context, uid, currentPassword string) (*models.Account, error) {
	acct, err := s.accounts.GetByID(ctx, uid)
	if errors.Is(err, accountstore.ErrNotFound) {
		return nil, authutil.New(authutil.CodeUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if acct.Anonymous || acct.PasswordHash == "" {
		return nil, authutil.New(authutil.CodeRequiresRecentLogin)
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(currentPassword)) != nil {
		return nil, authutil.New(authutil.CodeWrongCurrentPass)
	}
	return acct, nil
}

// ChangeEmail re-verifies the current password, then moves the account and
// the profile to newEmail together.
func (s *Service) ChangeEmail(ctx context.Context, uid, currentPassword, newEmail string) error {
	newEmail = normalize.Email(newEmail)
	if newEmail == "" || currentPassword == "" {
		return inputval.Errorf("Please fill out all fields.")
	}
	if !inputval.IsValidEmail(newEmail) {
		return authutil.New(authutil.CodeInvalidEmail)
	}
	if _, err := s.verifyCurrent(ctx, uid, currentPassword); err != nil {
		return err
	}
	return txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		if err := s.accounts.SetEmail(ctx, uid, newEmail); err != nil {
			if errors.Is(err, accountstore.ErrEmailTaken) {
				return authutil.New(authutil.CodeEmailInUse)
			}
			return fmt.Errorf("set account email: %w", err)
		}
		if err := s.users.SetEmail(ctx, uid, newEmail); err != nil {
			return fmt.Errorf("set profile email: %w", err)
		}
		return nil
	}, userKey(uid), emailKey(newEmail))
}

// ChangePassword re-verifies the current password and stores newPassword.
func (s *Service) ChangePassword(ctx context.Context, uid, currentPassword, newPassword string) error {
	if currentPassword == "" || newPassword == "" {
		return inputval.Errorf("Please fill out all fields.")
	}
	if err := inputval.CheckPassword(newPassword); err != nil {
		return err
	}
	if _, err := s.verifyCurrent(ctx, uid, currentPassword); err != nil {
		return err
	}
	return s.setPassword(ctx, uid, newPassword)
}

func (s *Service) setPassword(ctx context.Context, uid, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.accounts.SetPassword(ctx, uid, string(hash)); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}

// ResetRequest is the outcome of RequestPasswordReset. Token is empty when
// no password account exists for the email.
type ResetRequest struct {
	UID   string
	Email string
	Token string
}

// RequestPasswordReset issues a reset token for a password account. Unknown
// emails are not an error so callers can answer the same way either way.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (ResetRequest, error) {
	email = normalize.Email(email)
	if email == "" {
		return ResetRequest{}, inputval.Errorf("Please enter your email address.")
	}
	if !inputval.IsValidEmail(email) {
		return ResetRequest{}, authutil.New(authutil.CodeInvalidEmail)
	}
	if s.tokens == nil {
		return ResetRequest{}, errors.New("password reset is not configured")
	}
	acct, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, accountstore.ErrNotFound) {
		return ResetRequest{Email: email}, nil
	}
	if err != nil {
		return ResetRequest{}, fmt.Errorf("load account: %w", err)
	}
	if acct.PasswordHash == "" {
		return ResetRequest{UID: acct.ID, Email: email}, nil
	}
	tok, err := s.tokens.Issue(acct.ID, acct.PasswordChangedAt)
	if err != nil {
		return ResetRequest{}, fmt.Errorf("issue reset token: %w", err)
	}
	return ResetRequest{UID: acct.ID, Email: email, Token: tok}, nil
}

// ConfirmPasswordReset sets newPassword for the token's account. A token
// dies as soon as the password changes.
func (s *Service) ConfirmPasswordReset(ctx context.Context, token, newPassword string) (string, error) {
	if s.tokens == nil {
		return "", errors.New("password reset is not configured")
	}
	uid, stamp, err := s.tokens.Parse(token)
	if err != nil {
		return "", err
	}
	if err := inputval.CheckPassword(newPassword); err != nil {
		return "", err
	}
	acct, err := s.accounts.GetByID(ctx, uid)
	if errors.Is(err, accountstore.ErrNotFound) {
		return "", authutil.New(authutil.CodeInvalidResetToken)
	}
	if err != nil {
		return "", fmt.Errorf("load account: %w", err)
	}
	if !authutil.Matches(stamp, acct.PasswordChangedAt) {
		return "", authutil.New(authutil.CodeInvalidResetToken)
	}
	if err := s.setPassword(ctx, uid, newPassword); err != nil {
		return "", err
	}
	return uid, nil
}

// SignInExternal resolves a verified external identity to an account. An
// existing account with the email is reused. Otherwise anonUID, when set, is
// upgraded in place, or a new external account is created; either way a
// profile is created with a username derived from the email.
func (s *Service) SignInExternal(ctx context.Context, email, method, anonUID string) (models.Account, bool, error) {
	email = normalize.Email(email)
	method = normalize.AuthMethod(method)
	if !inputval.IsValidEmail(email) {
		return models.Account{}, false, authutil.New(authutil.CodeInvalidEmail)
	}
	if !inputval.IsValidAuthMethod(method) || method == models.AuthMethodPassword || method == models.AuthMethodAnonymous {
		return models.Account{}, false, fmt.Errorf("unsupported external auth method %q", method)
	}

	existing, err := s.accounts.GetByEmail(ctx, email)
	if err == nil {
		s.touch(ctx, existing.ID)
		return *existing, false, nil
	}
	if !errors.Is(err, accountstore.ErrNotFound) {
		return models.Account{}, false, fmt.Errorf("load account: %w", err)
	}

	username, err := s.deriveUsername(ctx, email)
	if err != nil {
		return models.Account{}, false, err
	}

	keys := []string{usernameKey(username), emailKey(email)}
	if anonUID != "" {
		keys = append(keys, userKey(anonUID))
	}
	var acct models.Account
	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		a, err := s.externalCredentials(ctx, anonUID, email, method)
		if err != nil {
			return err
		}
		if _, err := s.createProfile(ctx, a.ID, username, email); err != nil {
			return err
		}
		acct = a
		return nil
	}, keys...)
	if err != nil {
		return models.Account{}, false, err
	}
	s.log.Info("external account created",
		zap.String("uid", acct.ID),
		zap.String("method", method),
		zap.String("username", username))
	return acct, true, nil
}

func (s *Service) externalCredentials(ctx context.Context, anonUID, email, method string) (models.Account, error) {
	if anonUID != "" {
		acct, err := s.accounts.UpgradeAnonymousExternal(ctx, anonUID, email, method)
		switch {
		case err == nil:
			return acct, nil
		case errors.Is(err, accountstore.ErrEmailTaken):
			return models.Account{}, authutil.New(authutil.CodeCredentialInUse)
		case !errors.Is(err, accountstore.ErrNotAnonymous):
			return models.Account{}, fmt.Errorf("upgrade anonymous account: %w", err)
		}
	}
	acct, err := s.accounts.CreateExternal(ctx, email, method)
	if errors.Is(err, accountstore.ErrEmailTaken) {
		return models.Account{}, authutil.New(authutil.CodeCredentialInUse)
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("create account: %w", err)
	}
	return acct, nil
}

var nonUsername = regexp.MustCompile(`[^a-z0-9_]+`)

// deriveUsername picks the first free name among the email's local part
// and that name with a numeric suffix.
func (s *Service) deriveUsername(ctx context.Context, email string) (string, error) {
	local, _, _ := strings.Cut(email, "@")
	base := nonUsername.ReplaceAllString(strings.ToLower(local), "")
	if len(base) > 24 {
		base = base[:24]
	}
	for len(base) < MinUsernameLength {
		base += "_"
	}
	for i := 0; i < 100; i++ {
		candidate := base
		if i > 0 {
			candidate = base + strconv.Itoa(i)
		}
		taken, err := s.usernames.Exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check username: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", authutil.New(authutil.CodeUsernameTaken)
}

func usernameKey(username string) string { return "usernames:" + usernamestore.Key(username) }
func emailKey(email string) string       { return "accounts:email:" + normalize.Email(email) }
func userKey(uid string) string          { return "users:" + uid }
