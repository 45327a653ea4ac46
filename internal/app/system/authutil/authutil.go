// Package authutil holds auth error codes, their user-facing messages, and
// signed password reset tokens.
package authutil

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

// Auth error codes.
const (
	CodeEmailInUse          = "email-already-in-use"
	CodeCredentialInUse     = "credential-already-in-use"
	CodeWeakPassword        = "weak-password"
	CodeInvalidEmail        = "invalid-email"
	CodeUserNotFound        = "user-not-found"
	CodeWrongPassword       = "wrong-password"
	CodeInvalidCredential   = "invalid-credential"
	CodeRequiresRecentLogin = "requires-recent-login"
	CodeWrongCurrentPass    = "wrong-current-password"
	CodeUsernameTaken       = "username-taken"
	CodeInvalidResetToken   = "invalid-reset-token"
	CodeTooManyRequests     = "too-many-requests"
)

const wrongCredentialMsg = "Invalid email or password."

var messages = map[string]string{
	CodeEmailInUse:          "This email address is already in use by another account.",
	CodeCredentialInUse:     "This email address is already in use by another account.",
	CodeWeakPassword:        "The password is too weak. Please use at least 6 characters.",
	CodeInvalidEmail:        "The email address is not valid.",
	CodeUserNotFound:        wrongCredentialMsg,
	CodeWrongPassword:       wrongCredentialMsg,
	CodeInvalidCredential:   wrongCredentialMsg,
	CodeRequiresRecentLogin: "This action is sensitive and requires a recent login. Please log out and log back in again before retrying.",
	CodeWrongCurrentPass:    "The password you entered is incorrect.",
	CodeUsernameTaken:       "This username is already in use. Please choose another one.",
	CodeInvalidResetToken:   "This reset link is invalid or has expired.",
}

var statuses = map[string]int{
	CodeEmailInUse:          http.StatusConflict,
	CodeCredentialInUse:     http.StatusConflict,
	CodeUsernameTaken:       http.StatusConflict,
	CodeWeakPassword:        http.StatusBadRequest,
	CodeInvalidEmail:        http.StatusBadRequest,
	CodeInvalidResetToken:   http.StatusBadRequest,
	CodeUserNotFound:        http.StatusUnauthorized,
	CodeWrongPassword:       http.StatusUnauthorized,
	CodeInvalidCredential:   http.StatusUnauthorized,
	CodeRequiresRecentLogin: http.StatusUnauthorized,
	CodeWrongCurrentPass:    http.StatusUnauthorized,
	CodeTooManyRequests:     http.StatusTooManyRequests,
}

// Error is an auth failure carrying a code. Detail is only shown for codes
// without a fixed message.
type Error struct {
	Code   string
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Code + ": " + e.Detail
	}
	return e.Code
}

// Errorf returns an *Error with the given code.
func Errorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// New returns an *Error with the given code and no detail.
func New(code string) *Error {
	return &Error{Code: code}
}

// Message maps err to the text shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		if msg, ok := messages[ae.Code]; ok {
			return msg
		}
		if ae.Detail != "" {
			return "An unexpected error occurred: " + ae.Detail
		}
		return "An unexpected error occurred: " + ae.Code
	}
	return "An unexpected error occurred: " + err.Error()
}

// Status maps err to an HTTP status.
func Status(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		if s, ok := statuses[ae.Code]; ok {
			return s
		}
	}
	return http.StatusInternalServerError
}

// Code returns the auth code of err, or "" when err is not an *Error.
func Code(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// ResetTokens issues and verifies password reset tokens. A token names the
// account and the password_changed_at stamp it was issued against, so it stops
// working once the password changes.
type ResetTokens struct {
	sc  *securecookie.SecureCookie
	ttl time.Duration
}

type resetPayload struct {
	UID   string `json:"u"`
	Stamp int64  `json:"s"`
}

const resetTokenName = "pwreset"

// NewResetTokens builds a token codec. hashKey signs; blockKey (16/24/32 bytes
// or nil) encrypts.
func NewResetTokens(hashKey, blockKey []byte, ttl time.Duration) *ResetTokens {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(ttl / time.Second))
	sc.SetSerializer(securecookie.JSONEncoder{})
	return &ResetTokens{sc: sc, ttl: ttl}
}

// TTL is how long an issued token stays valid.
func (rt *ResetTokens) TTL() time.Duration { return rt.ttl }

// Issue returns a token for uid bound to passwordChangedAt.
func (rt *ResetTokens) Issue(uid string, passwordChangedAt time.Time) (string, error) {
	return rt.sc.Encode(resetTokenName, resetPayload{UID: uid, Stamp: passwordChangedAt.UnixMilli()})
}

// Parse decodes token and returns the uid and the stamp it was bound to.
func (rt *ResetTokens) Parse(token string) (uid string, stamp int64, err error) {
	var p resetPayload
	if err := rt.sc.Decode(resetTokenName, token, &p); err != nil || p.UID == "" {
		return "", 0, New(CodeInvalidResetToken)
	}
	return p.UID, p.Stamp, nil
}

// Matches reports whether stamp still equals the account's password_changed_at.
func Matches(stamp int64, passwordChangedAt time.Time) bool {
	return stamp == passwordChangedAt.UnixMilli()
}
