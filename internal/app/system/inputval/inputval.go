// Package inputval validates request input before it reaches a store.
//
// Struct validation uses go-playground/validator with a `label` tag for
// human-readable messages. Password strength is checked separately by
// CheckPassword.
package inputval

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"reflect"
	"strings"

	"github.com/dalemusser/studyhub/internal/domain/models"
	"github.com/go-playground/validator/v10"
)

// FieldError is one failed rule.
type FieldError struct {
	Field   string
	Message string
}

// Result collects the failures from Validate.
type Result struct {
	Errors []FieldError
}

// HasErrors reports whether any rule failed.
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// First returns the first message, or "".
func (r *Result) First() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

// All joins every message with "; ".
func (r *Result) All() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// Err returns a *ValidationError, or nil when there are no failures.
func (r *Result) Err() error {
	if !r.HasErrors() {
		return nil
	}
	return &ValidationError{Errors: r.Errors}
}

// ValidationError is returned for input that fails validation; handlers map it to 400.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	r := Result{Errors: e.Errors}
	return r.All()
}

// Errorf builds a single-message ValidationError.
func Errorf(format string, args ...any) error {
	return &ValidationError{Errors: []FieldError{{Message: fmt.Sprintf(format, args...)}}}
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if l := f.Tag.Get("label"); l != "" {
			return l
		}
		return f.Name
	})
	_ = v.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
		return IsValidHTTPURL(fl.Field().String())
	})
	_ = v.RegisterValidation("studyemail", func(fl validator.FieldLevel) bool {
		return IsValidEmail(fl.Field().String())
	})
	return v
}

// Validate runs the struct's `validate` tags and returns every failure in field order.
func Validate(v any) *Result {
	res := &Result{}
	err := validate.Struct(v)
	if err == nil {
		return res
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		res.Errors = append(res.Errors, FieldError{Message: err.Error()})
		return res
	}
	for _, fe := range verrs {
		res.Errors = append(res.Errors, FieldError{
			Field:   fe.StructField(),
			Message: message(fe),
		})
	}
	return res
}

func message(fe validator.FieldError) string {
	label := fe.Field()
	switch fe.Tag() {
	case "required":
		return label + " is required."
	case "max":
		return fmt.Sprintf("%s must be at most %s characters.", label, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters.", label, fe.Param())
	case "email", "studyemail":
		return "A valid email address is required."
	case "httpurl", "url":
		return label + " must be a valid http(s) URL."
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s.", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return label + " is invalid."
}

// IsValidEmail accepts a bare RFC 5322 address (no display name).
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t<>") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndex(s, "@")
	local, domain := s[:at], s[at+1:]
	if local == "" || domain == "" {
		return false
	}
	for _, part := range []string{local, domain} {
		if strings.HasPrefix(part, ".") || strings.HasSuffix(part, ".") || strings.Contains(part, "..") {
			return false
		}
	}
	return true
}

// IsValidAuthMethod checks the value against the known sign-in methods, ignoring case.
func IsValidAuthMethod(s string) bool {
	return models.IsValidAuthMethod(strings.ToLower(strings.TrimSpace(s)))
}

// IsValidHTTPURL accepts absolute http and https URLs with a host.
func IsValidHTTPURL(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// CheckPassword enforces the password policy: at least MinPasswordLength
// characters with an uppercase letter, a lowercase letter, a digit and a
// special character. The message lists every unmet rule.
func CheckPassword(pw string) error {
	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			special = true
		}
	}

	var missing []string
	if len([]rune(pw)) < MinPasswordLength {
		missing = append(missing, fmt.Sprintf("be at least %d characters long", MinPasswordLength))
	}
	if !upper {
		missing = append(missing, "contain an uppercase letter")
	}
	if !lower {
		missing = append(missing, "contain a lowercase letter")
	}
	if !digit {
		missing = append(missing, "contain a number")
	}
	if !special {
		missing = append(missing, "contain a special character")
	}
	if len(missing) == 0 {
		return nil
	}
	return &ValidationError{Errors: []FieldError{{
		Field:   "Password",
		Message: "Password must " + strings.Join(missing, ", ") + ".",
	}}}
}
