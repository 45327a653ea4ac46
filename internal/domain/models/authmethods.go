// internal/domain/models/authmethods.go
package models

// Auth methods recorded on Account.AuthMethod.
const (
	AuthMethodPassword  = "password"
	AuthMethodGoogle    = "google"
	AuthMethodAnonymous = "anonymous"
)

// IsValidAuthMethod checks if a value is a known auth method.
func IsValidAuthMethod(v string) bool {
	switch v {
	case AuthMethodPassword, AuthMethodGoogle, AuthMethodAnonymous:
		return true
	}
	return false
}
